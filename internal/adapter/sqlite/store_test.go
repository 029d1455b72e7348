package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pscheid92/streamroom/internal/adapter/storetest"
	"github.com/pscheid92/streamroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Conformance(t *testing.T) {
	storetest.RunStateStoreSuite(t, func(t *testing.T) domain.StateStore {
		return newTestStore(t)
	})
}

func TestStore_StatePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(ctx, []string{"Song A", "Song B"}, "HostUser"))
	_, _, err = s.IncrementVote(ctx, "Song B")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	poll, err := reopened.ListPollOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PollOption{{Option: "Song A", Votes: 0}, {Option: "Song B", Votes: 1}}, poll)
}

func TestStore_ClosedReportsUnavailable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Initialize(ctx, []string{"Song A"}, "HostUser"))
	require.NoError(t, s.Close())

	_, _, err := s.IncrementVote(ctx, "Song A")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = s.ToggleLike(ctx, "alice", domain.DefaultStreamID)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	assert.ErrorIs(t, s.Ping(ctx), domain.ErrStoreUnavailable)
}
