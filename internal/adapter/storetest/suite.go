// Package storetest holds the behavioural test suite every domain.StateStore
// backend must pass.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pscheid92/streamroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const host = "HostUser"

var seed = []string{"Song A", "Song B"}

// Factory returns an empty store. The suite initializes it; cleanup is the
// factory's responsibility (t.Cleanup).
type Factory func(t *testing.T) domain.StateStore

// RunStateStoreSuite runs every store behaviour as a subtest against stores
// produced by newStore.
func RunStateStoreSuite(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s domain.StateStore)
	}{
		{"InitializeSeedsState", testInitializeSeedsState},
		{"InitializeReplacesState", testInitializeReplacesState},
		{"InitializeRejectsInvalidSeed", testInitializeRejectsInvalidSeed},
		{"RegisterCreatesViewer", testRegisterCreatesViewer},
		{"RegisterIsIdempotent", testRegisterIsIdempotent},
		{"RegisterHostKeepsPrivilege", testRegisterHostKeepsPrivilege},
		{"RegisterIsCaseSensitive", testRegisterIsCaseSensitive},
		{"RegisterRejectsBlank", testRegisterRejectsBlank},
		{"GetUserMissing", testGetUserMissing},
		{"ListUsersInInsertionOrder", testListUsersInInsertionOrder},
		{"IncrementVote", testIncrementVote},
		{"IncrementUnknownOptionIsNoop", testIncrementUnknownOptionIsNoop},
		{"ToggleLikeIsSetInsert", testToggleLikeIsSetInsert},
		{"LikesArePerStream", testLikesArePerStream},
		{"ToggleLikeRejectsBlank", testToggleLikeRejectsBlank},
		{"ConcurrentVotesAreNotLost", testConcurrentVotesAreNotLost},
		{"ConcurrentRegisterCreatesOnce", testConcurrentRegisterCreatesOnce},
		{"ConcurrentLikesAreNotLost", testConcurrentLikesAreNotLost},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, s.Initialize(context.Background(), seed, host))
			tt.fn(t, s)
		})
	}
}

func testInitializeSeedsState(t *testing.T, s domain.StateStore) {
	ctx := context.Background()

	poll, err := s.ListPollOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PollOption{{Option: "Song A", Votes: 0}, {Option: "Song B", Votes: 0}}, poll)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.User{{Username: host, IsHost: true}}, users)

	likes, err := s.ListLikes(ctx, domain.DefaultStreamID)
	require.NoError(t, err)
	assert.NotNil(t, likes)
	assert.Empty(t, likes)
}

func testInitializeReplacesState(t *testing.T, s domain.StateStore) {
	ctx := context.Background()
	_, _, err := s.RegisterUser(ctx, "alice")
	require.NoError(t, err)
	_, _, err = s.IncrementVote(ctx, "Song A")
	require.NoError(t, err)
	_, err = s.ToggleLike(ctx, "alice", domain.DefaultStreamID)
	require.NoError(t, err)

	require.NoError(t, s.Initialize(ctx, []string{"Red", "Blue", "Green"}, "Boss"))

	poll, err := s.ListPollOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PollOption{{Option: "Red"}, {Option: "Blue"}, {Option: "Green"}}, poll)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.User{{Username: "Boss", IsHost: true}}, users)

	likes, err := s.ListLikes(ctx, domain.DefaultStreamID)
	require.NoError(t, err)
	assert.Empty(t, likes)
}

func testInitializeRejectsInvalidSeed(t *testing.T, s domain.StateStore) {
	ctx := context.Background()

	assert.ErrorIs(t, s.Initialize(ctx, nil, host), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.Initialize(ctx, []string{"A", "A"}, host), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.Initialize(ctx, seed, " "), domain.ErrInvalidInput)

	// rejected seeds leave the previous state alone
	poll, err := s.ListPollOptions(ctx)
	require.NoError(t, err)
	assert.Len(t, poll, 2)
}

func testRegisterCreatesViewer(t *testing.T, s domain.StateStore) {
	ctx := context.Background()

	user, created, err := s.RegisterUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.User{Username: "alice", IsHost: false}, user)

	got, ok, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, user, got)
}

func testRegisterIsIdempotent(t *testing.T, s domain.StateStore) {
	ctx := context.Background()

	first, _, err := s.RegisterUser(ctx, "alice")
	require.NoError(t, err)
	second, created, err := s.RegisterUser(ctx, "alice")
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first, second)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func testRegisterHostKeepsPrivilege(t *testing.T, s domain.StateStore) {
	user, created, err := s.RegisterUser(context.Background(), host)
	require.NoError(t, err)

	assert.False(t, created)
	assert.True(t, user.IsHost)
}

func testRegisterIsCaseSensitive(t *testing.T, s domain.StateStore) {
	ctx := context.Background()

	user, created, err := s.RegisterUser(ctx, "hostuser")
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, user.IsHost)

	_, created, err = s.RegisterUser(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = s.RegisterUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, created)
}

func testRegisterRejectsBlank(t *testing.T, s domain.StateStore) {
	ctx := context.Background()

	for _, name := range []string{"", "   ", "\t"} {
		_, _, err := s.RegisterUser(ctx, name)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%q", name)
	}

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testGetUserMissing(t *testing.T, s domain.StateStore) {
	_, ok, err := s.GetUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testListUsersInInsertionOrder(t *testing.T, s domain.StateStore) {
	ctx := context.Background()
	for _, name := range []string{"zoe", "adam", "mike"} {
		_, _, err := s.RegisterUser(ctx, name)
		require.NoError(t, err)
	}

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)

	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{host, "zoe", "adam", "mike"}, names)
}

func testIncrementVote(t *testing.T, s domain.StateStore) {
	ctx := context.Background()

	tally, found, err := s.IncrementVote(ctx, "Song A")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []domain.PollOption{{Option: "Song A", Votes: 1}, {Option: "Song B"}}, tally)

	_, _, err = s.IncrementVote(ctx, "Song B")
	require.NoError(t, err)
	tally, _, err = s.IncrementVote(ctx, "Song A")
	require.NoError(t, err)
	assert.Equal(t, []domain.PollOption{{Option: "Song A", Votes: 2}, {Option: "Song B", Votes: 1}}, tally)

	poll, err := s.ListPollOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PollOption{{Option: "Song A", Votes: 2}, {Option: "Song B", Votes: 1}}, poll)
}

func testIncrementUnknownOptionIsNoop(t *testing.T, s domain.StateStore) {
	ctx := context.Background()

	tally, found, err := s.IncrementVote(ctx, "Song C")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, []domain.PollOption{{Option: "Song A"}, {Option: "Song B"}}, tally)

	_, found, err = s.IncrementVote(ctx, "song a")
	require.NoError(t, err)
	assert.False(t, found)

	poll, err := s.ListPollOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PollOption{{Option: "Song A"}, {Option: "Song B"}}, poll)
}

func testToggleLikeIsSetInsert(t *testing.T, s domain.StateStore) {
	ctx := context.Background()

	likes, err := s.ToggleLike(ctx, "alice", domain.DefaultStreamID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, likes)

	likes, err = s.ToggleLike(ctx, "bob", domain.DefaultStreamID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, likes)

	likes, err = s.ToggleLike(ctx, "alice", domain.DefaultStreamID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, likes)

	listed, err := s.ListLikes(ctx, domain.DefaultStreamID)
	require.NoError(t, err)
	assert.Equal(t, likes, listed)
}

func testLikesArePerStream(t *testing.T, s domain.StateStore) {
	ctx := context.Background()

	_, err := s.ToggleLike(ctx, "alice", 1)
	require.NoError(t, err)
	likes, err := s.ToggleLike(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, likes)

	other, err := s.ListLikes(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, other)
	assert.Empty(t, other)
}

func testToggleLikeRejectsBlank(t *testing.T, s domain.StateStore) {
	ctx := context.Background()

	_, err := s.ToggleLike(ctx, "  ", domain.DefaultStreamID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	likes, err := s.ListLikes(ctx, domain.DefaultStreamID)
	require.NoError(t, err)
	assert.Empty(t, likes)
}

func testConcurrentVotesAreNotLost(t *testing.T, s domain.StateStore) {
	ctx := context.Background()
	const voters, votesEach = 20, 10

	var wg sync.WaitGroup
	for range voters {
		wg.Go(func() {
			for range votesEach {
				_, _, err := s.IncrementVote(ctx, "Song B")
				assert.NoError(t, err)
			}
		})
	}
	wg.Wait()

	poll, err := s.ListPollOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PollOption{Option: "Song B", Votes: voters * votesEach}, poll[1])
}

func testConcurrentRegisterCreatesOnce(t *testing.T, s domain.StateStore) {
	ctx := context.Background()
	const attempts = 20

	var (
		mu      sync.Mutex
		created int
		wg      sync.WaitGroup
	)
	for range attempts {
		wg.Go(func() {
			_, c, err := s.RegisterUser(ctx, "alice")
			assert.NoError(t, err)
			if c {
				mu.Lock()
				created++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func testConcurrentLikesAreNotLost(t *testing.T, s domain.StateStore) {
	ctx := context.Background()
	const likers = 25

	var wg sync.WaitGroup
	for i := range likers {
		wg.Go(func() {
			_, err := s.ToggleLike(ctx, fmt.Sprintf("viewer-%d", i), domain.DefaultStreamID)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	likes, err := s.ListLikes(ctx, domain.DefaultStreamID)
	require.NoError(t, err)
	assert.Len(t, likes, likers)
}

func testPing(t *testing.T, s domain.StateStore) {
	assert.NoError(t, s.Ping(context.Background()))
}
