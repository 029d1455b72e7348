package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streamroom/internal/adapter/memory"
	"github.com/pscheid92/streamroom/internal/broadcast"
	"github.com/pscheid92/streamroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlowService(t *testing.T) (*Service, *broadcast.Hub) {
	t.Helper()

	store := memory.NewStore()
	require.NoError(t, store.Initialize(context.Background(), domain.DefaultPollOptions, domain.DefaultHostUsername))

	hub := broadcast.NewHub(256, clockwork.NewRealClock(), nil)
	t.Cleanup(hub.Stop)

	return NewService(store, hub, clockwork.NewRealClock(), nil), hub
}

func drain(t *testing.T, sub *broadcast.Subscription, n int) []domain.Event {
	t.Helper()
	events := make([]domain.Event, 0, n)
	for len(events) < n {
		select {
		case ev, ok := <-sub.Events():
			require.True(t, ok)
			events = append(events, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d events, want %d", len(events), n)
		}
	}
	return events
}

func totalVotes(ev domain.Event) int {
	total := 0
	for _, o := range ev.Data.([]domain.PollOption) {
		total += o.Votes
	}
	return total
}

func TestFlow_VotingSession(t *testing.T) {
	svc, hub := newFlowService(t)
	ctx := context.Background()

	observer, err := hub.Subscribe()
	require.NoError(t, err)

	host, err := svc.Register(ctx, "HostUser")
	require.NoError(t, err)
	assert.True(t, host.IsHost)
	_, err = svc.Register(ctx, "v1")
	require.NoError(t, err)

	_, err = svc.CastVote(ctx, "Song A")
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, "Song A")
	require.NoError(t, err)
	final, err := svc.CastVote(ctx, "Song B")
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, "Song Z")
	require.NoError(t, err)

	assert.Equal(t, []domain.PollOption{{Option: "Song A", Votes: 2}, {Option: "Song B", Votes: 1}}, final)

	events := drain(t, observer, 5)
	assert.Equal(t, domain.EventUserUpdate, events[0].Kind)
	assert.Equal(t, domain.EventUserUpdate, events[1].Kind)
	for _, ev := range events[2:] {
		assert.Equal(t, domain.EventPollUpdate, ev.Kind)
	}
	assert.Equal(t, domain.PollUpdated(final), events[4])

	// the unknown vote produced nothing further
	select {
	case ev := <-observer.Events():
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	users, err := svc.ListPrivilegedUsers(ctx, "HostUser")
	require.NoError(t, err)
	assert.Equal(t, []domain.User{{Username: "HostUser", IsHost: true}, {Username: "v1"}}, users)

	users, err = svc.ListPrivilegedUsers(ctx, "v1")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestFlow_LateJoinerConverges(t *testing.T) {
	svc, hub := newFlowService(t)
	ctx := context.Background()

	_, err := svc.CastVote(ctx, "Song A")
	require.NoError(t, err)
	_, err = svc.AddLike(ctx, "alice")
	require.NoError(t, err)

	late, err := hub.Subscribe()
	require.NoError(t, err)
	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, []domain.PollOption{{Option: "Song A", Votes: 1}, {Option: "Song B", Votes: 0}}, snap.Poll)
	assert.Equal(t, domain.Likes{StreamID: 1, Likes: []string{"alice"}}, snap.Likes)

	_, err = svc.AddLike(ctx, "bob")
	require.NoError(t, err)

	events := drain(t, late, 1)
	assert.Equal(t, domain.LikesUpdated(domain.Likes{StreamID: 1, Likes: []string{"alice", "bob"}}), events[0])
}

func TestFlow_ConcurrentVotesArriveInCommitOrder(t *testing.T) {
	svc, hub := newFlowService(t)
	ctx := context.Background()
	const voters = 40

	observer, err := hub.Subscribe()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range voters {
		wg.Go(func() {
			option := "Song A"
			if i%2 == 1 {
				option = "Song B"
			}
			_, err := svc.CastVote(ctx, option)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	events := drain(t, observer, voters)
	for i, ev := range events {
		assert.Equal(t, i+1, totalVotes(ev), "event %d out of order", i)
	}

	poll, err := svc.GetPoll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.PollOption{{Option: "Song A", Votes: voters / 2}, {Option: "Song B", Votes: voters / 2}}, poll)
}
