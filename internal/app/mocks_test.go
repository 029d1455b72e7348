package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/pscheid92/streamroom/internal/domain"
)

// --- Mock implementations ---

type mockStore struct {
	initializeFn      func(ctx context.Context, seedOptions []string, hostUsername string) error
	getUserFn         func(ctx context.Context, username string) (domain.User, bool, error)
	registerUserFn    func(ctx context.Context, username string) (domain.User, bool, error)
	listUsersFn       func(ctx context.Context) ([]domain.User, error)
	listPollOptionsFn func(ctx context.Context) ([]domain.PollOption, error)
	incrementVoteFn   func(ctx context.Context, option string) ([]domain.PollOption, bool, error)
	toggleLikeFn      func(ctx context.Context, username string, streamID int) ([]string, error)
	listLikesFn       func(ctx context.Context, streamID int) ([]string, error)
}

var _ domain.StateStore = (*mockStore)(nil)

func (m *mockStore) Initialize(ctx context.Context, seedOptions []string, hostUsername string) error {
	if m.initializeFn != nil {
		return m.initializeFn(ctx, seedOptions, hostUsername)
	}
	return nil
}

func (m *mockStore) GetUser(ctx context.Context, username string) (domain.User, bool, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, username)
	}
	return domain.User{}, false, nil
}

func (m *mockStore) RegisterUser(ctx context.Context, username string) (domain.User, bool, error) {
	if m.registerUserFn != nil {
		return m.registerUserFn(ctx, username)
	}
	return domain.User{}, false, fmt.Errorf("not implemented")
}

func (m *mockStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockStore) ListPollOptions(ctx context.Context) ([]domain.PollOption, error) {
	if m.listPollOptionsFn != nil {
		return m.listPollOptionsFn(ctx)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockStore) IncrementVote(ctx context.Context, option string) ([]domain.PollOption, bool, error) {
	if m.incrementVoteFn != nil {
		return m.incrementVoteFn(ctx, option)
	}
	return nil, false, fmt.Errorf("not implemented")
}

func (m *mockStore) ToggleLike(ctx context.Context, username string, streamID int) ([]string, error) {
	if m.toggleLikeFn != nil {
		return m.toggleLikeFn(ctx, username, streamID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockStore) ListLikes(ctx context.Context, streamID int) ([]string, error) {
	if m.listLikesFn != nil {
		return m.listLikesFn(ctx, streamID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockStore) Ping(context.Context) error { return nil }

func (m *mockStore) Close() error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Event(nil), p.events...)
}

func (p *recordingPublisher) count(kind domain.EventKind) int {
	n := 0
	for _, ev := range p.published() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
