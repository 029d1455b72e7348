// Package memory implements domain.StateStore in process memory.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/pscheid92/streamroom/internal/domain"
)

type likeKey struct {
	username string
	streamID int
}

// Store keeps all state behind one RWMutex: writers are exclusive, readers shared.
type Store struct {
	mu sync.RWMutex

	users     map[string]domain.User
	userOrder []string

	votes       map[string]int
	optionOrder []string

	liked     map[likeKey]struct{}
	likeOrder map[int][]string
}

var _ domain.StateStore = (*Store)(nil)

func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.users = make(map[string]domain.User)
	s.userOrder = nil
	s.votes = make(map[string]int)
	s.optionOrder = nil
	s.liked = make(map[likeKey]struct{})
	s.likeOrder = make(map[int][]string)
}

func (s *Store) Initialize(_ context.Context, seedOptions []string, hostUsername string) error {
	if err := domain.ValidateSeed(seedOptions, hostUsername); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	for _, option := range seedOptions {
		s.votes[option] = 0
		s.optionOrder = append(s.optionOrder, option)
	}
	s.users[hostUsername] = domain.User{Username: hostUsername, IsHost: true}
	s.userOrder = append(s.userOrder, hostUsername)
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	return user, ok, nil
}

func (s *Store) RegisterUser(_ context.Context, username string) (domain.User, bool, error) {
	if domain.IsBlank(username) {
		return domain.User{}, false, fmt.Errorf("register user: %w: blank username", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[username]; ok {
		return user, false, nil
	}
	user := domain.User{Username: username}
	s.users[username] = user
	s.userOrder = append(s.userOrder, username)
	return user, true, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.userOrder))
	for _, name := range s.userOrder {
		users = append(users, s.users[name])
	}
	return users, nil
}

func (s *Store) ListPollOptions(_ context.Context) ([]domain.PollOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pollLocked(), nil
}

func (s *Store) pollLocked() []domain.PollOption {
	options := make([]domain.PollOption, 0, len(s.optionOrder))
	for _, option := range s.optionOrder {
		options = append(options, domain.PollOption{Option: option, Votes: s.votes[option]})
	}
	return options
}

func (s *Store) IncrementVote(_ context.Context, option string) ([]domain.PollOption, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.votes[option]; !ok {
		return s.pollLocked(), false, nil
	}
	s.votes[option]++
	return s.pollLocked(), true, nil
}

func (s *Store) ToggleLike(_ context.Context, username string, streamID int) ([]string, error) {
	if domain.IsBlank(username) {
		return nil, fmt.Errorf("toggle like: %w: blank username", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := likeKey{username: username, streamID: streamID}
	if _, ok := s.liked[key]; !ok {
		s.liked[key] = struct{}{}
		s.likeOrder[streamID] = append(s.likeOrder[streamID], username)
	}
	return s.likesLocked(streamID), nil
}

func (s *Store) ListLikes(_ context.Context, streamID int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.likesLocked(streamID), nil
}

func (s *Store) likesLocked(streamID int) []string {
	likes := slices.Clone(s.likeOrder[streamID])
	if likes == nil {
		likes = []string{}
	}
	return likes
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
