package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streamroom/internal/adapter/metrics"
	"github.com/pscheid92/streamroom/internal/domain"
)

const (
	voteApplied       = "applied"
	voteUnknownOption = "unknown_option"
	voteInvalid       = "invalid"
)

// Service is the application layer: the only component that touches both the
// state store and the event publisher.
//
// mu serializes every mutate-then-publish sequence, so events leave the service
// in commit order and no subscriber can see an older tally after a newer one.
type Service struct {
	store     domain.StateStore
	publisher domain.EventPublisher
	clock     clockwork.Clock
	metrics   *metrics.VoteMetrics

	mu sync.Mutex
}

// NewService creates the application service. m may be nil.
func NewService(store domain.StateStore, publisher domain.EventPublisher, clock clockwork.Clock, m *metrics.VoteMetrics) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		clock:     clock,
		metrics:   m,
	}
}

// Register creates the user or returns the existing record, then announces it.
func (s *Service) Register(ctx context.Context, username string) (domain.User, error) {
	if domain.IsBlank(username) {
		return domain.User{}, fmt.Errorf("register: %w: username is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.observe("register", s.clock.Now())

	user, created, err := s.store.RegisterUser(ctx, username)
	if err != nil {
		return domain.User{}, fmt.Errorf("register: %w", err)
	}

	if s.metrics != nil {
		result := "returning"
		if created {
			result = "created"
		}
		s.metrics.Registrations.WithLabelValues(result).Inc()
	}
	slog.DebugContext(ctx, "User registered", "username", user.Username, "is_host", user.IsHost, "created", created)

	s.publish(ctx, domain.UserUpdated(user))
	return user, nil
}

// ListPrivilegedUsers returns every registered user when requester is the host,
// and an empty list for anyone else, unknown requesters included.
func (s *Service) ListPrivilegedUsers(ctx context.Context, requester string) ([]domain.User, error) {
	if domain.IsBlank(requester) {
		return []domain.User{}, nil
	}

	user, ok, err := s.store.GetUser(ctx, requester)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if !ok || !user.IsHost {
		slog.DebugContext(ctx, "User list denied", "requester", requester, "known", ok)
		return []domain.User{}, nil
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CastVote adds one vote to option and returns the full tally. A vote for an
// option that does not exist changes nothing and broadcasts nothing.
func (s *Service) CastVote(ctx context.Context, option string) ([]domain.PollOption, error) {
	if domain.IsBlank(option) {
		s.countVote(voteInvalid)
		return nil, fmt.Errorf("cast vote: %w: option is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.observe("vote", s.clock.Now())

	tally, found, err := s.store.IncrementVote(ctx, option)
	if err != nil {
		return nil, fmt.Errorf("cast vote: %w", err)
	}

	if !found {
		s.countVote(voteUnknownOption)
		slog.WarnContext(ctx, "Vote for unknown poll option ignored", "option", option)
		return tally, nil
	}

	s.countVote(voteApplied)
	slog.DebugContext(ctx, "Vote applied", "option", option)

	s.publish(ctx, domain.PollUpdated(tally))
	return tally, nil
}

// AddLike records that username likes the current stream and announces the
// full liker list, also when the user had already liked it.
func (s *Service) AddLike(ctx context.Context, username string) ([]string, error) {
	if domain.IsBlank(username) {
		return nil, fmt.Errorf("add like: %w: username is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.observe("like", s.clock.Now())

	likes, err := s.store.ToggleLike(ctx, username, domain.DefaultStreamID)
	if err != nil {
		return nil, fmt.Errorf("add like: %w", err)
	}

	if s.metrics != nil {
		s.metrics.LikesRecorded.Inc()
	}
	slog.DebugContext(ctx, "Like recorded", "username", username, "total", len(likes))

	s.publish(ctx, domain.LikesUpdated(domain.Likes{StreamID: domain.DefaultStreamID, Likes: likes}))
	return likes, nil
}

func (s *Service) GetLikes(ctx context.Context) ([]string, error) {
	likes, err := s.store.ListLikes(ctx, domain.DefaultStreamID)
	if err != nil {
		return nil, fmt.Errorf("get likes: %w", err)
	}
	return likes, nil
}

func (s *Service) GetPoll(ctx context.Context) ([]domain.PollOption, error) {
	poll, err := s.store.ListPollOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("get poll: %w", err)
	}
	return poll, nil
}

// Snapshot reads poll and likes between mutations, so both halves reflect
// the same point in the commit sequence.
func (s *Service) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, err := s.store.ListPollOptions(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	likes, err := s.store.ListLikes(ctx, domain.DefaultStreamID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	return domain.Snapshot{
		Poll:  poll,
		Likes: domain.Likes{StreamID: domain.DefaultStreamID, Likes: likes},
	}, nil
}

// publish hands event to the publisher. The mutation is already committed, so
// a failure is logged and counted but not returned.
func (s *Service) publish(ctx context.Context, event domain.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event", "event", event.Kind, "error", err)
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues(string(event.Kind)).Inc()
		}
	}
}

func (s *Service) countVote(result string) {
	if s.metrics != nil {
		s.metrics.VotesCast.WithLabelValues(result).Inc()
	}
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.MutationDuration.WithLabelValues(operation).Observe(s.clock.Since(start).Seconds())
	}
}
