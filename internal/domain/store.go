package domain

import "context"

// StateStore is the single source of truth for users, poll tallies and likes.
// Every method is atomic with respect to every other method. Backend failures
// are reported wrapped in ErrStoreUnavailable and leave state unchanged.
type StateStore interface {
	// Initialize replaces all state: one zero-vote option per seed and the host user.
	Initialize(ctx context.Context, seedOptions []string, hostUsername string) error

	GetUser(ctx context.Context, username string) (User, bool, error)
	// RegisterUser returns the existing user (created=false) or creates one.
	RegisterUser(ctx context.Context, username string) (user User, created bool, err error)
	ListUsers(ctx context.Context) ([]User, error)

	ListPollOptions(ctx context.Context) ([]PollOption, error)
	// IncrementVote adds one vote and returns the tally as of that vote, read in
	// the same atomic step. An unknown option reports found=false, changes
	// nothing and still returns the current tally.
	IncrementVote(ctx context.Context, option string) (tally []PollOption, found bool, err error)

	// ToggleLike records that username likes the stream. Repeated calls are no-ops.
	ToggleLike(ctx context.Context, username string, streamID int) ([]string, error)
	ListLikes(ctx context.Context, streamID int) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}
