package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/streamroom/internal/domain"
)

// Store implements domain.StateStore. Single-row mutations are one statement;
// read-after-write operations run inside a transaction.
type Store struct {
	pool *pgxpool.Pool
}

var _ domain.StateStore = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func (s *Store) Initialize(ctx context.Context, seedOptions []string, hostUsername string) error {
	if err := domain.ValidateSeed(seedOptions, hostUsername); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE users, poll_options, likes RESTART IDENTITY`); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, option := range seedOptions {
			batch.Queue(`INSERT INTO poll_options (name, votes) VALUES ($1, 0)`, option)
		}
		batch.Queue(`INSERT INTO users (username, is_host) VALUES ($1, TRUE)`, hostUsername)
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return unavailable("initialize", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (domain.User, bool, error) {
	user := domain.User{Username: username}
	err := s.pool.QueryRow(ctx, `SELECT is_host FROM users WHERE username = $1`, username).Scan(&user.IsHost)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, unavailable("get user", err)
	}
	return user, true, nil
}

func (s *Store) RegisterUser(ctx context.Context, username string) (domain.User, bool, error) {
	if domain.IsBlank(username) {
		return domain.User{}, false, fmt.Errorf("register user: %w: blank username", domain.ErrInvalidInput)
	}

	user := domain.User{Username: username}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username) VALUES ($1) ON CONFLICT (username) DO NOTHING RETURNING is_host`,
		username,
	).Scan(&user.IsHost)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, false, unavailable("register user", err)
	}

	// conflict: the user already exists
	existing, ok, err := s.GetUser(ctx, username)
	if err != nil {
		return domain.User{}, false, err
	}
	if !ok {
		return domain.User{}, false, unavailable("register user", fmt.Errorf("user %q vanished after conflict", username))
	}
	return existing, false, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT username, is_host FROM users ORDER BY id`)
	if err != nil {
		return nil, unavailable("list users", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.User])
	if err != nil {
		return nil, unavailable("list users", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

func (s *Store) ListPollOptions(ctx context.Context) ([]domain.PollOption, error) {
	options, err := queryPoll(ctx, s.pool)
	if err != nil {
		return nil, unavailable("list poll options", err)
	}
	return options, nil
}

func (s *Store) IncrementVote(ctx context.Context, option string) ([]domain.PollOption, bool, error) {
	var (
		tally []domain.PollOption
		found bool
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE poll_options SET votes = votes + 1 WHERE name = $1`, option)
		if err != nil {
			return err
		}
		found = tag.RowsAffected() > 0
		tally, err = queryPoll(ctx, tx)
		return err
	})
	if err != nil {
		return nil, false, unavailable("increment vote", err)
	}
	return tally, found, nil
}

func (s *Store) ToggleLike(ctx context.Context, username string, streamID int) ([]string, error) {
	if domain.IsBlank(username) {
		return nil, fmt.Errorf("toggle like: %w: blank username", domain.ErrInvalidInput)
	}

	var likes []string
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO likes (username, stream_id) VALUES ($1, $2) ON CONFLICT (username, stream_id) DO NOTHING`,
			username, streamID,
		); err != nil {
			return err
		}
		var err error
		likes, err = queryLikes(ctx, tx, streamID)
		return err
	})
	if err != nil {
		return nil, unavailable("toggle like", err)
	}
	return likes, nil
}

func (s *Store) ListLikes(ctx context.Context, streamID int) ([]string, error) {
	likes, err := queryLikes(ctx, s.pool, streamID)
	if err != nil {
		return nil, unavailable("list likes", err)
	}
	return likes, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryPoll(ctx context.Context, q querier) ([]domain.PollOption, error) {
	rows, err := q.Query(ctx, `SELECT name, votes FROM poll_options ORDER BY id`)
	if err != nil {
		return nil, err
	}
	options, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.PollOption])
	if err != nil {
		return nil, err
	}
	if options == nil {
		options = []domain.PollOption{}
	}
	return options, nil
}

func queryLikes(ctx context.Context, q querier, streamID int) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT username FROM likes WHERE stream_id = $1 ORDER BY id`, streamID)
	if err != nil {
		return nil, err
	}
	likes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if likes == nil {
		likes = []string{}
	}
	return likes, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
