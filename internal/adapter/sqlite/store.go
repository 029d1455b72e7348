// Package sqlite implements domain.StateStore on a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pscheid92/streamroom/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT    NOT NULL UNIQUE,
	is_host  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS polls (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	option TEXT    NOT NULL UNIQUE,
	votes  INTEGER NOT NULL DEFAULT 0 CHECK (votes >= 0)
);

CREATE TABLE IF NOT EXISTS likes (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	username  TEXT    NOT NULL,
	stream_id INTEGER NOT NULL,
	UNIQUE (username, stream_id)
);
`

// Store serializes all access through a single connection, so every
// transaction below is atomic with respect to every other operation.
type Store struct {
	db *sql.DB
}

var _ domain.StateStore = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) Initialize(ctx context.Context, seedOptions []string, hostUsername string) error {
	if err := domain.ValidateSeed(seedOptions, hostUsername); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{`DELETE FROM users`, `DELETE FROM polls`, `DELETE FROM likes`} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		for _, option := range seedOptions {
			if _, err := tx.ExecContext(ctx, `INSERT INTO polls(option, votes) VALUES (?, 0)`, option); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO users(username, is_host) VALUES (?, 1)`, hostUsername)
		return err
	})
	if err != nil {
		return unavailable("initialize", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (domain.User, bool, error) {
	user := domain.User{Username: username}
	err := s.db.QueryRowContext(ctx, `SELECT is_host FROM users WHERE username = ?`, username).Scan(&user.IsHost)
	if errors.Is(err, sql.ErrNoRows) {
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
	var created bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO users(username, is_host) VALUES (?, 0)`, username)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = n == 1
		return tx.QueryRowContext(ctx, `SELECT is_host FROM users WHERE username = ?`, username).Scan(&user.IsHost)
	})
	if err != nil {
		return domain.User{}, false, unavailable("register user", err)
	}
	return user, created, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, is_host FROM users ORDER BY id`)
	if err != nil {
		return nil, unavailable("list users", err)
	}
	defer func() { _ = rows.Close() }()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Username, &u.IsHost); err != nil {
			return nil, unavailable("list users", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list users", err)
	}
	return users, nil
}

func (s *Store) ListPollOptions(ctx context.Context) ([]domain.PollOption, error) {
	options, err := queryPoll(ctx, s.db)
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
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE polls SET votes = votes + 1 WHERE option = ?`, option)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		found = affected > 0
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
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO likes(username, stream_id) VALUES (?, ?)`, username, streamID,
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
	likes, err := queryLikes(ctx, s.db, streamID)
	if err != nil {
		return nil, unavailable("list likes", err)
	}
	return likes, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryPoll(ctx context.Context, q querier) ([]domain.PollOption, error) {
	rows, err := q.QueryContext(ctx, `SELECT option, votes FROM polls ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	options := []domain.PollOption{}
	for rows.Next() {
		var o domain.PollOption
		if err := rows.Scan(&o.Option, &o.Votes); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}

func queryLikes(ctx context.Context, q querier, streamID int) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT username FROM likes WHERE stream_id = ? ORDER BY id`, streamID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	likes := []string{}
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, err
		}
		likes = append(likes, username)
	}
	return likes, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
