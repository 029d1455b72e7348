package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pscheid92/streamroom/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "streamroom:"

	maxInitializeRetries = 5
)

// Store implements domain.StateStore on Redis.
type Store struct {
	rdb    *goredis.Client
	prefix string
}

var _ domain.StateStore = (*Store)(nil)

// NewStore uses keys under prefix (DefaultKeyPrefix when empty).
func NewStore(rdb *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) usersKey() string       { return s.prefix + "users" }
func (s *Store) userOrderKey() string   { return s.prefix + "users:order" }
func (s *Store) pollKey() string        { return s.prefix + "poll" }
func (s *Store) pollOrderKey() string   { return s.prefix + "poll:order" }
func (s *Store) likeStreamsKey() string { return s.prefix + "likes:streams" }

func (s *Store) likeSetKey(streamID int) string {
	return s.prefix + "likes:" + strconv.Itoa(streamID) + ":set"
}

func (s *Store) likeListKey(streamID int) string {
	return s.prefix + "likes:" + strconv.Itoa(streamID)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// Initialize wipes every key this store owns and seeds the poll and host in
// one MULTI/EXEC. The liker index is WATCHed so a like on a new stream that
// lands in between forces a retry instead of surviving the reset.
func (s *Store) Initialize(ctx context.Context, seedOptions []string, hostUsername string) error {
	if err := domain.ValidateSeed(seedOptions, hostUsername); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	txf := func(tx *goredis.Tx) error {
		streams, err := tx.SMembers(ctx, s.likeStreamsKey()).Result()
		if err != nil {
			return err
		}

		keys := []string{s.usersKey(), s.userOrderKey(), s.pollKey(), s.pollOrderKey(), s.likeStreamsKey()}
		for _, raw := range streams {
			id, err := strconv.Atoi(raw)
			if err != nil {
				continue
			}
			keys = append(keys, s.likeSetKey(id), s.likeListKey(id))
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			for _, option := range seedOptions {
				pipe.HSet(ctx, s.pollKey(), option, 0)
				pipe.RPush(ctx, s.pollOrderKey(), option)
			}
			pipe.HSet(ctx, s.usersKey(), hostUsername, "1")
			pipe.RPush(ctx, s.userOrderKey(), hostUsername)
			return nil
		})
		return err
	}

	var err error
	for range maxInitializeRetries {
		err = s.rdb.Watch(ctx, txf, s.likeStreamsKey())
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return unavailable("initialize", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (domain.User, bool, error) {
	flag, err := s.rdb.HGet(ctx, s.usersKey(), username).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, unavailable("get user", err)
	}
	return domain.User{Username: username, IsHost: flag == "1"}, true, nil
}

func (s *Store) RegisterUser(ctx context.Context, username string) (domain.User, bool, error) {
	if domain.IsBlank(username) {
		return domain.User{}, false, fmt.Errorf("register user: %w: blank username", domain.ErrInvalidInput)
	}

	res, err := registerScript.Run(ctx, s.rdb, []string{s.usersKey(), s.userOrderKey()}, username).Slice()
	if err != nil {
		return domain.User{}, false, unavailable("register user", err)
	}
	if len(res) != 2 {
		return domain.User{}, false, unavailable("register user", fmt.Errorf("unexpected script reply %v", res))
	}

	flag, _ := res[0].(string)
	created, _ := res[1].(int64)
	return domain.User{Username: username, IsHost: flag == "1"}, created == 1, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	pairs, err := s.orderedHash(ctx, s.usersKey(), s.userOrderKey())
	if err != nil {
		return nil, unavailable("list users", err)
	}

	users := make([]domain.User, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		users = append(users, domain.User{Username: pairs[i], IsHost: pairs[i+1] == "1"})
	}
	return users, nil
}

func (s *Store) ListPollOptions(ctx context.Context) ([]domain.PollOption, error) {
	pairs, err := s.orderedHash(ctx, s.pollKey(), s.pollOrderKey())
	if err != nil {
		return nil, unavailable("list poll options", err)
	}
	options, err := parsePoll(pairs)
	if err != nil {
		return nil, unavailable("list poll options", err)
	}
	return options, nil
}

func parsePoll(pairs []string) ([]domain.PollOption, error) {
	options := make([]domain.PollOption, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		votes, err := strconv.Atoi(pairs[i+1])
		if err != nil {
			return nil, fmt.Errorf("corrupt vote count for %q: %w", pairs[i], err)
		}
		options = append(options, domain.PollOption{Option: pairs[i], Votes: votes})
	}
	return options, nil
}

func (s *Store) orderedHash(ctx context.Context, hashKey, orderKey string) ([]string, error) {
	return orderedHashScript.Run(ctx, s.rdb, []string{hashKey, orderKey}).StringSlice()
}

func (s *Store) IncrementVote(ctx context.Context, option string) ([]domain.PollOption, bool, error) {
	out, err := incrementVoteScript.Run(ctx, s.rdb, []string{s.pollKey(), s.pollOrderKey()}, option).StringSlice()
	if err != nil {
		return nil, false, unavailable("increment vote", err)
	}
	if len(out) == 0 {
		return nil, false, unavailable("increment vote", errors.New("empty script reply"))
	}
	tally, err := parsePoll(out[1:])
	if err != nil {
		return nil, false, unavailable("increment vote", err)
	}
	return tally, out[0] == "1", nil
}

func (s *Store) ToggleLike(ctx context.Context, username string, streamID int) ([]string, error) {
	if domain.IsBlank(username) {
		return nil, fmt.Errorf("toggle like: %w: blank username", domain.ErrInvalidInput)
	}

	keys := []string{s.likeSetKey(streamID), s.likeListKey(streamID), s.likeStreamsKey()}
	likes, err := likeScript.Run(ctx, s.rdb, keys, username, streamID).StringSlice()
	if err != nil {
		return nil, unavailable("toggle like", err)
	}
	return nonNil(likes), nil
}

func (s *Store) ListLikes(ctx context.Context, streamID int) ([]string, error) {
	likes, err := s.rdb.LRange(ctx, s.likeListKey(streamID), 0, -1).Result()
	if err != nil {
		return nil, unavailable("list likes", err)
	}
	return nonNil(likes), nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
