package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/fastauth/store"
)

// ErrRedisUnavailable wraps transport and server failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// DefaultPrefix is the key namespace used when Options.Prefix is empty.
const DefaultPrefix = "fa"

// DefaultExpiredGrace is how long a token key outlives its expiry so that a
// late refresh is reported as expired rather than unknown.
const DefaultExpiredGrace = time.Minute

const saveScript = `
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], ARGV[3])
local ttl = redis.call("PTTL", KEYS[2])
if ttl < tonumber(ARGV[2]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[2])
end
return 1
`

var saveLua = redis.NewScript(saveScript)

const consumeScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return false
end
redis.call("DEL", KEYS[1])
return data
`

var consumeLua = redis.NewScript(consumeScript)

const deleteUserScript = `
local ids = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, id in ipairs(ids) do
  removed = removed + redis.call("DEL", ARGV[1] .. id)
end
redis.call("DEL", KEYS[1])
return removed
`

var deleteUserLua = redis.NewScript(deleteUserScript)

// Options configures a Store.
type Options struct {
	Prefix       string
	ExpiredGrace time.Duration
}

// Store is a Redis-backed refresh token store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	grace  time.Duration
}

var _ store.RefreshTokenStore = (*Store)(nil)

// New creates a Store on rdb. A negative ExpiredGrace is treated as zero.
func New(rdb redis.UniversalClient, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.ExpiredGrace < 0 {
		opts.ExpiredGrace = 0
	}
	return &Store{
		redis:  rdb,
		prefix: opts.Prefix,
		grace:  opts.ExpiredGrace,
	}
}

func (s *Store) tokenKeyPrefix() string {
	return s.prefix + ":rt:"
}

func (s *Store) tokenKey(id string) string {
	return s.tokenKeyPrefix() + id
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":ru:" + userID
}

// SaveRefreshToken stores the row with a key TTL of the remaining lifetime
// plus the expired grace. Rows that would already be gone are not written.
func (s *Store) SaveRefreshToken(ctx context.Context, t *store.RefreshToken) error {
	ttl := time.Until(t.ExpiresAt) + s.grace
	if ttl <= 0 {
		return nil
	}
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	data, err := encodeToken(t)
	if err != nil {
		return err
	}

	err = saveLua.Run(ctx, s.redis,
		[]string{s.tokenKey(t.ID), s.userKey(t.UserID)},
		data, ttl.Milliseconds(), t.ID,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ConsumeRefreshToken reads and deletes the key in one script call. The user
// index entry is removed afterwards on a best-effort basis; stale members are
// harmless because logout-all counts only keys that still exist.
//
// Expired tokens are returned only while their key lives, that is until
// ExpiredGrace after ExpiresAt. Past that Redis has evicted the key and the
// token reports store.ErrNotFound like one that never existed, so the engine
// answers ErrRefreshTokenInvalid instead of ErrRefreshTokenExpired.
func (s *Store) ConsumeRefreshToken(ctx context.Context, id string) (*store.RefreshToken, error) {
	data, err := consumeLua.Run(ctx, s.redis, []string{s.tokenKey(id)}).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	t, err := decodeToken(id, []byte(data))
	if err != nil {
		return nil, err
	}
	_ = s.redis.SRem(ctx, s.userKey(t.UserID), id).Err()
	return t, nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, id string) error {
	_, err := s.ConsumeRefreshToken(ctx, id)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if errors.Is(err, errCorruptRecord) {
		// the key is already gone; nothing left to index
		return nil
	}
	return err
}

func (s *Store) DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	n, err := deleteUserLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		s.tokenKeyPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// ActiveTokenCount returns the number of indexed token ids for a user. The
// count may include ids whose keys already expired.
func (s *Store) ActiveTokenCount(ctx context.Context, userID string) (int, error) {
	n, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}
