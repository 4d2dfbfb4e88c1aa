package fastauth

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/fastauth/refresh"
	"github.com/MrEthical07/fastauth/store"
	"github.com/MrEthical07/fastauth/store/memstore"
	"github.com/MrEthical07/fastauth/store/redisstore"
)

const testPassword = "Correct-Horse-9"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("k", 32))
	cfg.JWT.Issuer = "fastauth-test"
	cfg.JWT.Audience = "fastauth-clients"
	cfg.Password.BcryptCost = 4
	return cfg
}

func newTestEngine(t testing.TB, cfg Config) (*Engine, *memstore.Store) {
	t.Helper()
	ms := memstore.New()
	engine, err := New().WithConfig(cfg).WithStore(ms).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, ms
}

// newRedisBackedEngine keeps users in memory and refresh tokens in miniredis.
func newRedisBackedEngine(t testing.TB, cfg Config) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := store.Combine(memstore.New(), redisstore.New(rdb, redisstore.Options{Prefix: "fa-test"}))
	engine, err := New().WithConfig(cfg).WithStore(s).Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mr
}

func registerAlice(t testing.TB, engine *Engine) *AuthResult {
	t.Helper()
	res, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "Alice@Example.com",
		Username: "alice",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return res
}

func drainAudit(sink *ChannelSink, wait time.Duration) []AuditEvent {
	var out []AuditEvent
	deadline := time.After(wait)
	for {
		select {
		case ev := <-sink.Events():
			out = append(out, ev)
		case <-deadline:
			return out
		}
	}
}

// saveTokenFor stores a valid refresh token row for userID and returns the
// plaintext token.
func saveTokenFor(t testing.TB, s store.RefreshTokenStore, userID string) string {
	t.Helper()
	token, id, err := refresh.New()
	if err != nil {
		t.Fatalf("refresh.New: %v", err)
	}
	now := time.Now().UTC()
	if err := s.SaveRefreshToken(context.Background(), &store.RefreshToken{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("save token: %v", err)
	}
	return token
}

// countingUserStore counts lookups made through it.
type countingUserStore struct {
	store.UserStore
	calls atomic.Int64
}

func (s *countingUserStore) UserByID(ctx context.Context, id string) (*store.User, error) {
	s.calls.Add(1)
	return s.UserStore.UserByID(ctx, id)
}

func (s *countingUserStore) UserByNormalizedEmail(ctx context.Context, email string) (*store.User, error) {
	s.calls.Add(1)
	return s.UserStore.UserByNormalizedEmail(ctx, email)
}

func (s *countingUserStore) UserByNormalizedUsername(ctx context.Context, username string) (*store.User, error) {
	s.calls.Add(1)
	return s.UserStore.UserByNormalizedUsername(ctx, username)
}
