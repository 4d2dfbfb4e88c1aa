// Package storetest holds the behavioral suite every store adapter must pass.
// Adapter tests call [RunUserStore] and [RunRefreshTokenStore] with a factory
// that returns a fresh, empty backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/fastauth/store"
)

// NewUser returns a user with unique identifiers derived from name.
func NewUser(name string) *store.User {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &store.User{
		ID:                 uuid.NewString(),
		Email:              name + "@Example.com",
		NormalizedEmail:    upper(name) + "@EXAMPLE.COM",
		Username:           name,
		NormalizedUsername: upper(name),
		PasswordHash:       "$2a$04$placeholder",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}

// RunUserStore exercises the [store.UserStore] contract.
func RunUserStore(t *testing.T, newStore func(t *testing.T) store.UserStore) {
	t.Helper()

	t.Run("CreateAndLookup", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := NewUser("alice")
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}

		byID, err := s.UserByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("UserByID: %v", err)
		}
		if byID.Email != u.Email || byID.Username != u.Username || byID.PasswordHash != u.PasswordHash {
			t.Fatalf("UserByID mismatch: got %+v want %+v", byID, u)
		}
		if !byID.CreatedAt.Equal(u.CreatedAt) {
			t.Fatalf("CreatedAt = %v, want %v", byID.CreatedAt, u.CreatedAt)
		}

		byEmail, err := s.UserByNormalizedEmail(ctx, u.NormalizedEmail)
		if err != nil {
			t.Fatalf("UserByNormalizedEmail: %v", err)
		}
		if byEmail.ID != u.ID {
			t.Fatalf("UserByNormalizedEmail id = %s, want %s", byEmail.ID, u.ID)
		}

		byName, err := s.UserByNormalizedUsername(ctx, u.NormalizedUsername)
		if err != nil {
			t.Fatalf("UserByNormalizedUsername: %v", err)
		}
		if byName.ID != u.ID {
			t.Fatalf("UserByNormalizedUsername id = %s, want %s", byName.ID, u.ID)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if _, err := s.UserByID(ctx, uuid.NewString()); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("UserByID err = %v, want ErrNotFound", err)
		}
		if _, err := s.UserByNormalizedEmail(ctx, "NOBODY@EXAMPLE.COM"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("UserByNormalizedEmail err = %v, want ErrNotFound", err)
		}
		if _, err := s.UserByNormalizedUsername(ctx, "NOBODY"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("UserByNormalizedUsername err = %v, want ErrNotFound", err)
		}
		if _, err := s.UserByNormalizedUsername(ctx, ""); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("UserByNormalizedUsername(empty) err = %v, want ErrNotFound", err)
		}
		if err := s.UpdatePasswordHash(ctx, uuid.NewString(), "x"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("UpdatePasswordHash err = %v, want ErrNotFound", err)
		}
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.CreateUser(ctx, NewUser("bob")); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		dup := NewUser("bob")
		dup.Username = "bobby"
		dup.NormalizedUsername = "BOBBY"
		if err := s.CreateUser(ctx, dup); !errors.Is(err, store.ErrDuplicateEmail) {
			t.Fatalf("CreateUser err = %v, want ErrDuplicateEmail", err)
		}
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.CreateUser(ctx, NewUser("carol")); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		dup := NewUser("carol")
		dup.Email = "other@example.com"
		dup.NormalizedEmail = "OTHER@EXAMPLE.COM"
		if err := s.CreateUser(ctx, dup); !errors.Is(err, store.ErrDuplicateUsername) {
			t.Fatalf("CreateUser err = %v, want ErrDuplicateUsername", err)
		}
	})

	t.Run("EmptyUsernamesDoNotCollide", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, name := range []string{"dave", "erin"} {
			u := NewUser(name)
			u.Username = ""
			u.NormalizedUsername = ""
			if err := s.CreateUser(ctx, u); err != nil {
				t.Fatalf("CreateUser(%s): %v", name, err)
			}
		}
	})

	t.Run("UpdatePasswordHash", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		u := NewUser("frank")
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		if err := s.UpdatePasswordHash(ctx, u.ID, "$2a$04$rotated"); err != nil {
			t.Fatalf("UpdatePasswordHash: %v", err)
		}
		got, err := s.UserByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("UserByID: %v", err)
		}
		if got.PasswordHash != "$2a$04$rotated" {
			t.Fatalf("PasswordHash = %q, want rotated", got.PasswordHash)
		}
	})
}

func newToken(userID string, ttl time.Duration) *store.RefreshToken {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &store.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// RunRefreshTokenStore exercises the [store.RefreshTokenStore] contract.
func RunRefreshTokenStore(t *testing.T, newStore func(t *testing.T) store.RefreshTokenStore) {
	t.Helper()

	t.Run("ConsumeIsSingleUse", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		tok := newToken("u-1", time.Hour)
		if err := s.SaveRefreshToken(ctx, tok); err != nil {
			t.Fatalf("SaveRefreshToken: %v", err)
		}

		got, err := s.ConsumeRefreshToken(ctx, tok.ID)
		if err != nil {
			t.Fatalf("ConsumeRefreshToken: %v", err)
		}
		if got.UserID != tok.UserID || !got.ExpiresAt.Equal(tok.ExpiresAt) {
			t.Fatalf("consumed row mismatch: got %+v want %+v", got, tok)
		}

		if _, err := s.ConsumeRefreshToken(ctx, tok.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("second consume err = %v, want ErrNotFound", err)
		}
	})

	t.Run("ConsumeUnknown", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.ConsumeRefreshToken(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("ConsumeReturnsExpiredRow", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		tok := newToken("u-1", time.Hour)
		tok.CreatedAt = tok.CreatedAt.Add(-2 * time.Hour)
		tok.ExpiresAt = time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
		if err := s.SaveRefreshToken(ctx, tok); err != nil {
			t.Fatalf("SaveRefreshToken: %v", err)
		}
		got, err := s.ConsumeRefreshToken(ctx, tok.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("ConsumeRefreshToken: %v", err)
		}
		if err == nil && !got.Expired(time.Now()) {
			t.Fatal("expected consumed row to be expired")
		}
	})

	t.Run("ConcurrentConsumeOneWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		tok := newToken("u-1", time.Hour)
		if err := s.SaveRefreshToken(ctx, tok); err != nil {
			t.Fatalf("SaveRefreshToken: %v", err)
		}

		const workers = 16
		var (
			wg      sync.WaitGroup
			winners atomic.Int32
			start   = make(chan struct{})
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if _, err := s.ConsumeRefreshToken(ctx, tok.ID); err == nil {
					winners.Add(1)
				} else if !errors.Is(err, store.ErrNotFound) {
					t.Errorf("unexpected consume error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		if got := winners.Load(); got != 1 {
			t.Fatalf("winners = %d, want 1", got)
		}
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		tok := newToken("u-1", time.Hour)
		if err := s.SaveRefreshToken(ctx, tok); err != nil {
			t.Fatalf("SaveRefreshToken: %v", err)
		}
		if err := s.DeleteRefreshToken(ctx, tok.ID); err != nil {
			t.Fatalf("first delete: %v", err)
		}
		if err := s.DeleteRefreshToken(ctx, tok.ID); err != nil {
			t.Fatalf("second delete: %v", err)
		}
		if _, err := s.ConsumeRefreshToken(ctx, tok.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("consume after delete err = %v, want ErrNotFound", err)
		}
	})

	t.Run("DeleteUserRefreshTokens", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		var mine []*store.RefreshToken
		for i := 0; i < 3; i++ {
			tok := newToken("u-owner", time.Hour)
			mine = append(mine, tok)
			if err := s.SaveRefreshToken(ctx, tok); err != nil {
				t.Fatalf("SaveRefreshToken: %v", err)
			}
		}
		other := newToken("u-other", time.Hour)
		if err := s.SaveRefreshToken(ctx, other); err != nil {
			t.Fatalf("SaveRefreshToken: %v", err)
		}

		n, err := s.DeleteUserRefreshTokens(ctx, "u-owner")
		if err != nil {
			t.Fatalf("DeleteUserRefreshTokens: %v", err)
		}
		if n != 3 {
			t.Fatalf("removed = %d, want 3", n)
		}
		for _, tok := range mine {
			if _, err := s.ConsumeRefreshToken(ctx, tok.ID); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("token %s survived logout-all: %v", tok.ID, err)
			}
		}
		if _, err := s.ConsumeRefreshToken(ctx, other.ID); err != nil {
			t.Fatalf("other user's token removed: %v", err)
		}

		n, err = s.DeleteUserRefreshTokens(ctx, "u-owner")
		if err != nil {
			t.Fatalf("second DeleteUserRefreshTokens: %v", err)
		}
		if n != 0 {
			t.Fatalf("second removal = %d, want 0", n)
		}
	})
}
