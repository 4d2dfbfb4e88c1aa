package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the requested user or refresh token does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicateEmail is returned by CreateUser when the normalized email is taken.
	ErrDuplicateEmail = errors.New("store: duplicate email")
	// ErrDuplicateUsername is returned by CreateUser when the normalized username is taken.
	ErrDuplicateUsername = errors.New("store: duplicate username")
)

// User is the persisted account record.
//
// NormalizedEmail and NormalizedUsername are the lookup keys; Email and
// Username keep the casing the user registered with. Username may be empty.
type User struct {
	ID                 string
	Email              string
	NormalizedEmail    string
	Username           string
	NormalizedUsername string
	PasswordHash       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Clone returns a copy of u. Adapters hand out clones so callers cannot
// mutate shared state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}

// RefreshToken is a persisted refresh-token row. ID is the hex SHA-256 of
// the opaque token handed to the client.
type RefreshToken struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is no longer usable at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// UserStore persists user accounts.
type UserStore interface {
	// CreateUser inserts u. It returns ErrDuplicateEmail or
	// ErrDuplicateUsername when a normalized value is already taken.
	CreateUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id string) (*User, error)
	UserByNormalizedEmail(ctx context.Context, normalizedEmail string) (*User, error)
	UserByNormalizedUsername(ctx context.Context, normalizedUsername string) (*User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// RefreshTokenStore persists refresh-token rows.
type RefreshTokenStore interface {
	SaveRefreshToken(ctx context.Context, t *RefreshToken) error
	// ConsumeRefreshToken atomically reads and deletes the row with the given
	// id. Of concurrent callers with the same id exactly one receives the row;
	// the rest get ErrNotFound. Expired rows are returned (and removed) so the
	// caller can tell expired tokens from unknown ones.
	ConsumeRefreshToken(ctx context.Context, id string) (*RefreshToken, error)
	// DeleteRefreshToken removes the row. Missing rows are not an error.
	DeleteRefreshToken(ctx context.Context, id string) error
	// DeleteUserRefreshTokens removes every row owned by userID and reports
	// how many were removed.
	DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error)
}

// Store is the full persistence contract used by the engine.
type Store interface {
	UserStore
	RefreshTokenStore
}

type combined struct {
	UserStore
	RefreshTokenStore
}

// Combine joins independent user and refresh-token backends into a [Store],
// e.g. relational users with Redis-held refresh tokens.
func Combine(users UserStore, tokens RefreshTokenStore) Store {
	return combined{UserStore: users, RefreshTokenStore: tokens}
}
