// Package pgstore implements [store.Store] on PostgreSQL through a pgx pool.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/fastauth/store"
)

const uniqueViolation = "23505"

const (
	emailConstraint    = "fastauth_users_normalized_email_key"
	usernameConstraint = "fastauth_users_normalized_username_key"
)

// Store persists users and refresh tokens in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Connect opens a pgx pool and pings the server.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	return pool, nil
}

// New wraps pool. Call [Store.EnsureSchema] before first use.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables and indexes the store relies on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS fastauth_users (
			id                  UUID PRIMARY KEY,
			email               TEXT NOT NULL,
			normalized_email    TEXT NOT NULL,
			username            TEXT,
			normalized_username TEXT,
			password_hash       TEXT NOT NULL,
			created_at          TIMESTAMPTZ NOT NULL,
			updated_at          TIMESTAMPTZ NOT NULL,
			CONSTRAINT fastauth_users_normalized_email_key UNIQUE (normalized_email),
			CONSTRAINT fastauth_users_normalized_username_key UNIQUE (normalized_username)
		);
		CREATE TABLE IF NOT EXISTS fastauth_refresh_tokens (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS fastauth_refresh_tokens_user_id_idx ON fastauth_refresh_tokens (user_id);
		CREATE INDEX IF NOT EXISTS fastauth_refresh_tokens_expires_at_idx ON fastauth_refresh_tokens (expires_at);
	`)
	if err != nil {
		return fmt.Errorf("pgstore: ensure schema: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fastauth_users
			(id, email, normalized_email, username, normalized_username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Email, u.NormalizedEmail, nullable(u.Username, u.NormalizedUsername), nullable(u.NormalizedUsername, u.NormalizedUsername),
		u.PasswordHash, u.CreatedAt.UTC(), u.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case usernameConstraint:
				return store.ErrDuplicateUsername
			case emailConstraint:
				return store.ErrDuplicateEmail
			}
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("pgstore: create user: %w", err)
	}
	return nil
}

const userColumns = `id::text, email, normalized_email, COALESCE(username, ''), COALESCE(normalized_username, ''), password_hash, created_at, updated_at`

func (s *Store) UserByID(ctx context.Context, id string) (*store.User, error) {
	if !validUUID(id) {
		return nil, store.ErrNotFound
	}
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM fastauth_users WHERE id = $1`, id)
}

func (s *Store) UserByNormalizedEmail(ctx context.Context, normalizedEmail string) (*store.User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM fastauth_users WHERE normalized_email = $1`, normalizedEmail)
}

func (s *Store) UserByNormalizedUsername(ctx context.Context, normalizedUsername string) (*store.User, error) {
	if normalizedUsername == "" {
		return nil, store.ErrNotFound
	}
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM fastauth_users WHERE normalized_username = $1`, normalizedUsername)
}

func (s *Store) queryUser(ctx context.Context, sql string, arg string) (*store.User, error) {
	var u store.User
	err := s.pool.QueryRow(ctx, sql, arg).Scan(
		&u.ID, &u.Email, &u.NormalizedEmail, &u.Username, &u.NormalizedUsername,
		&u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("pgstore: query user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	if !validUUID(userID) {
		return store.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE fastauth_users SET password_hash = $2, updated_at = $3 WHERE id = $1
	`, userID, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("pgstore: update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveRefreshToken(ctx context.Context, t *store.RefreshToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fastauth_refresh_tokens (id, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, t.ID, t.UserID, t.CreatedAt.UTC(), t.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("pgstore: save refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken deletes the row and returns it in one statement.
func (s *Store) ConsumeRefreshToken(ctx context.Context, id string) (*store.RefreshToken, error) {
	var t store.RefreshToken
	err := s.pool.QueryRow(ctx, `
		DELETE FROM fastauth_refresh_tokens WHERE id = $1
		RETURNING id, user_id, created_at, expires_at
	`, id).Scan(&t.ID, &t.UserID, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("pgstore: consume refresh token: %w", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.ExpiresAt = t.ExpiresAt.UTC()
	return &t, nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM fastauth_refresh_tokens WHERE id = $1`, id); err != nil {
		return fmt.Errorf("pgstore: delete refresh token: %w", err)
	}
	return nil
}

func (s *Store) DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fastauth_refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("pgstore: delete user refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeExpired deletes refresh tokens that expired before now.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fastauth_refresh_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("pgstore: purge expired: %w", err)
	}
	return tag.RowsAffected(), nil
}

// nullable maps an absent username to SQL NULL so the unique constraint
// ignores it.
func nullable(v, normalized string) *string {
	if normalized == "" {
		return nil
	}
	return &v
}
