// Package gormstore implements [store.Store] on any relational database GORM
// supports. Callers open the *gorm.DB with the dialector of their choice and
// run [Store.Migrate] once at startup.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MrEthical07/fastauth/store"
)

type userModel struct {
	ID                 string  `gorm:"primaryKey;size:36"`
	Email              string  `gorm:"size:320;not null"`
	NormalizedEmail    string  `gorm:"size:320;not null;uniqueIndex"`
	Username           *string `gorm:"size:128"`
	NormalizedUsername *string `gorm:"size:128;uniqueIndex"`
	PasswordHash       string  `gorm:"not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (userModel) TableName() string { return "fastauth_users" }

type refreshTokenModel struct {
	ID        string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"size:36;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (refreshTokenModel) TableName() string { return "fastauth_refresh_tokens" }

// Store persists users and refresh tokens through GORM.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an opened GORM handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tables and unique indexes the store relies on.
func (s *Store) Migrate(ctx context.Context) error {
	for _, model := range []any{&userModel{}, &refreshTokenModel{}} {
		if err := s.db.WithContext(ctx).AutoMigrate(model); err != nil {
			return fmt.Errorf("gormstore: migrate %T: %w", model, err)
		}
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	row := toUserModel(u)
	err := s.db.WithContext(ctx).Create(&row).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return fmt.Errorf("gormstore: create user: %w", err)
	}
	// The violated index is not reported uniformly across drivers, so look
	// the email up to decide which identifier collided.
	var n int64
	if cerr := s.db.WithContext(ctx).Model(&userModel{}).
		Where("normalized_email = ?", u.NormalizedEmail).
		Count(&n).Error; cerr != nil {
		return fmt.Errorf("gormstore: create user: %w", err)
	}
	if n > 0 {
		return store.ErrDuplicateEmail
	}
	return store.ErrDuplicateUsername
}

func (s *Store) UserByID(ctx context.Context, id string) (*store.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *Store) UserByNormalizedEmail(ctx context.Context, normalizedEmail string) (*store.User, error) {
	return s.findUser(ctx, "normalized_email = ?", normalizedEmail)
}

func (s *Store) UserByNormalizedUsername(ctx context.Context, normalizedUsername string) (*store.User, error) {
	if normalizedUsername == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, "normalized_username = ?", normalizedUsername)
}

func (s *Store) findUser(ctx context.Context, query string, arg string) (*store.User, error) {
	var row userModel
	err := s.db.WithContext(ctx).Where(query, arg).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("gormstore: find user: %w", err)
	}
	return row.toUser(), nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res := s.db.WithContext(ctx).Model(&userModel{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"password_hash": hash,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("gormstore: update password hash: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveRefreshToken(ctx context.Context, t *store.RefreshToken) error {
	row := refreshTokenModel{
		ID:        t.ID,
		UserID:    t.UserID,
		CreatedAt: t.CreatedAt.UTC(),
		ExpiresAt: t.ExpiresAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("gormstore: save refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken reads the row and then deletes it by primary key. Only
// the caller whose DELETE affects the row wins.
func (s *Store) ConsumeRefreshToken(ctx context.Context, id string) (*store.RefreshToken, error) {
	db := s.db.WithContext(ctx)

	var row refreshTokenModel
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("gormstore: read refresh token: %w", err)
	}

	res := db.Where("id = ?", id).Delete(&refreshTokenModel{})
	if res.Error != nil {
		return nil, fmt.Errorf("gormstore: consume refresh token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}

	return &store.RefreshToken{
		ID:        row.ID,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt.UTC(),
		ExpiresAt: row.ExpiresAt.UTC(),
	}, nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&refreshTokenModel{}).Error; err != nil {
		return fmt.Errorf("gormstore: delete refresh token: %w", err)
	}
	return nil
}

func (s *Store) DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&refreshTokenModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("gormstore: delete user refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeExpired deletes refresh tokens that expired before now.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&refreshTokenModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("gormstore: purge expired: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func toUserModel(u *store.User) userModel {
	row := userModel{
		ID:              u.ID,
		Email:           u.Email,
		NormalizedEmail: u.NormalizedEmail,
		PasswordHash:    u.PasswordHash,
		CreatedAt:       u.CreatedAt.UTC(),
		UpdatedAt:       u.UpdatedAt.UTC(),
	}
	if u.NormalizedUsername != "" {
		username := u.Username
		normalized := u.NormalizedUsername
		row.Username = &username
		row.NormalizedUsername = &normalized
	}
	return row
}

func (m *userModel) toUser() *store.User {
	u := &store.User{
		ID:              m.ID,
		Email:           m.Email,
		NormalizedEmail: m.NormalizedEmail,
		PasswordHash:    m.PasswordHash,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
	if m.Username != nil {
		u.Username = *m.Username
	}
	if m.NormalizedUsername != nil {
		u.NormalizedUsername = *m.NormalizedUsername
	}
	return u
}
