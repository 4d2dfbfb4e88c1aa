// Package mongostore implements [store.Store] on MongoDB. Users and refresh
// tokens live in two collections of one database; uniqueness of the
// normalized identifiers is enforced by indexes created in
// [Store.EnsureIndexes].
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrEthical07/fastauth/store"
)

const (
	// DefaultDBName is the default database name.
	DefaultDBName = "fastauth"

	// DefaultUsersCollectionName is the default users collection name.
	DefaultUsersCollectionName = "users"

	// DefaultTokensCollectionName is the default refresh tokens collection name.
	DefaultTokensCollectionName = "refresh_tokens"
)

const (
	emailIndex    = "uniq_nemail"
	usernameIndex = "uniq_nusername"
)

// Config holds database and collection names. Zero values take the defaults.
type Config struct {
	DBName               string
	UsersCollectionName  string
	TokensCollectionName string
}

type userDoc struct {
	ID                 string    `bson:"_id"`
	Email              string    `bson:"email"`
	NormalizedEmail    string    `bson:"nemail"`
	Username           string    `bson:"username,omitempty"`
	NormalizedUsername string    `bson:"nusername,omitempty"`
	PasswordHash       string    `bson:"pwhash"`
	CreatedAt          time.Time `bson:"c"`
	UpdatedAt          time.Time `bson:"u"`
}

type tokenDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"uid"`
	CreatedAt time.Time `bson:"c"`
	ExpiresAt time.Time `bson:"exp"`
}

// Store persists users and refresh tokens in MongoDB.
// It's safe to use it concurrently from multiple goroutines.
type Store struct {
	users  *mongo.Collection
	tokens *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// New creates a Store on client. It panics if client is nil.
func New(client *mongo.Client, cfg Config) *Store {
	if client == nil {
		panic("mongo client must be provided")
	}
	if cfg.DBName == "" {
		cfg.DBName = DefaultDBName
	}
	if cfg.UsersCollectionName == "" {
		cfg.UsersCollectionName = DefaultUsersCollectionName
	}
	if cfg.TokensCollectionName == "" {
		cfg.TokensCollectionName = DefaultTokensCollectionName
	}

	db := client.Database(cfg.DBName)
	return &Store{
		users:  db.Collection(cfg.UsersCollectionName),
		tokens: db.Collection(cfg.TokensCollectionName),
	}
}

// EnsureIndexes creates the unique identifier indexes and the refresh token
// lookup indexes. It is safe to call repeatedly.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "nemail", Value: 1}},
			Options: options.Index().SetName(emailIndex).SetUnique(true),
		},
		{
			// users without a username do not participate
			Keys: bson.D{{Key: "nusername", Value: 1}},
			Options: options.Index().SetName(usernameIndex).SetUnique(true).
				SetPartialFilterExpression(bson.M{"nusername": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("mongostore: user indexes: %w", err)
	}

	_, err = s.tokens.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "uid", Value: 1}}},
		{Keys: bson.D{{Key: "exp", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongostore: token indexes: %w", err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	doc := userDoc{
		ID:              u.ID,
		Email:           u.Email,
		NormalizedEmail: u.NormalizedEmail,
		PasswordHash:    u.PasswordHash,
		CreatedAt:       u.CreatedAt.UTC(),
		UpdatedAt:       u.UpdatedAt.UTC(),
	}
	if u.NormalizedUsername != "" {
		doc.Username = u.Username
		doc.NormalizedUsername = u.NormalizedUsername
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), usernameIndex) {
				return store.ErrDuplicateUsername
			}
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("mongostore: create user: %w", err)
	}
	return nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*store.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *Store) UserByNormalizedEmail(ctx context.Context, normalizedEmail string) (*store.User, error) {
	return s.findUser(ctx, bson.M{"nemail": normalizedEmail})
}

func (s *Store) UserByNormalizedUsername(ctx context.Context, normalizedUsername string) (*store.User, error) {
	if normalizedUsername == "" {
		return nil, store.ErrNotFound
	}
	return s.findUser(ctx, bson.M{"nusername": normalizedUsername})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*store.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongostore: find user: %w", err)
	}
	return &store.User{
		ID:                 doc.ID,
		Email:              doc.Email,
		NormalizedEmail:    doc.NormalizedEmail,
		Username:           doc.Username,
		NormalizedUsername: doc.NormalizedUsername,
		PasswordHash:       doc.PasswordHash,
		CreatedAt:          doc.CreatedAt.UTC(),
		UpdatedAt:          doc.UpdatedAt.UTC(),
	}, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"pwhash": hash, "u": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mongostore: update password hash: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveRefreshToken(ctx context.Context, t *store.RefreshToken) error {
	doc := tokenDoc{
		ID:        t.ID,
		UserID:    t.UserID,
		CreatedAt: t.CreatedAt.UTC(),
		ExpiresAt: t.ExpiresAt.UTC(),
	}
	if _, err := s.tokens.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongostore: save refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken removes and returns the token document with a single
// FindOneAndDelete, so concurrent callers cannot both obtain it.
func (s *Store) ConsumeRefreshToken(ctx context.Context, id string) (*store.RefreshToken, error) {
	var doc tokenDoc
	if err := s.tokens.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("mongostore: consume refresh token: %w", err)
	}
	return &store.RefreshToken{
		ID:        doc.ID,
		UserID:    doc.UserID,
		CreatedAt: doc.CreatedAt.UTC(),
		ExpiresAt: doc.ExpiresAt.UTC(),
	}, nil
}

func (s *Store) DeleteRefreshToken(ctx context.Context, id string) error {
	if _, err := s.tokens.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("mongostore: delete refresh token: %w", err)
	}
	return nil
}

func (s *Store) DeleteUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	res, err := s.tokens.DeleteMany(ctx, bson.M{"uid": userID})
	if err != nil {
		return 0, fmt.Errorf("mongostore: delete user refresh tokens: %w", err)
	}
	return res.DeletedCount, nil
}

// PurgeExpired deletes refresh tokens that expired before now.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.tokens.DeleteMany(ctx, bson.M{"exp": bson.M{"$lte": now.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("mongostore: purge expired: %w", err)
	}
	return res.DeletedCount, nil
}
