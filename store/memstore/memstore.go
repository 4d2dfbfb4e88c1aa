// Package memstore is an in-process [store.Store] for tests, examples and
// single-node tools. Data lives for the lifetime of the Store value.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/fastauth/store"
)

// Store keeps users and refresh tokens in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	users      map[string]*store.User
	byEmail    map[string]string
	byUsername map[string]string

	tokens     map[string]*store.RefreshToken
	userTokens map[string]map[string]struct{}
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:      make(map[string]*store.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
		tokens:     make(map[string]*store.RefreshToken),
		userTokens: make(map[string]map[string]struct{}),
	}
}

func (s *Store) CreateUser(_ context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[u.NormalizedEmail]; ok {
		return store.ErrDuplicateEmail
	}
	if u.NormalizedUsername != "" {
		if _, ok := s.byUsername[u.NormalizedUsername]; ok {
			return store.ErrDuplicateUsername
		}
	}

	s.users[u.ID] = u.Clone()
	s.byEmail[u.NormalizedEmail] = u.ID
	if u.NormalizedUsername != "" {
		s.byUsername[u.NormalizedUsername] = u.ID
	}
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *Store) UserByNormalizedEmail(ctx context.Context, normalizedEmail string) (*store.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[normalizedEmail]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.UserByID(ctx, id)
}

func (s *Store) UserByNormalizedUsername(ctx context.Context, normalizedUsername string) (*store.User, error) {
	if normalizedUsername == "" {
		return nil, store.ErrNotFound
	}
	s.mu.RLock()
	id, ok := s.byUsername[normalizedUsername]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.UserByID(ctx, id)
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SaveRefreshToken(_ context.Context, t *store.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *t
	s.tokens[t.ID] = &row
	set, ok := s.userTokens[t.UserID]
	if !ok {
		set = make(map[string]struct{})
		s.userTokens[t.UserID] = set
	}
	set[t.ID] = struct{}{}
	return nil
}

func (s *Store) ConsumeRefreshToken(_ context.Context, id string) (*store.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	s.removeTokenLocked(t)
	return t, nil
}

func (s *Store) DeleteRefreshToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[id]; ok {
		s.removeTokenLocked(t)
	}
	return nil
}

func (s *Store) DeleteUserRefreshTokens(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.userTokens[userID]
	for id := range set {
		delete(s.tokens, id)
	}
	delete(s.userTokens, userID)
	return int64(len(set)), nil
}

// PurgeExpired drops refresh tokens that expired before now and reports how
// many were removed.
func (s *Store) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.Expired(now) {
			s.removeTokenLocked(t)
			n++
		}
	}
	return n
}

func (s *Store) removeTokenLocked(t *store.RefreshToken) {
	delete(s.tokens, t.ID)
	if set, ok := s.userTokens[t.UserID]; ok {
		delete(set, t.ID)
		if len(set) == 0 {
			delete(s.userTokens, t.UserID)
		}
	}
}
