package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/fastauth/jwt"
	"github.com/MrEthical07/fastauth/store"
)

// Issued is the token material produced for an authenticated user.
type Issued struct {
	User                  *store.User
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenID        string
	RefreshTokenExpiresAt time.Time
}

// IssueDeps captures what token issuance needs.
type IssueDeps struct {
	RefreshEnabled   bool
	RefreshTTL       time.Duration
	Now              func() time.Time
	CreateAccess     func(jwt.Subject) (string, time.Time, error)
	NewRefreshToken  func() (token, id string, err error)
	SaveRefreshToken func(context.Context, *store.RefreshToken) error
}

// IssueTokens signs an access token for u and, when refresh tokens are
// enabled, persists the hash row of a new refresh token.
func IssueTokens(ctx context.Context, u *store.User, deps IssueDeps) (*Issued, error) {
	if u == nil || deps.CreateAccess == nil {
		return nil, errors.New("flows: token issuance is not configured")
	}

	access, accessExp, err := deps.CreateAccess(jwt.Subject{
		UserID:    u.ID,
		Email:     u.Email,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	out := &Issued{
		User:                 u,
		AccessToken:          access,
		AccessTokenExpiresAt: accessExp,
	}
	if !deps.RefreshEnabled {
		return out, nil
	}
	if deps.NewRefreshToken == nil || deps.SaveRefreshToken == nil {
		return nil, errors.New("flows: refresh token issuance is not configured")
	}

	token, id, err := deps.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := nowOr(deps.Now)().UTC()
	row := &store.RefreshToken{
		ID:        id,
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(deps.RefreshTTL),
	}
	if err := deps.SaveRefreshToken(ctx, row); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	out.RefreshToken = token
	out.RefreshTokenID = id
	out.RefreshTokenExpiresAt = row.ExpiresAt
	return out, nil
}
