package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/fastauth/store"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDisabled
	RefreshFailureDecode
	RefreshFailureNotFound
	RefreshFailureConsume
	RefreshFailureExpired
	RefreshFailureUserNotFound
	RefreshFailureUserLookup
	RefreshFailureIssue
)

// RefreshResult carries either the rotated token pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	TokenID string
	UserID  string
	Issued  *Issued
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Enabled             bool
	Now                 func() time.Time
	TokenID             func(string) (string, error)
	ConsumeRefreshToken func(context.Context, string) (*store.RefreshToken, error)
	UserByID            func(context.Context, string) (*store.User, error)
	Issue               IssueDeps
}

// RunRefresh consumes the presented token and issues a replacement pair.
// The old row is gone whether or not issuance succeeds.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if !deps.Enabled {
		return RefreshResult{Failure: RefreshFailureDisabled}
	}

	id, err := deps.TokenID(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	row, err := deps.ConsumeRefreshToken(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RefreshResult{Failure: RefreshFailureNotFound, Err: err, TokenID: id}
		}
		return RefreshResult{Failure: RefreshFailureConsume, Err: err, TokenID: id}
	}
	if row.Expired(nowOr(deps.Now)()) {
		return RefreshResult{Failure: RefreshFailureExpired, TokenID: id, UserID: row.UserID}
	}

	user, err := deps.UserByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RefreshResult{Failure: RefreshFailureUserNotFound, Err: err, TokenID: id, UserID: row.UserID}
		}
		return RefreshResult{Failure: RefreshFailureUserLookup, Err: err, TokenID: id, UserID: row.UserID}
	}

	issued, err := IssueTokens(ctx, user, deps.Issue)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, TokenID: id, UserID: user.ID}
	}

	return RefreshResult{
		Failure: RefreshFailureNone,
		TokenID: id,
		UserID:  user.ID,
		Issued:  issued,
	}
}
