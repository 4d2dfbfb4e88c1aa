package flows

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type LogoutMetrics struct {
	Logout    int
	LogoutAll int
}

type LogoutEvents struct {
	Logout    string
	LogoutAll string
}

type LogoutErrors struct {
	EngineNotReady      error
	RefreshTokenInvalid error
	UserNotFound        error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	TokenID                 func(string) (string, error)
	DeleteRefreshToken      func(context.Context, string) error
	DeleteUserRefreshTokens func(context.Context, string) (int64, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics LogoutMetrics
	Events  LogoutEvents
	Errors  LogoutErrors
}

// RunLogout deletes the row behind refreshToken. Unknown tokens are not an
// error; malformed ones are.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) error {
	normalizeLogoutDeps(&deps)
	if deps.TokenID == nil || deps.DeleteRefreshToken == nil {
		return deps.Errors.EngineNotReady
	}

	id, err := deps.TokenID(refreshToken)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.Logout, false, "", "", deps.Errors.RefreshTokenInvalid, reason("decode_failed"))
		return deps.Errors.RefreshTokenInvalid
	}
	if err := deps.DeleteRefreshToken(ctx, id); err != nil {
		deps.EmitAudit(ctx, deps.Events.Logout, false, "", id, err, reason("delete_failed"))
		return fmt.Errorf("delete refresh token: %w", err)
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, "", id, nil, nil)
	return nil
}

// RunLogoutAll deletes every refresh row owned by userID.
func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) (int64, error) {
	normalizeLogoutDeps(&deps)
	if deps.DeleteUserRefreshTokens == nil {
		return 0, deps.Errors.EngineNotReady
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, deps.Errors.UserNotFound
	}
	n, err := deps.DeleteUserRefreshTokens(ctx, userID)
	if err != nil {
		deps.EmitAudit(ctx, deps.Events.LogoutAll, false, userID, "", err, reason("delete_failed"))
		return 0, fmt.Errorf("delete user refresh tokens: %w", err)
	}

	deps.MetricInc(deps.Metrics.LogoutAll)
	deps.EmitAudit(ctx, deps.Events.LogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{"removed": strconv.FormatInt(n, 10)}
	})
	return n, nil
}

func normalizeLogoutDeps(deps *LogoutDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
}
