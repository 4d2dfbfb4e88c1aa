package flows

import (
	"context"
	"time"
)

// AuditFunc records one audit event. tokenID is a stored refresh-token id,
// never the plaintext token.
type AuditFunc func(ctx context.Context, eventType string, success bool, userID, tokenID string, err error, metadata func() map[string]string)

// Deps groups flow dependency sets. The engine builds this once at Build
// time and delegates each operation to the matching Run function.
type Deps struct {
	Issue          IssueDeps
	Register       RegisterDeps
	Login          LoginDeps
	Refresh        RefreshDeps
	Logout         LogoutDeps
	Validate       ValidateDeps
	ChangePassword ChangePasswordDeps
}

func noopMetric(int) {}

func noopAudit(context.Context, string, bool, string, string, error, func() map[string]string) {}

func noopWarn(string, error) {}

func nowOr(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}
