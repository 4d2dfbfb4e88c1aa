package fastauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/fastauth/internal/audit"
)

// AuditErrorCode is the stable error label recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrValidation         AuditErrorCode = "validation"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpiredToken       AuditErrorCode = "expired_token"
	auditErrRefreshDisabled    AuditErrorCode = "refresh_disabled"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := audit.Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		TokenID:   tokenID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrUsernameTaken):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrRefreshTokenInvalid), errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrRefreshTokenExpired), errors.Is(err, ErrTokenExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrRefreshDisabled):
		return auditErrRefreshDisabled
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	default:
		return auditErrInternal
	}
}
