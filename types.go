package fastauth

import (
	"io"
	"time"

	"github.com/MrEthical07/fastauth/internal/audit"
	"github.com/MrEthical07/fastauth/internal/flows"
	"github.com/MrEthical07/fastauth/store"
	"github.com/rs/zerolog"
)

// RegisterRequest is the input to [Engine.Register]. Username is optional
// unless Identity.RequireUsername is set.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

// LoginRequest is the input to [Engine.Login]. Identifier is an email
// address when it contains '@', otherwise a username.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// AuthResult is returned by Register, Login and Refresh. RefreshToken is
// empty when refresh tokens are disabled.
type AuthResult struct {
	User                  *store.User
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// Claims is the verified content of an access token.
type Claims struct {
	UserID    string
	Email     string
	Username  string
	CreatedAt time.Time
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuditEvent is one audit record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = audit.JSONWriterSink

// LoggerSink writes audit events through zerolog.
type LoggerSink = audit.LoggerSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewLoggerSink(logger zerolog.Logger) *LoggerSink {
	return audit.NewLoggerSink(logger)
}

func authResultFrom(issued *flows.Issued) *AuthResult {
	if issued == nil {
		return nil
	}
	return &AuthResult{
		User:                  issued.User.Clone(),
		AccessToken:           issued.AccessToken,
		AccessTokenExpiresAt:  issued.AccessTokenExpiresAt,
		RefreshToken:          issued.RefreshToken,
		RefreshTokenExpiresAt: issued.RefreshTokenExpiresAt,
	}
}
