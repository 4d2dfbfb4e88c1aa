package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event types emitted by the engine.
const (
	EventRegisterSuccess       = "register_success"
	EventRegisterFailure       = "register_failure"
	EventRegisterDuplicate     = "register_duplicate"
	EventLoginSuccess          = "login_success"
	EventLoginFailure          = "login_failure"
	EventRefreshSuccess        = "refresh_success"
	EventRefreshInvalid        = "refresh_invalid"
	EventRefreshExpired        = "refresh_expired"
	EventLogout                = "logout"
	EventLogoutAll             = "logout_all"
	EventPasswordChangeSuccess = "password_change_success"
	EventPasswordChangeInvalid = "password_change_invalid_current"
	EventPasswordChangeReuse   = "password_change_reuse_attempt"
	EventPasswordChangeFailure = "password_change_failure"
	EventPasswordUpgraded      = "password_hash_upgraded"
)

// Event is one audit record. TokenID is the stored refresh-token id (a
// hash), never the token itself.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	TokenID   string            `json:"token_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// LoggerSink writes events through a zerolog logger. Failures log at warn,
// everything else at info.
type LoggerSink struct {
	logger zerolog.Logger
}

func NewLoggerSink(logger zerolog.Logger) *LoggerSink {
	return &LoggerSink{logger: logger.With().Str("stream", "audit").Logger()}
}

func (s *LoggerSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}
	ev := s.logger.Info()
	if !event.Success {
		ev = s.logger.Warn()
	}
	ev = ev.Time("at", event.Timestamp).
		Str("event_type", event.EventType).
		Bool("success", event.Success)
	if event.UserID != "" {
		ev = ev.Str("user_id", event.UserID)
	}
	if event.TokenID != "" {
		ev = ev.Str("token_id", event.TokenID)
	}
	if event.IP != "" {
		ev = ev.Str("ip", event.IP)
	}
	if event.UserAgent != "" {
		ev = ev.Str("user_agent", event.UserAgent)
	}
	if event.Error != "" {
		ev = ev.Str("error_code", event.Error)
	}
	for k, v := range event.Metadata {
		ev = ev.Str("meta_"+k, v)
	}
	ev.Msg("audit")
}
