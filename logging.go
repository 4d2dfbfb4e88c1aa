package fastauth

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig configures the logger built when Builder.WithLogger is not
// used. Level "disabled" (the default) yields a no-op logger.
type LoggingConfig struct {
	Level  string // trace, debug, info, warn, error, disabled
	Format string // json or console
	// Output defaults to os.Stderr.
	Output io.Writer
}

// NewLogger builds a zerolog logger from cfg.
func NewLogger(cfg LoggingConfig) (zerolog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if level == zerolog.Disabled {
		return zerolog.Nop(), nil
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func parseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "disabled" || s == "off" {
		return zerolog.Disabled, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.Disabled, fmt.Errorf("Logging Level %q is invalid", s)
	}
	return level, nil
}
