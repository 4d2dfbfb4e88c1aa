package gormstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type zerologAdapter struct {
	log           zerolog.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewLogger adapts a zerolog logger to GORM's logger interface. Queries slower
// than slowThreshold are logged at warn level; a zero threshold disables
// slow-query reporting.
//
// Logged SQL never carries bound values. Rows hold password hashes and
// refresh token ids, so statements are logged with their placeholders.
func NewLogger(log zerolog.Logger, level gormlogger.LogLevel, slowThreshold time.Duration) gormlogger.Interface {
	return &zerologAdapter{
		log:           log.With().Str("component", "gorm").Logger(),
		level:         level,
		slowThreshold: slowThreshold,
	}
}

func (l *zerologAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &zerologAdapter{log: l.log, level: level, slowThreshold: l.slowThreshold}
}

// ParamsFilter drops bound values before GORM renders the statement for
// Trace.
func (l *zerologAdapter) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

var sqlStringLiteral = regexp.MustCompile(`'(?:[^']|'')*'`)

// redactSQL masks string literals written inline into the statement text.
func redactSQL(sql string) string {
	return sqlStringLiteral.ReplaceAllString(sql, "'?'")
}

func (l *zerologAdapter) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info().Msg(fmt.Sprintf(msg, data...))
	}
}

func (l *zerologAdapter) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn().Msg(fmt.Sprintf(msg, data...))
	}
}

func (l *zerologAdapter) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error().Msg(fmt.Sprintf(msg, data...))
	}
}

func (l *zerologAdapter) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	sql = redactSQL(sql)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		// unique violations are expected on registration races
		if isUniqueViolation(err) {
			l.log.Debug().Str("sql", sql).Dur("duration", elapsed).Int64("rows", rows).Err(err).Msg("query constraint")
			return
		}
		l.log.Error().Str("sql", sql).Dur("duration", elapsed).Int64("rows", rows).Err(err).Msg("query error")
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.log.Warn().Str("sql", sql).Dur("duration", elapsed).Int64("rows", rows).Msg("slow query")
	case l.level >= gormlogger.Info:
		l.log.Debug().Str("sql", sql).Dur("duration", elapsed).Int64("rows", rows).Msg("query")
	}
}

var _ gorm.ParamsFilter = (*zerologAdapter)(nil)
