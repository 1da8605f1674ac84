package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultMaxSQLLength = 2000

// GormLogger writes GORM's statement log to zap with the request and agent
// ids carried by the context.
//
//	error   failed statements not claimed by the conflict classifier
//	warn    classified conflicts and statements over the slow threshold
//	debug   everything else, only at gormlogger.Info
type GormLogger struct {
	log           *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	maxSQLLength  int
	conflict      func(error) bool
}

type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the slow statement threshold; zero disables it
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowThreshold = threshold }
}

// WithConflictClassifier marks errors the unit of work retries or maps to a
// domain conflict, such as unique violations and serialization failures.
func WithConflictClassifier(fn func(error) bool) GormLoggerOption {
	return func(l *GormLogger) { l.conflict = fn }
}

// WithMaxSQLLength truncates logged statements; zero or less keeps them whole
func WithMaxSQLLength(n int) GormLoggerOption {
	return func(l *GormLogger) { l.maxSQLLength = n }
}

func NewGormLogger(log *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		log:           log.Named("gorm"),
		level:         level,
		slowThreshold: 200 * time.Millisecond,
		maxSQLLength:  defaultMaxSQLLength,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

var _ gormlogger.Interface = (*GormLogger)(nil)

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, need gormlogger.LogLevel, at zapcore.Level, msg string, data []any) {
	if l.level < need {
		return
	}
	if ce := Enrich(ctx, l.log).Check(at, fmt.Sprintf(msg, data...)); ce != nil {
		ce.Write()
	}
}

// classify picks the level and message for one statement. Record-not-found
// is dropped: repositories turn it into a NOT_FOUND domain error.
func (l *GormLogger) classify(err error, elapsed time.Duration) (gormlogger.LogLevel, zapcore.Level, string) {
	switch {
	case errors.Is(err, gormlogger.ErrRecordNotFound):
		return gormlogger.Silent, zapcore.DebugLevel, ""
	case err != nil && l.conflict != nil && l.conflict(err):
		return gormlogger.Warn, zapcore.WarnLevel, "sql conflict"
	case err != nil:
		return gormlogger.Error, zapcore.ErrorLevel, "sql error"
	case l.slowThreshold > 0 && elapsed >= l.slowThreshold:
		return gormlogger.Warn, zapcore.WarnLevel, "slow sql"
	default:
		return gormlogger.Info, zapcore.DebugLevel, "sql query"
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	need, at, msg := l.classify(err, elapsed)
	if need == gormlogger.Silent || l.level < need {
		return
	}

	sql, rows := fc()
	if l.maxSQLLength > 0 && len(sql) > l.maxSQLLength {
		sql = sql[:l.maxSQLLength] + "..."
	}
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Float64("elapsed_ms", float64(elapsed.Microseconds())/1000),
	}
	switch {
	case err != nil:
		fields = append(fields, zap.Error(err))
	case msg == "slow sql":
		fields = append(fields, zap.Duration("threshold", l.slowThreshold))
	}
	if ce := Enrich(ctx, l.log).Check(at, msg); ce != nil {
		ce.Write(fields...)
	}
}

// MapGormLogLevel maps the application log level onto GORM's
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
