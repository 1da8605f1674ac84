package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// gin context keys shared with the HTTP middleware package
const (
	ginLoggerKey    = "logger"
	ginRequestIDKey = "request_id"
	ginAgentIDKey   = "jwt_agent_id"
)

// AccessLogOption tunes AccessLog
type AccessLogOption func(*accessLog)

type accessLog struct {
	skip map[string]struct{}
	slow time.Duration
}

// WithSkipPaths suppresses the access line for routes such as /health.
// The request logger is still attached.
func WithSkipPaths(paths ...string) AccessLogOption {
	return func(a *accessLog) {
		for _, p := range paths {
			a.skip[p] = struct{}{}
		}
	}
}

// WithSlowRequest logs successful requests slower than d at warn level
func WithSlowRequest(d time.Duration) AccessLogOption {
	return func(a *accessLog) { a.slow = d }
}

// AccessLog binds a request-scoped logger to the gin and request contexts and
// writes one line per request once the handler chain returns.
func AccessLog(base *zap.Logger, opts ...AccessLogOption) gin.HandlerFunc {
	cfg := &accessLog{skip: make(map[string]struct{})}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetString(ginRequestIDKey)

		ctx, reqLogger := WithRequestID(c.Request.Context(),
			base.With(zap.String("method", c.Request.Method), zap.String("route", c.FullPath())),
			requestID)
		c.Set(ginLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if _, ok := cfg.skip[c.FullPath()]; ok {
			return
		}

		status := c.Writer.Status()
		elapsed := time.Since(start)
		fields := []zap.Field{
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int64("elapsed_ms", elapsed.Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("response_bytes", c.Writer.Size()),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if id, ok := c.Get(ginAgentIDKey); ok {
			if agentID, ok := id.(int64); ok {
				fields = append(fields, zap.Int64("agent_id", agentID))
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error("http request", fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn("http request", fields...)
		case cfg.slow > 0 && elapsed > cfg.slow:
			reqLogger.Warn("slow http request", fields...)
		default:
			reqLogger.Info("http request", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 in the API envelope and logs the
// stack with the request id.
func Recovery(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			requestID := c.GetString(ginRequestIDKey)
			base.Error("panic recovered",
				zap.String("request_id", requestID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", r),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":       "ERR_INTERNAL",
					"message":    "Internal server error",
					"request_id": requestID,
				},
			})
		}()
		c.Next()
	}
}

// GetGinLogger returns the request logger set by AccessLog, or a no-op logger
func GetGinLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Get(ginLoggerKey); ok {
		if zl, ok := l.(*zap.Logger); ok {
			return zl
		}
	}
	return zap.NewNop()
}
