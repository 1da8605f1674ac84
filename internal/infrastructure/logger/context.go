package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// scope is what a request carries for logging. The logger already has the
// request_id and agent_id fields; the raw values are kept for Enrich.
type scope struct {
	log       *zap.Logger
	requestID string
	agentID   int64
}

type scopeKey struct{}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, s scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithContext makes l the request logger, keeping any ids already in ctx.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	s := scopeFrom(ctx)
	s.log = l
	return withScope(ctx, s)
}

// FromContext returns the request logger, or a no-op logger outside a request.
func FromContext(ctx context.Context) *zap.Logger {
	if s := scopeFrom(ctx); s.log != nil {
		return s.log
	}
	return zap.NewNop()
}

// WithRequestID records the request id and returns l with a request_id field,
// which also becomes the request logger.
func WithRequestID(ctx context.Context, l *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	s := scopeFrom(ctx)
	s.requestID = requestID
	s.log = l.With(zap.String("request_id", requestID))
	return withScope(ctx, s), s.log
}

// WithAgentID is WithRequestID for the authenticated agent.
func WithAgentID(ctx context.Context, l *zap.Logger, agentID int64) (context.Context, *zap.Logger) {
	s := scopeFrom(ctx)
	s.agentID = agentID
	s.log = l.With(zap.Int64("agent_id", agentID))
	return withScope(ctx, s), s.log
}

func RequestID(ctx context.Context) string {
	return scopeFrom(ctx).requestID
}

// AgentID is 0 for unauthenticated requests and background jobs.
func AgentID(ctx context.Context) int64 {
	return scopeFrom(ctx).agentID
}

func traceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// L is the request logger plus the active span ids.
//
//	logger.L(ctx).Info("sale recorded", zap.Int64("sale_id", id))
func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx).With(traceFields(ctx)...)
}

// Enrich tags a component's own logger with the request, agent and span of ctx.
func Enrich(ctx context.Context, l *zap.Logger) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	s := scopeFrom(ctx)
	fields := traceFields(ctx)
	if s.requestID != "" {
		fields = append(fields, zap.String("request_id", s.requestID))
	}
	if s.agentID != 0 {
		fields = append(fields, zap.Int64("agent_id", s.agentID))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}
