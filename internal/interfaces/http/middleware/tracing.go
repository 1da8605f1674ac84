package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing opens a server span per request through otelgin. A second
// handler runs inside that span and, once the rest of the chain returned,
// tags it with the request id and the acting agent and marks 5xx responses
// as errors. Install it with r.Use(Tracing(...)...).
func Tracing(serviceName string, opts ...otelgin.Option) gin.HandlersChain {
	return gin.HandlersChain{otelgin.Middleware(serviceName, opts...), annotateSpan}
}

func annotateSpan(c *gin.Context) {
	c.Next()

	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return
	}
	if id := GetRequestID(c); id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}
	if agentID := GetAgentID(c); agentID > 0 {
		span.SetAttributes(attribute.Int64("agent_id", agentID))
	}
	if status := c.Writer.Status(); status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}
