package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type httpMetrics struct {
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	responseSize    metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	in, err := telemetry.NewInstruments(meter)
	if err != nil {
		return nil, err
	}
	m := &httpMetrics{
		requestTotal:    in.Counter("http_server_request_total", "HTTP requests", "{request}"),
		requestDuration: in.Histogram("http_server_request_duration_seconds", "HTTP request latency", "s", telemetry.HTTPDurationBuckets...),
		responseSize:    in.Histogram("http_server_response_size_bytes", "HTTP response body size", "By", telemetry.ResponseSizeBuckets...),
		activeRequests:  in.UpDownCounter("http_server_active_requests", "In-flight HTTP requests", "{request}"),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// HTTPMetrics records request counts by route, status and agent, plus
// latency and response size by route.
func HTTPMetrics(meter metric.Meter) (gin.HandlerFunc, error) {
	m, err := newHTTPMetrics(meter)
	if err != nil {
		return nil, err
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		m.activeRequests.Add(ctx, 1)

		c.Next()

		m.activeRequests.Add(ctx, -1)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		base := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}
		counted := append([]attribute.KeyValue{telemetry.AttrHTTPStatusCode.Int(c.Writer.Status())}, base...)
		if agentID := GetAgentID(c); agentID > 0 {
			counted = append(counted, telemetry.AttrAgentID.Int64(agentID))
		}
		m.requestTotal.Add(ctx, 1, telemetry.With(counted...))
		byRoute := telemetry.With(base...)
		m.requestDuration.Record(ctx, time.Since(start).Seconds(), byRoute)
		if size := c.Writer.Size(); size > 0 {
			m.responseSize.Record(ctx, float64(size), byRoute)
		}
	}, nil
}
