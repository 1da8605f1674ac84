package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withAgent(id int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(JWTAgentIDKey, id)
		c.Next()
	}
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	r := gin.New()
	r.Use(RequestID(nil), withAgent(9))
	r.Use(Tracing("ledger-test", otelgin.WithTracerProvider(tp))...)
	r.GET("/sales/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet, "/sales/3", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	serve(r, req)
	serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "req-1", attrs["request_id"])
	assert.Equal(t, int64(9), attrs["agent_id"])
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mw, err := HTTPMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("http"))
	require.NoError(t, err)

	r := gin.New()
	r.Use(withAgent(4), mw)
	r.GET("/sales/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	serve(r, httptest.NewRequest(http.MethodGet, "/sales/1", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/sales/2", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	byRoute := map[string]int64{}
	var histCount uint64
	for _, m := range rm.ScopeMetrics[0].Metrics {
		switch m.Name {
		case "http_server_request_total":
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				route, _ := dp.Attributes.Value("http.route")
				byRoute[route.AsString()] += dp.Value
				agent, ok := dp.Attributes.Value("agent_id")
				assert.True(t, ok)
				assert.Equal(t, int64(4), agent.AsInt64())
			}
		case "http_server_request_duration_seconds":
			for _, dp := range m.Data.(metricdata.Histogram[float64]).DataPoints {
				histCount += dp.Count
			}
		}
	}
	assert.Equal(t, map[string]int64{"/sales/:id": 2, "unmatched": 1}, byRoute)
	assert.Equal(t, uint64(3), histCount)
}
