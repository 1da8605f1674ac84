package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func findEntry(t *testing.T, logs *observer.ObservedLogs, msg string) observer.LoggedEntry {
	t.Helper()
	entries := logs.FilterMessage(msg).All()
	require.NotEmpty(t, entries, "expected log %q", msg)
	return entries[0]
}

func newAccessRouter(t *testing.T, opts ...AccessLogOption) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ginRequestIDKey, "test-req-123")
		c.Next()
	})
	router.Use(AccessLog(zap.New(core), opts...))
	return router, recorded
}

func TestAccessLog(t *testing.T) {
	router, recorded := newAccessRouter(t)
	router.GET("/sales/:id", func(c *gin.Context) {
		c.Set(ginAgentIDKey, int64(5))
		assert.Equal(t, "test-req-123", RequestID(c.Request.Context()))
		GetGinLogger(c).Info("inside handler")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/missing", func(c *gin.Context) {
		c.Status(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sales/7?full=1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	inner := findEntry(t, recorded, "inside handler")
	assert.Equal(t, "/sales/:id", inner.ContextMap()["route"])

	entry := findEntry(t, recorded, "http request")
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "test-req-123", fields["request_id"])
	assert.Equal(t, "/sales/7", fields["path"])
	assert.Equal(t, "full=1", fields["query"])
	assert.Equal(t, int64(5), fields["agent_id"])

	recorded.TakeAll()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, zapcore.WarnLevel, findEntry(t, recorded, "http request").Level)
}

func TestAccessLog_SkipPaths(t *testing.T) {
	router, recorded := newAccessRouter(t, WithSkipPaths("/health"))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Zero(t, recorded.FilterMessage("http request").Len())
}

func TestAccessLog_SlowRequest(t *testing.T) {
	router, recorded := newAccessRouter(t, WithSlowRequest(time.Millisecond))
	router.GET("/report", func(c *gin.Context) {
		time.Sleep(5 * time.Millisecond)
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/report", nil))
	assert.Equal(t, zapcore.WarnLevel, findEntry(t, recorded, "slow http request").Level)
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) {
		c.Set(ginRequestIDKey, "req-panic")
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"ERR_INTERNAL"`)
	assert.Contains(t, w.Body.String(), `"request_id":"req-panic"`)
	assert.Equal(t, "req-panic", findEntry(t, recorded, "panic recovered").ContextMap()["request_id"])
}

func TestGetGinLogger_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}
