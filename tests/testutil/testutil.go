// Package testutil provides shared fixtures for ledger tests: a migrated SQLite
// ledger, gin test contexts and event recorders.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestContext wraps a gin test context and its recorder
type TestContext struct {
	Context  *gin.Context
	Recorder *httptest.ResponseRecorder
}

// NewTestContext creates a gin context for req, or for GET / when req is nil
func NewTestContext(t *testing.T, req *http.Request) *TestContext {
	t.Helper()
	if req == nil {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return &TestContext{Context: c, Recorder: w}
}

// SetRequestID sets the request ID the way the request-id middleware does
func (tc *TestContext) SetRequestID(id string) {
	tc.Context.Set(middleware.RequestIDKey, id)
}

// SetAgent marks the request as authenticated for the given agent
func (tc *TestContext) SetAgent(agentID int64, admin bool) {
	tc.Context.Set(middleware.JWTAgentIDKey, agentID)
	tc.Context.Set(middleware.JWTIsAdminKey, admin)
}

// ResponseBody returns the recorded response body
func (tc *TestContext) ResponseBody() []byte {
	return tc.Recorder.Body.Bytes()
}
