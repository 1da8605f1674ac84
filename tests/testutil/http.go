package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Envelope mirrors dto.Response with a typed data payload
type Envelope[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data"`
	Error   *dto.ErrorInfo `json:"error"`
	Meta    *dto.Meta      `json:"meta"`
}

// Decode parses a recorded response into an envelope
func Decode[T any](t *testing.T, w *httptest.ResponseRecorder) Envelope[T] {
	t.Helper()
	var env Envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// ErrorCode returns the error code of a failed response
func ErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := Decode[json.RawMessage](t, w)
	require.False(t, env.Success, w.Body.String())
	require.NotNil(t, env.Error, w.Body.String())
	return env.Error.Code
}

// HTTPTestCase drives a single handler function without the router
type HTTPTestCase struct {
	Name    string
	Method  string
	Path    string
	Body    any
	Headers map[string]string
	// AgentID, when non-zero, authenticates the request as that agent
	AgentID   int64
	Admin     bool
	Params    gin.Params
	WantCode  int
	WantError string
	Validate  func(t *testing.T, tc *TestContext)
}

// RunHTTPTestCases runs each case as a subtest against handler
func RunHTTPTestCases(t *testing.T, handler gin.HandlerFunc, cases []HTTPTestCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			ctx := newCaseContext(t, tc)
			handler(ctx.Context)

			if tc.WantCode != 0 {
				assert.Equal(t, tc.WantCode, ctx.Recorder.Code, ctx.Recorder.Body.String())
			}
			if tc.WantError != "" {
				assert.Equal(t, tc.WantError, ErrorCode(t, ctx.Recorder))
			}
			if tc.Validate != nil {
				tc.Validate(t, ctx)
			}
		})
	}
}

func newCaseContext(t *testing.T, tc HTTPTestCase) *TestContext {
	t.Helper()

	var body io.Reader
	if tc.Body != nil {
		raw, err := json.Marshal(tc.Body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	method := tc.Method
	if method == "" {
		method = http.MethodGet
	}
	path := tc.Path
	if path == "" {
		path = "/"
	}

	ctx := NewTestContext(t, httptest.NewRequest(method, path, body))
	if tc.Body != nil {
		ctx.Context.Request.Header.Set("Content-Type", "application/json")
	}
	for k, v := range tc.Headers {
		ctx.Context.Request.Header.Set(k, v)
	}
	ctx.Context.Params = tc.Params
	if tc.AgentID != 0 {
		ctx.SetAgent(tc.AgentID, tc.Admin)
	}
	return ctx
}
