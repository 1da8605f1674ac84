package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/application/audit"
	"github.com/stickroom/ledger/internal/infrastructure/auth"
	"github.com/stickroom/ledger/internal/infrastructure/config"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"github.com/stickroom/ledger/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWT(ttl time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.AuthConfig{
		JWTSecret:       "test-secret-that-is-long-enough-000",
		Issuer:          "ledger-test",
		TokenExpiration: ttl,
	})
}

func authRouter(cfg AuthConfig, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(AgentAuth(cfg))
	handlers := append(extra, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"agent_id": GetAgentID(c),
			"admin":    IsAdmin(c),
			"ctx_id":   logger.AgentID(c.Request.Context()),
			"ip":       audit.ClientIP(c.Request.Context()),
			"claims":   GetClaims(c) != nil,
		})
	})
	r.GET("/me", handlers...)
	return r
}

func bearer(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	req.RemoteAddr = "198.51.100.4:5000"
	return req
}

func TestAgentAuth_Valid(t *testing.T) {
	jwtSvc := newJWT(time.Hour)
	token, err := jwtSvc.Issue(auth.AgentIdentity{AgentID: 7, TelegramID: 1007, Username: "oleg", IsAdmin: true})
	require.NoError(t, err)

	w := serve(authRouter(AuthConfig{JWTService: jwtSvc}), bearer(token.AccessToken))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"agent_id":7,"admin":true,"ctx_id":7,"ip":"198.51.100.4","claims":true}`, w.Body.String())
}

func TestAgentAuth_Rejections(t *testing.T) {
	jwtSvc := newJWT(time.Hour)
	r := authRouter(AuthConfig{JWTService: jwtSvc})

	t.Run("missing header", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUnauthorized, decodeError(t, w).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := serve(r, bearer("not-a-jwt"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenInvalid, decodeError(t, w).Code)
	})

	t.Run("expired", func(t *testing.T) {
		expired := newJWT(-time.Minute)
		token, err := expired.Issue(auth.AgentIdentity{AgentID: 7})
		require.NoError(t, err)
		w := serve(r, bearer(token.AccessToken))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenExpired, decodeError(t, w).Code)
	})

	t.Run("other secret", func(t *testing.T) {
		other := auth.NewJWTService(config.AuthConfig{JWTSecret: "another-secret-another-secret-0000", Issuer: "ledger-test", TokenExpiration: time.Hour})
		token, err := other.Issue(auth.AgentIdentity{AgentID: 7})
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, serve(r, bearer(token.AccessToken)).Code)
	})
}

func TestAgentAuth_Revocations(t *testing.T) {
	jwtSvc := newJWT(time.Hour)
	revocations := auth.NewMemoryRevocations()
	r := authRouter(AuthConfig{JWTService: jwtSvc, Revocations: revocations})
	ctx := context.Background()

	revoked, err := jwtSvc.Issue(auth.AgentIdentity{AgentID: 1})
	require.NoError(t, err)
	claims, err := jwtSvc.Validate(revoked.AccessToken)
	require.NoError(t, err)
	require.NoError(t, revocations.RevokeToken(ctx, claims.ID, time.Hour))
	assert.Equal(t, http.StatusUnauthorized, serve(r, bearer(revoked.AccessToken)).Code)

	stale, err := jwtSvc.Issue(auth.AgentIdentity{AgentID: 2})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(r, bearer(stale.AccessToken)).Code)
	require.NoError(t, revocations.RevokeAgent(ctx, 2, time.Hour))
	assert.Equal(t, http.StatusUnauthorized, serve(r, bearer(stale.AccessToken)).Code)
}

func TestRequireAdmin(t *testing.T) {
	jwtSvc := newJWT(time.Hour)
	r := authRouter(AuthConfig{JWTService: jwtSvc}, RequireAdmin())

	agent, err := jwtSvc.Issue(auth.AgentIdentity{AgentID: 3})
	require.NoError(t, err)
	w := serve(r, bearer(agent.AccessToken))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dto.ErrCodeForbidden, decodeError(t, w).Code)

	admin, err := jwtSvc.Issue(auth.AgentIdentity{AgentID: 4, IsAdmin: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(r, bearer(admin.AccessToken)).Code)
}

func TestRequireServiceKey(t *testing.T) {
	r := gin.New()
	r.POST("/token", RequireServiceKey("front-end-key"), func(c *gin.Context) {
		c.String(http.StatusOK, audit.ClientIP(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodPost, "/token", nil)
	req.Header.Set(ServiceKeyHeader, "front-end-key")
	req.RemoteAddr = "203.0.113.9:1234"
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "203.0.113.9", w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/token", nil)
	req.Header.Set(ServiceKeyHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	unset := gin.New()
	unset.POST("/token", RequireServiceKey(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, serve(unset, httptest.NewRequest(http.MethodPost, "/token", nil)).Code,
		"an empty configured key never matches")
}

func TestGetters_Unauthenticated(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Zero(t, GetAgentID(c))
	assert.False(t, IsAdmin(c))
	assert.Nil(t, GetClaims(c))
}
