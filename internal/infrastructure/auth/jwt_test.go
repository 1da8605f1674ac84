package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stickroom/ledger/internal/infrastructure/auth"
	"github.com/stickroom/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService(ttl time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.AuthConfig{
		JWTSecret:       "test-secret-key-that-is-at-least-32-chars",
		Issuer:          "ledger-test",
		TokenExpiration: ttl,
	})
}

func TestJWTService_IssueAndValidate(t *testing.T) {
	svc := newTestJWTService(time.Hour)

	token, err := svc.Issue(auth.AgentIdentity{AgentID: 3, TelegramID: 555, Username: "seller", IsAdmin: true})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)

	claims, err := svc.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(3), claims.AgentID)
	assert.Equal(t, int64(555), claims.TelegramID)
	assert.Equal(t, "seller", claims.Username)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "3", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.Greater(t, claims.RemainingTTL(), 59*time.Minute)
	assert.False(t, claims.IssuedAtTime().IsZero())
}

func TestJWTService_IssueRequiresAgent(t *testing.T) {
	_, err := newTestJWTService(time.Hour).Issue(auth.AgentIdentity{})
	assert.ErrorIs(t, err, auth.ErrMissingAgentID)
}

func TestJWTService_ValidateErrors(t *testing.T) {
	svc := newTestJWTService(time.Hour)

	t.Run("expired", func(t *testing.T) {
		token, err := newTestJWTService(-time.Minute).Issue(auth.AgentIdentity{AgentID: 1})
		require.NoError(t, err)
		_, err = svc.Validate(token.AccessToken)
		assert.ErrorIs(t, err, auth.ErrExpiredToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("not-a-token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("different secret", func(t *testing.T) {
		other := auth.NewJWTService(config.AuthConfig{JWTSecret: "another-secret-key-of-sufficient-size", Issuer: "ledger-test", TokenExpiration: time.Hour})
		token, err := other.Issue(auth.AgentIdentity{AgentID: 1})
		require.NoError(t, err)
		_, err = svc.Validate(token.AccessToken)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("different issuer", func(t *testing.T) {
		other := auth.NewJWTService(config.AuthConfig{JWTSecret: "test-secret-key-that-is-at-least-32-chars", Issuer: "someone-else", TokenExpiration: time.Hour})
		token, err := other.Issue(auth.AgentIdentity{AgentID: 1})
		require.NoError(t, err)
		_, err = svc.Validate(token.AccessToken)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("missing agent id", func(t *testing.T) {
		claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "ledger-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key-that-is-at-least-32-chars"))
		require.NoError(t, err)
		_, err = svc.Validate(signed)
		assert.ErrorIs(t, err, auth.ErrMissingAgentID)
	})
}
