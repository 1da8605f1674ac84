package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/application/audit"
	"github.com/stickroom/ledger/internal/infrastructure/auth"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"github.com/stickroom/ledger/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey     = "jwt_claims"
	JWTAgentIDKey    = "jwt_agent_id"
	JWTIsAdminKey    = "jwt_is_admin"
	AuthHeaderKey    = "Authorization"
	BearerPrefix     = "Bearer "
	ServiceKeyHeader = "X-Service-Key"
)

// AuthConfig configures AgentAuth
type AuthConfig struct {
	JWTService *auth.JWTService
	// Revocations is optional; lookup failures are logged and let the request through.
	Revocations auth.Revocations
	Logger      *zap.Logger
}

// AgentAuth validates the bearer token, rejects revoked tokens and tokens
// issued before the agent was invalidated, then stores the agent on the
// gin context, the request logger and the audit client address.
func AgentAuth(cfg AuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) || strings.TrimPrefix(header, BearerPrefix) == "" {
			abort(c, dto.ErrCodeUnauthorized, "Missing or malformed authorization header")
			return
		}

		claims, err := cfg.JWTService.Validate(strings.TrimPrefix(header, BearerPrefix))
		if err != nil {
			log.Debug("token rejected", zap.Error(err), zap.String("path", c.Request.URL.Path))
			abortAuth(c, err)
			return
		}

		if cfg.Revocations != nil {
			revoked, err := cfg.Revocations.Revoked(c.Request.Context(), claims)
			if err != nil {
				log.Error("revocation lookup failed",
					zap.String("jti", claims.ID), zap.Int64("agent_id", claims.AgentID), zap.Error(err))
			} else if revoked {
				abortAuth(c, auth.ErrTokenRevoked)
				return
			}
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTAgentIDKey, claims.AgentID)
		c.Set(JWTIsAdminKey, claims.IsAdmin)

		ctx := c.Request.Context()
		ctx, _ = logger.WithAgentID(ctx, logger.FromContext(ctx), claims.AgentID)
		ctx = audit.WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func abortAuth(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		abort(c, dto.ErrCodeTokenExpired, "Token has expired")
	case errors.Is(err, auth.ErrTokenRevoked):
		abort(c, dto.ErrCodeTokenInvalid, "Token has been revoked")
	case errors.Is(err, auth.ErrTokenNotYetValid):
		abort(c, dto.ErrCodeTokenInvalid, "Token is not yet valid")
	default:
		abort(c, dto.ErrCodeTokenInvalid, "Invalid token")
	}
}

// RequireAdmin rejects agents whose token does not carry the admin flag.
// Services re-check the flag against the agent row.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			abort(c, dto.ErrCodeForbidden, "Administrator rights required")
			return
		}
		c.Next()
	}
}

// RequireServiceKey guards the token exchange used by the chat front-ends
func RequireServiceKey(key string) gin.HandlerFunc {
	expected := []byte(key)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(ServiceKeyHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			abort(c, dto.ErrCodeUnauthorized, "Invalid service key")
			return
		}
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

// GetClaims returns the validated token claims, or nil
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(JWTClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetAgentID returns the authenticated agent id, or 0
func GetAgentID(c *gin.Context) int64 {
	if v, ok := c.Get(JWTAgentIDKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// IsAdmin reports whether the token carries the admin flag
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(JWTIsAdminKey)
}
