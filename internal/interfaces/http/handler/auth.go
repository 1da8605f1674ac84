package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/application/identity"
	"github.com/stickroom/ledger/internal/infrastructure/auth"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"github.com/stickroom/ledger/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// AuthHandler exchanges the front-end's service key for agent tokens
type AuthHandler struct {
	BaseHandler
	agents      *identity.Service
	jwt         *auth.JWTService
	revocations auth.Revocations
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(agents *identity.Service, jwt *auth.JWTService, revocations auth.Revocations) *AuthHandler {
	return &AuthHandler{agents: agents, jwt: jwt, revocations: revocations}
}

// TokenResponse is an issued token plus the agent it identifies
type TokenResponse struct {
	*auth.Token
	Agent   identity.AgentResponse `json:"agent"`
	Created bool                   `json:"created"`
}

// IssueToken registers the agent on first contact and signs a token for it.
// POST /auth/token (service key)
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req identity.GetOrCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	agent, created, err := h.agents.GetOrCreate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	token, err := h.jwt.Issue(auth.AgentIdentity{
		AgentID:    agent.ID,
		TelegramID: agent.TelegramID,
		Username:   agent.Username,
		IsAdmin:    agent.IsAdmin,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, TokenResponse{Token: token, Agent: *agent, Created: created})
}

// Logout revokes the presented token for the rest of its lifetime.
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		h.NoContent(c)
		return
	}
	if err := h.revocations.RevokeToken(c.Request.Context(), claims.ID, claims.RemainingTTL()); err != nil {
		h.HandleError(c, err)
		return
	}
	logger.Enrich(c.Request.Context(), logger.GetGinLogger(c)).Info("token revoked", zap.String("jti", claims.ID))
	h.NoContent(c)
}
