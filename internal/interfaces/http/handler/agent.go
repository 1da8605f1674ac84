package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/application/identity"
	"github.com/stickroom/ledger/internal/infrastructure/auth"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"github.com/stickroom/ledger/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// AgentHandler serves the agent registry
type AgentHandler struct {
	BaseHandler
	agents      *identity.Service
	revocations auth.Revocations
	jwt         *auth.JWTService
}

// NewAgentHandler creates a new AgentHandler
func NewAgentHandler(agents *identity.Service, revocations auth.Revocations, jwt *auth.JWTService) *AgentHandler {
	return &AgentHandler{agents: agents, revocations: revocations, jwt: jwt}
}

// ListAgentsQuery holds the agent list filters
type ListAgentsQuery struct {
	dto.ListRequest
	Active *bool `form:"active"`
	Admin  *bool `form:"admin"`
}

// FlagRequest toggles an agent flag
type FlagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

// Me returns the authenticated agent.
// GET /agents/me
func (h *AgentHandler) Me(c *gin.Context) {
	agent, err := h.agents.Get(c.Request.Context(), actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, agent)
}

// List returns agents.
// GET /agents (admin)
func (h *AgentHandler) List(c *gin.Context) {
	var q ListAgentsQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.agents.List(c.Request.Context(), identity.ListAgentsRequest{
		Active:   q.Active,
		Admin:    q.Admin,
		Search:   q.Search,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}

// SetAdmin grants or revokes administrator rights.
// PUT /agents/:id/admin (admin)
func (h *AgentHandler) SetAdmin(c *gin.Context) {
	h.setFlag(c, func(ctx context.Context, agentID int64, value bool) (*identity.AgentResponse, error) {
		return h.agents.SetAdmin(ctx, agentID, value, actorID(c))
	})
}

// SetActive activates or deactivates an agent.
// PUT /agents/:id/active (admin)
func (h *AgentHandler) SetActive(c *gin.Context) {
	h.setFlag(c, func(ctx context.Context, agentID int64, value bool) (*identity.AgentResponse, error) {
		return h.agents.SetActive(ctx, agentID, value, actorID(c))
	})
}

// setFlag applies a flag change. Turning a flag off revokes the agent's
// outstanding tokens so the old claims stop working at once.
func (h *AgentHandler) setFlag(c *gin.Context, apply func(context.Context, int64, bool) (*identity.AgentResponse, error)) {
	agentID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req FlagRequest
	if !h.bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	agent, err := apply(ctx, agentID, *req.Value)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !*req.Value {
		if err := h.revocations.RevokeAgent(ctx, agentID, h.jwt.Expiration()); err != nil {
			logger.Enrich(ctx, logger.GetGinLogger(c)).Warn("token revocation failed",
				zap.Int64("agent_id", agentID), zap.Error(err))
		}
	}
	h.Success(c, agent)
}
