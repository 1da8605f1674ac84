package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/application/bonus"
	"github.com/stickroom/ledger/internal/interfaces/http/dto"
	"github.com/stickroom/ledger/internal/interfaces/http/middleware"
)

// BonusHandler serves bonuses, payouts and the tier rules
type BonusHandler struct {
	BaseHandler
	engine *bonus.Engine
}

// NewBonusHandler creates a new BonusHandler
func NewBonusHandler(engine *bonus.Engine) *BonusHandler {
	return &BonusHandler{engine: engine}
}

// ListBonusesQuery holds the bonus list filters
type ListBonusesQuery struct {
	dto.ListRequest
	AgentID     int64 `form:"agent_id" binding:"omitempty,min=1"`
	UnpaidOnly  bool  `form:"unpaid"`
	IncludeVoid bool  `form:"include_void"`
}

// AgentQuery lets administrators look at another agent
type AgentQuery struct {
	AgentID int64 `form:"agent_id" binding:"omitempty,min=1"`
}

// RulesQuery filters the rule list
type RulesQuery struct {
	ActiveOnly bool `form:"active"`
}

// subject is the agent a read applies to: the caller, or for
// administrators the requested agent when one is given.
func subject(c *gin.Context, requested int64) int64 {
	if requested > 0 && middleware.IsAdmin(c) {
		return requested
	}
	return actorID(c)
}

// ListBonuses returns bonuses newest first.
// GET /bonuses
func (h *BonusHandler) ListBonuses(c *gin.Context) {
	var q ListBonusesQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.engine.ListBonuses(c.Request.Context(), bonus.BonusQuery{
		AgentID:     subject(c, q.AgentID),
		UnpaidOnly:  q.UnpaidOnly,
		IncludeVoid: q.IncludeVoid,
		Page:        q.Page,
		PageSize:    q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}

// ListUnpaid returns every live unpaid bonus.
// GET /bonuses/unpaid
func (h *BonusHandler) ListUnpaid(c *gin.Context) {
	var q AgentQuery
	if !h.bindQuery(c, &q) {
		return
	}
	items, err := h.engine.ListUnpaid(c.Request.Context(), subject(c, q.AgentID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// Summary totals accrued, paid and unpaid bonuses.
// GET /bonuses/summary
func (h *BonusHandler) Summary(c *gin.Context) {
	var q AgentQuery
	if !h.bindQuery(c, &q) {
		return
	}
	summary, err := h.engine.Summary(c.Request.Context(), subject(c, q.AgentID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// PayAll marks every unpaid bonus of an agent paid.
// POST /agents/:id/bonuses/pay (admin)
func (h *BonusHandler) PayAll(c *gin.Context) {
	agentID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	payout, err := h.engine.PayAll(c.Request.Context(), agentID, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payout)
}

// EvaluatePending accrues bonuses for sales whose evaluation never ran.
// POST /bonuses/evaluate-pending (admin)
func (h *BonusHandler) EvaluatePending(c *gin.Context) {
	result, err := h.engine.EvaluatePending(c.Request.Context(), actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListRules returns the tier rules.
// GET /bonus-rules
func (h *BonusHandler) ListRules(c *gin.Context) {
	var q RulesQuery
	if !h.bindQuery(c, &q) {
		return
	}
	rules, err := h.engine.ListRules(c.Request.Context(), q.ActiveOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rules)
}

// CreateRule adds a tier.
// POST /bonus-rules (admin)
func (h *BonusHandler) CreateRule(c *gin.Context) {
	var req bonus.RuleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rule, err := h.engine.CreateRule(c.Request.Context(), req, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, rule)
}

// UpdateRule changes a tier. Existing bonuses keep their snapshot.
// PUT /bonus-rules/:id (admin)
func (h *BonusHandler) UpdateRule(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req bonus.RuleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rule, err := h.engine.UpdateRule(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rule)
}

// DeactivateRule retires a tier; rules are never deleted.
// DELETE /bonus-rules/:id (admin)
func (h *BonusHandler) DeactivateRule(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	rule, err := h.engine.DeactivateRule(c.Request.Context(), id, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rule)
}

// ActivateRule puts a retired tier back in force.
// POST /bonus-rules/:id/activate (admin)
func (h *BonusHandler) ActivateRule(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	rule, err := h.engine.ActivateRule(c.Request.Context(), id, actorID(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rule)
}
