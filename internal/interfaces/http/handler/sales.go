package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/application/sales"
	"github.com/stickroom/ledger/internal/interfaces/http/dto"
	"github.com/stickroom/ledger/internal/interfaces/http/middleware"
)

// SalesHandler serves the sales ledger
type SalesHandler struct {
	BaseHandler
	sales *sales.Service
}

// NewSalesHandler creates a new SalesHandler
func NewSalesHandler(salesService *sales.Service) *SalesHandler {
	return &SalesHandler{sales: salesService}
}

// ListSalesQuery holds the sale list filters. Agents see only their own
// sales; administrators may filter by agent_id.
type ListSalesQuery struct {
	dto.ListRequest
	dto.PeriodRequest
	AgentID        int64  `form:"agent_id" binding:"omitempty,min=1"`
	ProductID      int64  `form:"product_id" binding:"omitempty,min=1"`
	Warehouse      string `form:"warehouse"`
	IncludeReturns bool   `form:"include_returns"`
}

// HistoryQuery selects the look-back window of the agent history
type HistoryQuery struct {
	Days int `form:"days" binding:"omitempty,min=1,max=365"`
}

// RecordSale debits stock, records the sale and accrues the bonus.
// POST /sales
func (h *SalesHandler) RecordSale(c *gin.Context) {
	var req sales.RecordSaleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.AgentID = actorID(c)
	receipt, err := h.sales.RecordSale(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, receipt)
}

// ReturnSale restores stock and voids the bonus of a sale.
// POST /sales/:id/return
func (h *SalesHandler) ReturnSale(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req sales.ReturnSaleRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	req.ActorID = actorID(c)
	receipt, err := h.sales.ReturnSale(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receipt)
}

// ListSales returns sales newest first.
// GET /sales
func (h *SalesHandler) ListSales(c *gin.Context) {
	var q ListSalesQuery
	if !h.bindQuery(c, &q) {
		return
	}
	agentID := q.AgentID
	if !middleware.IsAdmin(c) {
		agentID = actorID(c)
	}
	page, err := h.sales.ListSales(c.Request.Context(), sales.SaleQuery{
		AgentID:        agentID,
		ProductID:      q.ProductID,
		Warehouse:      q.Warehouse,
		From:           q.From,
		To:             q.To,
		IncludeReturns: q.IncludeReturns,
		Page:           q.Page,
		PageSize:       q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}

// History returns the caller's recent sales, returns included.
// GET /sales/history
func (h *SalesHandler) History(c *gin.Context) {
	var q HistoryQuery
	if !h.bindQuery(c, &q) {
		return
	}
	items, err := h.sales.AgentHistory(c.Request.Context(), actorID(c), q.Days)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// GetSale returns a sale. Agents may only read their own sales.
// GET /sales/:id
func (h *SalesHandler) GetSale(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	sale, err := h.sales.GetSale(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if sale.AgentID != actorID(c) && !middleware.IsAdmin(c) {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeForbidden), dto.ErrCodeForbidden, "Sale belongs to another agent")
		return
	}
	h.Success(c, sale)
}
