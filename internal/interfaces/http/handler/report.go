package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/application/audit"
	"github.com/stickroom/ledger/internal/application/report"
	"github.com/stickroom/ledger/internal/application/stock"
	"github.com/stickroom/ledger/internal/interfaces/http/dto"
)

// ReportHandler serves sales reports, stock checks and the action log
type ReportHandler struct {
	BaseHandler
	reports *report.Service
	stock   *stock.Service
	audit   *audit.Service
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports *report.Service, stockService *stock.Service, auditService *audit.Service) *ReportHandler {
	return &ReportHandler{reports: reports, stock: stockService, audit: auditService}
}

// SalesReportQuery selects the period and scope of a sales report
type SalesReportQuery struct {
	dto.PeriodRequest
	AgentID   int64  `form:"agent_id" binding:"omitempty,min=1"`
	Warehouse string `form:"warehouse"`
	TopN      int    `form:"top" binding:"omitempty,min=1,max=100"`
}

// ActionLogsQuery holds the action log filters
type ActionLogsQuery struct {
	dto.ListRequest
	dto.PeriodRequest
	AgentID    int64  `form:"agent_id" binding:"omitempty,min=1"`
	EntityType string `form:"entity_type"`
	EntityID   int64  `form:"entity_id" binding:"omitempty,min=1"`
	ActionType string `form:"action_type"`
}

func (q SalesReportQuery) toQuery(c *gin.Context) report.SalesQuery {
	return report.SalesQuery{
		From:      q.From,
		To:        endOfDay(q.To),
		AgentID:   subject(c, q.AgentID),
		Warehouse: q.Warehouse,
		TopN:      q.TopN,
	}
}

// endOfDay turns an inclusive calendar "to" date into the exclusive bound
// of the half-open period.
func endOfDay(to time.Time) time.Time {
	if to.IsZero() {
		return to
	}
	return to.AddDate(0, 0, 1)
}

// SalesReport returns totals, per-agent breakdown and top products.
// GET /reports/sales
func (h *ReportHandler) SalesReport(c *gin.Context) {
	var q SalesReportQuery
	if !h.bindQuery(c, &q) {
		return
	}
	result, err := h.reports.SalesReport(c.Request.Context(), q.toQuery(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// DailySales returns the per-day series of a period.
// GET /reports/sales/daily
func (h *ReportHandler) DailySales(c *gin.Context) {
	var q SalesReportQuery
	if !h.bindQuery(c, &q) {
		return
	}
	series, err := h.reports.DailySales(c.Request.Context(), q.toQuery(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, series)
}

// PriceSeries returns a product's retail price over time.
// GET /reports/prices/:id
func (h *ReportHandler) PriceSeries(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	points, err := h.reports.PriceSeries(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, points)
}

// StockConsistency compares every counter with its movement log.
// GET /reports/stock-consistency (admin)
func (h *ReportHandler) StockConsistency(c *gin.Context) {
	result, err := h.stock.VerifyConsistency(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ActionLogs lists audited actions newest first.
// GET /action-logs (admin)
func (h *ReportHandler) ActionLogs(c *gin.Context) {
	var q ActionLogsQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := h.audit.ActionLogs(c.Request.Context(), audit.ActionLogQuery{
		AgentID:    q.AgentID,
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		ActionType: q.ActionType,
		From:       q.From,
		To:         endOfDay(q.To),
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, page)
}
