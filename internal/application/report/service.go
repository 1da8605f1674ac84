// Package report serves sales reports and price series built from the ledger tables.
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/application/uow"
	"github.com/stickroom/ledger/internal/domain/report"
	"github.com/stickroom/ledger/internal/domain/sales"
	"github.com/stickroom/ledger/internal/domain/shared"
)

// SalesQuery narrows a sales report. Zero bounds are open.
type SalesQuery struct {
	From      time.Time
	To        time.Time
	AgentID   int64
	Warehouse string
	TopN      int
}

// SalesReportResponse is a summary plus the top products of the period
type SalesReportResponse struct {
	report.SalesSummary
	MarginShare decimal.Decimal              `json:"margin_share"`
	TopProducts []report.ProductSalesRanking `json:"top_products"`
}

// Service builds reports
type Service struct {
	repos    uow.Repositories
	location *time.Location
}

// NewService creates a new report Service. Days are bucketed in loc (UTC when nil).
func NewService(repos uow.Repositories, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repos: repos, location: loc}
}

// SalesReport aggregates the sales of a period; returns are excluded from totals
func (s *Service) SalesReport(ctx context.Context, q SalesQuery) (*SalesReportResponse, error) {
	rows, err := s.load(ctx, q)
	if err != nil {
		return nil, err
	}
	summary := report.Summarize(rows, q.From, q.To)
	for i := range summary.Agents {
		if agent, err := s.repos.Agents().FindByID(ctx, summary.Agents[i].AgentID); err == nil {
			summary.Agents[i].Username = agent.Username
		}
	}
	topN := q.TopN
	if topN <= 0 {
		topN = 10
	}
	return &SalesReportResponse{
		SalesSummary: summary,
		MarginShare:  report.MarginShare(summary.Margin, summary.Revenue),
		TopProducts:  report.RankProducts(rows, topN),
	}, nil
}

// DailySales returns the per-day revenue, margin and units series of a period
func (s *Service) DailySales(ctx context.Context, q SalesQuery) ([]report.DailySalesTrend, error) {
	rows, err := s.load(ctx, q)
	if err != nil {
		return nil, err
	}
	return report.DailyTrend(rows, s.location), nil
}

// PriceSeries returns a product's retail price over time, oldest first
func (s *Service) PriceSeries(ctx context.Context, productID int64) ([]report.PricePoint, error) {
	if _, err := s.repos.Products().FindByID(ctx, productID); err != nil {
		return nil, err
	}
	history, err := s.repos.PriceHistory().FindByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	points := make([]report.PricePoint, len(history))
	for i, h := range history {
		points[i] = report.PricePoint{At: h.ChangedAt, Price: h.NewPrice}
	}
	return points, nil
}

func (s *Service) load(ctx context.Context, q SalesQuery) ([]sales.Sale, error) {
	if !q.From.IsZero() && !q.To.IsZero() && !q.From.Before(q.To) {
		return nil, shared.NewValidationError("Report start must be before its end")
	}
	return s.repos.Sales().FindAll(ctx, sales.SaleFilter{
		Filter:         shared.Filter{OrderBy: "sale_date", OrderDir: "asc"},
		AgentID:        q.AgentID,
		Warehouse:      q.Warehouse,
		Period:         shared.DateRange{From: q.From, To: q.To},
		IncludeReturns: true,
	})
}
