package audit

import (
	"context"

	"github.com/stickroom/ledger/internal/application/uow"
	"github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/shared"
)

// Service answers read-only audit trail queries
type Service struct {
	repos uow.Repositories
}

// NewService creates a new audit Service
func NewService(repos uow.Repositories) *Service {
	return &Service{repos: repos}
}

// PriceHistory lists retail price changes of a product, oldest first
func (s *Service) PriceHistory(ctx context.Context, productID int64) ([]PriceHistoryResponse, error) {
	if _, err := s.repos.Products().FindByID(ctx, productID); err != nil {
		return nil, err
	}
	entries, err := s.repos.PriceHistory().FindByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := make([]PriceHistoryResponse, len(entries))
	for i := range entries {
		out[i] = ToPriceHistoryResponse(&entries[i])
	}
	return out, nil
}

// StockLogs lists stock movements of a product, newest first
func (s *Service) StockLogs(ctx context.Context, productID int64, page, pageSize int) (shared.Paginated[StockLogResponse], error) {
	if _, err := s.repos.Products().FindByID(ctx, productID); err != nil {
		return shared.Paginated[StockLogResponse]{}, err
	}
	filter := pageFilter(page, pageSize)
	logs, err := s.repos.StockLogs().FindByProduct(ctx, productID, filter)
	if err != nil {
		return shared.Paginated[StockLogResponse]{}, err
	}
	total, err := s.repos.StockLogs().CountByProduct(ctx, productID)
	if err != nil {
		return shared.Paginated[StockLogResponse]{}, err
	}
	items := make([]StockLogResponse, len(logs))
	for i := range logs {
		items[i] = ToStockLogResponse(&logs[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// ActionLogs lists audited actions newest first
func (s *Service) ActionLogs(ctx context.Context, q ActionLogQuery) (shared.Paginated[ActionLogResponse], error) {
	filter := audit.ActionLogFilter{
		Filter:     pageFilter(q.Page, q.PageSize),
		AgentID:    q.AgentID,
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		ActionType: audit.ActionType(q.ActionType),
		Period:     shared.DateRange{From: q.From, To: q.To},
	}
	logs, err := s.repos.ActionLogs().FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[ActionLogResponse]{}, err
	}
	total, err := s.repos.ActionLogs().Count(ctx, filter)
	if err != nil {
		return shared.Paginated[ActionLogResponse]{}, err
	}
	items := make([]ActionLogResponse, len(logs))
	for i := range logs {
		items[i] = ToActionLogResponse(&logs[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

func pageFilter(page, pageSize int) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 && pageSize <= 100 {
		f.PageSize = pageSize
	}
	return f
}
