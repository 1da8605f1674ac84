package audit

import (
	"context"

	"github.com/stickroom/ledger/internal/domain/shared"
)

// PriceHistoryRepository is the append-only store of retail price changes
type PriceHistoryRepository interface {
	// Create appends a price change
	Create(ctx context.Context, entry *PriceHistory) error

	// FindByProduct lists price changes of a product, oldest first
	FindByProduct(ctx context.Context, productID int64) ([]PriceHistory, error)
}

// ActionLogFilter narrows action log listings
type ActionLogFilter struct {
	shared.Filter
	AgentID    int64
	EntityType string
	EntityID   int64
	ActionType ActionType
	Period     shared.DateRange
}

// ActionLogRepository is the append-only store of agent actions
type ActionLogRepository interface {
	// Create appends an action
	Create(ctx context.Context, entry *ActionLog) error

	// FindAll lists actions newest first
	FindAll(ctx context.Context, filter ActionLogFilter) ([]ActionLog, error)

	// Count counts actions matching the filter
	Count(ctx context.Context, filter ActionLogFilter) (int64, error)
}
