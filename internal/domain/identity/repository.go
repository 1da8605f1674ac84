package identity

import (
	"context"

	"github.com/stickroom/ledger/internal/domain/shared"
)

// AgentRepository defines the interface for agent persistence
type AgentRepository interface {
	// FindByID finds an agent by its ID
	FindByID(ctx context.Context, id int64) (*Agent, error)

	// FindByTelegramID finds an agent by external messaging id
	FindByTelegramID(ctx context.Context, telegramID int64) (*Agent, error)

	// FindAll lists agents; Filters["is_active"] narrows by status
	FindAll(ctx context.Context, filter shared.Filter) ([]Agent, error)

	// Count counts agents matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Save creates or updates an agent
	Save(ctx context.Context, agent *Agent) error
}
