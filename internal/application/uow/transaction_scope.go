// Package uow defines the unit of work shared by the ledger's application services.
package uow

import (
	"context"

	"github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/bonus"
	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/identity"
	"github.com/stickroom/ledger/internal/domain/sales"
	"github.com/stickroom/ledger/internal/domain/stock"
)

// TransactionScope provides transactional access to the ledger repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	// Transient conflicts may cause fn to be invoked more than once, so fn must not
	// keep side effects outside the transaction.
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories provides access to all ledger repositories within a transaction.
// All repositories returned share the same underlying database transaction.
//
// Aggregate boundary notes:
//   - Products: the quantity counter is only changed through AdjustQuantity, and only
//     by the stock ledger, which appends the matching StockLogs row.
//   - StockLogs, PriceHistory, ActionLogs: append-only.
type Repositories interface {
	Agents() identity.AgentRepository
	Batches() catalog.BatchRepository
	Products() catalog.ProductRepository
	Sales() sales.SaleRepository
	BonusRules() bonus.RuleRepository
	Bonuses() bonus.BonusRepository
	PriceHistory() audit.PriceHistoryRepository
	StockLogs() stock.LogRepository
	ActionLogs() audit.ActionLogRepository
}
