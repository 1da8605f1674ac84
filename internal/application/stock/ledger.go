// Package stock moves product quantities and keeps the movement log in step with them.
package stock

import (
	"context"
	"fmt"

	"github.com/stickroom/ledger/internal/application/uow"
	"github.com/stickroom/ledger/internal/domain/stock"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Movement describes one quantity change of a product
type Movement struct {
	ProductID     int64
	Quantity      int
	Warehouse     string
	ReferenceType stock.ReferenceType
	ReferenceID   int64
	AgentID       int64
}

// Result is a committed-to-be movement and the balance after it
type Result struct {
	Log     *stock.Log
	Balance int
}

// Event returns the StockMoved event to publish once the unit of work commits
func (r Result) Event() *stock.MovedEvent {
	return stock.NewMovedEvent(r.Log, r.Balance)
}

// Ledger applies stock movements inside the caller's unit of work.
// Every movement locks the product row, changes the counter and appends one log row,
// so the counter always equals the sum of logged deltas.
type Ledger struct {
	logger *zap.Logger
}

// NewLedger creates a new Ledger
func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{logger: logger}
}

// Credit adds received stock
func (l *Ledger) Credit(ctx context.Context, repos uow.Repositories, m Movement) (Result, error) {
	return l.apply(ctx, repos, stock.OperationIn, m)
}

// Debit removes sold stock. Fails with ErrInsufficientStock leaving nothing written.
func (l *Ledger) Debit(ctx context.Context, repos uow.Repositories, m Movement) (Result, error) {
	return l.apply(ctx, repos, stock.OperationOut, m)
}

// Reverse puts returned stock back
func (l *Ledger) Reverse(ctx context.Context, repos uow.Repositories, m Movement) (Result, error) {
	return l.apply(ctx, repos, stock.OperationReturn, m)
}

func (l *Ledger) apply(ctx context.Context, repos uow.Repositories, op stock.OperationType, m Movement) (Result, error) {
	entry, err := stock.NewLog(m.ProductID, op, m.Quantity, m.Warehouse, m.ReferenceType, m.ReferenceID)
	if err != nil {
		return Result{}, err
	}
	entry.WithAgent(m.AgentID)

	if _, err := repos.Products().FindByIDForUpdate(ctx, m.ProductID); err != nil {
		return Result{}, err
	}
	balance, err := repos.Products().AdjustQuantity(ctx, m.ProductID, entry.Delta())
	if err != nil {
		logger.Enrich(ctx, l.logger).Debug("stock movement rejected",
			zap.Int64("product_id", m.ProductID),
			zap.String("operation", op.String()),
			zap.Int("quantity", m.Quantity),
			zap.Int("balance", balance),
			zap.Error(err),
		)
		return Result{}, err
	}
	if err := repos.StockLogs().Create(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("append stock log: %w", err)
	}
	return Result{Log: entry, Balance: balance}, nil
}
