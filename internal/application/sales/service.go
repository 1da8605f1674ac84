// Package sales records sales and returns against the stock ledger.
package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/application/audit"
	appbonus "github.com/stickroom/ledger/internal/application/bonus"
	"github.com/stickroom/ledger/internal/application/stock"
	"github.com/stickroom/ledger/internal/application/uow"
	domainaudit "github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/bonus"
	"github.com/stickroom/ledger/internal/domain/identity"
	"github.com/stickroom/ledger/internal/domain/sales"
	"github.com/stickroom/ledger/internal/domain/shared"
	domainstock "github.com/stickroom/ledger/internal/domain/stock"
	"github.com/stickroom/ledger/internal/infrastructure/lock"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"github.com/stickroom/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ProductLocker serialises sales of one product across processes.
// The returned func releases the lock.
type ProductLocker interface {
	LockProduct(ctx context.Context, productID int64) (func(), error)
}

var _ ProductLocker = lock.NopLocker{}

// BonusEngine evaluates and voids bonuses on behalf of the sales ledger
type BonusEngine interface {
	Evaluate(ctx context.Context, saleID int64) (*appbonus.BonusResponse, error)
	VoidOnReturn(ctx context.Context, repos uow.Repositories, sale *sales.Sale, actorID int64) (*bonus.Bonus, error)
	PublishEvents(ctx context.Context, b *bonus.Bonus)
}

// Service records sales and returns
type Service struct {
	tx          uow.TransactionScope
	repos       uow.Repositories
	ledger      *stock.Ledger
	bonuses     BonusEngine
	locker      ProductLocker
	publisher   shared.EventPublisher
	logger      *zap.Logger
	historyDays int
	now         func() time.Time
}

// Option configures the Service
type Option func(*Service)

// WithProductLocker sets the cross-process product lock
func WithProductLocker(l ProductLocker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithHistoryDays sets the default window of AgentHistory
func WithHistoryDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.historyDays = days
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new sales Service
func NewService(
	tx uow.TransactionScope,
	repos uow.Repositories,
	ledger *stock.Ledger,
	bonuses BonusEngine,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if publisher == nil {
		publisher = shared.NopEventPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		tx:          tx,
		repos:       repos,
		ledger:      ledger,
		bonuses:     bonuses,
		locker:      lock.NopLocker{},
		publisher:   publisher,
		logger:      logger,
		historyDays: 30,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordSale debits stock and inserts the sale in one transaction, then evaluates
// the bonus in a separate one. Insufficient stock leaves no sale row.
func (s *Service) RecordSale(ctx context.Context, req RecordSaleRequest) (*SaleReceipt, error) {
	ctx, op := telemetry.Trace(ctx, "sales", "record",
		telemetry.AttrProductID.Int64(req.ProductID),
		telemetry.AttrAgentID.Int64(req.AgentID),
		telemetry.AttrQuantity.Int(req.Quantity),
	)
	receipt, err := s.recordSale(ctx, req)
	if err != nil {
		op.End(err)
		return nil, err
	}
	op.Set(telemetry.AttrSaleID.Int64(receipt.Sale.ID), telemetry.Money(telemetry.AttrAmount, receipt.Sale.Amount))
	if receipt.BonusError != "" {
		op.Note("bonus_not_attributed", telemetry.AttrErrorCode.String(receipt.BonusError))
	}
	op.End(nil)
	return receipt, nil
}

func (s *Service) recordSale(ctx context.Context, req RecordSaleRequest) (*SaleReceipt, error) {
	if req.Quantity < 1 {
		return nil, shared.NewValidationError("Quantity must be at least 1")
	}
	if req.SalePrice.IsNegative() {
		return nil, shared.NewValidationError("Sale price cannot be negative")
	}

	unlock, err := s.locker.LockProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var (
		sale  *sales.Sale
		moved stock.Result
	)
	err = s.tx.Execute(ctx, func(repos uow.Repositories) error {
		if _, err := identity.LoadActor(ctx, repos.Agents(), req.AgentID, false); err != nil {
			return err
		}
		product, err := repos.Products().FindByIDForUpdate(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if !product.CanDebit(req.Quantity) {
			return insufficient(product.Quantity, req.Quantity)
		}
		warehouse := req.Warehouse
		if warehouse == "" {
			batch, err := repos.Batches().FindByID(ctx, product.BatchID)
			if err != nil {
				return err
			}
			warehouse = batch.Warehouse
		}

		sale, err = sales.NewSale(product.ID, req.AgentID, req.Quantity, req.SalePrice, product.CostPrice, warehouse, s.now())
		if err != nil {
			return err
		}
		if err := repos.Sales().Create(ctx, sale); err != nil {
			return err
		}
		moved, err = s.ledger.Debit(ctx, repos, stock.Movement{
			ProductID:     product.ID,
			Quantity:      sale.Quantity,
			Warehouse:     sale.Warehouse,
			ReferenceType: domainstock.ReferenceSale,
			ReferenceID:   sale.ID,
			AgentID:       req.AgentID,
		})
		if err != nil {
			return err
		}
		return audit.Append(ctx, repos.ActionLogs(), req.AgentID, domainaudit.ActionSaleCreated, domainaudit.EntitySale, sale.ID,
			domainaudit.Details{
				"product_id": product.ID,
				"ean":        product.EAN,
				"quantity":   sale.Quantity,
				"sale_price": sale.SalePrice.String(),
				"amount":     sale.Amount().String(),
				"margin":     sale.Margin.String(),
				"warehouse":  sale.Warehouse,
			})
	})
	if err != nil {
		return nil, err
	}

	sale.RecordCreated()
	s.publish(ctx, append(sale.GetDomainEvents(), moved.Event())...)
	sale.ClearDomainEvents()

	log := logger.Enrich(ctx, s.logger)
	log.Info("sale recorded",
		zap.Int64("sale_id", sale.ID),
		zap.Int64("product_id", sale.ProductID),
		zap.Int("quantity", sale.Quantity),
		zap.String("amount", sale.Amount().String()),
		zap.Int("stock_balance", moved.Balance),
	)

	receipt := &SaleReceipt{Sale: ToSaleResponse(sale), StockBalance: moved.Balance}
	if s.bonuses == nil {
		return receipt, nil
	}
	b, err := s.bonuses.Evaluate(ctx, sale.ID)
	if err != nil {
		var de *shared.DomainError
		if errors.As(err, &de) {
			receipt.BonusError, receipt.BonusErrorMsg = de.Code, de.Message
		} else {
			receipt.BonusError, receipt.BonusErrorMsg = "INTERNAL_ERROR", "Bonus evaluation failed; it will be retried"
		}
		log.Warn("bonus not attributed", zap.Int64("sale_id", sale.ID), zap.Error(err))
		return receipt, nil
	}
	receipt.Bonus = b
	return receipt, nil
}

// ReturnSale flags a sale returned, voids its bonus and puts the stock back in one
// transaction. A paid bonus blocks the return: nothing is written except a
// return_blocked_paid_bonus log committed separately for manual reconciliation.
func (s *Service) ReturnSale(ctx context.Context, saleID int64, req ReturnSaleRequest) (*ReturnReceipt, error) {
	ctx, op := telemetry.Trace(ctx, "sales", "return",
		telemetry.AttrSaleID.Int64(saleID),
		telemetry.AttrAgentID.Int64(req.ActorID),
	)
	receipt, err := s.returnSale(ctx, saleID, req)
	op.End(err)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *Service) returnSale(ctx context.Context, saleID int64, req ReturnSaleRequest) (*ReturnReceipt, error) {
	var (
		sale   *sales.Sale
		voided *bonus.Bonus
		moved  stock.Result
	)
	err := s.tx.Execute(ctx, func(repos uow.Repositories) error {
		voided = nil
		actor, err := identity.LoadActor(ctx, repos.Agents(), req.ActorID, false)
		if err != nil {
			return err
		}
		sale, err = repos.Sales().FindByIDForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.AgentID != actor.ID && !actor.IsAdmin {
			return shared.NewDomainError(shared.CodeForbidden, "Only the selling agent or an administrator can return a sale")
		}
		if err := sale.MarkReturned(req.Reason, s.now()); err != nil {
			return err
		}
		if s.bonuses != nil {
			voided, err = s.bonuses.VoidOnReturn(ctx, repos, sale, actor.ID)
			if err != nil {
				return err
			}
		}
		if err := repos.Sales().SaveReturn(ctx, sale); err != nil {
			return err
		}
		moved, err = s.ledger.Reverse(ctx, repos, stock.Movement{
			ProductID:     sale.ProductID,
			Quantity:      sale.Quantity,
			Warehouse:     sale.Warehouse,
			ReferenceType: domainstock.ReferenceSale,
			ReferenceID:   sale.ID,
			AgentID:       actor.ID,
		})
		if err != nil {
			return err
		}
		details := domainaudit.Details{
			"product_id": sale.ProductID,
			"quantity":   sale.Quantity,
			"amount":     sale.Amount().String(),
			"reason":     sale.ReturnReason,
		}
		if voided != nil {
			details["voided_bonus_id"] = voided.ID
		}
		return audit.Append(ctx, repos.ActionLogs(), actor.ID, domainaudit.ActionSaleReturned, domainaudit.EntitySale, sale.ID, details)
	})
	if errors.Is(err, shared.ErrCannotVoidPaidBonus) {
		s.recordBlockedReturn(ctx, saleID, req)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	events := append(sale.GetDomainEvents(), moved.Event())
	sale.ClearDomainEvents()
	s.publish(ctx, events...)
	if voided != nil {
		s.bonuses.PublishEvents(ctx, voided)
	}
	logger.Enrich(ctx, s.logger).Info("sale returned",
		zap.Int64("sale_id", sale.ID), zap.Int("stock_balance", moved.Balance), zap.Bool("bonus_voided", voided != nil))

	receipt := &ReturnReceipt{Sale: ToSaleResponse(sale), StockBalance: moved.Balance}
	if voided != nil {
		vb := appbonus.ToBonusResponse(voided)
		receipt.VoidedBonus = &vb
	}
	return receipt, nil
}

func (s *Service) recordBlockedReturn(ctx context.Context, saleID int64, req ReturnSaleRequest) {
	log := logger.Enrich(ctx, s.logger)
	err := s.tx.Execute(ctx, func(repos uow.Repositories) error {
		details := domainaudit.Details{"reason": req.Reason}
		if b, err := findBonusForSale(ctx, repos, saleID); err == nil {
			details["bonus_id"] = b.ID
			details["agent_id"] = b.AgentID
			details["amount"] = b.Amount.String()
		}
		return audit.Append(ctx, repos.ActionLogs(), req.ActorID, domainaudit.ActionReturnBlockedPaidBonus, domainaudit.EntitySale, saleID, details)
	})
	if err != nil {
		log.Error("failed to record blocked return", zap.Int64("sale_id", saleID), zap.Error(err))
		return
	}
	log.Warn("return blocked by paid bonus, manual reconciliation required", zap.Int64("sale_id", saleID))
}

func findBonusForSale(ctx context.Context, repos uow.Repositories, saleID int64) (*bonus.Bonus, error) {
	return repos.Bonuses().FindLiveBySale(ctx, saleID)
}

// GetSale returns a sale by ID
func (s *Service) GetSale(ctx context.Context, id int64) (*SaleResponse, error) {
	sale, err := s.repos.Sales().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSaleResponse(sale)
	return &resp, nil
}

// ListSales returns sales newest first
func (s *Service) ListSales(ctx context.Context, q SaleQuery) (shared.Paginated[SaleResponse], error) {
	filter := sales.SaleFilter{
		Filter:         shared.DefaultFilter(),
		AgentID:        q.AgentID,
		ProductID:      q.ProductID,
		Warehouse:      q.Warehouse,
		Period:         shared.DateRange{From: q.From, To: q.To},
		IncludeReturns: q.IncludeReturns,
	}
	filter.OrderBy = "sale_date"
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = q.PageSize
	}
	items, err := s.repos.Sales().FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[SaleResponse]{}, err
	}
	total, err := s.repos.Sales().Count(ctx, filter)
	if err != nil {
		return shared.Paginated[SaleResponse]{}, err
	}
	out := make([]SaleResponse, len(items))
	for i := range items {
		out[i] = ToSaleResponse(&items[i])
	}
	return shared.NewPaginated(out, total, filter.Page, filter.PageSize), nil
}

// AgentHistory returns an agent's sales over the last days, returns included.
// A non-positive days uses the configured default.
func (s *Service) AgentHistory(ctx context.Context, agentID int64, days int) ([]SaleResponse, error) {
	if days <= 0 {
		days = s.historyDays
	}
	if _, err := s.repos.Agents().FindByID(ctx, agentID); err != nil {
		return nil, err
	}
	items, err := s.repos.Sales().FindAll(ctx, sales.SaleFilter{
		Filter:         shared.Filter{OrderBy: "sale_date", OrderDir: "desc"},
		AgentID:        agentID,
		Period:         shared.LastDays(s.now(), days),
		IncludeReturns: true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]SaleResponse, len(items))
	for i := range items {
		out[i] = ToSaleResponse(&items[i])
	}
	return out, nil
}

// LastSalePrice returns the price of the latest non-returned sale of a product, or nil
func (s *Service) LastSalePrice(ctx context.Context, productID int64) (*decimal.Decimal, error) {
	if _, err := s.repos.Products().FindByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.repos.Sales().LastSalePrice(ctx, productID)
}

func (s *Service) publish(ctx context.Context, events ...shared.DomainEvent) {
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.Enrich(ctx, s.logger).Warn("failed to publish sale events", zap.Error(err))
	}
}

func insufficient(available, requested int) error {
	return shared.NewDomainError(shared.CodeInsufficientStock,
		fmt.Sprintf("Insufficient stock: %d available, %d requested", available, requested))
}
