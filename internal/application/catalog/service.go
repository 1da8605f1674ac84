// Package catalog manages batches, products and their retail prices.
package catalog

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/application/audit"
	"github.com/stickroom/ledger/internal/application/stock"
	"github.com/stickroom/ledger/internal/application/uow"
	domainaudit "github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/identity"
	"github.com/stickroom/ledger/internal/domain/pricing"
	"github.com/stickroom/ledger/internal/domain/shared"
	domainstock "github.com/stickroom/ledger/internal/domain/stock"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Settings are the catalog defaults taken from configuration
type Settings struct {
	DefaultWarehouses   []string
	DefaultCoefficient  decimal.Decimal
	MaxProductsPerBatch int
	SearchLimit         int
}

// DefaultSettings returns the built-in catalog defaults
func DefaultSettings() Settings {
	return Settings{
		DefaultWarehouses:   []string{"Олег", "Максим", "Общий"},
		DefaultCoefficient:  decimal.RequireFromString("1.2"),
		MaxProductsPerBatch: 1000,
		SearchLimit:         20,
	}
}

// Service handles catalog operations
type Service struct {
	tx        uow.TransactionScope
	repos     uow.Repositories
	ledger    *stock.Ledger
	publisher shared.EventPublisher
	logger    *zap.Logger
	settings  Settings
	now       func() time.Time
}

// NewService creates a new catalog Service
func NewService(
	tx uow.TransactionScope,
	repos uow.Repositories,
	ledger *stock.Ledger,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	settings Settings,
) *Service {
	if publisher == nil {
		publisher = shared.NopEventPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultSettings()
	if settings.DefaultCoefficient.IsZero() {
		settings.DefaultCoefficient = defaults.DefaultCoefficient
	}
	if settings.MaxProductsPerBatch <= 0 {
		settings.MaxProductsPerBatch = defaults.MaxProductsPerBatch
	}
	if settings.SearchLimit <= 0 {
		settings.SearchLimit = defaults.SearchLimit
	}
	if len(settings.DefaultWarehouses) == 0 {
		settings.DefaultWarehouses = defaults.DefaultWarehouses
	}
	return &Service{
		tx:        tx,
		repos:     repos,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
		settings:  settings,
		now:       time.Now,
	}
}

// CreateBatch registers a new stock intake
func (s *Service) CreateBatch(ctx context.Context, req CreateBatchRequest) (*BatchResponse, error) {
	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = s.now()
	}
	var batch *catalog.Batch
	err := s.tx.Execute(ctx, func(repos uow.Repositories) error {
		if _, err := identity.LoadActor(ctx, repos.Agents(), req.ActorID, false); err != nil {
			return err
		}
		var err error
		batch, err = catalog.NewBatch(req.BatchNumber, req.Warehouse, req.ActorID, receivedAt)
		if err != nil {
			return err
		}
		exists, err := repos.Batches().ExistsByNumber(ctx, batch.BatchNumber)
		if err != nil {
			return err
		}
		if exists {
			return shared.ErrDuplicateBatchNumber
		}
		if err := repos.Batches().Create(ctx, batch); err != nil {
			return err
		}
		return audit.Append(ctx, repos.ActionLogs(), req.ActorID, domainaudit.ActionBatchCreated, domainaudit.EntityBatch, batch.ID,
			domainaudit.Details{"batch_number": batch.BatchNumber, "warehouse": batch.Warehouse})
	})
	if err != nil {
		return nil, err
	}

	batch.RecordCreated()
	s.publish(ctx, batch.GetDomainEvents()...)
	batch.ClearDomainEvents()
	logger.Enrich(ctx, s.logger).Info("batch created",
		zap.Int64("batch_id", batch.ID), zap.String("batch_number", batch.BatchNumber), zap.String("warehouse", batch.Warehouse))

	resp := ToBatchResponse(batch)
	return &resp, nil
}

// AddProduct inserts a product at quantity zero and credits its initial stock
// through the ledger in the same transaction.
func (s *Service) AddProduct(ctx context.Context, batchID int64, req AddProductRequest) (*ProductResponse, error) {
	coefficient := s.settings.DefaultCoefficient
	if req.Coefficient != nil {
		coefficient = *req.Coefficient
	}
	if req.Quantity < 0 {
		return nil, shared.NewValidationError("Quantity cannot be negative")
	}

	var (
		product *catalog.Product
		moved   *stock.Result
	)
	err := s.tx.Execute(ctx, func(repos uow.Repositories) error {
		moved = nil
		if _, err := identity.LoadActor(ctx, repos.Agents(), req.ActorID, false); err != nil {
			return err
		}
		batch, err := repos.Batches().FindByID(ctx, batchID)
		if err != nil {
			return err
		}
		count, err := repos.Products().Count(ctx, catalog.ProductFilter{BatchID: batch.ID})
		if err != nil {
			return err
		}
		if int(count) >= s.settings.MaxProductsPerBatch {
			return shared.NewValidationError("Batch already holds the maximum number of products")
		}

		product, err = catalog.NewProduct(batch.ID, catalog.Attributes{
			EAN:    req.EAN,
			Name:   req.Name,
			Model:  req.Model,
			Color:  req.Color,
			Size:   req.Size,
			Age:    req.Age,
			Fit:    fitOrDefault(req.Fit),
			Weight: req.Weight,
		}, catalog.UnitEconomics{
			PriceEUR:       req.PriceEUR,
			ExchangeRate:   req.ExchangeRate,
			Coefficient:    coefficient,
			LogisticsPerKg: req.LogisticsPerKg,
			RetailPrice:    req.RetailPrice,
		})
		if err != nil {
			return err
		}
		if _, err := repos.Products().FindByEANInBatch(ctx, batch.ID, product.EAN); err == nil {
			return shared.ErrDuplicateEANInBatch
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		if err := repos.Products().Create(ctx, product); err != nil {
			return err
		}
		if product.RetailPrice != nil {
			entry, err := domainaudit.NewPriceHistory(product.ID, nil, *product.RetailPrice, req.ActorID)
			if err != nil {
				return err
			}
			if err := repos.PriceHistory().Create(ctx, entry); err != nil {
				return err
			}
		}
		if req.Quantity > 0 {
			result, err := s.ledger.Credit(ctx, repos, stock.Movement{
				ProductID:     product.ID,
				Quantity:      req.Quantity,
				Warehouse:     batch.Warehouse,
				ReferenceType: domainstock.ReferenceBatch,
				ReferenceID:   batch.ID,
				AgentID:       req.ActorID,
			})
			if err != nil {
				return err
			}
			product.Quantity = result.Balance
			moved = &result
		}
		return audit.Append(ctx, repos.ActionLogs(), req.ActorID, domainaudit.ActionProductAdded, domainaudit.EntityProduct, product.ID,
			domainaudit.Details{
				"batch_id":   batch.ID,
				"ean":        product.EAN,
				"name":       product.Name,
				"quantity":   req.Quantity,
				"cost_price": product.CostPrice.String(),
			})
	})
	if err != nil {
		return nil, err
	}

	events := []shared.DomainEvent{catalog.NewProductAddedEvent(product)}
	if moved != nil {
		events = append(events, moved.Event())
	}
	s.publish(ctx, events...)
	logger.Enrich(ctx, s.logger).Info("product added",
		zap.Int64("product_id", product.ID), zap.Int64("batch_id", batchID), zap.String("ean", product.EAN), zap.Int("quantity", product.Quantity))

	resp := ToProductResponse(product)
	return &resp, nil
}

// ReceiveMore credits additional units of an EAN already present in the batch
func (s *Service) ReceiveMore(ctx context.Context, batchID int64, ean string, req ReceiveStockRequest) (*ProductResponse, error) {
	if req.Quantity < 1 {
		return nil, shared.NewValidationError("Quantity must be at least 1")
	}
	var (
		product *catalog.Product
		moved   stock.Result
	)
	err := s.tx.Execute(ctx, func(repos uow.Repositories) error {
		if _, err := identity.LoadActor(ctx, repos.Agents(), req.ActorID, false); err != nil {
			return err
		}
		batch, err := repos.Batches().FindByID(ctx, batchID)
		if err != nil {
			return err
		}
		found, err := repos.Products().FindByEANInBatch(ctx, batch.ID, ean)
		if err != nil {
			return err
		}
		moved, err = s.ledger.Credit(ctx, repos, stock.Movement{
			ProductID:     found.ID,
			Quantity:      req.Quantity,
			Warehouse:     batch.Warehouse,
			ReferenceType: domainstock.ReferenceBatch,
			ReferenceID:   batch.ID,
			AgentID:       req.ActorID,
		})
		if err != nil {
			return err
		}
		if err := audit.Append(ctx, repos.ActionLogs(), req.ActorID, domainaudit.ActionStockReceived, domainaudit.EntityProduct, found.ID,
			domainaudit.Details{"batch_id": batch.ID, "ean": found.EAN, "quantity": req.Quantity, "balance": moved.Balance}); err != nil {
			return err
		}
		product, err = repos.Products().FindByID(ctx, found.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, moved.Event())
	resp := ToProductResponse(product)
	return &resp, nil
}

// UpdateRetailPrice changes a product's retail price and appends the change to its history.
// Setting the current price again is a no-op.
func (s *Service) UpdateRetailPrice(ctx context.Context, productID int64, req UpdateRetailPriceRequest) (*ProductResponse, error) {
	var (
		product *catalog.Product
		event   shared.DomainEvent
	)
	err := s.tx.Execute(ctx, func(repos uow.Repositories) error {
		event = nil
		if _, err := identity.LoadActor(ctx, repos.Agents(), req.ActorID, false); err != nil {
			return err
		}
		var err error
		product, err = repos.Products().FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		changed, old, err := s.reprice(ctx, repos, product, req.RetailPrice, req.ActorID)
		if err != nil || !changed {
			return err
		}
		event = catalog.NewRetailPriceChangedEvent(product.ID, old, *product.RetailPrice, req.ActorID)
		return audit.Append(ctx, repos.ActionLogs(), req.ActorID, domainaudit.ActionPriceChanged, domainaudit.EntityProduct, product.ID,
			domainaudit.Details{"old_price": priceString(old), "new_price": product.RetailPrice.String()})
	})
	if err != nil {
		return nil, err
	}
	if event != nil {
		s.publish(ctx, event)
	}
	resp := ToProductResponse(product)
	return &resp, nil
}

// reprice applies price to the locked product and records the history row.
// It reports whether the price actually changed.
func (s *Service) reprice(ctx context.Context, repos uow.Repositories, product *catalog.Product, price decimal.Decimal, actorID int64) (bool, *decimal.Decimal, error) {
	version := product.Version
	old, err := product.SetRetailPrice(price)
	if err != nil {
		return false, nil, err
	}
	if product.Version == version {
		return false, old, nil
	}
	if err := repos.Products().SaveRetailPrice(ctx, product); err != nil {
		return false, nil, err
	}
	entry, err := domainaudit.NewPriceHistory(product.ID, old, *product.RetailPrice, actorID)
	if err != nil {
		return false, nil, err
	}
	entry.ChangedAt = s.now()
	if err := repos.PriceHistory().Create(ctx, entry); err != nil {
		return false, nil, err
	}
	return true, old, nil
}

// PreviewBulkPriceUpdate computes the prices a bulk update would set without writing anything
func (s *Service) PreviewBulkPriceUpdate(ctx context.Context, req BulkPriceRequest) ([]BulkPriceRow, error) {
	if err := validateBulk(req); err != nil {
		return nil, err
	}
	products, err := s.repos.Products().FindByIDs(ctx, req.ProductIDs)
	if err != nil {
		return nil, err
	}
	if len(products) != len(uniqueIDs(req.ProductIDs)) {
		return nil, shared.NewDomainError(shared.CodeNotFound, "One or more products were not found")
	}
	rows := make([]BulkPriceRow, len(products))
	for i := range products {
		rows[i] = previewRow(&products[i], req)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ProductID < rows[j].ProductID })
	return rows, nil
}

// ApplyBulkPriceUpdate reprices every listed product in one transaction.
// Only administrators may run it.
func (s *Service) ApplyBulkPriceUpdate(ctx context.Context, req BulkPriceRequest) (*BulkPriceResult, error) {
	if err := validateBulk(req); err != nil {
		return nil, err
	}
	ids := uniqueIDs(req.ProductIDs)
	var (
		result *BulkPriceResult
		events []shared.DomainEvent
	)
	err := s.tx.Execute(ctx, func(repos uow.Repositories) error {
		result = &BulkPriceResult{Rows: make([]BulkPriceRow, 0, len(ids))}
		events = nil
		if _, err := identity.LoadActor(ctx, repos.Agents(), req.ActorID, true); err != nil {
			return err
		}
		changedIDs := make([]int64, 0, len(ids))
		for _, id := range ids {
			product, err := repos.Products().FindByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			row := previewRow(product, req)
			changed, old, err := s.reprice(ctx, repos, product, row.NewPrice, req.ActorID)
			if err != nil {
				return err
			}
			row.Changed = changed
			result.Rows = append(result.Rows, row)
			if changed {
				result.Updated++
				changedIDs = append(changedIDs, product.ID)
				events = append(events, catalog.NewRetailPriceChangedEvent(product.ID, old, *product.RetailPrice, req.ActorID))
			}
		}
		return audit.Append(ctx, repos.ActionLogs(), req.ActorID, domainaudit.ActionBulkPriceUpdate, domainaudit.EntityProduct, 0,
			domainaudit.Details{
				"mode":        string(req.Mode),
				"value":       req.Value.String(),
				"product_ids": changedIDs,
				"updated":     result.Updated,
			})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events...)
	logger.Enrich(ctx, s.logger).Info("bulk price update applied",
		zap.String("mode", string(req.Mode)), zap.Int("requested", len(ids)), zap.Int("updated", result.Updated))
	return result, nil
}

func previewRow(p *catalog.Product, req BulkPriceRequest) BulkPriceRow {
	var newPrice decimal.Decimal
	switch req.Mode {
	case PriceModeMarkup:
		newPrice = pricing.MarkupPrice(p.CostPrice, req.Value)
	default:
		newPrice = req.Value.Round(pricing.Places)
	}
	row := BulkPriceRow{
		ProductID: p.ID,
		EAN:       p.EAN,
		Name:      p.Name,
		CostPrice: p.CostPrice,
		OldPrice:  p.RetailPrice,
		NewPrice:  newPrice,
		Changed:   p.RetailPrice == nil || !p.RetailPrice.Equal(newPrice),
	}
	if p.RetailPrice != nil {
		row.ChangePercent = pricing.ChangePercent(*p.RetailPrice, newPrice)
	}
	return row
}

func validateBulk(req BulkPriceRequest) error {
	if len(req.ProductIDs) == 0 {
		return shared.NewValidationError("At least one product is required")
	}
	switch req.Mode {
	case PriceModeFixed:
		if req.Value.IsNegative() {
			return shared.NewValidationError("Retail price cannot be negative")
		}
	case PriceModeMarkup:
		if req.Value.LessThanOrEqual(decimal.NewFromInt(-100)) {
			return shared.NewValidationError("Markup must be greater than -100%")
		}
	default:
		return shared.NewValidationError("Mode must be fixed or markup")
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func fitOrDefault(fit string) catalog.Fit {
	if fit == "" {
		return catalog.FitRegular
	}
	return catalog.Fit(fit)
}

func priceString(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return p.String()
}

func (s *Service) publish(ctx context.Context, events ...shared.DomainEvent) {
	if len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.Enrich(ctx, s.logger).Warn("failed to publish catalog events", zap.Error(err))
	}
}
