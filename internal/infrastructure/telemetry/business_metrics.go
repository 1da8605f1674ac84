package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/stickroom/ledger/internal/domain/bonus"
	"github.com/stickroom/ledger/internal/domain/sales"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/domain/stock"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics turns committed ledger events into counters and samples
// the stock consistency check into a gauge.
type BusinessMetrics struct {
	logger *zap.Logger

	salesTotal         metric.Int64Counter
	salesUnits         metric.Int64Counter
	salesRevenue       metric.Float64Counter
	returnsTotal       metric.Int64Counter
	stockMovedUnits    metric.Int64Counter
	bonusesAccrued     metric.Int64Counter
	bonusAmount        metric.Float64Counter
	bonusesVoided      metric.Int64Counter
	stockDiscrepancies metric.Int64Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// DiscrepancyCounter reports how many products disagree with their stock log
type DiscrepancyCounter func(ctx context.Context) (int, error)

type BusinessMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	in, err := NewInstruments(cfg.Meter)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bm := &BusinessMetrics{
		logger:   logger,
		stopChan: make(chan struct{}),

		salesTotal:         in.Counter("ledger_sales_total", "Committed sales", "{sales}"),
		salesUnits:         in.Counter("ledger_sales_units_total", "Units sold", "{units}"),
		salesRevenue:       in.AmountCounter("ledger_sales_revenue_total", "Sale price times quantity of committed sales"),
		returnsTotal:       in.Counter("ledger_returns_total", "Returned sales", "{sales}"),
		stockMovedUnits:    in.Counter("ledger_stock_moved_units_total", "Units moved through the stock ledger", "{units}"),
		bonusesAccrued:     in.Counter("ledger_bonuses_accrued_total", "Bonuses attributed to sales", "{bonuses}"),
		bonusAmount:        in.AmountCounter("ledger_bonus_amount_total", "Accrued bonus amount"),
		bonusesVoided:      in.Counter("ledger_bonuses_voided_total", "Bonuses voided by returns", "{bonuses}"),
		stockDiscrepancies: in.Gauge("ledger_stock_discrepancies", "Products whose quantity differs from their stock log", "{products}"),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return bm, nil
}

// Handle implements shared.EventHandler
func (bm *BusinessMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *sales.SaleRecordedEvent:
		wh := With(AttrWarehouse.String(e.Warehouse))
		bm.salesTotal.Add(ctx, 1, wh)
		bm.salesUnits.Add(ctx, int64(e.Quantity), wh)
		revenue, _ := e.Amount.Float64()
		bm.salesRevenue.Add(ctx, revenue, wh)
	case *sales.SaleReturnedEvent:
		bm.returnsTotal.Add(ctx, 1)
	case *stock.MovedEvent:
		bm.stockMovedUnits.Add(ctx, int64(e.Quantity), With(
			AttrStockOperation.String(e.OperationType.String()),
			AttrWarehouse.String(e.Warehouse),
		))
	case *bonus.BonusAccruedEvent:
		bm.bonusesAccrued.Add(ctx, 1)
		amount, _ := e.Amount.Float64()
		bm.bonusAmount.Add(ctx, amount)
	case *bonus.BonusVoidedEvent:
		bm.bonusesVoided.Add(ctx, 1)
	}
	return nil
}

// EventTypes implements shared.EventHandler
func (bm *BusinessMetrics) EventTypes() []string {
	return []string{
		sales.EventTypeSaleRecorded,
		sales.EventTypeSaleReturned,
		stock.EventTypeStockMoved,
		bonus.EventTypeBonusAccrued,
		bonus.EventTypeBonusVoided,
	}
}

// RecordDiscrepancies sets the stock discrepancy gauge
func (bm *BusinessMetrics) RecordDiscrepancies(ctx context.Context, count int) {
	bm.stockDiscrepancies.Record(ctx, int64(count))
}

// StartPeriodicCollection samples the consistency check every interval
// (default: 15 minutes) until Stop is called or ctx ends. Non-blocking.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, check DiscrepancyCounter, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 15 * time.Minute
		}
		go bm.runPeriodicCollection(ctx, check, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, check DiscrepancyCounter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collect(ctx, check)
	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collect(ctx, check)
		}
	}
}

func (bm *BusinessMetrics) collect(ctx context.Context, check DiscrepancyCounter) {
	count, err := check(ctx)
	if err != nil {
		bm.logger.Warn("Failed to sample stock consistency", zap.Error(err))
		return
	}
	bm.RecordDiscrepancies(ctx, count)
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

var _ shared.EventHandler = (*BusinessMetrics)(nil)
