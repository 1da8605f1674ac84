package stock

import (
	"context"
	"sort"

	"github.com/stickroom/ledger/internal/application/uow"
	"github.com/stickroom/ledger/internal/domain/stock"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ConsistencyReport lists products whose counter disagrees with the movement log
type ConsistencyReport struct {
	ProductsChecked int                 `json:"products_checked"`
	Consistent      bool                `json:"consistent"`
	Discrepancies   []stock.Discrepancy `json:"discrepancies"`
}

// Service runs stock checks
type Service struct {
	tx     uow.TransactionScope
	logger *zap.Logger
}

// NewService creates a new stock Service
func NewService(tx uow.TransactionScope, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{tx: tx, logger: logger}
}

// VerifyConsistency compares every product's quantity with the sum of its stock log
// deltas. Both sides are read in one transaction.
func (s *Service) VerifyConsistency(ctx context.Context) (*ConsistencyReport, error) {
	var report ConsistencyReport
	err := s.tx.Execute(ctx, func(repos uow.Repositories) error {
		quantities, err := repos.Products().Quantities(ctx)
		if err != nil {
			return err
		}
		sums, err := repos.StockLogs().SumDeltasByProduct(ctx)
		if err != nil {
			return err
		}
		diffs := stock.FindDiscrepancies(quantities, sums)
		if diffs == nil {
			diffs = []stock.Discrepancy{}
		}
		sort.Slice(diffs, func(i, j int) bool { return diffs[i].ProductID < diffs[j].ProductID })
		report = ConsistencyReport{
			ProductsChecked: len(quantities),
			Consistent:      len(diffs) == 0,
			Discrepancies:   diffs,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !report.Consistent {
		logger.Enrich(ctx, s.logger).Error("stock counters disagree with movement log",
			zap.Int("discrepancies", len(report.Discrepancies)))
	}
	return &report, nil
}
