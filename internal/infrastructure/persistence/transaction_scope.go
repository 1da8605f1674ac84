package persistence

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stickroom/ledger/internal/application/uow"
	"github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/bonus"
	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/identity"
	"github.com/stickroom/ledger/internal/domain/sales"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/domain/stock"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Transient failures (version conflicts, serialization failures, deadlocks, busy
// SQLite) re-run the whole transaction with exponential backoff.
type GormTransactionScope struct {
	db              *gorm.DB
	logger          *zap.Logger
	maxRetries      int
	initialInterval time.Duration
}

// TransactionScopeOption configures a GormTransactionScope
type TransactionScopeOption func(*GormTransactionScope)

// WithMaxRetries sets how many times a transient failure is retried
func WithMaxRetries(n int) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithRetryInterval sets the first backoff interval
func WithRetryInterval(d time.Duration) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		if d > 0 {
			s.initialInterval = d
		}
	}
}

// WithScopeLogger sets the logger used to report retries
func WithScopeLogger(l *zap.Logger) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, opts ...TransactionScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{
		db:              db,
		logger:          zap.NewNop(),
		maxRetries:      3,
		initialInterval: 20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
// Retries that run out surface as ErrConcurrencyConflict.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos uow.Repositories) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&gormRepositories{db: tx})
		})
		if err == nil || IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.initialInterval
	policy.MaxInterval = 40 * s.initialInterval
	policy.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		logger.Enrich(ctx, s.logger).Debug("retrying transaction",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.maxRetries)), ctx),
		notify,
	)
	if err != nil && IsTransient(err) {
		logger.Enrich(ctx, s.logger).Warn("transaction retries exhausted",
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return shared.ErrConcurrencyConflict
	}
	return err
}

// NewRepositories returns repositories bound to db outside any transaction
func NewRepositories(db *gorm.DB) uow.Repositories {
	return &gormRepositories{db: db}
}

// gormRepositories provides access to all repositories over one *gorm.DB,
// which is the transaction handle inside Execute.
type gormRepositories struct {
	db *gorm.DB
}

func (r *gormRepositories) Agents() identity.AgentRepository {
	return NewGormAgentRepository(r.db)
}

func (r *gormRepositories) Batches() catalog.BatchRepository {
	return NewGormBatchRepository(r.db)
}

func (r *gormRepositories) Products() catalog.ProductRepository {
	return NewGormProductRepository(r.db)
}

func (r *gormRepositories) Sales() sales.SaleRepository {
	return NewGormSaleRepository(r.db)
}

func (r *gormRepositories) BonusRules() bonus.RuleRepository {
	return NewGormBonusRuleRepository(r.db)
}

func (r *gormRepositories) Bonuses() bonus.BonusRepository {
	return NewGormBonusRepository(r.db)
}

func (r *gormRepositories) PriceHistory() audit.PriceHistoryRepository {
	return NewGormPriceHistoryRepository(r.db)
}

func (r *gormRepositories) StockLogs() stock.LogRepository {
	return NewGormStockLogRepository(r.db)
}

func (r *gormRepositories) ActionLogs() audit.ActionLogRepository {
	return NewGormActionLogRepository(r.db)
}

// Ensure GormTransactionScope implements TransactionScope
var _ uow.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormRepositories implements Repositories
var _ uow.Repositories = (*gormRepositories)(nil)
