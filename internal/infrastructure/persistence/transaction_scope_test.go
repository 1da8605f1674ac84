package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stickroom/ledger/internal/application/uow"
	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/domain/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGormTransactionScope_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()
	agent := seedAgent(t, db, 1)

	boom := errors.New("boom")
	err := scope.Execute(ctx, func(repos uow.Repositories) error {
		batch, err := catalog.NewBatch("B-1", "Общий", agent.ID, time.Now())
		require.NoError(t, err)
		require.NoError(t, repos.Batches().Create(ctx, batch))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := NewGormBatchRepository(db).ExistsByNumber(ctx, "B-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGormTransactionScope_Retry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t.Run("transient error is retried", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		scope := NewGormTransactionScope(db, WithRetryInterval(time.Millisecond), WithScopeLogger(zap.New(core)))

		calls := 0
		err := scope.Execute(ctx, func(uow.Repositories) error {
			calls++
			if calls < 3 {
				return shared.ErrConcurrencyConflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, recorded.FilterMessage("retrying transaction").Len())
	})

	t.Run("exhausted retries surface a concurrency conflict", func(t *testing.T) {
		scope := NewGormTransactionScope(db, WithMaxRetries(2), WithRetryInterval(time.Millisecond))

		calls := 0
		err := scope.Execute(ctx, func(uow.Repositories) error {
			calls++
			return errors.New("database is locked")
		})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Equal(t, 3, calls)
	})

	t.Run("business errors are not retried", func(t *testing.T) {
		scope := NewGormTransactionScope(db, WithRetryInterval(time.Millisecond))

		calls := 0
		err := scope.Execute(ctx, func(uow.Repositories) error {
			calls++
			return shared.ErrInsufficientStock
		})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
		assert.Equal(t, 1, calls)
	})
}

// Two sales of 2 units race for the last 3 units: exactly one wins.
func TestGormTransactionScope_ConcurrentDebits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	scope := NewGormTransactionScope(db, WithRetryInterval(time.Millisecond))
	agent := seedAgent(t, db, 1)
	batch := seedBatch(t, db, "B-1", agent.ID)
	p := seedProduct(t, db, batch.ID, "1", "Stick")
	_, err := NewGormProductRepository(db).AdjustQuantity(ctx, p.ID, 3)
	require.NoError(t, err)

	debit := func() error {
		return scope.Execute(ctx, func(repos uow.Repositories) error {
			if _, err := repos.Products().FindByIDForUpdate(ctx, p.ID); err != nil {
				return err
			}
			if _, err := repos.Products().AdjustQuantity(ctx, p.ID, -2); err != nil {
				return err
			}
			l, err := stock.NewLog(p.ID, stock.OperationOut, 2, "Общий", stock.ReferenceSale, 1)
			if err != nil {
				return err
			}
			return repos.StockLogs().Create(ctx, l)
		})
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = debit()
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)

	after, err := NewGormProductRepository(db).FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Quantity)

	count, err := NewGormStockLogRepository(db).CountByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
