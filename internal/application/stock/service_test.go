package stock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stickroom/ledger/internal/application/stock"
	"github.com/stickroom/ledger/internal/application/uow"
	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/shared"
	domainstock "github.com/stickroom/ledger/internal/domain/stock"
	"github.com/stickroom/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func seedProduct(t *testing.T, l *testutil.LedgerDB) (*catalog.Product, int64) {
	t.Helper()
	agent := l.SeedAgent(t, 1, "seller", false)
	batch := l.SeedBatch(t, "B-1", agent.ID)
	p, err := catalog.NewProduct(batch.ID, testutil.HockeyStick("4603333333333"), testutil.HockeyStickEconomics(nil))
	require.NoError(t, err)
	require.NoError(t, l.Repos.Products().Create(context.Background(), p))
	return p, agent.ID
}

func TestLedger_MovementsKeepCounterAndLogInStep(t *testing.T) {
	l := testutil.NewLedgerDB(t)
	ctx := context.Background()
	p, agentID := seedProduct(t, l)
	ledger := stock.NewLedger(zap.NewNop())
	move := func(fn func(context.Context, uow.Repositories, stock.Movement) (stock.Result, error), qty int) (stock.Result, error) {
		var res stock.Result
		err := l.Tx.Execute(ctx, func(repos uow.Repositories) error {
			var err error
			res, err = fn(ctx, repos, stock.Movement{
				ProductID: p.ID, Quantity: qty, Warehouse: "Общий",
				ReferenceType: domainstock.ReferenceAdjustment, AgentID: agentID,
			})
			return err
		})
		return res, err
	}

	res, err := move(ledger.Credit, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Balance)
	assert.Equal(t, domainstock.EventTypeStockMoved, res.Event().Meta().Type)

	res, err = move(ledger.Debit, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Balance)

	_, err = move(ledger.Debit, 3)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	res, err = move(ledger.Reverse, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Balance)

	count, err := l.Repos.StockLogs().CountByProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "the rejected debit leaves no log row")

	report, err := stock.NewService(l.Tx, zap.NewNop()).VerifyConsistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 1, report.ProductsChecked)
	assert.Empty(t, report.Discrepancies)
}

func TestVerifyConsistency_ReportsDrift(t *testing.T) {
	l := testutil.NewLedgerDB(t)
	ctx := context.Background()
	p, _ := seedProduct(t, l)
	require.NoError(t, l.DB.Exec("UPDATE products SET quantity = 7 WHERE id = ?", p.ID).Error)

	core, logs := observer.New(zap.ErrorLevel)
	report, err := stock.NewService(l.Tx, zap.New(core)).VerifyConsistency(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, p.ID, report.Discrepancies[0].ProductID)
	assert.Equal(t, 7, report.Discrepancies[0].Quantity)
	assert.Equal(t, 0, report.Discrepancies[0].LogSum)
	assert.Equal(t, 1, logs.Len())
}
