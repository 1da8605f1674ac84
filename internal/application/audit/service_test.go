package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stickroom/ledger/internal/application/audit"
	"github.com/stickroom/ledger/internal/application/stock"
	"github.com/stickroom/ledger/internal/application/uow"
	domainaudit "github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/shared"
	domainstock "github.com/stickroom/ledger/internal/domain/stock"
	"github.com/stickroom/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAppendRecordsClientIP(t *testing.T) {
	l := testutil.NewLedgerDB(t)
	agent := l.SeedAgent(t, 1, "seller", false)
	ctx := audit.WithClientIP(context.Background(), "203.0.113.7")

	err := audit.Append(ctx, l.Repos.ActionLogs(), agent.ID, domainaudit.ActionBatchCreated, domainaudit.EntityBatch, 5,
		domainaudit.Details{"batch_number": "B-5"})
	require.NoError(t, err)

	svc := audit.NewService(l.Repos)
	page, err := svc.ActionLogs(context.Background(), audit.ActionLogQuery{EntityType: domainaudit.EntityBatch, EntityID: 5})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	entry := page.Items[0]
	assert.Equal(t, "203.0.113.7", entry.IPAddress)
	assert.Equal(t, "B-5", entry.Details["batch_number"])
	require.NotNil(t, entry.AgentID)
	assert.Equal(t, agent.ID, *entry.AgentID)

	page, err = svc.ActionLogs(context.Background(), audit.ActionLogQuery{AgentID: agent.ID + 1})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestStockLogsAndPriceHistory(t *testing.T) {
	l := testutil.NewLedgerDB(t)
	ctx := context.Background()
	agent := l.SeedAgent(t, 1, "seller", false)
	batch := l.SeedBatch(t, "B-1", agent.ID)
	p, err := catalog.NewProduct(batch.ID, testutil.HockeyStick("4602222222222"), testutil.HockeyStickEconomics(nil))
	require.NoError(t, err)
	require.NoError(t, l.Repos.Products().Create(ctx, p))

	ledger := stock.NewLedger(zap.NewNop())
	require.NoError(t, l.Tx.Execute(ctx, func(repos uow.Repositories) error {
		for _, qty := range []int{3, 2} {
			if _, err := ledger.Credit(ctx, repos, stock.Movement{
				ProductID: p.ID, Quantity: qty, Warehouse: batch.Warehouse,
				ReferenceType: domainstock.ReferenceBatch, ReferenceID: batch.ID, AgentID: agent.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	svc := audit.NewService(l.Repos)
	logs, err := svc.StockLogs(ctx, p.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), logs.Total)
	assert.Equal(t, 2, logs.TotalPages)
	require.Len(t, logs.Items, 1)

	history, err := svc.PriceHistory(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = svc.StockLogs(ctx, 999, 1, 20)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}
