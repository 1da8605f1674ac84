package report_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/application/report"
	"github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/sales"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func seedSales(t *testing.T, l *testutil.LedgerDB) (seller, other int64, product *catalog.Product) {
	t.Helper()
	ctx := context.Background()
	a := l.SeedAgent(t, 1, "oleg", false)
	b := l.SeedAgent(t, 2, "maxim", false)
	batch := l.SeedBatch(t, "B-1", a.ID)
	p, err := catalog.NewProduct(batch.ID, testutil.HockeyStick("4604444444444"), testutil.HockeyStickEconomics(nil))
	require.NoError(t, err)
	require.NoError(t, l.Repos.Products().Create(ctx, p))

	cost := decimal.NewFromInt(5940)
	record := func(agentID int64, qty int, price int64, at time.Time) *sales.Sale {
		s, err := sales.NewSale(p.ID, agentID, qty, decimal.NewFromInt(price), cost, batch.Warehouse, at)
		require.NoError(t, err)
		require.NoError(t, l.Repos.Sales().Create(ctx, s))
		return s
	}
	record(a.ID, 1, 9000, day)
	record(a.ID, 2, 9000, day.Add(2*time.Hour))
	record(b.ID, 1, 8000, day.AddDate(0, 0, 1))
	returned := record(b.ID, 1, 9000, day.AddDate(0, 0, 1))
	require.NoError(t, returned.MarkReturned("брак", day.AddDate(0, 0, 2)))
	require.NoError(t, l.Repos.Sales().SaveReturn(ctx, returned))
	return a.ID, b.ID, p
}

func TestSalesReport(t *testing.T) {
	l := testutil.NewLedgerDB(t)
	sellerID, otherID, _ := seedSales(t, l)
	svc := report.NewService(l.Repos, time.UTC)

	res, err := svc.SalesReport(context.Background(), report.SalesQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.SaleCount)
	assert.Equal(t, int64(4), res.Units)
	assert.Equal(t, int64(1), res.ReturnCount)
	assert.True(t, decimal.NewFromInt(35000).Equal(res.Revenue), res.Revenue.String())
	assert.True(t, decimal.NewFromInt(11240).Equal(res.Margin), res.Margin.String())
	require.Len(t, res.Agents, 2)
	assert.Equal(t, sellerID, res.Agents[0].AgentID)
	assert.Equal(t, "oleg", res.Agents[0].Username)
	assert.Equal(t, otherID, res.Agents[1].AgentID)
	require.Len(t, res.TopProducts, 1)
	assert.Equal(t, 1, res.TopProducts[0].Rank)

	res, err = svc.SalesReport(context.Background(), report.SalesQuery{AgentID: otherID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.SaleCount)
	assert.True(t, decimal.NewFromInt(8000).Equal(res.Revenue))
}

func TestDailySales(t *testing.T) {
	l := testutil.NewLedgerDB(t)
	seedSales(t, l)
	svc := report.NewService(l.Repos, time.UTC)

	trend, err := svc.DailySales(context.Background(), report.SalesQuery{
		From: day.Truncate(24 * time.Hour),
		To:   day.AddDate(0, 0, 3),
	})
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, int64(3), trend[0].Units)
	assert.Equal(t, int64(1), trend[1].SaleCount)

	_, err = svc.DailySales(context.Background(), report.SalesQuery{From: day, To: day})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestPriceSeries(t *testing.T) {
	l := testutil.NewLedgerDB(t)
	ctx := context.Background()
	_, _, p := seedSales(t, l)
	for i, price := range []int64{9000, 9500} {
		var old *decimal.Decimal
		if i > 0 {
			old = testutil.Price(9000)
		}
		h, err := audit.NewPriceHistory(p.ID, old, decimal.NewFromInt(price), 1)
		require.NoError(t, err)
		h.ChangedAt = day.AddDate(0, 0, i)
		require.NoError(t, l.Repos.PriceHistory().Create(ctx, h))
	}

	svc := report.NewService(l.Repos, nil)
	points, err := svc.PriceSeries(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.True(t, decimal.NewFromInt(9500).Equal(points[1].Price))

	_, err = svc.PriceSeries(ctx, 999)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}
