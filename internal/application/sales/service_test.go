package sales_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	appbonus "github.com/stickroom/ledger/internal/application/bonus"
	appcatalog "github.com/stickroom/ledger/internal/application/catalog"
	"github.com/stickroom/ledger/internal/application/sales"
	"github.com/stickroom/ledger/internal/application/stock"
	"github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/identity"
	domainsales "github.com/stickroom/ledger/internal/domain/sales"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/infrastructure/lock"
	"github.com/stickroom/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	ledger    *testutil.LedgerDB
	sales     *sales.Service
	bonuses   *appbonus.Engine
	catalog   *appcatalog.Service
	stock     *stock.Service
	publisher *testutil.RecordingPublisher
	seller    *identity.Agent
	admin     *identity.Agent
	batchID   int64
}

func newFixture(t *testing.T, withRules bool) *fixture {
	t.Helper()
	l := testutil.NewLedgerDB(t)
	pub := testutil.NewRecordingPublisher()
	ledger := stock.NewLedger(zap.NewNop())
	engine := appbonus.NewEngine(l.Tx, l.Repos, pub, zap.NewNop())

	f := &fixture{
		ledger:    l,
		bonuses:   engine,
		sales:     sales.NewService(l.Tx, l.Repos, ledger, engine, pub, zap.NewNop()),
		catalog:   appcatalog.NewService(l.Tx, l.Repos, ledger, pub, zap.NewNop(), appcatalog.DefaultSettings()),
		stock:     stock.NewService(l.Tx, zap.NewNop()),
		publisher: pub,
		seller:    l.SeedAgent(t, 1001, "seller", false),
		admin:     l.SeedAgent(t, 1002, "boss", true),
	}
	if withRules {
		l.SeedBonusRules(t)
	}
	f.batchID = l.SeedBatch(t, "BATCH-1", f.admin.ID).ID
	return f
}

func (f *fixture) addProduct(t *testing.T, ean string, qty int) *appcatalog.ProductResponse {
	t.Helper()
	econ := testutil.HockeyStickEconomics(testutil.Price(9000))
	attrs := testutil.HockeyStick(ean)
	p, err := f.catalog.AddProduct(context.Background(), f.batchID, appcatalog.AddProductRequest{
		EAN:            attrs.EAN,
		Name:           attrs.Name,
		Model:          attrs.Model,
		Fit:            string(attrs.Fit),
		Size:           attrs.Size,
		Weight:         attrs.Weight,
		Quantity:       qty,
		PriceEUR:       econ.PriceEUR,
		ExchangeRate:   econ.ExchangeRate,
		Coefficient:    &econ.Coefficient,
		LogisticsPerKg: econ.LogisticsPerKg,
		RetailPrice:    econ.RetailPrice,
		ActorID:        f.admin.ID,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) quantity(t *testing.T, productID int64) int {
	t.Helper()
	p, err := f.ledger.Repos.Products().FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Quantity
}

func (f *fixture) actions(t *testing.T, action audit.ActionType) []audit.ActionLog {
	t.Helper()
	logs, err := f.ledger.Repos.ActionLogs().FindAll(context.Background(), audit.ActionLogFilter{ActionType: action})
	require.NoError(t, err)
	return logs
}

func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	report, err := f.stock.VerifyConsistency(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent, "discrepancies: %+v", report.Discrepancies)
}

func TestRecordSale_SnapshotsMarginAndAccruesBonus(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.addProduct(t, "4601234567890", 5)
	require.True(t, decimal.NewFromInt(5940).Equal(p.CostPrice), p.CostPrice.String())

	receipt, err := f.sales.RecordSale(ctx, sales.RecordSaleRequest{
		ProductID: p.ID,
		Quantity:  1,
		SalePrice: decimal.NewFromInt(9000),
		AgentID:   f.seller.ID,
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(5940).Equal(receipt.Sale.UnitCost))
	assert.True(t, decimal.NewFromInt(3060).Equal(receipt.Sale.Margin), receipt.Sale.Margin.String())
	assert.True(t, decimal.NewFromInt(34).Equal(receipt.Sale.MarginPercent), receipt.Sale.MarginPercent.String())
	assert.Equal(t, "Общий", receipt.Sale.Warehouse)
	assert.Equal(t, 4, receipt.StockBalance)
	assert.Equal(t, 4, f.quantity(t, p.ID))

	require.NotNil(t, receipt.Bonus)
	assert.Empty(t, receipt.BonusError)
	assert.True(t, decimal.NewFromInt(450).Equal(receipt.Bonus.Amount), receipt.Bonus.Amount.String())
	assert.True(t, decimal.NewFromInt(5).Equal(receipt.Bonus.PercentUsed))

	assert.Len(t, f.actions(t, audit.ActionSaleCreated), 1)
	assert.Len(t, f.actions(t, audit.ActionBonusAccrued), 1)
	assert.Contains(t, f.publisher.Types(), domainsales.EventTypeSaleRecorded)
	f.assertConsistent(t)
}

func TestRecordSale_SecondTierBonus(t *testing.T) {
	f := newFixture(t, true)
	p := f.addProduct(t, "4601234567891", 10)

	receipt, err := f.sales.RecordSale(context.Background(), sales.RecordSaleRequest{
		ProductID: p.ID,
		Quantity:  2,
		SalePrice: decimal.NewFromInt(30000),
		AgentID:   f.seller.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, receipt.Bonus)
	assert.True(t, decimal.NewFromInt(60000).Equal(receipt.Bonus.SaleAmount))
	assert.True(t, decimal.NewFromInt(4200).Equal(receipt.Bonus.Amount), receipt.Bonus.Amount.String())
}

func TestRecordSale_InsufficientStockWritesNothing(t *testing.T) {
	f := newFixture(t, true)
	p := f.addProduct(t, "4601234567892", 1)

	_, err := f.sales.RecordSale(context.Background(), sales.RecordSaleRequest{
		ProductID: p.ID,
		Quantity:  2,
		SalePrice: decimal.NewFromInt(9000),
		AgentID:   f.seller.ID,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	count, err := f.ledger.Repos.Sales().Count(context.Background(), domainsales.SaleFilter{IncludeReturns: true})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1, f.quantity(t, p.ID))
	assert.Empty(t, f.actions(t, audit.ActionSaleCreated))
	f.assertConsistent(t)
}

func TestRecordSale_NoRuleKeepsSale(t *testing.T) {
	f := newFixture(t, false)
	p := f.addProduct(t, "4601234567893", 2)

	receipt, err := f.sales.RecordSale(context.Background(), sales.RecordSaleRequest{
		ProductID: p.ID,
		Quantity:  1,
		SalePrice: decimal.NewFromInt(9000),
		AgentID:   f.seller.ID,
	})
	require.NoError(t, err)
	assert.Nil(t, receipt.Bonus)
	assert.Equal(t, shared.CodeNoApplicableBonusRule, receipt.BonusError)
	assert.Equal(t, 1, f.quantity(t, p.ID))
	assert.Len(t, f.actions(t, audit.ActionBonusUnassigned), 1)
}

func TestRecordSale_InactiveAgentRejected(t *testing.T) {
	f := newFixture(t, true)
	p := f.addProduct(t, "4601234567894", 2)

	f.seller.Deactivate()
	require.NoError(t, f.ledger.Repos.Agents().Save(context.Background(), f.seller))

	_, err := f.sales.RecordSale(context.Background(), sales.RecordSaleRequest{
		ProductID: p.ID,
		Quantity:  1,
		SalePrice: decimal.NewFromInt(9000),
		AgentID:   f.seller.ID,
	})
	assert.True(t, errors.Is(err, shared.ErrForbidden))
	assert.Equal(t, 2, f.quantity(t, p.ID))
}

func TestReturnSale_RestoresStockAndVoidsBonus(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.addProduct(t, "4601234567895", 3)

	receipt, err := f.sales.RecordSale(ctx, sales.RecordSaleRequest{
		ProductID: p.ID, Quantity: 2, SalePrice: decimal.NewFromInt(9000), AgentID: f.seller.ID,
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.quantity(t, p.ID))

	ret, err := f.sales.ReturnSale(ctx, receipt.Sale.ID, sales.ReturnSaleRequest{Reason: "wrong flex", ActorID: f.seller.ID})
	require.NoError(t, err)
	assert.True(t, ret.Sale.IsReturn)
	assert.Equal(t, "wrong flex", ret.Sale.ReturnReason)
	assert.Equal(t, 3, ret.StockBalance)
	assert.Equal(t, 3, f.quantity(t, p.ID))
	require.NotNil(t, ret.VoidedBonus)
	assert.NotNil(t, ret.VoidedBonus.VoidedAt)

	unpaid, err := f.bonuses.ListUnpaid(ctx, f.seller.ID)
	require.NoError(t, err)
	assert.Empty(t, unpaid)

	_, err = f.sales.ReturnSale(ctx, receipt.Sale.ID, sales.ReturnSaleRequest{ActorID: f.seller.ID})
	assert.True(t, errors.Is(err, shared.ErrAlreadyReturned))

	price, err := f.sales.LastSalePrice(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, price)
	f.assertConsistent(t)
}

func TestReturnSale_OnlySellerOrAdmin(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	other := f.ledger.SeedAgent(t, 1003, "other", false)
	p := f.addProduct(t, "4601234567896", 2)

	receipt, err := f.sales.RecordSale(ctx, sales.RecordSaleRequest{
		ProductID: p.ID, Quantity: 1, SalePrice: decimal.NewFromInt(9000), AgentID: f.seller.ID,
	})
	require.NoError(t, err)

	_, err = f.sales.ReturnSale(ctx, receipt.Sale.ID, sales.ReturnSaleRequest{ActorID: other.ID})
	assert.True(t, errors.Is(err, shared.ErrForbidden))

	_, err = f.sales.ReturnSale(ctx, receipt.Sale.ID, sales.ReturnSaleRequest{ActorID: f.admin.ID})
	require.NoError(t, err)
}

func TestReturnSale_PaidBonusBlocksReturn(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.addProduct(t, "4601234567897", 2)

	receipt, err := f.sales.RecordSale(ctx, sales.RecordSaleRequest{
		ProductID: p.ID, Quantity: 1, SalePrice: decimal.NewFromInt(9000), AgentID: f.seller.ID,
	})
	require.NoError(t, err)
	payout, err := f.bonuses.PayAll(ctx, f.seller.ID, f.admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, payout.Count)

	_, err = f.sales.ReturnSale(ctx, receipt.Sale.ID, sales.ReturnSaleRequest{Reason: "late", ActorID: f.admin.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrCannotVoidPaidBonus))

	sale, err := f.sales.GetSale(ctx, receipt.Sale.ID)
	require.NoError(t, err)
	assert.False(t, sale.IsReturn)
	assert.Equal(t, 1, f.quantity(t, p.ID))
	assert.Empty(t, f.actions(t, audit.ActionSaleReturned))

	blocked := f.actions(t, audit.ActionReturnBlockedPaidBonus)
	require.Len(t, blocked, 1)
	assert.Equal(t, receipt.Sale.ID, blocked[0].EntityID)
	f.assertConsistent(t)
}

func TestRecordSale_ConcurrentSalesOfLastUnits(t *testing.T) {
	f := newFixture(t, true)
	p := f.addProduct(t, "4601234567898", 3)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sales.RecordSale(context.Background(), sales.RecordSaleRequest{
				ProductID: p.ID, Quantity: 2, SalePrice: decimal.NewFromInt(9000), AgentID: f.seller.ID,
			})
			mu.Lock()
			results = append(results, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, shared.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 1, f.quantity(t, p.ID))
	f.assertConsistent(t)
}

func TestAgentHistoryAndListSales(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.addProduct(t, "4601234567899", 5)

	for _, price := range []int64{9000, 9500} {
		_, err := f.sales.RecordSale(ctx, sales.RecordSaleRequest{
			ProductID: p.ID, Quantity: 1, SalePrice: decimal.NewFromInt(price), AgentID: f.seller.ID,
		})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	history, err := f.sales.AgentHistory(ctx, f.seller.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	page, err := f.sales.ListSales(ctx, sales.SaleQuery{AgentID: f.seller.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	last, err := f.sales.LastSalePrice(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, decimal.NewFromInt(9500).Equal(*last), last.String())

	_, err = f.sales.AgentHistory(ctx, 9999, 0)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

type busyLocker struct {
	requested []int64
}

func (l *busyLocker) LockProduct(_ context.Context, productID int64) (func(), error) {
	l.requested = append(l.requested, productID)
	return nil, lock.ErrLockNotObtained
}

func TestRecordSale_ProductLock(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.addProduct(t, "4601234567899", 2)
	req := sales.RecordSaleRequest{ProductID: p.ID, Quantity: 1, SalePrice: decimal.NewFromInt(9000), AgentID: f.seller.ID}

	t.Run("busy product writes nothing", func(t *testing.T) {
		locker := &busyLocker{}
		svc := sales.NewService(f.ledger.Tx, f.ledger.Repos, stock.NewLedger(zap.NewNop()), f.bonuses, nil, zap.NewNop(),
			sales.WithProductLocker(locker))
		_, err := svc.RecordSale(ctx, req)
		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict), "got %v", err)
		assert.Equal(t, []int64{p.ID}, locker.requested)
		assert.Equal(t, 2, f.quantity(t, p.ID))
		assert.Empty(t, f.actions(t, audit.ActionSaleCreated))
	})

	t.Run("no locker configured", func(t *testing.T) {
		receipt, err := f.sales.RecordSale(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, 1, receipt.StockBalance)
	})
}
