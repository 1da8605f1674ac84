//go:build integration

package integration

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
	"github.com/stickroom/ledger/internal/infrastructure/persistence"
	"github.com/stickroom/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ledgerFixture struct {
	db      *PostgresLedger
	sales   *sales.Service
	bonuses *appbonus.Engine
	catalog *appcatalog.Service
	stock   *stock.Service
	seller  *identity.Agent
	admin   *identity.Agent
	batchID int64
}

func newLedgerFixture(t *testing.T, opts ...sales.Option) *ledgerFixture {
	t.Helper()
	db := NewPostgresLedger(t)
	log := zap.NewNop()
	ledger := stock.NewLedger(log)
	engine := appbonus.NewEngine(db.Tx, db.Repos, nil, log)

	f := &ledgerFixture{
		db:      db,
		bonuses: engine,
		sales:   sales.NewService(db.Tx, db.Repos, ledger, engine, nil, log, opts...),
		catalog: appcatalog.NewService(db.Tx, db.Repos, ledger, nil, log, appcatalog.DefaultSettings()),
		stock:   stock.NewService(db.Tx, log),
		seller:  db.SeedAgent(t, 2001, "seller", false),
		admin:   db.SeedAgent(t, 2002, "boss", true),
	}
	db.SeedBonusRules(t)
	f.batchID = db.SeedBatch(t, "PG-1", f.admin.ID).ID
	return f
}

func (f *ledgerFixture) addProduct(t *testing.T, ean string, qty int) int64 {
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
	return p.ID
}

func (f *ledgerFixture) quantity(t *testing.T, productID int64) int {
	t.Helper()
	p, err := f.db.Repos.Products().FindByID(context.Background(), productID)
	require.NoError(t, err)
	return p.Quantity
}

func (f *ledgerFixture) assertConsistent(t *testing.T) {
	t.Helper()
	report, err := f.stock.VerifyConsistency(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent, "discrepancies: %+v", report.Discrepancies)
}

func TestPostgres_SaleAndReturnLifecycle(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "4601234500001", 3)

	receipt, err := f.sales.RecordSale(ctx, sales.RecordSaleRequest{
		ProductID: productID, Quantity: 2, SalePrice: decimal.NewFromInt(9000), AgentID: f.seller.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.StockBalance)
	assert.True(t, decimal.NewFromInt(18000).Equal(receipt.Sale.Amount), receipt.Sale.Amount.String())
	require.NotNil(t, receipt.Bonus, "bonus error: %s", receipt.BonusError)

	ret, err := f.sales.ReturnSale(ctx, receipt.Sale.ID, sales.ReturnSaleRequest{Reason: "cracked blade", ActorID: f.seller.ID})
	require.NoError(t, err)
	assert.True(t, ret.Sale.IsReturn)
	assert.Equal(t, 3, f.quantity(t, productID))
	require.NotNil(t, ret.VoidedBonus)
	assert.NotNil(t, ret.VoidedBonus.VoidedAt)

	_, err = f.sales.ReturnSale(ctx, receipt.Sale.ID, sales.ReturnSaleRequest{ActorID: f.seller.ID})
	assert.True(t, errors.Is(err, shared.ErrAlreadyReturned))
	f.assertConsistent(t)
}

func TestPostgres_PaidBonusBlocksReturn(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "4601234500002", 2)

	receipt, err := f.sales.RecordSale(ctx, sales.RecordSaleRequest{
		ProductID: productID, Quantity: 1, SalePrice: decimal.NewFromInt(9000), AgentID: f.seller.ID,
	})
	require.NoError(t, err)
	_, err = f.bonuses.PayAll(ctx, f.seller.ID, f.admin.ID)
	require.NoError(t, err)

	_, err = f.sales.ReturnSale(ctx, receipt.Sale.ID, sales.ReturnSaleRequest{ActorID: f.admin.ID})
	assert.True(t, errors.Is(err, shared.ErrCannotVoidPaidBonus))
	assert.Equal(t, 1, f.quantity(t, productID), "rolled back return leaves stock untouched")

	blocked, err := f.db.Repos.ActionLogs().FindAll(ctx, audit.ActionLogFilter{ActionType: audit.ActionReturnBlockedPaidBonus})
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, receipt.Sale.ID, blocked[0].EntityID)
	f.assertConsistent(t)
}

// Two agents race for the last units: 3 in stock, each asks for 2.
func TestPostgres_ConcurrentSalesOfLastUnits(t *testing.T) {
	tests := []struct {
		name string
		opts func(t *testing.T) []sales.Option
	}{
		{
			name: "row lock only",
			opts: func(*testing.T) []sales.Option { return nil },
		},
		{
			name: "with redis product lock",
			opts: func(t *testing.T) []sales.Option {
				client, cfg := NewRedis(t)
				return []sales.Option{sales.WithProductLocker(lock.NewRedisLocker(client, cfg, zap.NewNop()))}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLedgerFixture(t, tt.opts(t)...)
			productID := f.addProduct(t, "4601234500003", 3)
			other := f.db.SeedAgent(t, 2003, "second", false)

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				results []error
			)
			for _, agentID := range []int64{f.seller.ID, other.ID} {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := f.sales.RecordSale(context.Background(), sales.RecordSaleRequest{
						ProductID: productID, Quantity: 2, SalePrice: decimal.NewFromInt(9000), AgentID: agentID,
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
			assert.Equal(t, 1, f.quantity(t, productID))
			f.assertConsistent(t)
		})
	}
}

func TestPostgres_RecoverPendingBonuses(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "4601234500004", 2)

	rules, err := f.db.Repos.BonusRules().FindAll(ctx, true)
	require.NoError(t, err)
	for _, r := range rules {
		_, err := f.bonuses.DeactivateRule(ctx, r.ID, f.admin.ID)
		require.NoError(t, err)
	}

	receipt, err := f.sales.RecordSale(ctx, sales.RecordSaleRequest{
		ProductID: productID, Quantity: 1, SalePrice: decimal.NewFromInt(9000), AgentID: f.seller.ID,
	})
	require.NoError(t, err, "the sale stands without a matching tier")
	assert.Nil(t, receipt.Bonus)
	assert.NotEmpty(t, receipt.BonusError)

	for _, r := range rules {
		_, err := f.bonuses.ActivateRule(ctx, r.ID, f.admin.ID)
		require.NoError(t, err)
	}
	result, err := f.bonuses.RecoverPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accrued)
}

// A return that holds the sale row while an evaluation starts must finish
// first; the evaluation then sees the returned sale and accrues nothing.
func TestPostgres_EvaluateWaitsForConcurrentReturn(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	productID := f.addProduct(t, "4601234500005", 2)
	p, err := f.db.Repos.Products().FindByID(ctx, productID)
	require.NoError(t, err)
	sale, err := domainsales.NewSale(productID, f.seller.ID, 1, decimal.NewFromInt(9000), p.CostPrice, "Общий", time.Now())
	require.NoError(t, err)
	require.NoError(t, f.db.Repos.Sales().Create(ctx, sale))

	tx := f.db.DB.Begin()
	require.NoError(t, tx.Error)
	returning := persistence.NewRepositories(tx)
	locked, err := returning.Sales().FindByIDForUpdate(ctx, sale.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.bonuses.Evaluate(ctx, sale.ID)
		done <- err
	}()
	select {
	case err := <-done:
		tx.Rollback()
		t.Fatalf("evaluation finished while the sale row was locked: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, locked.MarkReturned("changed mind", time.Now()))
	require.NoError(t, returning.Sales().SaveReturn(ctx, locked))
	require.NoError(t, tx.Commit().Error)

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, shared.ErrInvalidState), "got %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("evaluation still blocked after the return committed")
	}
	_, err = f.db.Repos.Bonuses().FindLiveBySale(ctx, sale.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
