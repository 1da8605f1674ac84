package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/identity"
	"github.com/stickroom/ledger/internal/infrastructure/config"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB opens a migrated SQLite database in a temp dir
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

func seedAgent(t *testing.T, db *gorm.DB, telegramID int64) *identity.Agent {
	t.Helper()
	agent, err := identity.NewAgent(telegramID, "seller", "Seller")
	require.NoError(t, err)
	require.NoError(t, NewGormAgentRepository(db).Save(context.Background(), agent))
	return agent
}

func seedBatch(t *testing.T, db *gorm.DB, number string, agentID int64) *catalog.Batch {
	t.Helper()
	batch, err := catalog.NewBatch(number, "Общий", agentID, time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, NewGormBatchRepository(db).Create(context.Background(), batch))
	return batch
}

func seedProduct(t *testing.T, db *gorm.DB, batchID int64, ean, name string) *catalog.Product {
	t.Helper()
	retail := decimal.NewFromInt(9000)
	p, err := catalog.NewProduct(batchID,
		catalog.Attributes{EAN: ean, Name: name, Model: "Vapor", Fit: catalog.FitTapered, Weight: decimal.RequireFromString("0.8")},
		catalog.UnitEconomics{
			PriceEUR:       decimal.NewFromInt(50),
			ExchangeRate:   decimal.NewFromInt(95),
			Coefficient:    decimal.RequireFromString("1.2"),
			LogisticsPerKg: decimal.NewFromInt(300),
			RetailPrice:    &retail,
		})
	require.NoError(t, err)
	require.NoError(t, NewGormProductRepository(db).Create(context.Background(), p))
	return p
}
