package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/application/uow"
	"github.com/stickroom/ledger/internal/domain/bonus"
	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/identity"
	"github.com/stickroom/ledger/internal/infrastructure/config"
	"github.com/stickroom/ledger/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// LedgerDB is a migrated SQLite ledger with its unit of work and plain repositories
type LedgerDB struct {
	DB    *gorm.DB
	Tx    uow.TransactionScope
	Repos uow.Repositories
}

// NewLedgerDB opens a file-backed SQLite database in a temp dir and migrates it.
// A file is used rather than :memory: so concurrent transactions share one database.
func NewLedgerDB(t *testing.T) *LedgerDB {
	t.Helper()
	db, err := persistence.Open(&config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		Path:       filepath.Join(t.TempDir(), "ledger.db"),
		MaxRetries: 3,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	return WrapLedgerDB(db.DB)
}

// WrapLedgerDB builds the unit of work and repositories over an already
// migrated database
func WrapLedgerDB(db *gorm.DB) *LedgerDB {
	return &LedgerDB{
		DB:    db,
		Tx:    persistence.NewGormTransactionScope(db),
		Repos: persistence.NewRepositories(db),
	}
}

// SeedAgent inserts an active agent
func (l *LedgerDB) SeedAgent(t *testing.T, telegramID int64, username string, admin bool) *identity.Agent {
	t.Helper()
	agent, err := identity.NewAgent(telegramID, username, "")
	require.NoError(t, err)
	agent.SetAdmin(admin)
	require.NoError(t, l.Repos.Agents().Save(context.Background(), agent))
	return agent
}

// SeedBatch inserts a batch in the shared warehouse
func (l *LedgerDB) SeedBatch(t *testing.T, number string, createdBy int64) *catalog.Batch {
	t.Helper()
	batch, err := catalog.NewBatch(number, "Общий", createdBy, time.Date(2026, 3, 9, 14, 5, 7, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, l.Repos.Batches().Create(context.Background(), batch))
	return batch
}

// SeedBonusRules inserts the default commission schedule
func (l *LedgerDB) SeedBonusRules(t *testing.T) []*bonus.Rule {
	t.Helper()
	rules := make([]*bonus.Rule, 0, 4)
	for _, tier := range bonus.DefaultTiers() {
		rule, err := bonus.NewRule(tier.Min, tier.Max, tier.Percent)
		require.NoError(t, err)
		require.NoError(t, l.Repos.BonusRules().Save(context.Background(), rule))
		rules = append(rules, rule)
	}
	return rules
}

// HockeyStick returns the attributes of the reference product
func HockeyStick(ean string) catalog.Attributes {
	return catalog.Attributes{
		EAN:    ean,
		Name:   "Bauer Vapor",
		Model:  "Hyperlite",
		Color:  "black",
		Size:   "SR",
		Fit:    catalog.FitTapered,
		Weight: decimal.RequireFromString("0.8"),
	}
}

// HockeyStickEconomics returns economics whose cost price is 5940:
// 50 EUR * 95 * 1.2 + 300/kg * 0.8 kg.
func HockeyStickEconomics(retail *decimal.Decimal) catalog.UnitEconomics {
	return catalog.UnitEconomics{
		PriceEUR:       decimal.NewFromInt(50),
		ExchangeRate:   decimal.NewFromInt(95),
		Coefficient:    decimal.RequireFromString("1.2"),
		LogisticsPerKg: decimal.NewFromInt(300),
		RetailPrice:    retail,
	}
}

// Price returns a pointer to a decimal for optional money fields
func Price(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
