// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - base.go: Row and VersionedRow
// - identity.go: agents
// - catalog.go: batches, products
// - sales.go: sales
// - bonus.go: bonus_rules, bonuses
// - audit.go: price_history, stock_logs, action_logs
//
// The SQL migrations under migrations/ are the source of truth for PostgreSQL;
// AllModels is used by AutoMigrate for embedded SQLite databases.
package models

// AllModels returns every persistence model in dependency order
func AllModels() []any {
	return []any{
		&AgentModel{},
		&BatchModel{},
		&ProductModel{},
		&SaleModel{},
		&BonusRuleModel{},
		&BonusModel{},
		&PriceHistoryModel{},
		&StockLogModel{},
		&ActionLogModel{},
	}
}
