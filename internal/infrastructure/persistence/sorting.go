package persistence

import (
	"slices"
	"strings"

	"github.com/stickroom/ledger/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sortSpec whitelists the columns a list endpoint may order by. Columns are
// qualified with table so joined queries stay unambiguous.
type sortSpec struct {
	table    string
	fallback string
	columns  []string
}

var (
	agentSort = sortSpec{table: "agents", fallback: "created_at",
		columns: []string{"id", "created_at", "updated_at", "telegram_id", "username", "full_name", "is_admin", "is_active"}}
	batchSort = sortSpec{table: "batches", fallback: "received_at",
		columns: []string{"id", "created_at", "batch_number", "received_at", "warehouse"}}
	productSort = sortSpec{table: "products", fallback: "created_at",
		columns: []string{"id", "created_at", "updated_at", "batch_id", "ean", "name", "model", "quantity", "cost_price", "retail_price"}}
	// unit_cost stays internal
	saleSort = sortSpec{table: "sales", fallback: "sale_date",
		columns: []string{"id", "created_at", "sale_date", "quantity", "sale_price", "margin", "agent_id", "product_id"}}
	bonusSort = sortSpec{table: "bonuses", fallback: "created_at",
		columns: []string{"id", "created_at", "amount", "sale_amount", "paid_at"}}
	stockLogSort = sortSpec{table: "stock_logs", fallback: "created_at",
		columns: []string{"id", "created_at", "operation_type", "quantity"}}
	actionLogSort = sortSpec{table: "action_logs", fallback: "created_at",
		columns: []string{"id", "created_at", "action_type", "entity_type"}}
)

// column returns the requested column when whitelisted, else the fallback.
// Matching is exact: "MARGIN" is not "margin".
func (s sortSpec) column(requested string) string {
	if c := strings.TrimSpace(requested); slices.Contains(s.columns, c) {
		return c
	}
	return s.fallback
}

func descending(dir string) bool {
	return !strings.EqualFold(strings.TrimSpace(dir), "asc")
}

// apply orders by the filter's column, newest first unless "asc" is asked
// for, breaking ties by id in the same direction. A positive PageSize also
// pages the result.
func (s sortSpec) apply(query *gorm.DB, f shared.Filter) *gorm.DB {
	col, desc := s.column(f.OrderBy), descending(f.OrderDir)
	order := clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Table: s.table, Name: col}, Desc: desc},
	}}
	if col != "id" {
		order.Columns = append(order.Columns, clause.OrderByColumn{Column: clause.Column{Table: s.table, Name: "id"}, Desc: desc})
	}
	query = query.Clauses(order)

	if f.PageSize > 0 {
		query = query.Offset((max(f.Page, 1) - 1) * f.PageSize).Limit(f.PageSize)
	}
	return query
}
