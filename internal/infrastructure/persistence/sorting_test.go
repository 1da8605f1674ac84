package persistence

import (
	"testing"

	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestSortSpec_Column(t *testing.T) {
	tests := []struct {
		name  string
		order sortSpec
		input string
		want  string
	}{
		{"empty falls back", saleSort, "", "sale_date"},
		{"margin is sortable", saleSort, "margin", "margin"},
		{"trimmed", saleSort, "  quantity ", "quantity"},
		{"case sensitive", saleSort, "MARGIN", "sale_date"},
		{"unit cost is not exposed", saleSort, "unit_cost", "sale_date"},
		{"telegram id on agents", agentSort, "telegram_id", "telegram_id"},
		{"sale column on agents", agentSort, "margin", "created_at"},
		{"injection", saleSort, "margin; DROP TABLE sales", "sale_date"},
		{"quoted", saleSort, "margin'--", "sale_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.order.column(tt.input))
		})
	}
}

func TestDescending(t *testing.T) {
	for in, want := range map[string]bool{
		"":                   true,
		"asc":                false,
		"  Asc ":             false,
		"desc":               true,
		"sideways":           true,
		"asc, quantity DESC": true,
	} {
		assert.Equal(t, want, descending(in), "input %q", in)
	}
}

func TestSortSpecs_WhitelistIDAndCreatedAt(t *testing.T) {
	for _, order := range []sortSpec{agentSort, batchSort, productSort, saleSort, bonusSort, stockLogSort, actionLogSort} {
		assert.Contains(t, order.columns, "id", order.table)
		assert.Contains(t, order.columns, "created_at", order.table)
		assert.Contains(t, order.columns, order.fallback, order.table)
	}
}

func TestSortSpec_Apply(t *testing.T) {
	db := newTestDB(t)
	render := func(order sortSpec, f shared.Filter) string {
		return db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			var rows []map[string]any
			return order.apply(tx.Table(order.table), f).Find(&rows)
		})
	}

	t.Run("tie broken by id in the same direction", func(t *testing.T) {
		sql := render(saleSort, shared.Filter{Page: 3, PageSize: 20, OrderBy: "margin", OrderDir: "asc"})
		assert.Contains(t, sql, "ORDER BY `sales`.`margin`,`sales`.`id`")
		assert.Contains(t, sql, "LIMIT 20 OFFSET 40")
	})

	t.Run("unknown column and direction fall back", func(t *testing.T) {
		sql := render(saleSort, shared.Filter{PageSize: 10, OrderBy: "1=1; --", OrderDir: "up"})
		assert.Contains(t, sql, "ORDER BY `sales`.`sale_date` DESC,`sales`.`id` DESC")
		assert.Contains(t, sql, "LIMIT 10")
		assert.NotContains(t, sql, "OFFSET")
	})

	t.Run("page size zero returns everything", func(t *testing.T) {
		sql := render(saleSort, shared.Filter{Page: 2, OrderBy: "id", OrderDir: "desc"})
		assert.Contains(t, sql, "ORDER BY `sales`.`id` DESC")
		assert.NotContains(t, sql, "LIMIT")
		assert.NotContains(t, sql, ",`sales`.`id`")
	})
}
