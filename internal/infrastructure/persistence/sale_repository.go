package persistence

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/sales"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSaleRepository implements SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// FindByID finds a sale by its ID
func (r *GormSaleRepository) FindByID(ctx context.Context, id int64) (*sales.Sale, error) {
	var model models.SaleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a sale and locks its row
func (r *GormSaleRepository) FindByIDForUpdate(ctx context.Context, id int64) (*sales.Sale, error) {
	var model models.SaleModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// Create inserts a sale
func (r *GormSaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	model := models.SaleModelFromDomain(sale)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	sale.ID = model.ID
	return nil
}

// SaveReturn persists the return flag, reason and time with optimistic locking
func (r *GormSaleRepository) SaveReturn(ctx context.Context, sale *sales.Sale) error {
	result := r.db.WithContext(ctx).Model(&models.SaleModel{}).
		Where("id = ? AND version = ?", sale.ID, sale.Version-1).
		Updates(map[string]any{
			"is_return":     sale.IsReturn,
			"return_reason": sale.ReturnReason,
			"returned_at":   sale.ReturnedAt,
			"updated_at":    sale.UpdatedAt,
			"version":       sale.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindAll lists sales, newest first by default. PageSize 0 returns every match.
func (r *GormSaleRepository) FindAll(ctx context.Context, filter sales.SaleFilter) ([]sales.Sale, error) {
	var rows []models.SaleModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.SaleModel{}), filter)
	query = saleSort.apply(query, filter.Filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSales(rows), nil
}

// Count counts sales matching the filter
func (r *GormSaleRepository) Count(ctx context.Context, filter sales.SaleFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.SaleModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// LastSalePrice returns the price of the latest non-returned sale of a product, or nil
func (r *GormSaleRepository) LastSalePrice(ctx context.Context, productID int64) (*decimal.Decimal, error) {
	var model models.SaleModel
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_return = ?", productID, false).
		Order("sale_date DESC").
		Order("id DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	price := model.SalePrice
	return &price, nil
}

// unassignedSinceRuleChange matches a bonus_unassigned log written after the
// latest bonus rule change. Without rules every such log matches.
const unassignedSinceRuleChange = `EXISTS (SELECT 1 FROM action_logs
	WHERE action_logs.entity_type = ? AND action_logs.entity_id = sales.id AND action_logs.action_type = ?
	AND action_logs.created_at >= COALESCE((SELECT MAX(bonus_rules.updated_at) FROM bonus_rules), action_logs.created_at))`

// FindWithoutBonus lists non-returned sales without a bonus row, by ascending id
func (r *GormSaleRepository) FindWithoutBonus(ctx context.Context, q sales.PendingQuery) ([]sales.Sale, error) {
	var rows []models.SaleModel
	query := r.db.WithContext(ctx).
		Where("sales.id > ? AND sales.is_return = ?", q.AfterID, false).
		Where("NOT EXISTS (SELECT 1 FROM bonuses WHERE bonuses.sale_id = sales.id)").
		Where("NOT "+unassignedSinceRuleChange, audit.EntitySale, string(audit.ActionBonusUnassigned)).
		Order("sales.id ASC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSales(rows), nil
}

func (r *GormSaleRepository) applyFilter(query *gorm.DB, filter sales.SaleFilter) *gorm.DB {
	if filter.AgentID > 0 {
		query = query.Where("agent_id = ?", filter.AgentID)
	}
	if filter.ProductID > 0 {
		query = query.Where("product_id = ?", filter.ProductID)
	}
	if filter.Warehouse != "" {
		query = query.Where("warehouse = ?", filter.Warehouse)
	}
	if !filter.Period.From.IsZero() {
		query = query.Where("sale_date >= ?", filter.Period.From)
	}
	if !filter.Period.To.IsZero() {
		query = query.Where("sale_date < ?", filter.Period.To)
	}
	if !filter.IncludeReturns {
		query = query.Where("is_return = ?", false)
	}
	return query
}

func toSales(rows []models.SaleModel) []sales.Sale {
	out := make([]sales.Sale, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormSaleRepository implements SaleRepository
var _ sales.SaleRepository = (*GormSaleRepository)(nil)
