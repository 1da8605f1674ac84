package persistence

import (
	"context"

	"github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPriceHistoryRepository implements PriceHistoryRepository using GORM
type GormPriceHistoryRepository struct {
	db *gorm.DB
}

// NewGormPriceHistoryRepository creates a new GormPriceHistoryRepository
func NewGormPriceHistoryRepository(db *gorm.DB) *GormPriceHistoryRepository {
	return &GormPriceHistoryRepository{db: db}
}

// Create appends a price change
func (r *GormPriceHistoryRepository) Create(ctx context.Context, entry *audit.PriceHistory) error {
	model := models.PriceHistoryModelFromDomain(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	entry.ID = model.ID
	return nil
}

// FindByProduct lists price changes of a product, oldest first
func (r *GormPriceHistoryRepository) FindByProduct(ctx context.Context, productID int64) ([]audit.PriceHistory, error) {
	var rows []models.PriceHistoryModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("changed_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]audit.PriceHistory, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// GormActionLogRepository implements ActionLogRepository using GORM
type GormActionLogRepository struct {
	db *gorm.DB
}

// NewGormActionLogRepository creates a new GormActionLogRepository
func NewGormActionLogRepository(db *gorm.DB) *GormActionLogRepository {
	return &GormActionLogRepository{db: db}
}

// Create appends an action
func (r *GormActionLogRepository) Create(ctx context.Context, entry *audit.ActionLog) error {
	model := models.ActionLogModelFromDomain(entry)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	entry.ID = model.ID
	return nil
}

// FindAll lists actions, newest first by default
func (r *GormActionLogRepository) FindAll(ctx context.Context, filter audit.ActionLogFilter) ([]audit.ActionLog, error) {
	var rows []models.ActionLogModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ActionLogModel{}), filter)
	query = actionLogSort.apply(query, filter.Filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]audit.ActionLog, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Count counts actions matching the filter
func (r *GormActionLogRepository) Count(ctx context.Context, filter audit.ActionLogFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ActionLogModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormActionLogRepository) applyFilter(query *gorm.DB, filter audit.ActionLogFilter) *gorm.DB {
	if filter.AgentID > 0 {
		query = query.Where("agent_id = ?", filter.AgentID)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID > 0 {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.ActionType != "" {
		query = query.Where("action_type = ?", string(filter.ActionType))
	}
	if !filter.Period.From.IsZero() {
		query = query.Where("created_at >= ?", filter.Period.From)
	}
	if !filter.Period.To.IsZero() {
		query = query.Where("created_at < ?", filter.Period.To)
	}
	return query
}

// Ensure the GORM repositories implement the audit interfaces
var (
	_ audit.PriceHistoryRepository = (*GormPriceHistoryRepository)(nil)
	_ audit.ActionLogRepository    = (*GormActionLogRepository)(nil)
)
