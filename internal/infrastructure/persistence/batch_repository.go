package persistence

import (
	"context"
	"strings"

	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id int64) (*catalog.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a batch by its human-readable number
func (r *GormBatchRepository) FindByNumber(ctx context.Context, number string) (*catalog.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).First(&model, "batch_number = ?", number).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists batches, newest first by default
func (r *GormBatchRepository) FindAll(ctx context.Context, filter shared.Filter) ([]catalog.Batch, error) {
	var rows []models.BatchModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.BatchModel{}), filter)
	query = batchSort.apply(query, filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	batches := make([]catalog.Batch, len(rows))
	for i := range rows {
		batches[i] = *rows[i].ToDomain()
	}
	return batches, nil
}

// Count counts batches matching the filter
func (r *GormBatchRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.BatchModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByNumber checks whether a batch number is taken
func (r *GormBatchRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("batch_number = ?", number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a batch
func (r *GormBatchRepository) Create(ctx context.Context, batch *catalog.Batch) error {
	model := models.BatchModelFromDomain(batch)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateUnique(err, shared.ErrDuplicateBatchNumber)
	}
	batch.ID = model.ID
	return nil
}

// Warehouses returns the distinct warehouse labels used by batches
func (r *GormBatchRepository) Warehouses(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Distinct("warehouse").
		Order("warehouse").
		Pluck("warehouse", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

func (r *GormBatchRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("LOWER(batch_number) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	for key, value := range filter.Filters {
		switch key {
		case "warehouse":
			query = query.Where("warehouse = ?", value)
		case "created_by":
			query = query.Where("created_by = ?", value)
		}
	}
	return query
}

// Ensure GormBatchRepository implements BatchRepository
var _ catalog.BatchRepository = (*GormBatchRepository)(nil)
