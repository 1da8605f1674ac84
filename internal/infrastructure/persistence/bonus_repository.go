package persistence

import (
	"context"

	"github.com/stickroom/ledger/internal/domain/bonus"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormBonusRuleRepository implements RuleRepository using GORM
type GormBonusRuleRepository struct {
	db *gorm.DB
}

// NewGormBonusRuleRepository creates a new GormBonusRuleRepository
func NewGormBonusRuleRepository(db *gorm.DB) *GormBonusRuleRepository {
	return &GormBonusRuleRepository{db: db}
}

// FindByID finds a rule by its ID
func (r *GormBonusRuleRepository) FindByID(ctx context.Context, id int64) (*bonus.Rule, error) {
	var model models.BonusRuleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists rules ordered by min amount then id
func (r *GormBonusRuleRepository) FindAll(ctx context.Context, activeOnly bool) ([]bonus.Rule, error) {
	var rows []models.BonusRuleModel
	query := r.db.WithContext(ctx).Order("min_amount ASC").Order("id ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	rules := make([]bonus.Rule, len(rows))
	for i := range rows {
		rules[i] = *rows[i].ToDomain()
	}
	return rules, nil
}

// Count counts all rules
func (r *GormBonusRuleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BonusRuleModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a rule, checking the version on update
func (r *GormBonusRuleRepository) Save(ctx context.Context, rule *bonus.Rule) error {
	model := models.BonusRuleModelFromDomain(rule)
	if rule.IsNew() {
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			return err
		}
		rule.ID = model.ID
		return nil
	}

	result := r.db.WithContext(ctx).Model(&models.BonusRuleModel{}).
		Where("id = ? AND version = ?", rule.ID, rule.Version-1).
		Updates(map[string]any{
			"min_amount": rule.MinAmount,
			"max_amount": rule.MaxAmount,
			"percent":    rule.Percent,
			"is_active":  rule.IsActive,
			"updated_at": rule.UpdatedAt,
			"version":    rule.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// GormBonusRepository implements BonusRepository using GORM
type GormBonusRepository struct {
	db *gorm.DB
}

// NewGormBonusRepository creates a new GormBonusRepository
func NewGormBonusRepository(db *gorm.DB) *GormBonusRepository {
	return &GormBonusRepository{db: db}
}

// FindByID finds a bonus by its ID
func (r *GormBonusRepository) FindByID(ctx context.Context, id int64) (*bonus.Bonus, error) {
	var model models.BonusModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindLiveBySale finds the non-voided bonus of a sale
func (r *GormBonusRepository) FindLiveBySale(ctx context.Context, saleID int64) (*bonus.Bonus, error) {
	var model models.BonusModel
	if err := r.db.WithContext(ctx).
		First(&model, "sale_id = ? AND voided_at IS NULL", saleID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// ExistsForSale reports whether any bonus row references the sale
func (r *GormBonusRepository) ExistsForSale(ctx context.Context, saleID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BonusModel{}).
		Where("sale_id = ?", saleID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll lists bonuses, newest first by default. PageSize 0 returns every match.
func (r *GormBonusRepository) FindAll(ctx context.Context, filter bonus.BonusFilter) ([]bonus.Bonus, error) {
	var rows []models.BonusModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.BonusModel{}), filter)
	query = bonusSort.apply(query, filter.Filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]bonus.Bonus, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Count counts bonuses matching the filter
func (r *GormBonusRepository) Count(ctx context.Context, filter bonus.BonusFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.BonusModel{}), filter).Count(&count).Error
	return count, err
}

func (r *GormBonusRepository) applyFilter(query *gorm.DB, filter bonus.BonusFilter) *gorm.DB {
	if filter.AgentID > 0 {
		query = query.Where("agent_id = ?", filter.AgentID)
	}
	if filter.UnpaidOnly {
		query = query.Where("is_paid = ?", false)
	}
	if !filter.IncludeVoid {
		query = query.Where("voided_at IS NULL")
	}
	return query
}

// Create inserts a bonus
func (r *GormBonusRepository) Create(ctx context.Context, b *bonus.Bonus) error {
	model := models.BonusModelFromDomain(b)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateUnique(err, shared.ErrAlreadyExists)
	}
	b.ID = model.ID
	return nil
}

// Save persists paid and void state with optimistic locking
func (r *GormBonusRepository) Save(ctx context.Context, b *bonus.Bonus) error {
	result := r.db.WithContext(ctx).Model(&models.BonusModel{}).
		Where("id = ? AND version = ?", b.ID, b.Version-1).
		Updates(map[string]any{
			"is_paid":     b.IsPaid,
			"paid_at":     b.PaidAt,
			"voided_at":   b.VoidedAt,
			"void_reason": b.VoidReason,
			"updated_at":  b.UpdatedAt,
			"version":     b.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// Ensure the GORM repositories implement the bonus interfaces
var (
	_ bonus.RuleRepository  = (*GormBonusRuleRepository)(nil)
	_ bonus.BonusRepository = (*GormBonusRepository)(nil)
)
