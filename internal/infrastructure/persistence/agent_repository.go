package persistence

import (
	"context"
	"strings"

	"github.com/stickroom/ledger/internal/domain/identity"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAgentRepository implements AgentRepository using GORM
type GormAgentRepository struct {
	db *gorm.DB
}

// NewGormAgentRepository creates a new GormAgentRepository
func NewGormAgentRepository(db *gorm.DB) *GormAgentRepository {
	return &GormAgentRepository{db: db}
}

// FindByID finds an agent by its ID
func (r *GormAgentRepository) FindByID(ctx context.Context, id int64) (*identity.Agent, error) {
	var model models.AgentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByTelegramID finds an agent by external messaging id
func (r *GormAgentRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*identity.Agent, error) {
	var model models.AgentModel
	if err := r.db.WithContext(ctx).First(&model, "telegram_id = ?", telegramID).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists agents matching the filter
func (r *GormAgentRepository) FindAll(ctx context.Context, filter shared.Filter) ([]identity.Agent, error) {
	var rows []models.AgentModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.AgentModel{}), filter)
	query = agentSort.apply(query, filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	agents := make([]identity.Agent, len(rows))
	for i := range rows {
		agents[i] = *rows[i].ToDomain()
	}
	return agents, nil
}

// Count counts agents matching the filter
func (r *GormAgentRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.AgentModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates an agent. Updates check the version.
func (r *GormAgentRepository) Save(ctx context.Context, agent *identity.Agent) error {
	model := models.AgentModelFromDomain(agent)
	if agent.IsNew() {
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			return translateUnique(err, shared.ErrAlreadyExists)
		}
		agent.ID = model.ID
		return nil
	}

	result := r.db.WithContext(ctx).Model(&models.AgentModel{}).
		Where("id = ? AND version = ?", agent.ID, agent.Version-1).
		Updates(map[string]any{
			"username":   agent.Username,
			"full_name":  agent.FullName,
			"is_admin":   agent.IsAdmin,
			"is_active":  agent.IsActive,
			"updated_at": agent.UpdatedAt,
			"version":    agent.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

func (r *GormAgentRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}
	for key, value := range filter.Filters {
		switch key {
		case "is_active":
			query = query.Where("is_active = ?", value)
		case "is_admin":
			query = query.Where("is_admin = ?", value)
		}
	}
	return query
}

// Ensure GormAgentRepository implements AgentRepository
var _ identity.AgentRepository = (*GormAgentRepository)(nil)
