package models

import (
	"github.com/stickroom/ledger/internal/domain/identity"
)

// AgentModel is the persistence model for the Agent domain entity.
type AgentModel struct {
	VersionedRow
	TelegramID int64  `gorm:"not null;uniqueIndex:uq_agents_telegram_id"`
	Username   string `gorm:"type:varchar(100);not null;default:'unknown'"`
	FullName   string `gorm:"type:varchar(200);not null"`
	IsAdmin    bool   `gorm:"not null;default:false"`
	IsActive   bool   `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (AgentModel) TableName() string {
	return "agents"
}

// ToDomain converts the persistence model to a domain Agent entity.
func (m *AgentModel) ToDomain() *identity.Agent {
	return &identity.Agent{
		BaseAggregateRoot: m.root(),
		TelegramID:        m.TelegramID,
		Username:          m.Username,
		FullName:          m.FullName,
		IsAdmin:           m.IsAdmin,
		IsActive:          m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain Agent entity.
func (m *AgentModel) FromDomain(a *identity.Agent) {
	m.VersionedRow = versionedRow(a.BaseAggregateRoot)
	m.TelegramID = a.TelegramID
	m.Username = a.Username
	m.FullName = a.FullName
	m.IsAdmin = a.IsAdmin
	m.IsActive = a.IsActive
}

// AgentModelFromDomain creates a new persistence model from a domain Agent entity.
func AgentModelFromDomain(a *identity.Agent) *AgentModel {
	m := &AgentModel{}
	m.FromDomain(a)
	return m
}
