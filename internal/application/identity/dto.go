package identity

import (
	"time"

	"github.com/stickroom/ledger/internal/domain/identity"
)

// GetOrCreateRequest identifies an agent by its messaging-platform profile
type GetOrCreateRequest struct {
	TelegramID int64  `json:"telegram_id" binding:"required,gt=0"`
	Username   string `json:"username" binding:"max=100"`
	FullName   string `json:"full_name" binding:"max=200"`
}

// AgentResponse represents an agent in API responses
type AgentResponse struct {
	ID          int64     `json:"id"`
	TelegramID  int64     `json:"telegram_id"`
	Username    string    `json:"username"`
	FullName    string    `json:"full_name"`
	DisplayName string    `json:"display_name"`
	IsAdmin     bool      `json:"is_admin"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToAgentResponse converts a domain agent to a response
func ToAgentResponse(a *identity.Agent) AgentResponse {
	return AgentResponse{
		ID:          a.ID,
		TelegramID:  a.TelegramID,
		Username:    a.Username,
		FullName:    a.FullName,
		DisplayName: a.DisplayName(),
		IsAdmin:     a.IsAdmin,
		IsActive:    a.IsActive,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// ListAgentsRequest narrows agent listings
type ListAgentsRequest struct {
	Active   *bool
	Admin    *bool
	Search   string
	Page     int
	PageSize int
}
