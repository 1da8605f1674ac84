package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/stickroom/ledger/internal/domain/shared"
)

// Placeholder identity for agents first seen without a profile
const (
	UnknownUsername = "unknown"
	maxNameLength   = 200
)

// Agent is a seller or administrator identified by an external messaging-platform id.
// Agents are never deleted; they are deactivated.
type Agent struct {
	shared.BaseAggregateRoot
	TelegramID int64
	Username   string
	FullName   string
	IsAdmin    bool
	IsActive   bool
}

// NewAgent creates an active, non-admin agent
func NewAgent(telegramID int64, username, fullName string) (*Agent, error) {
	if telegramID <= 0 {
		return nil, shared.NewValidationError("Telegram ID must be positive")
	}

	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		username = UnknownUsername
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		fullName = fmt.Sprintf("User %d", telegramID)
	}
	if len(fullName) > maxNameLength {
		return nil, shared.NewValidationError("Full name cannot exceed 200 characters")
	}

	agent := &Agent{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TelegramID:        telegramID,
		Username:          username,
		FullName:          fullName,
		IsActive:          true,
	}
	return agent, nil
}

// SetAdmin grants or revokes administrator rights
func (a *Agent) SetAdmin(admin bool) {
	if a.IsAdmin == admin {
		return
	}
	a.IsAdmin = admin
	a.touch()
}

// Activate re-enables a deactivated agent
func (a *Agent) Activate() {
	if a.IsActive {
		return
	}
	a.IsActive = true
	a.touch()
}

// Deactivate soft-disables the agent
func (a *Agent) Deactivate() {
	if !a.IsActive {
		return
	}
	a.IsActive = false
	a.touch()
}

// EnsureCanAct returns an error if the agent may not perform mutations
func (a *Agent) EnsureCanAct() error {
	if !a.IsActive {
		return shared.NewDomainError(shared.CodeForbidden, "Agent is deactivated")
	}
	return nil
}

// EnsureAdmin returns an error unless the agent is an active administrator
func (a *Agent) EnsureAdmin() error {
	if err := a.EnsureCanAct(); err != nil {
		return err
	}
	if !a.IsAdmin {
		return shared.NewDomainError(shared.CodeForbidden, "Administrator rights required")
	}
	return nil
}

// DisplayName returns the best human-readable label for the agent
func (a *Agent) DisplayName() string {
	if a.Username != "" && a.Username != UnknownUsername {
		return "@" + a.Username
	}
	return a.FullName
}

func (a *Agent) touch() {
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}
