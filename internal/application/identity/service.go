// Package identity registers agents and manages their rights.
package identity

import (
	"context"
	"errors"

	"github.com/stickroom/ledger/internal/application/audit"
	"github.com/stickroom/ledger/internal/application/uow"
	domainaudit "github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/identity"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Service handles agent registration and administration
type Service struct {
	tx       uow.TransactionScope
	repos    uow.Repositories
	logger   *zap.Logger
	adminIDs map[int64]struct{}
}

// Option configures the Service
type Option func(*Service)

// WithAdminTelegramIDs promotes the listed messaging ids to administrator on contact
func WithAdminTelegramIDs(ids ...int64) Option {
	return func(s *Service) {
		for _, id := range ids {
			s.adminIDs[id] = struct{}{}
		}
	}
}

// NewService creates a new identity Service
func NewService(tx uow.TransactionScope, repos uow.Repositories, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		tx:       tx,
		repos:    repos,
		logger:   logger,
		adminIDs: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the agent for a messaging id, registering it on first contact.
// The second return value reports whether the agent was created.
func (s *Service) GetOrCreate(ctx context.Context, req GetOrCreateRequest) (*AgentResponse, bool, error) {
	var (
		agent   *identity.Agent
		created bool
	)
	err := s.tx.Execute(ctx, func(repos uow.Repositories) error {
		created = false
		existing, err := repos.Agents().FindByTelegramID(ctx, req.TelegramID)
		switch {
		case err == nil:
			agent = existing
			return s.promoteIfConfigured(ctx, repos, agent)
		case !errors.Is(err, shared.ErrNotFound):
			return err
		}

		agent, err = identity.NewAgent(req.TelegramID, req.Username, req.FullName)
		if err != nil {
			return err
		}
		if _, ok := s.adminIDs[agent.TelegramID]; ok {
			agent.IsAdmin = true
		}
		if err := repos.Agents().Save(ctx, agent); err != nil {
			return err
		}
		created = true
		return audit.Append(ctx, repos.ActionLogs(), agent.ID, domainaudit.ActionAgentChanged, domainaudit.EntityAgent, agent.ID,
			domainaudit.Details{"event": "registered", "telegram_id": agent.TelegramID, "is_admin": agent.IsAdmin})
	})
	if errors.Is(err, shared.ErrAlreadyExists) {
		// Lost a registration race; the winner's row is the agent.
		agent, err = s.repos.Agents().FindByTelegramID(ctx, req.TelegramID)
		created = false
	}
	if err != nil {
		return nil, false, err
	}
	if created {
		logger.Enrich(ctx, s.logger).Info("agent registered",
			zap.Int64("agent_id", agent.ID), zap.Int64("telegram_id", agent.TelegramID), zap.Bool("is_admin", agent.IsAdmin))
	}
	resp := ToAgentResponse(agent)
	return &resp, created, nil
}

func (s *Service) promoteIfConfigured(ctx context.Context, repos uow.Repositories, agent *identity.Agent) error {
	if _, ok := s.adminIDs[agent.TelegramID]; !ok || agent.IsAdmin {
		return nil
	}
	agent.SetAdmin(true)
	if err := repos.Agents().Save(ctx, agent); err != nil {
		return err
	}
	return audit.Append(ctx, repos.ActionLogs(), 0, domainaudit.ActionAgentChanged, domainaudit.EntityAgent, agent.ID,
		domainaudit.Details{"event": "promoted_by_config", "is_admin": true})
}

// Get returns an agent by ID
func (s *Service) Get(ctx context.Context, id int64) (*AgentResponse, error) {
	agent, err := s.repos.Agents().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToAgentResponse(agent)
	return &resp, nil
}

// GetByTelegramID returns an agent by messaging id
func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (*AgentResponse, error) {
	agent, err := s.repos.Agents().FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	resp := ToAgentResponse(agent)
	return &resp, nil
}

// List returns agents matching the request
func (s *Service) List(ctx context.Context, req ListAgentsRequest) (shared.Paginated[AgentResponse], error) {
	filter := shared.DefaultFilter()
	filter.OrderBy = "id"
	filter.OrderDir = "asc"
	filter.Search = req.Search
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.Active != nil {
		filter.Filters["is_active"] = *req.Active
	}
	if req.Admin != nil {
		filter.Filters["is_admin"] = *req.Admin
	}

	agents, err := s.repos.Agents().FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[AgentResponse]{}, err
	}
	total, err := s.repos.Agents().Count(ctx, filter)
	if err != nil {
		return shared.Paginated[AgentResponse]{}, err
	}
	items := make([]AgentResponse, len(agents))
	for i := range agents {
		items[i] = ToAgentResponse(&agents[i])
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// SetAdmin grants or revokes administrator rights. Administrators cannot demote themselves.
func (s *Service) SetAdmin(ctx context.Context, agentID int64, admin bool, actorID int64) (*AgentResponse, error) {
	return s.change(ctx, agentID, actorID, func(agent *identity.Agent) (domainaudit.Details, error) {
		if !admin && agent.ID == actorID {
			return nil, shared.NewValidationError("Administrators cannot revoke their own rights")
		}
		agent.SetAdmin(admin)
		return domainaudit.Details{"event": "admin_changed", "is_admin": admin}, nil
	})
}

// SetActive activates or deactivates an agent. Agents are never deleted.
func (s *Service) SetActive(ctx context.Context, agentID int64, active bool, actorID int64) (*AgentResponse, error) {
	return s.change(ctx, agentID, actorID, func(agent *identity.Agent) (domainaudit.Details, error) {
		if !active && agent.ID == actorID {
			return nil, shared.NewValidationError("Agents cannot deactivate themselves")
		}
		if active {
			agent.Activate()
		} else {
			agent.Deactivate()
		}
		return domainaudit.Details{"event": "active_changed", "is_active": active}, nil
	})
}

func (s *Service) change(ctx context.Context, agentID, actorID int64, apply func(*identity.Agent) (domainaudit.Details, error)) (*AgentResponse, error) {
	var agent *identity.Agent
	err := s.tx.Execute(ctx, func(repos uow.Repositories) error {
		if _, err := identity.LoadActor(ctx, repos.Agents(), actorID, true); err != nil {
			return err
		}
		var err error
		agent, err = repos.Agents().FindByID(ctx, agentID)
		if err != nil {
			return err
		}
		version := agent.Version
		details, err := apply(agent)
		if err != nil {
			return err
		}
		if agent.Version == version {
			return nil
		}
		if err := repos.Agents().Save(ctx, agent); err != nil {
			return err
		}
		return audit.Append(ctx, repos.ActionLogs(), actorID, domainaudit.ActionAgentChanged, domainaudit.EntityAgent, agent.ID, details)
	})
	if err != nil {
		return nil, err
	}
	logger.Enrich(ctx, s.logger).Info("agent changed",
		zap.Int64("agent_id", agent.ID), zap.Bool("is_admin", agent.IsAdmin), zap.Bool("is_active", agent.IsActive))
	resp := ToAgentResponse(agent)
	return &resp, nil
}
