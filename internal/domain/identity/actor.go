package identity

import (
	"context"
	"errors"

	"github.com/stickroom/ledger/internal/domain/shared"
)

// LoadActor fetches the agent performing a mutation and checks it may act.
// With adminOnly set the agent must also be an administrator.
func LoadActor(ctx context.Context, agents AgentRepository, agentID int64, adminOnly bool) (*Agent, error) {
	if agentID <= 0 {
		return nil, shared.ErrUnauthorized
	}
	agent, err := agents.FindByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError(shared.CodeUnauthorized, "Unknown agent")
		}
		return nil, err
	}
	if adminOnly {
		err = agent.EnsureAdmin()
	} else {
		err = agent.EnsureCanAct()
	}
	if err != nil {
		return nil, err
	}
	return agent, nil
}
