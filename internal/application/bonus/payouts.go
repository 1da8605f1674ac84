package bonus

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/application/audit"
	"github.com/stickroom/ledger/internal/application/uow"
	domainaudit "github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/bonus"
	"github.com/stickroom/ledger/internal/domain/identity"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ListBonuses returns bonuses newest first
func (e *Engine) ListBonuses(ctx context.Context, q BonusQuery) (shared.Paginated[BonusResponse], error) {
	filter := bonus.BonusFilter{
		Filter:      shared.DefaultFilter(),
		AgentID:     q.AgentID,
		UnpaidOnly:  q.UnpaidOnly,
		IncludeVoid: q.IncludeVoid,
	}
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = q.PageSize
	}
	items, err := e.repos.Bonuses().FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[BonusResponse]{}, err
	}
	total, err := e.repos.Bonuses().Count(ctx, filter)
	if err != nil {
		return shared.Paginated[BonusResponse]{}, err
	}
	out := make([]BonusResponse, len(items))
	for i := range items {
		out[i] = ToBonusResponse(&items[i])
	}
	return shared.NewPaginated(out, total, filter.Page, filter.PageSize), nil
}

// ListUnpaid returns every live unpaid bonus of an agent
func (e *Engine) ListUnpaid(ctx context.Context, agentID int64) ([]BonusResponse, error) {
	items, err := e.repos.Bonuses().FindAll(ctx, bonus.BonusFilter{
		Filter:     shared.Filter{OrderBy: "created_at", OrderDir: "asc"},
		AgentID:    agentID,
		UnpaidOnly: true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]BonusResponse, len(items))
	for i := range items {
		out[i] = ToBonusResponse(&items[i])
	}
	return out, nil
}

// Summary totals an agent's accrued, paid and unpaid bonuses
func (e *Engine) Summary(ctx context.Context, agentID int64) (*bonus.Summary, error) {
	if _, err := e.repos.Agents().FindByID(ctx, agentID); err != nil {
		return nil, err
	}
	items, err := e.repos.Bonuses().FindAll(ctx, bonus.BonusFilter{AgentID: agentID})
	if err != nil {
		return nil, err
	}
	summary := bonus.Summarize(agentID, items)
	return &summary, nil
}

// PayAll marks every live unpaid bonus of an agent paid and returns the total.
// Paying an agent with nothing outstanding returns a zero payout.
func (e *Engine) PayAll(ctx context.Context, agentID, actorID int64) (*PayoutResponse, error) {
	var (
		payout PayoutResponse
		paid   []*bonus.Bonus
	)
	err := e.tx.Execute(ctx, func(repos uow.Repositories) error {
		payout = PayoutResponse{AgentID: agentID, Total: decimal.Zero}
		paid = nil
		if _, err := identity.LoadActor(ctx, repos.Agents(), actorID, true); err != nil {
			return err
		}
		if _, err := repos.Agents().FindByID(ctx, agentID); err != nil {
			return err
		}
		unpaid, err := repos.Bonuses().FindAll(ctx, bonus.BonusFilter{AgentID: agentID, UnpaidOnly: true})
		if err != nil {
			return err
		}
		if len(unpaid) == 0 {
			return nil
		}

		now := e.now()
		ids := make([]int64, 0, len(unpaid))
		for i := range unpaid {
			b := &unpaid[i]
			if err := b.MarkPaid(now); err != nil {
				return err
			}
			if err := repos.Bonuses().Save(ctx, b); err != nil {
				return err
			}
			payout.Count++
			payout.Total = payout.Total.Add(b.Amount)
			ids = append(ids, b.ID)
			paid = append(paid, b)
		}
		return audit.Append(ctx, repos.ActionLogs(), actorID, domainaudit.ActionBonusesPaid, domainaudit.EntityAgent, agentID,
			domainaudit.Details{"count": payout.Count, "total": payout.Total.String(), "bonus_ids": ids})
	})
	if err != nil {
		return nil, err
	}
	if payout.Count > 0 {
		if err := e.publisher.Publish(ctx, bonus.NewBonusesPaidEvent(agentID, payout.Count, payout.Total)); err != nil {
			logger.Enrich(ctx, e.logger).Warn("failed to publish payout event", zap.Error(err))
		}
	}
	logger.Enrich(ctx, e.logger).Info("bonuses paid",
		zap.Int64("agent_id", agentID), zap.Int("count", payout.Count), zap.String("total", payout.Total.String()))
	return &payout, nil
}
