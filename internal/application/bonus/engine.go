// Package bonus attributes tiered commissions to sales and pays them out.
package bonus

import (
	"context"
	"errors"
	"time"

	"github.com/stickroom/ledger/internal/application/audit"
	"github.com/stickroom/ledger/internal/application/uow"
	domainaudit "github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/bonus"
	"github.com/stickroom/ledger/internal/domain/identity"
	"github.com/stickroom/ledger/internal/domain/sales"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"github.com/stickroom/ledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const defaultPendingBatch = 500

// Engine evaluates sales against the bonus rule table
type Engine struct {
	tx           uow.TransactionScope
	repos        uow.Repositories
	publisher    shared.EventPublisher
	logger       *zap.Logger
	now          func() time.Time
	pendingBatch int
}

// EngineOption configures the Engine
type EngineOption func(*Engine)

// WithPendingBatch sets how many sales recovery loads per page
func WithPendingBatch(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.pendingBatch = n
		}
	}
}

// NewEngine creates a new bonus Engine
func NewEngine(tx uow.TransactionScope, repos uow.Repositories, publisher shared.EventPublisher, logger *zap.Logger, opts ...EngineOption) *Engine {
	if publisher == nil {
		publisher = shared.NopEventPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{tx: tx, repos: repos, publisher: publisher, logger: logger, now: time.Now, pendingBatch: defaultPendingBatch}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate attributes a bonus to a committed sale in its own transaction.
// Returned sales yield ErrInvalidState, sales that already have a bonus ErrAlreadyExists.
// When no active rule covers the amount a bonus_unassigned log is committed and
// ErrNoApplicableBonusRule is returned.
func (e *Engine) Evaluate(ctx context.Context, saleID int64) (*BonusResponse, error) {
	ctx, op := telemetry.Trace(ctx, "bonus", "evaluate", telemetry.AttrSaleID.Int64(saleID))
	resp, err := e.evaluate(ctx, saleID)
	if err != nil {
		op.End(err)
		return nil, err
	}
	op.Set(telemetry.AttrBonusID.Int64(resp.ID), telemetry.Money(telemetry.AttrAmount, resp.Amount))
	op.End(nil)
	return resp, nil
}

func (e *Engine) evaluate(ctx context.Context, saleID int64) (*BonusResponse, error) {
	log := logger.Enrich(ctx, e.logger)
	var (
		accrued    *bonus.Bonus
		unassigned bool
	)
	err := e.tx.Execute(ctx, func(repos uow.Repositories) error {
		accrued, unassigned = nil, false
		// The row lock orders evaluation against a concurrent ReturnSale: either the
		// return sees the new bonus and voids it, or this read sees the return.
		sale, err := repos.Sales().FindByIDForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.IsReturn {
			return shared.NewDomainError(shared.CodeInvalidState, "Returned sales do not earn bonuses")
		}
		exists, err := repos.Bonuses().ExistsForSale(ctx, sale.ID)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Sale already has a bonus")
		}

		rules, err := repos.BonusRules().FindAll(ctx, true)
		if err != nil {
			return err
		}
		amount := sale.Amount()
		selection, err := bonus.SelectRule(rules, amount)
		if errors.Is(err, shared.ErrNoApplicableBonusRule) {
			unassigned = true
			log.Warn("bonus_unassigned",
				zap.Int64("sale_id", sale.ID), zap.String("amount", amount.String()))
			return audit.Append(ctx, repos.ActionLogs(), 0, domainaudit.ActionBonusUnassigned, domainaudit.EntitySale, sale.ID,
				domainaudit.Details{"agent_id": sale.AgentID, "amount": amount.String()})
		}
		if err != nil {
			return err
		}
		if selection.Overlapping() {
			ids := make([]int64, len(selection.Matches))
			for i, r := range selection.Matches {
				ids[i] = r.ID
			}
			log.Warn("overlapping bonus rules, lowest minimum wins",
				zap.Int64("sale_id", sale.ID), zap.Int64s("rule_ids", ids), zap.Int64("chosen_rule_id", selection.Rule.ID))
		}

		b, err := bonus.NewBonus(sale.AgentID, sale.ID, selection.Rule, amount)
		if err != nil {
			return err
		}
		if err := repos.Bonuses().Create(ctx, b); err != nil {
			return err
		}
		b.RecordAccrued()
		accrued = b
		return audit.Append(ctx, repos.ActionLogs(), sale.AgentID, domainaudit.ActionBonusAccrued, domainaudit.EntityBonus, b.ID,
			domainaudit.Details{
				"sale_id":     sale.ID,
				"rule_id":     b.RuleID,
				"sale_amount": b.SaleAmount.String(),
				"percent":     b.PercentUsed.String(),
				"amount":      b.Amount.String(),
			})
	})
	if err != nil {
		return nil, err
	}
	if unassigned {
		return nil, shared.ErrNoApplicableBonusRule
	}

	e.publish(ctx, accrued)
	log.Info("bonus accrued",
		zap.Int64("bonus_id", accrued.ID), zap.Int64("sale_id", saleID), zap.String("amount", accrued.Amount.String()))
	resp := ToBonusResponse(accrued)
	return &resp, nil
}

// EvaluatePending re-runs evaluation for non-returned sales that have no bonus row.
// It recovers sales whose post-commit evaluation never ran.
func (e *Engine) EvaluatePending(ctx context.Context, actorID int64) (*PendingResult, error) {
	if _, err := identity.LoadActor(ctx, e.repos.Agents(), actorID, true); err != nil {
		return nil, err
	}
	return e.RecoverPending(ctx)
}

// RecoverPending is EvaluatePending without an acting agent, for background jobs.
// It pages through every pending sale once. Sales that fell into a rule gap are
// not retried until a bonus rule changes.
func (e *Engine) RecoverPending(ctx context.Context) (*PendingResult, error) {
	log := logger.Enrich(ctx, e.logger)
	result := &PendingResult{}
	query := sales.PendingQuery{Limit: e.pendingBatch}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		pending, err := e.repos.Sales().FindWithoutBonus(ctx, query)
		if err != nil {
			return result, err
		}
		result.Checked += len(pending)
		for i := range pending {
			_, err := e.Evaluate(ctx, pending[i].ID)
			switch {
			case err == nil:
				result.Accrued++
			case errors.Is(err, shared.ErrNoApplicableBonusRule):
				result.Unassigned++
			case errors.Is(err, shared.ErrAlreadyExists), errors.Is(err, shared.ErrInvalidState):
				// evaluated or returned concurrently
			default:
				result.Failed++
				log.Error("pending bonus evaluation failed", zap.Int64("sale_id", pending[i].ID), zap.Error(err))
			}
		}
		if len(pending) < query.Limit {
			break
		}
		query.AfterID = pending[len(pending)-1].ID
	}
	log.Info("pending bonuses evaluated",
		zap.Int("checked", result.Checked), zap.Int("accrued", result.Accrued),
		zap.Int("unassigned", result.Unassigned), zap.Int("failed", result.Failed))
	return result, nil
}

// VoidOnReturn voids the live bonus of a sale inside the caller's unit of work.
// It returns the voided bonus, or nil when the sale had none.
// A paid bonus yields ErrCannotVoidPaidBonus.
func (e *Engine) VoidOnReturn(ctx context.Context, repos uow.Repositories, sale *sales.Sale, actorID int64) (*bonus.Bonus, error) {
	b, err := repos.Bonuses().FindLiveBySale(ctx, sale.ID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := b.Void("sale returned", e.now()); err != nil {
		return nil, err
	}
	if err := repos.Bonuses().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := audit.Append(ctx, repos.ActionLogs(), actorID, domainaudit.ActionBonusVoided, domainaudit.EntityBonus, b.ID,
		domainaudit.Details{"sale_id": sale.ID, "agent_id": b.AgentID, "amount": b.Amount.String()}); err != nil {
		return nil, err
	}
	return b, nil
}

// PublishEvents publishes the pending events of a bonus after its transaction committed
func (e *Engine) PublishEvents(ctx context.Context, b *bonus.Bonus) {
	e.publish(ctx, b)
}

func (e *Engine) publish(ctx context.Context, b *bonus.Bonus) {
	if b == nil {
		return
	}
	events := b.GetDomainEvents()
	b.ClearDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := e.publisher.Publish(ctx, events...); err != nil {
		logger.Enrich(ctx, e.logger).Warn("failed to publish bonus events", zap.Error(err))
	}
}
