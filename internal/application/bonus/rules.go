package bonus

import (
	"context"

	"github.com/stickroom/ledger/internal/application/audit"
	"github.com/stickroom/ledger/internal/application/uow"
	domainaudit "github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/bonus"
	"github.com/stickroom/ledger/internal/domain/identity"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ListRules returns bonus rules ordered by minimum amount
func (e *Engine) ListRules(ctx context.Context, activeOnly bool) ([]RuleResponse, error) {
	rules, err := e.repos.BonusRules().FindAll(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]RuleResponse, len(rules))
	for i := range rules {
		out[i] = ToRuleResponse(&rules[i])
	}
	return out, nil
}

// CreateRule adds an active tier. Existing bonuses are never recomputed.
func (e *Engine) CreateRule(ctx context.Context, req RuleRequest, actorID int64) (*RuleResponse, error) {
	var rule *bonus.Rule
	err := e.tx.Execute(ctx, func(repos uow.Repositories) error {
		if _, err := identity.LoadActor(ctx, repos.Agents(), actorID, true); err != nil {
			return err
		}
		var err error
		rule, err = bonus.NewRule(req.MinAmount, req.MaxAmount, req.Percent)
		if err != nil {
			return err
		}
		if err := repos.BonusRules().Save(ctx, rule); err != nil {
			return err
		}
		e.warnOverlaps(ctx, repos, rule)
		return appendRuleLog(ctx, repos, actorID, rule, "created")
	})
	if err != nil {
		return nil, err
	}
	resp := ToRuleResponse(rule)
	return &resp, nil
}

// UpdateRule replaces the range and percent of a tier
func (e *Engine) UpdateRule(ctx context.Context, ruleID int64, req RuleRequest, actorID int64) (*RuleResponse, error) {
	return e.changeRule(ctx, ruleID, actorID, "updated", func(rule *bonus.Rule) error {
		return rule.Update(req.MinAmount, req.MaxAmount, req.Percent)
	})
}

// DeactivateRule stops a tier from matching new sales
func (e *Engine) DeactivateRule(ctx context.Context, ruleID, actorID int64) (*RuleResponse, error) {
	return e.changeRule(ctx, ruleID, actorID, "deactivated", func(rule *bonus.Rule) error {
		rule.SetActive(false)
		return nil
	})
}

// ActivateRule lets a deactivated tier match new sales again
func (e *Engine) ActivateRule(ctx context.Context, ruleID, actorID int64) (*RuleResponse, error) {
	return e.changeRule(ctx, ruleID, actorID, "activated", func(rule *bonus.Rule) error {
		rule.SetActive(true)
		return nil
	})
}

func (e *Engine) changeRule(ctx context.Context, ruleID, actorID int64, event string, apply func(*bonus.Rule) error) (*RuleResponse, error) {
	var rule *bonus.Rule
	err := e.tx.Execute(ctx, func(repos uow.Repositories) error {
		if _, err := identity.LoadActor(ctx, repos.Agents(), actorID, true); err != nil {
			return err
		}
		var err error
		rule, err = repos.BonusRules().FindByID(ctx, ruleID)
		if err != nil {
			return err
		}
		version := rule.Version
		if err := apply(rule); err != nil {
			return err
		}
		if rule.Version == version {
			return nil
		}
		if err := repos.BonusRules().Save(ctx, rule); err != nil {
			return err
		}
		if rule.IsActive {
			e.warnOverlaps(ctx, repos, rule)
		}
		return appendRuleLog(ctx, repos, actorID, rule, event)
	})
	if err != nil {
		return nil, err
	}
	resp := ToRuleResponse(rule)
	return &resp, nil
}

// SeedDefaults inserts the given tiers only when the rule table is empty.
// It returns the number of rules created.
func (e *Engine) SeedDefaults(ctx context.Context, tiers []bonus.Tier) (int, error) {
	created := 0
	err := e.tx.Execute(ctx, func(repos uow.Repositories) error {
		created = 0
		count, err := repos.BonusRules().Count(ctx)
		if err != nil || count > 0 {
			return err
		}
		for _, tier := range tiers {
			rule, err := bonus.NewRule(tier.Min, tier.Max, tier.Percent)
			if err != nil {
				return err
			}
			if err := repos.BonusRules().Save(ctx, rule); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if created > 0 {
		e.logger.Info("default bonus rules seeded", zap.Int("rules", created))
	}
	return created, nil
}

func (e *Engine) warnOverlaps(ctx context.Context, repos uow.Repositories, rule *bonus.Rule) {
	active, err := repos.BonusRules().FindAll(ctx, true)
	if err != nil {
		return
	}
	for i := range active {
		other := &active[i]
		if other.ID != rule.ID && rule.Overlaps(other) {
			logger.Enrich(ctx, e.logger).Warn("bonus rule overlaps another active rule",
				zap.Int64("rule_id", rule.ID), zap.Int64("overlapping_rule_id", other.ID))
		}
	}
}

func appendRuleLog(ctx context.Context, repos uow.Repositories, actorID int64, rule *bonus.Rule, event string) error {
	details := domainaudit.Details{
		"event":      event,
		"min_amount": rule.MinAmount.String(),
		"percent":    rule.Percent.String(),
		"is_active":  rule.IsActive,
	}
	if rule.MaxAmount != nil {
		details["max_amount"] = rule.MaxAmount.String()
	}
	return audit.Append(ctx, repos.ActionLogs(), actorID, domainaudit.ActionBonusRuleChanged, domainaudit.EntityBonusRule, rule.ID, details)
}
