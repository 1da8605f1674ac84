package bonus

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/pricing"
	"github.com/stickroom/ledger/internal/domain/shared"
)

var hundred = decimal.NewFromInt(100)

// Rule maps the half-open sale amount range [MinAmount, MaxAmount) to a percent.
// A nil MaxAmount means the range is unbounded above.
type Rule struct {
	shared.BaseAggregateRoot
	MinAmount decimal.Decimal
	MaxAmount *decimal.Decimal
	Percent   decimal.Decimal
	IsActive  bool
}

// NewRule creates an active rule
func NewRule(minAmount decimal.Decimal, maxAmount *decimal.Decimal, percent decimal.Decimal) (*Rule, error) {
	if err := validateRange(minAmount, maxAmount, percent); err != nil {
		return nil, err
	}
	return &Rule{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		MinAmount:         minAmount,
		MaxAmount:         maxAmount,
		Percent:           percent,
		IsActive:          true,
	}, nil
}

// Update replaces the range and percent of the rule
func (r *Rule) Update(minAmount decimal.Decimal, maxAmount *decimal.Decimal, percent decimal.Decimal) error {
	if err := validateRange(minAmount, maxAmount, percent); err != nil {
		return err
	}
	r.MinAmount = minAmount
	r.MaxAmount = maxAmount
	r.Percent = percent
	r.touch()
	return nil
}

// SetActive enables or disables the rule
func (r *Rule) SetActive(active bool) {
	if r.IsActive == active {
		return
	}
	r.IsActive = active
	r.touch()
}

// Contains reports whether amount falls inside [min, max)
func (r *Rule) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(r.MinAmount) {
		return false
	}
	return r.MaxAmount == nil || amount.LessThan(*r.MaxAmount)
}

// Overlaps reports whether the two ranges share any amount
func (r *Rule) Overlaps(other *Rule) bool {
	if r.MaxAmount != nil && !other.MinAmount.LessThan(*r.MaxAmount) {
		return false
	}
	if other.MaxAmount != nil && !r.MinAmount.LessThan(*other.MaxAmount) {
		return false
	}
	return true
}

// Compute returns amount * percent / 100 rounded to money precision
func (r *Rule) Compute(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(r.Percent).Div(hundred).Round(pricing.Places)
}

func (r *Rule) touch() {
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
}

func validateRange(minAmount decimal.Decimal, maxAmount *decimal.Decimal, percent decimal.Decimal) error {
	if minAmount.IsNegative() {
		return shared.NewValidationError("Minimum amount cannot be negative")
	}
	if maxAmount != nil && !maxAmount.GreaterThan(minAmount) {
		return shared.NewValidationError("Maximum amount must be greater than minimum amount")
	}
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return shared.NewValidationError("Percent must be between 0 and 100")
	}
	return nil
}

// Selection is the outcome of matching an amount against a rule set
type Selection struct {
	Rule *Rule
	// Matches are all active rules containing the amount; more than one means overlap
	Matches []*Rule
}

// Overlapping reports whether more than one rule matched
func (s Selection) Overlapping() bool {
	return len(s.Matches) > 1
}

// SelectRule picks the active rule containing amount. When several match, the one
// with the lowest MinAmount wins, ties broken by the lowest ID.
// No match yields ErrNoApplicableBonusRule.
func SelectRule(rules []Rule, amount decimal.Decimal) (Selection, error) {
	var matches []*Rule
	for i := range rules {
		r := &rules[i]
		if r.IsActive && r.Contains(amount) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return Selection{}, shared.ErrNoApplicableBonusRule
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if c := matches[i].MinAmount.Cmp(matches[j].MinAmount); c != 0 {
			return c < 0
		}
		return matches[i].ID < matches[j].ID
	})
	return Selection{Rule: matches[0], Matches: matches}, nil
}

// Tier is a configured seed rule
type Tier struct {
	Min     decimal.Decimal
	Max     *decimal.Decimal
	Percent decimal.Decimal
}

// DefaultTiers returns the built-in commission schedule
func DefaultTiers() []Tier {
	bound := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}
	return []Tier{
		{Min: decimal.Zero, Max: bound(50000), Percent: decimal.NewFromInt(5)},
		{Min: decimal.NewFromInt(50000), Max: bound(100000), Percent: decimal.NewFromInt(7)},
		{Min: decimal.NewFromInt(100000), Max: bound(200000), Percent: decimal.NewFromInt(10)},
		{Min: decimal.NewFromInt(200000), Max: nil, Percent: decimal.NewFromInt(12)},
	}
}
