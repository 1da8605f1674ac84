package bonus

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func ptr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func defaultRules(t *testing.T) []Rule {
	t.Helper()
	var rules []Rule
	for i, tier := range DefaultTiers() {
		r, err := NewRule(tier.Min, tier.Max, tier.Percent)
		require.NoError(t, err)
		r.ID = int64(i + 1)
		rules = append(rules, *r)
	}
	return rules
}

func TestNewRule_Validation(t *testing.T) {
	tests := []struct {
		name    string
		min     decimal.Decimal
		max     *decimal.Decimal
		percent decimal.Decimal
		ok      bool
	}{
		{"bounded", dec(0), ptr(100), dec(5), true},
		{"unbounded", dec(200000), nil, dec(12), true},
		{"zero percent", dec(0), nil, dec(0), true},
		{"hundred percent", dec(0), nil, dec(100), true},
		{"negative min", dec(-1), nil, dec(5), false},
		{"max equal min", dec(10), ptr(10), dec(5), false},
		{"max below min", dec(10), ptr(5), dec(5), false},
		{"percent over hundred", dec(0), nil, dec(101), false},
		{"negative percent", dec(0), nil, dec(-1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRule(tt.min, tt.max, tt.percent)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, shared.ErrValidation)
			}
		})
	}
}

func TestSelectRule_DefaultTiers(t *testing.T) {
	rules := defaultRules(t)

	tests := []struct {
		amount  int64
		ruleID  int64
		percent int64
	}{
		{0, 1, 5},
		{49999, 1, 5},
		{50000, 2, 7},
		{60000, 2, 7},
		{99999, 2, 7},
		{100000, 3, 10},
		{200000, 4, 12},
		{10000000, 4, 12},
	}
	for _, tt := range tests {
		sel, err := SelectRule(rules, dec(tt.amount))
		require.NoError(t, err, "amount %d", tt.amount)
		assert.Equal(t, tt.ruleID, sel.Rule.ID, "amount %d", tt.amount)
		assert.True(t, dec(tt.percent).Equal(sel.Rule.Percent))
		assert.False(t, sel.Overlapping())
	}
}

func TestSelectRule_Scenario60000(t *testing.T) {
	sel, err := SelectRule(defaultRules(t), dec(60000))
	require.NoError(t, err)
	assert.True(t, dec(4200).Equal(sel.Rule.Compute(dec(60000))))
}

func TestSelectRule_Gap(t *testing.T) {
	r1, _ := NewRule(dec(0), ptr(100), dec(5))
	r1.ID = 1
	r2, _ := NewRule(dec(200), nil, dec(10))
	r2.ID = 2

	_, err := SelectRule([]Rule{*r1, *r2}, dec(150))
	assert.ErrorIs(t, err, shared.ErrNoApplicableBonusRule)
}

func TestSelectRule_IgnoresInactive(t *testing.T) {
	rules := defaultRules(t)
	rules[1].IsActive = false

	_, err := SelectRule(rules, dec(60000))
	assert.ErrorIs(t, err, shared.ErrNoApplicableBonusRule)
}

func TestSelectRule_OverlapPicksLowestMin(t *testing.T) {
	wide, _ := NewRule(dec(0), nil, dec(3))
	wide.ID = 9
	narrow, _ := NewRule(dec(50000), ptr(100000), dec(7))
	narrow.ID = 2
	twin, _ := NewRule(dec(0), ptr(70000), dec(4))
	twin.ID = 5

	sel, err := SelectRule([]Rule{*narrow, *wide, *twin}, dec(60000))
	require.NoError(t, err)
	assert.True(t, sel.Overlapping())
	assert.Len(t, sel.Matches, 3)
	assert.Equal(t, int64(5), sel.Rule.ID, "lowest min wins, ties by lowest id")
}

func TestRule_Overlaps(t *testing.T) {
	a, _ := NewRule(dec(0), ptr(100), dec(1))
	b, _ := NewRule(dec(100), ptr(200), dec(1))
	c, _ := NewRule(dec(150), nil, dec(1))

	assert.False(t, a.Overlaps(b))
	assert.False(t, b.Overlaps(a))
	assert.True(t, b.Overlaps(c))
	assert.True(t, c.Overlaps(b))
}
