package bonus

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBonus(t *testing.T) *Bonus {
	t.Helper()
	rule, err := NewRule(dec(50000), ptr(100000), dec(7))
	require.NoError(t, err)
	rule.ID = 2

	b, err := NewBonus(1, 10, rule, dec(60000))
	require.NoError(t, err)
	return b
}

func TestNewBonus(t *testing.T) {
	b := newTestBonus(t)
	assert.True(t, dec(4200).Equal(b.Amount))
	assert.True(t, dec(7).Equal(b.PercentUsed))
	assert.Equal(t, int64(2), b.RuleID)
	assert.True(t, b.IsLive())

	rule, _ := NewRule(dec(0), ptr(100), dec(5))
	rule.ID = 1
	_, err := NewBonus(1, 10, rule, dec(100))
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	rule.ID = 0
	_, err = NewBonus(1, 10, rule, dec(50))
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestBonus_Void(t *testing.T) {
	t.Run("unpaid bonus is voided", func(t *testing.T) {
		b := newTestBonus(t)
		require.NoError(t, b.Void("returned", time.Now()))
		assert.False(t, b.IsLive())
		assert.Equal(t, "returned", b.VoidReason)
		assert.Len(t, b.GetDomainEvents(), 1)

		require.NoError(t, b.Void("again", time.Now()))
		assert.Len(t, b.GetDomainEvents(), 1)
	})

	t.Run("paid bonus cannot be voided", func(t *testing.T) {
		b := newTestBonus(t)
		require.NoError(t, b.MarkPaid(time.Now()))

		err := b.Void("returned", time.Now())
		assert.ErrorIs(t, err, shared.ErrCannotVoidPaidBonus)
		assert.True(t, b.IsLive())
	})

	t.Run("voided bonus cannot be paid", func(t *testing.T) {
		b := newTestBonus(t)
		require.NoError(t, b.Void("", time.Now()))
		assert.ErrorIs(t, b.MarkPaid(time.Now()), shared.ErrInvalidState)
	})
}

func TestSummarize(t *testing.T) {
	paid := newTestBonus(t)
	require.NoError(t, paid.MarkPaid(time.Now()))
	unpaid := newTestBonus(t)
	voided := newTestBonus(t)
	require.NoError(t, voided.Void("", time.Now()))

	s := Summarize(1, []Bonus{*paid, *unpaid, *voided})

	assert.Equal(t, 2, s.Count)
	assert.True(t, decimal.NewFromInt(8400).Equal(s.Accrued))
	assert.True(t, decimal.NewFromInt(4200).Equal(s.Paid))
	assert.True(t, decimal.NewFromInt(4200).Equal(s.Unpaid))
}
