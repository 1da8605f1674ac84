package identity

import (
	"testing"

	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgent(t *testing.T) {
	t.Run("applies placeholders", func(t *testing.T) {
		a, err := NewAgent(42, "", "  ")
		require.NoError(t, err)
		assert.Equal(t, UnknownUsername, a.Username)
		assert.Equal(t, "User 42", a.FullName)
		assert.True(t, a.IsActive)
		assert.False(t, a.IsAdmin)
		assert.Equal(t, "User 42", a.DisplayName())
	})

	t.Run("strips at sign", func(t *testing.T) {
		a, err := NewAgent(42, "@seller", "Ivan Petrov")
		require.NoError(t, err)
		assert.Equal(t, "seller", a.Username)
		assert.Equal(t, "@seller", a.DisplayName())
	})

	t.Run("rejects non-positive telegram id", func(t *testing.T) {
		_, err := NewAgent(0, "x", "y")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestAgent_Permissions(t *testing.T) {
	a, err := NewAgent(7, "seller", "Seller")
	require.NoError(t, err)

	assert.NoError(t, a.EnsureCanAct())
	assert.ErrorIs(t, a.EnsureAdmin(), shared.ErrForbidden)

	a.SetAdmin(true)
	assert.NoError(t, a.EnsureAdmin())
	assert.Equal(t, 2, a.GetVersion())

	a.SetAdmin(true)
	assert.Equal(t, 2, a.GetVersion(), "no-op must not bump version")

	a.Deactivate()
	assert.ErrorIs(t, a.EnsureCanAct(), shared.ErrForbidden)
	assert.ErrorIs(t, a.EnsureAdmin(), shared.ErrForbidden)

	a.Activate()
	assert.NoError(t, a.EnsureCanAct())
}
