package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimsAt(jti string, agentID int64, issued time.Time) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: jti, IssuedAt: jwt.NewNumericDate(issued)},
		AgentID:          agentID,
	}
}

func TestMemoryRevocations(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemoryRevocations()
	m.now = func() time.Time { return clock }

	issued := clock.Add(-10 * time.Minute)

	t.Run("single token", func(t *testing.T) {
		require.NoError(t, m.RevokeToken(ctx, "jti-1", time.Minute))

		revoked, err := m.Revoked(ctx, claimsAt("jti-1", 1, issued))
		require.NoError(t, err)
		assert.True(t, revoked)

		revoked, err = m.Revoked(ctx, claimsAt("jti-2", 1, issued))
		require.NoError(t, err)
		assert.False(t, revoked, "other tokens of the agent stay valid")
	})

	t.Run("agent cut-off", func(t *testing.T) {
		require.NoError(t, m.RevokeAgent(ctx, 7, time.Hour))

		tests := []struct {
			name   string
			agent  int64
			issued time.Time
			want   bool
		}{
			{"issued before", 7, issued, true},
			{"issued in the cut-off second", 7, clock.Add(400 * time.Millisecond), true},
			{"issued after", 7, clock.Add(time.Second), false},
			{"other agent", 8, issued, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				revoked, err := m.Revoked(ctx, claimsAt("fresh", tt.agent, tt.issued))
				require.NoError(t, err)
				assert.Equal(t, tt.want, revoked)
			})
		}
	})

	t.Run("entries expire", func(t *testing.T) {
		clock = clock.Add(2 * time.Hour)

		revoked, err := m.Revoked(ctx, claimsAt("jti-1", 7, issued))
		require.NoError(t, err)
		assert.False(t, revoked)
		assert.Empty(t, m.tokens)
		assert.Empty(t, m.agents)
	})
}
