package catalog

import (
	"testing"
	"time"

	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatch(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	t.Run("keeps explicit number", func(t *testing.T) {
		b, err := NewBatch("B-001", "Общий", 7, at)
		require.NoError(t, err)
		assert.Equal(t, "B-001", b.BatchNumber)
		assert.Equal(t, "Общий", b.Warehouse)
		assert.Equal(t, int64(7), b.CreatedBy)
		assert.Equal(t, at, b.ReceivedAt)
	})

	t.Run("generates number from receiving time", func(t *testing.T) {
		b, err := NewBatch("", "Общий", 7, at)
		require.NoError(t, err)
		assert.Equal(t, "BATCH-20240309-140507", b.BatchNumber)
	})

	t.Run("normalises warehouse label", func(t *testing.T) {
		b, err := NewBatch("B-002", "  Общий  ", 7, at)
		require.NoError(t, err)
		assert.Equal(t, "Общий", b.Warehouse)
	})

	t.Run("requires warehouse", func(t *testing.T) {
		_, err := NewBatch("B-003", " ", 7, at)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("requires creator", func(t *testing.T) {
		_, err := NewBatch("B-003", "Общий", 0, at)
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("records creation event", func(t *testing.T) {
		b, err := NewBatch("B-004", "Общий", 7, at)
		require.NoError(t, err)
		b.ID = 11
		b.RecordCreated()

		events := b.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeBatchCreated, events[0].Meta().Type)
		assert.Equal(t, int64(11), events[0].Meta().Aggregate.ID)
	})
}
