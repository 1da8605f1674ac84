package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryIdempotencyStore_Claim(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	ctx := context.Background()

	ok, err := store.Claim(ctx, "agent:1:sale-abc", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "agent:1:sale-abc", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second claim of the same key is rejected")

	ok, err = store.Claim(ctx, "agent:2:sale-abc", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, store.Len())
}

func TestInMemoryIdempotencyStore_Expiry(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(time.Minute)
	ok, err = store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired claims can be taken again")
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	ctx := context.Background()

	_, err := store.Claim(ctx, "k", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k"))

	ok, err := store.Claim(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemoryIdempotencyStore_ConcurrentClaims(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.Claim(context.Background(), "same", time.Hour); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}
