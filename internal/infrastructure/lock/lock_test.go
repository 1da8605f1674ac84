package lock

import (
	"context"
	"testing"

	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopLocker(t *testing.T) {
	unlock, err := NopLocker{}.LockProduct(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	unlock()
}

func TestProductKey(t *testing.T) {
	assert.Equal(t, "ledger:lock:product:42", productKey(42))
}

func TestErrLockNotObtained(t *testing.T) {
	assert.ErrorIs(t, ErrLockNotObtained, shared.ErrConcurrencyConflict)
}
