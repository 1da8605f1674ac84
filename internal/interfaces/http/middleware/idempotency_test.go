package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/infrastructure/cache"
	"github.com/stickroom/ledger/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type failingStore struct{}

func (failingStore) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func (failingStore) Release(context.Context, string) error { return nil }

func idempotentRouter(store cache.IdempotencyStore, status *int, log *zap.Logger) (*gin.Engine, *int) {
	calls := new(int)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(JWTAgentIDKey, int64(5))
		c.Next()
	})
	r.POST("/sales", Idempotency(store, time.Hour, log), func(c *gin.Context) {
		*calls++
		c.Status(*status)
	})
	return r, calls
}

func keyed(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/sales", nil)
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func TestIdempotency_DuplicateRejected(t *testing.T) {
	status := http.StatusCreated
	r, calls := idempotentRouter(cache.NewInMemoryIdempotencyStore(), &status, nil)

	assert.Equal(t, http.StatusCreated, serve(r, keyed("k1")).Code)
	w := serve(r, keyed("k1"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeDuplicateRequest, decodeError(t, w).Code)
	assert.Equal(t, http.StatusCreated, serve(r, keyed("k2")).Code)
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_WithoutHeader(t *testing.T) {
	status := http.StatusCreated
	r, calls := idempotentRouter(cache.NewInMemoryIdempotencyStore(), &status, nil)

	serve(r, keyed(""))
	serve(r, keyed(""))
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	status := http.StatusInternalServerError
	r, calls := idempotentRouter(cache.NewInMemoryIdempotencyStore(), &status, nil)

	assert.Equal(t, http.StatusInternalServerError, serve(r, keyed("k1")).Code)
	status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, serve(r, keyed("k1")).Code)
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_ClientErrorKeepsKey(t *testing.T) {
	status := http.StatusUnprocessableEntity
	r, _ := idempotentRouter(cache.NewInMemoryIdempotencyStore(), &status, nil)

	serve(r, keyed("k1"))
	assert.Equal(t, http.StatusConflict, serve(r, keyed("k1")).Code)
}

func TestIdempotency_StoreFailureFailsOpen(t *testing.T) {
	status := http.StatusCreated
	core, logs := observer.New(zapcore.WarnLevel)
	r, calls := idempotentRouter(failingStore{}, &status, zap.New(core))

	assert.Equal(t, http.StatusCreated, serve(r, keyed("k1")).Code)
	assert.Equal(t, http.StatusCreated, serve(r, keyed("k1")).Code)
	assert.Equal(t, 2, *calls)
	assert.Equal(t, 2, logs.FilterMessage("idempotency store unavailable").Len())
}

func TestIdempotency_KeyTooLong(t *testing.T) {
	status := http.StatusCreated
	r, calls := idempotentRouter(cache.NewInMemoryIdempotencyStore(), &status, nil)

	long := make([]byte, maxIdempotencyKeyLength+1)
	for i := range long {
		long[i] = 'a'
	}
	w := serve(r, keyed(string(long)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, *calls)
}
