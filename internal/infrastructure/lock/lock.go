// Package lock serialises work on a product across server processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/infrastructure/config"
	"github.com/stickroom/ledger/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ErrLockNotObtained is returned when the product stays locked after all retries
var ErrLockNotObtained = shared.NewDomainError(shared.CodeConcurrencyConflict, "Product is busy with another sale, try again")

// RedisLocker takes per-product locks in Redis
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	retries int
	backoff time.Duration
	logger  *zap.Logger
}

// NewRedisLocker creates a locker on a shared Redis client
func NewRedisLocker(client *redis.Client, cfg config.RedisConfig, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &RedisLocker{
		client:  redislock.New(client),
		ttl:     cfg.LockTTL,
		retries: cfg.LockRetries,
		backoff: cfg.LockBackoff,
		logger:  logger,
	}
	if l.ttl <= 0 {
		l.ttl = 10 * time.Second
	}
	if l.backoff <= 0 {
		l.backoff = 50 * time.Millisecond
	}
	return l
}

// LockProduct blocks until the product lock is held or retries run out.
// The returned func releases the lock.
func (l *RedisLocker) LockProduct(ctx context.Context, productID int64) (func(), error) {
	key := productKey(productID)
	held, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		logger.Enrich(ctx, l.logger).Warn("product lock not obtained",
			zap.Int64("product_id", productID), zap.Int("retries", l.retries))
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		// Released with a fresh context so a cancelled request still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := held.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release product lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// NopLocker is used when Redis is disabled; the database row lock still applies
type NopLocker struct{}

// LockProduct returns immediately
func (NopLocker) LockProduct(context.Context, int64) (func(), error) {
	return func() {}, nil
}

func productKey(productID int64) string {
	return fmt.Sprintf("ledger:lock:product:%d", productID)
}
