package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stickroom/ledger/internal/infrastructure/cache"
	"github.com/stickroom/ledger/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// IdempotencyHeader carries the client generated key of a mutation
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 128

// Idempotency applies a keyed mutation at most once per ttl. The key is
// scoped to the agent and the route. Requests without the header pass
// through; a reused key gets 409. Server errors release the key so the
// client can retry. Store failures let the request through.
func Idempotency(store cache.IdempotencyStore, ttl time.Duration, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			abort(c, dto.ErrCodeValidationLength, "Idempotency-Key must be at most 128 characters")
			return
		}

		scoped := strconv.FormatInt(GetAgentID(c), 10) + ":" + c.Request.Method + ":" + c.FullPath() + ":" + key
		ctx := c.Request.Context()
		claimed, err := store.Claim(ctx, scoped, ttl)
		if err != nil {
			log.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			abort(c, dto.ErrCodeDuplicateRequest, "This request was already submitted")
			return
		}

		c.Next()

		if c.Writer.Status() >= 500 {
			if err := store.Release(context.WithoutCancel(ctx), scoped); err != nil {
				log.Warn("failed to release idempotency key", zap.Error(err))
			}
		}
	}
}
