package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-leave/internal/shared/contextutil"
	"go-leave/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	ContextIdempotencyCacheKey = "idempotency_cache_key"
	ContextIdempotencyLockKey  = "idempotency_lock_key"

	idempotencyLockTTL = 30 * time.Second
)

// Idempotency replays the cached response of a POST already completed with the
// same Idempotency-Key and rejects one still in flight. The handler stores the
// response under ContextIdempotencyCacheKey and releases ContextIdempotencyLockKey.
func Idempotency(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		idempKey := c.GetHeader(HeaderIdempotencyKey)
		if rdb == nil || idempKey == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		logger := contextutil.GetLogger(ctx, zap.L())
		userID := c.GetString(ContextUserID)
		cacheKey := fmt.Sprintf("idemp:%s:%s:%s", c.FullPath(), userID, idempKey)
		lockKey := cacheKey + ":lock"

		val, err := rdb.Get(ctx, cacheKey).Result()
		if err == nil {
			var cached any
			if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
				logger.Debug("idempotency replay", zap.String("key", cacheKey))
				c.Header("Idempotent-Replayed", "true")
				response.Success(c, http.StatusOK, cached, nil)
				c.Abort()
				return
			}
		} else if !errors.Is(err, redis.Nil) {
			logger.Warn("idempotency cache lookup failed", zap.Error(err))
			c.Next()
			return
		}

		isNew, err := rdb.SetNX(ctx, lockKey, "locked", idempotencyLockTTL).Result()
		if err != nil {
			logger.Warn("idempotency lock failed", zap.Error(err))
			c.Next()
			return
		}
		if !isNew {
			response.Error(c, http.StatusConflict, "PROCESSING", "Request with this Idempotency-Key is still being processed", nil)
			c.Abort()
			return
		}

		c.Set(ContextIdempotencyCacheKey, cacheKey)
		c.Set(ContextIdempotencyLockKey, lockKey)

		c.Next()
	}
}
