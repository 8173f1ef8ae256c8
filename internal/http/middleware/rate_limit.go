package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/umeyka/umeyka-backend/internal/http/response"
	"github.com/umeyka/umeyka-backend/internal/logger"
)

// NewLimiterStore выбирает хранилище счётчиков: Redis, если он подключён, иначе память процесса.
func NewLimiterStore(client *redis.Client) limiter.Store {
	if client != nil {
		store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "ratelimit"})
		if err == nil {
			return store
		}
		logger.WithComponent("ratelimit").WithError(err).Warn("redis store недоступен, используем память")
	}
	return memory.NewStore()
}

// RateLimitMiddleware ограничивает частоту запросов. Ключ - пользователь, если он известен, иначе IP.
// name разделяет счётчики разных групп маршрутов.
func RateLimitMiddleware(store limiter.Store, name string, limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}
	instance := limiter.New(store, limiter.Rate{Period: period, Limit: limit})

	return func(c *gin.Context) {
		key := name + ":" + c.ClientIP()
		if userID, ok := c.Get(ContextUserIDKey); ok {
			if id, ok := userID.(uuid.UUID); ok {
				key = name + ":" + id.String()
			}
		}

		lctx, err := instance.Get(c, key)
		if err != nil {
			// лимитер не должен ронять запросы
			logger.WithComponent("ratelimit").WithError(err).Warn("ошибка лимитера")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			response.Abort(c, http.StatusTooManyRequests, "RATE_LIMITED", "слишком много запросов, попробуйте позже")
			return
		}
		c.Next()
	}
}
