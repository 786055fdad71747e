package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vectra/vtu-backend/internal/interfaces/http/response"
)

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	Rate  int // requests per second
	Burst int // maximum burst size
}

// PurchaseConfig throttles purchase intake per client
var PurchaseConfig = RateLimitConfig{Rate: 5, Burst: 10}

// PollingConfig throttles status polling per client
var PollingConfig = RateLimitConfig{Rate: 20, Burst: 40}

// RateLimiter manages rate limiting using Redis
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	logger   *zap.Logger
	failOpen bool // if true, allow requests when Redis is unavailable
	prefix   string
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redisClient *redis.Client, failOpen bool, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		limiter:  redis_rate.NewLimiter(redisClient),
		logger:   logger,
		failOpen: failOpen,
		prefix:   "ratelimit:",
	}
}

// ByIP keys rate limits on the client address
func ByIP(c *gin.Context) string {
	return c.ClientIP()
}

// Middleware returns a Gin middleware for rate limiting
func (r *RateLimiter) Middleware(keyFunc func(*gin.Context) string, config RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			c.Next()
			return
		}

		limit := redis_rate.PerSecond(config.Rate)
		limit.Burst = config.Burst
		res, err := r.limiter.Allow(context.Background(), r.prefix+key, limit)
		if err != nil {
			r.logger.Error("rate limiter error", zap.Error(err))
			if r.failOpen {
				c.Next()
				return
			}
			response.ServiceUnavailable(c, "Rate limiting unavailable")
			c.Abort()
			return
		}

		if res.Allowed == 0 {
			response.RateLimited(c, int(res.RetryAfter.Seconds()))
			c.Abort()
			return
		}

		c.Next()
	}
}
