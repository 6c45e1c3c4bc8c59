package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisStore "order-pay-gateway/internal/adapter/storage/redis"
	"order-pay-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitStore counts requests per key and window.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules derives per-group limits from the configured base
// limit. Admin writes and session issuance get a tenth of it.
func DefaultRateLimitRules(limit int64, window time.Duration) map[string]RateLimitRule {
	strict := limit / 10
	if strict < 1 {
		strict = 1
	}
	return map[string]RateLimitRule{
		"payments": {Limit: limit, Window: window},
		"session":  {Limit: strict, Window: window},
		"admin":    {Limit: strict, Window: window},
		"read":     {Limit: limit, Window: window},
		"ledger":   {Limit: limit, Window: window},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
func RateLimiter(store RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			abort(c, apperror.ErrRateLimitExceeded())
			return
		}

		c.Next()
	}
}

// extractIdentifier keys limits by authenticated caller, then claimed
// caller, then client IP.
func extractIdentifier(c *gin.Context) string {
	if caller, ok := Caller(c); ok {
		return caller.Hex()
	}
	if h := c.GetHeader(HeaderCaller); h != "" {
		return h
	}
	return c.ClientIP()
}
