package middleware

import (
	"fmt"

	"codeberg.org/cklabs/authserver/internal/errors"
	"codeberg.org/cklabs/authserver/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimit builds a per-client-IP limiter middleware for credential
// endpoints. Backed by Redis when a URL is configured so limits hold
// across replicas; in-memory otherwise.
func RateLimit(formatted, redisURL string) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", formatted, err)
	}

	var store limiter.Store

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}

		store, err = sredis.NewStoreWithOptions(redis.NewClient(opts), limiter.StoreOptions{
			Prefix: "authserver:ratelimit",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate-limit store: %w", err)
		}

		logger.Info("rate limiting backed by redis", "rate", formatted)
	} else {
		store = memory.NewStore()
		logger.Info("rate limiting backed by memory", "rate", formatted)
	}

	return mgin.NewMiddleware(
		limiter.New(store, rate),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			errors.TooManyRequests(c, "too many attempts, slow down")
		}),
	), nil
}
