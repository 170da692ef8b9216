package middleware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/custody_auth/internal/apperr"
)

// IdempotencyHeader names the logical attempt of an unsafe request.
const IdempotencyHeader = "Idempotency-Key"

const (
	idempotencyPrefix = "idempotency:inflight:v1:"
	inProgressMarker  = "__in_progress__"
	guardStoreTimeout = 2 * time.Second
)

// Idempotency rejects a request while another one for the same identity
// carrying the same Idempotency-Key is still being processed. Responses are never stored: a
// session response carries credentials, so a completed key is released and a
// retry runs the orchestration again under the same custody keys.
// Requests without the header pass through, as do all requests when cache is
// nil.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(IdempotencyHeader))
		if key == "" || cache == nil {
			return c.Next()
		}
		if len(key) > 255 {
			return apperr.Validation("idempotency", "Idempotency-Key must be at most 255 characters")
		}

		cacheKey := idempotencyPrefix + c.Method() + ":" + c.Path() + ":" + bodyIdentity(c) + ":" + key

		ctx, cancel := context.WithTimeout(context.Background(), guardStoreTimeout)
		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		cancel()
		if err != nil {
			logger.Warn("idempotency reservation failed, continuing unguarded",
				slog.String("key", key), slog.Any("error", err))
			return c.Next()
		}
		if !reserved {
			return apperr.New(apperr.KindSessionInProgress, "idempotency", "duplicate request currently processing")
		}

		defer func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), guardStoreTimeout)
			defer cancel()
			if err := cache.Del(cleanupCtx, cacheKey).Err(); err != nil {
				logger.Warn("idempotency release failed", slog.String("key", key), slog.Any("error", err))
			}
		}()

		return c.Next()
	}
}
