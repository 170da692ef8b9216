package middleware

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/congo-pay/custody_auth/internal/apperr"
)

const (
	rateLimitPrefix       = "rl:session:"
	defaultSessionPerMin  = 10
	localLimiterIdleTTL   = 10 * time.Minute
	localLimiterSweepHits = 512
)

// SessionRateLimit limits POST /session per identity (falling back to the
// client IP) using a fixed one-minute Redis window. Without Redis, or when
// Redis fails, a per-process token bucket applies the same budget.
func SessionRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = defaultSessionPerMin
	}
	local := newKeyedLimiter(rate.Limit(float64(maxPerMin)/time.Minute.Seconds()), maxPerMin)

	return func(c *fiber.Ctx) error {
		key := sessionRateKey(c)

		if cache != nil {
			allowed, err := allowRedis(c.UserContext(), cache, key, maxPerMin)
			if err == nil {
				if !allowed {
					return rateLimited(c)
				}
				return c.Next()
			}
			logger.Warn("session rate limit store failed, using local limiter", slog.Any("error", err))
		}

		if !local.Allow(key, time.Now()) {
			return rateLimited(c)
		}
		return c.Next()
	}
}

func sessionRateKey(c *fiber.Ctx) string {
	if id := bodyIdentity(c); id != "" {
		return "id:" + id
	}
	return "ip:" + c.IP()
}

// bodyIdentity reads the session identity (or its legacy email alias) from a
// JSON body. Trimmed, case kept: one key per lease and custody user.
func bodyIdentity(c *fiber.Ctx) string {
	var req struct {
		Identity string `json:"identity"`
		Email    string `json:"email"`
	}
	_ = c.BodyParser(&req)
	if id := strings.TrimSpace(req.Identity); id != "" {
		return id
	}
	return strings.TrimSpace(req.Email)
}

func allowRedis(ctx context.Context, cache *redis.Client, key string, maxPerMin int) (bool, error) {
	redisKey := rateLimitPrefix + key
	cnt, err := cache.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		cache.Expire(ctx, redisKey, time.Minute)
	}
	return cnt <= int64(maxPerMin), nil
}

func rateLimited(c *fiber.Ctx) error {
	c.Set(fiber.HeaderRetryAfter, "60")
	return apperr.New(apperr.KindRateLimited, "session_rate_limit", "too many session requests, try again later")
}

// keyedLimiter holds one token bucket per key and evicts idle entries.
type keyedLimiter struct {
	limit rate.Limit
	burst int

	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newKeyedLimiter(limit rate.Limit, burst int) *keyedLimiter {
	return &keyedLimiter{limit: limit, burst: burst, byKey: make(map[string]*limiterEntry)}
}

func (l *keyedLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%localLimiterSweepHits == 0 {
		cutoff := now.Add(-localLimiterIdleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}
