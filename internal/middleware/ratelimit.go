package middleware

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Limits are the allowed requests per client IP; zero disables a level
type Limits struct {
	PerSecond int
	PerDay    int
}

// Counter increments a windowed request counter
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter keeps counters in Redis with INCR + EXPIRE
type RedisCounter struct {
	Client *redis.Client
}

func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.Client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimitMiddleware limits requests per client IP per second and per day.
// Counter failures let the request through.
func RateLimitMiddleware(counter Counter, limits Limits) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()
		now := time.Now()
		ip := c.IP()

		if limits.PerSecond > 0 {
			key := fmt.Sprintf("rl:ip:%s:second:%d", ip, now.Unix())
			count, err := counter.Incr(ctx, key, 2*time.Second)
			if err != nil {
				log.Printf("Warning: rate limit counter failed: %v", err)
			} else if count > int64(limits.PerSecond) {
				c.Set("X-RateLimit-Limit-Second", strconv.Itoa(limits.PerSecond))
				c.Set("X-RateLimit-Remaining-Second", "0")
				c.Set("X-RateLimit-Reset-Second", strconv.FormatInt(now.Unix()+1, 10))
				c.Set("Retry-After", "1")

				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":       "rate_limit_exceeded",
					"message":     "Too many requests per second",
					"limit_type":  "per_second",
					"limit":       limits.PerSecond,
					"retry_after": 1,
				})
			} else {
				c.Set("X-RateLimit-Remaining-Second", strconv.FormatInt(int64(limits.PerSecond)-count, 10))
			}
			c.Set("X-RateLimit-Limit-Second", strconv.Itoa(limits.PerSecond))
		}

		if limits.PerDay > 0 {
			key := fmt.Sprintf("rl:ip:%s:day:%s", ip, now.Format("2006-01-02"))
			count, err := counter.Incr(ctx, key, 25*time.Hour) // 25 hours to handle timezone differences
			if err != nil {
				log.Printf("Warning: rate limit counter failed: %v", err)
			} else if count > int64(limits.PerDay) {
				tomorrow := now.AddDate(0, 0, 1)
				midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
				retryAfter := int64(midnight.Sub(now).Seconds())

				c.Set("X-RateLimit-Limit-Day", strconv.Itoa(limits.PerDay))
				c.Set("X-RateLimit-Remaining-Day", "0")
				c.Set("X-RateLimit-Reset-Day", strconv.FormatInt(midnight.Unix(), 10))
				c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":       "daily_quota_exceeded",
					"message":     "Daily quota exceeded",
					"limit_type":  "per_day",
					"limit":       limits.PerDay,
					"used":        count,
					"retry_after": retryAfter,
					"reset_at":    midnight.Format(time.RFC3339),
				})
			} else {
				c.Set("X-RateLimit-Remaining-Day", strconv.FormatInt(int64(limits.PerDay)-count, 10))
			}
			c.Set("X-RateLimit-Limit-Day", strconv.Itoa(limits.PerDay))
		}

		return c.Next()
	}
}
