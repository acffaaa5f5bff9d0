package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// TelemetryRateLimit caps location reports per bus per second using a Redis
// fixed window. Telemetry is the only high-frequency write path; everything
// else rides on the fiber defaults.
func TelemetryRateLimit(rdb *redis.Client, perSecond int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil || perSecond <= 0 {
			return c.Next()
		}

		busID := c.Params("id")
		now := time.Now()
		key := fmt.Sprintf("rl:telemetry:%s:%d", busID, now.Unix())

		ctx := context.Background()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			// Redis trouble never blocks telemetry.
			return c.Next()
		}
		rdb.Expire(ctx, key, 2*time.Second)

		if count > int64(perSecond) {
			c.Set("X-RateLimit-Limit-Second", strconv.Itoa(perSecond))
			c.Set("X-RateLimit-Remaining-Second", "0")
			c.Set("Retry-After", "1")
			return c.Status(429).JSON(fiber.Map{
				"success":     false,
				"error":       "rate_limit_exceeded",
				"message":     "Too many location reports per second",
				"retry_after": 1,
			})
		}
		return c.Next()
	}
}
