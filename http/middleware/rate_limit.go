package middlewares

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/resumelab/cv-optimizer/config"
	infraPkg "github.com/resumelab/cv-optimizer/infra"
	"github.com/resumelab/cv-optimizer/utils"
)

// RateLimitMiddleware enforces a fixed-window per-caller request budget backed
// by redis. Authenticated callers are keyed by user_id, anonymous ones by
// client IP. If redis is unreachable the request is allowed through; polling
// must not break because the limiter store is down.
func RateLimitMiddleware(infra *infraPkg.Infra, cfg *config.EnvConfig) gin.HandlerFunc {
	limit := cfg.RateLimit.RequestsPerMinute

	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		caller := c.ClientIP()
		if userID, exists := c.Get("user_id"); exists {
			caller = fmt.Sprintf("%v", userID)
		}
		key := fmt.Sprintf("cvjobs:ratelimit:%s:%d", caller, time.Now().Unix()/60)

		count, err := infra.Redis.Increment(ctx, key)
		if err != nil {
			infra.Logger.WarningWithContextf(ctx, "[RateLimit] Redis unavailable, skipping limit check: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			if err := infra.Redis.Expire(ctx, key, time.Minute); err != nil {
				infra.Logger.WarningWithContextf(ctx, "[RateLimit] Failed to set window expiry: %v", err)
			}
		}

		if count > int64(limit) {
			c.Header("Retry-After", "60")
			utils.JSON429(c, "Too many requests, slow down polling")
			c.Abort()
			return
		}

		c.Next()
	}
}
