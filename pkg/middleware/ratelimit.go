package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/ecommerce/pkg/config"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/ratelimit"
	"github.com/wyfcoding/ecommerce/pkg/response"
)

const placeOrderRoute = "/api/v1/orders"

// RateLimitMiddleware 按路由范围和客户端 IP 限流。
// 下单接口单独计数并可配置更严格的规则；健康检查与指标不计数；限流器故障时放行。
func RateLimitMiddleware(limiter ratelimit.RateLimiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	general := ratelimit.PerSecond(cfg.QPS, cfg.Burst)
	placement := general
	if cfg.PlaceOrderQPS > 0 {
		placement = ratelimit.PerSecond(cfg.PlaceOrderQPS, cfg.PlaceOrderBurst)
	}

	return func(c *gin.Context) {
		if !cfg.Enabled || limiter == nil {
			c.Next()
			return
		}
		path := c.FullPath()
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}

		scope, limit := "api", general
		if c.Request.Method == http.MethodPost && path == placeOrderRoute {
			scope, limit = "place_order", placement
		}

		res, err := limiter.Allow(c.Request.Context(), scope+":"+c.ClientIP(), limit)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "scope", scope, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(res.ResetAfter/time.Second)))
		if !res.Allowed {
			retry := int(res.RetryAfter.Round(time.Second) / time.Second)
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			logger.Info(c.Request.Context(), "request rate limited", "scope", scope, "client_ip", c.ClientIP())
			response.ErrorWithReason(c, http.StatusTooManyRequests, "rate_limited", "too many requests", res.RetryAfter.String())
			return
		}
		c.Next()
	}
}
