package interceptors

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/keyrelay/go-keyrelay-server/ratelimit"
	"github.com/keyrelay/go-keyrelay-server/types"
)

// RateLimitMiddleware throttles issuance endpoints per client. The client key
// combines the IP with browser fingerprint headers so distinct users behind
// one NAT are not lumped together. Limiter state is process local; a restart
// resets the windows.
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip, ipErr := GetIP(c)
		if ipErr != nil {
			// still rate limit under the unknown bucket
		}
		if ip == nil {
			unkn := "unknown"
			ip = &unkn
		}
		userAgent := c.GetHeader("User-Agent")
		acceptLanguage := c.GetHeader("Accept-Language")
		all := fmt.Sprintf("%s%s%s", *ip, userAgent, acceptLanguage)

		allowed, retryAfter := limiter.Allow(all)
		if !allowed {
			minutes := int(math.Ceil(retryAfter.Minutes()))
			c.Writer.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, types.RetryAfterResponse{
				Error:      "too many requests, please try again later",
				RetryAfter: minutes,
			})
			return
		}
		c.Next()
	}
}
