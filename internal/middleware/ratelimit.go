package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/biomarker-assessment-engine/internal/domain"
)

// maxTrackedClients bounds the number of per-client limiters held in memory.
const maxTrackedClients = 10000

// ClientRateLimiter hands out one token bucket per client IP. Idle clients are
// forgotten after ten minutes.
type ClientRateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewClientRateLimiter allows rps requests per second with the given burst.
func NewClientRateLimiter(rps float64, burst int) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, 10*time.Minute),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether client may make a request now.
func (l *ClientRateLimiter) Allow(client string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(client)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(client, limiter)
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// RateLimit rejects requests over the per-client budget with 429.
func RateLimit(limiter *ClientRateLimiter) gin.HandlerFunc {
	retryAfter := "1"
	if limiter.limit > 0 && limiter.limit < 1 {
		retryAfter = strconv.Itoa(int(1 / float64(limiter.limit)))
	}
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, domain.NewAPIError(
				domain.ErrCodeRateLimit, "Rate limit exceeded", "", c.GetString(CorrelationIDKey)))
			return
		}
		c.Next()
	}
}
