package api

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IPRateLimiter is a per-client token bucket for write endpoints.
type IPRateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     float64 // tokens restored per second
	burst    int
	now      func() time.Time
}

type visitor struct {
	seen      time.Time
	remaining float64
}

func NewIPRateLimiter(rate float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		burst:    burst,
		now:      time.Now,
	}
}

// Middleware rejects requests over budget with 429. A non-positive rate or
// burst disables limiting.
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 || l.burst <= 0 {
			c.Next()
			return
		}

		wait, ok := l.take(c.ClientIP())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":      false,
				"message": "リクエストが多すぎます。しばらくしてから再度お試しください。",
			})
			return
		}
		c.Next()
	}
}

func (l *IPRateLimiter) take(ip string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	idle := time.Duration(float64(l.burst) / l.rate * float64(time.Second))
	for key, v := range l.visitors {
		if now.Sub(v.seen) > idle {
			delete(l.visitors, key)
		}
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{seen: now, remaining: float64(l.burst)}
		l.visitors[ip] = v
	} else {
		v.remaining = math.Min(float64(l.burst), v.remaining+now.Sub(v.seen).Seconds()*l.rate)
		v.seen = now
	}

	if v.remaining < 1 {
		return time.Duration((1 - v.remaining) / l.rate * float64(time.Second)), false
	}
	v.remaining--
	return 0, true
}
