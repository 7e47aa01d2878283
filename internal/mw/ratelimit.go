package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// KeyByIP buckets requests by client address.
func KeyByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// KeyByUser buckets authenticated requests by user and falls back to the
// client address otherwise.
func KeyByUser(c *gin.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return "user:" + id.UserID
	}
	return KeyByIP(c)
}

// KeyedRateLimiter stores a rate limiter per key. Idle limiters expire so
// the table does not grow with every client ever seen.
type KeyedRateLimiter struct {
	limiters *cache.Cache
	mu       sync.Mutex
	r        rate.Limit
	b        int
}

// NewKeyedRateLimiter creates a limiter table whose entries expire after idle.
func NewKeyedRateLimiter(r rate.Limit, b int, idle time.Duration) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: cache.New(idle, 2*idle),
		r:        r,
		b:        b,
	}
}

// GetLimiter returns the rate limiter for key, creating it on first use.
// Every lookup pushes the entry's expiry back, so only idle keys are evicted.
func (k *KeyedRateLimiter) GetLimiter(key string) *rate.Limiter {
	if v, found := k.limiters.Get(key); found {
		limiter := v.(*rate.Limiter)
		k.limiters.SetDefault(key, limiter)
		return limiter
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if v, found := k.limiters.Get(key); found {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(k.r, k.b)
	k.limiters.SetDefault(key, limiter)
	return limiter
}

// Len returns the number of live limiters.
func (k *KeyedRateLimiter) Len() int {
	return k.limiters.ItemCount()
}

// RateLimiter is a middleware for keyed rate limiting.
func RateLimiter(r rate.Limit, b int, key KeyFunc) gin.HandlerFunc {
	limiter := NewKeyedRateLimiter(r, b, 10*time.Minute)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(key(c)).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
