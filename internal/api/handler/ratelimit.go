package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterSweepEvery = 5 * time.Minute
	limiterIdleTTL    = 10 * time.Minute
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimits keeps one token bucket per client IP.
type clientLimits struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	buckets map[string]*clientBucket
}

func newClientLimits(rps, burst int, idleTTL time.Duration) *clientLimits {
	if burst < 1 {
		burst = 1
	}
	return &clientLimits{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		buckets: make(map[string]*clientBucket),
	}
}

// take spends one token for ip. When the bucket is empty it returns false and
// how long the client should wait before retrying.
func (l *clientLimits) take(ip string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// sweep drops buckets idle for longer than idleTTL and returns how many remain.
func (l *clientLimits) sweep() int {
	cutoff := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
	return len(l.buckets)
}

// retryAfter renders a wait as whole seconds, at least 1.
func retryAfter(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// RateLimiter returns a Gin middleware that enforces per-IP token-bucket
// rate limiting. rps is the steady-state requests per second; burst is the
// maximum burst size. Idle clients are forgotten until ctx is done.
func RateLimiter(ctx context.Context, rps, burst int) gin.HandlerFunc {
	limits := newClientLimits(rps, burst, limiterIdleTTL)

	go func() {
		ticker := time.NewTicker(limiterSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limits.sweep()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(c *gin.Context) {
		if ok, wait := limits.take(c.ClientIP()); !ok {
			c.Header("Retry-After", retryAfter(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter(wait),
			})
			return
		}
		c.Next()
	}
}
