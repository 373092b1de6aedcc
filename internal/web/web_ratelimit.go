package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Write endpoints allow a burst of WriteRateBurst requests, refilled at WriteRatePerSecond
const (
	WriteRatePerSecond rate.Limit = 1
	WriteRateBurst                = 10
)

// New visitor sessions are limited per client IP
var (
	SessionCreateRate  = rate.Every(6 * time.Second)
	SessionCreateBurst = 20
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// visitorLimiter keeps one token bucket per key (visitor ID or client IP)
type visitorLimiter struct {
	mux      sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*limiterEntry
}

func newVisitorLimiter(limit rate.Limit, burst int) *visitorLimiter {
	return &visitorLimiter{
		limit:    limit,
		burst:    burst,
		visitors: make(map[string]*limiterEntry),
	}
}

func (vl *visitorLimiter) Allow(visitor string) bool {
	vl.mux.Lock()
	defer vl.mux.Unlock()
	e, ok := vl.visitors[visitor]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(vl.limit, vl.burst)}
		vl.visitors[visitor] = e
	}
	e.lastSeen = time.Now()
	return e.lim.Allow()
}

// Prune drops buckets idle for longer than maxIdle and returns how many were dropped
func (vl *visitorLimiter) Prune(maxIdle time.Duration) int {
	vl.mux.Lock()
	defer vl.mux.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	n := 0
	for visitor, e := range vl.visitors {
		if e.lastSeen.Before(cutoff) {
			delete(vl.visitors, visitor)
			n++
		}
	}
	return n
}

// WriteRateLimit rejects writes from visitors that exceed their bucket
func (s *WebServer) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(visitorID(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please slow down."})
			return
		}
		c.Next()
	}
}
