package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/Payphone-Digital/storefront/pkg/logger"
	"github.com/Payphone-Digital/storefront/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SlidingWindow counts hits per key over a trailing window. It is process
// local; the redis token bucket covers limits that must be shared.
type SlidingWindow struct {
	mu        sync.Mutex
	hits      map[string][]time.Time
	limit     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// WithClock replaces the time source, used by tests
func (w *SlidingWindow) WithClock(now func() time.Time) *SlidingWindow {
	w.now = now
	return w
}

func (w *SlidingWindow) Limit() int { return w.limit }

// prune drops hits that left the window; caller holds mu
func (w *SlidingWindow) prune(key string, now time.Time) []time.Time {
	hits := w.hits[key]
	cut := 0
	for cut < len(hits) && now.Sub(hits[cut]) >= w.window {
		cut++
	}
	hits = hits[cut:]
	if len(hits) == 0 {
		delete(w.hits, key)
		return nil
	}
	w.hits[key] = hits
	return hits
}

// sweep bounds memory held by idle keys; caller holds mu
func (w *SlidingWindow) sweep(now time.Time) {
	if now.Sub(w.lastSweep) < w.window {
		return
	}
	w.lastSweep = now
	for key := range w.hits {
		w.prune(key, now)
	}
}

func (w *SlidingWindow) retryAfter(hits []time.Time, now time.Time) time.Duration {
	if len(hits) == 0 {
		return 0
	}
	return hits[0].Add(w.window).Sub(now)
}

// Allow records a hit for key when it is under the limit
func (w *SlidingWindow) Allow(key string) (allowed bool, remaining int, retryAfter time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.sweep(now)
	hits := w.prune(key, now)

	if len(hits) >= w.limit {
		return false, 0, w.retryAfter(hits, now)
	}
	w.hits[key] = append(hits, now)
	return true, w.limit - len(hits) - 1, 0
}

// Reserve takes a slot for key in one step and returns the hit so a
// successful request can give it back with Refund
func (w *SlidingWindow) Reserve(key string) (hit time.Time, ok bool, retryAfter time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.sweep(now)
	hits := w.prune(key, now)

	if len(hits) >= w.limit {
		return time.Time{}, false, w.retryAfter(hits, now)
	}
	w.hits[key] = append(hits, now)
	return now, true, 0
}

// Refund removes one hit recorded by Reserve
func (w *SlidingWindow) Refund(key string, hit time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	hits := w.hits[key]
	for i, h := range hits {
		if h.Equal(hit) {
			hits = append(hits[:i:i], hits[i+1:]...)
			break
		}
	}
	if len(hits) == 0 {
		delete(w.hits, key)
		return
	}
	w.hits[key] = hits
}

func rejectTooMany(c *gin.Context, name, message string, retryAfter time.Duration, m *metrics.Metrics) {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}
	logger.GetLogger().Warn("Rate limit exceeded",
		zap.String("limiter", name),
		zap.String("client_ip", c.ClientIP()),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("retry_after_seconds", secs),
	)
	m.RateLimited(name)

	c.Header(constants.HeaderRetryAfter, strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, constants.BuildErrorResponse(message, nil))
}

// RateLimit allows limit requests per window per client ip
func RateLimit(name string, w *SlidingWindow, m *metrics.Metrics, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, remaining, retryAfter := w.Allow(name + ":" + c.ClientIP())

		c.Header("X-RateLimit-Limit", strconv.Itoa(w.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			rejectTooMany(c, name, message, retryAfter, m)
			return
		}
		c.Next()
	}
}

// FailedAttemptLimit counts only responses with an error status, so
// successful logins never use up the allowance. Every request holds a slot
// while it runs; the slot is refunded when the response succeeds.
func FailedAttemptLimit(name string, w *SlidingWindow, m *metrics.Metrics, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := name + ":" + c.ClientIP()

		hit, ok, retryAfter := w.Reserve(key)
		if !ok {
			rejectTooMany(c, name, message, retryAfter, m)
			return
		}

		c.Next()

		if c.Writer.Status() < http.StatusBadRequest {
			w.Refund(key, hit)
		}
	}
}
