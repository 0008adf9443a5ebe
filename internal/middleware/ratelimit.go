package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/httputil"
	"commrouter/internal/metrics"
	"commrouter/internal/tracing"
)

// RateLimiter is a per-client sliding window limiter.
type RateLimiter struct {
	mu          sync.RWMutex
	requests    map[string][]time.Time
	limit       int
	window      time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

// NewRateLimiter allows limit requests per client inside window. A limit
// below one blocks everything.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit < 0 {
		limit = 0
	}
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow records a request from client and reports whether it is within the limit.
func (rl *RateLimiter) Allow(client string) bool {
	if rl.limit == 0 {
		return false
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	if now.Sub(rl.lastCleanup) >= rl.window {
		rl.cleanup(cutoff)
		rl.lastCleanup = now
	}

	recent := rl.requests[client][:0]
	for _, t := range rl.requests[client] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	if len(recent) >= rl.limit {
		rl.requests[client] = recent
		return false
	}
	rl.requests[client] = append(recent, now)
	return true
}

// cleanup drops clients with no request newer than cutoff. Caller holds mu.
func (rl *RateLimiter) cleanup(cutoff time.Time) {
	for client, times := range rl.requests {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(rl.requests, client)
		}
	}
}

// RateLimitMiddleware rejects clients over the limit with 429.
func RateLimitMiddleware(rl *RateLimiter, registry *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl.Allow(httputil.ClientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}
			registry.IncrementCounter("http_rate_limited_total", map[string]string{
				"route": routeTemplate(r),
			}, "Requests rejected by the rate limiter")
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			err := apperrors.New(apperrors.ErrCodeRateLimited, "rate limit exceeded").WithUserMessage("Too many requests")
			err.Retryable = true
			httputil.WriteError(w, err, tracing.GetRequestID(r.Context()))
		})
	}
}
