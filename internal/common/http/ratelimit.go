package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AlibekovAA/fincore/internal/common/constants"
	"github.com/AlibekovAA/fincore/internal/observability/metrics"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// prune drops limiters idle for longer than maxIdle. They would have refilled anyway.
func (rl *RateLimiter) prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// EndpointRateLimiter applies a separate budget per auth endpoint and client.
type EndpointRateLimiter struct {
	limiters map[string]*RateLimiter
	general  *RateLimiter
}

func NewEndpointRateLimiter() *EndpointRateLimiter {
	return &EndpointRateLimiter{
		limiters: map[string]*RateLimiter{
			"login":  NewRateLimiter(constants.RateLimitLoginRequestsPerSecond, constants.RateLimitLoginBurst),
			"signup": NewRateLimiter(constants.RateLimitSignupRequestsPerSecond, constants.RateLimitSignupBurst),
			"verify": NewRateLimiter(constants.RateLimitVerifyRequestsPerSecond, constants.RateLimitVerifyBurst),
			"resend": NewRateLimiter(constants.RateLimitResendRequestsPerSecond, constants.RateLimitResendBurst),
			"logout": NewRateLimiter(constants.RateLimitLogoutRequestsPerSecond, constants.RateLimitLogoutBurst),
		},
		general: NewRateLimiter(constants.RateLimitGeneralRequestsPerSecond, constants.RateLimitGeneralBurst),
	}
}

// StartCleanup prunes idle limiters until ctx is done.
func (l *EndpointRateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(constants.RateLimitCleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, rl := range l.limiters {
					rl.prune(constants.RateLimitCleanupInterval)
				}
				l.general.prune(constants.RateLimitCleanupInterval)
			}
		}
	}()
}

// Middleware limits by client address under the named budget. Unknown names
// fall back to the general budget.
func (l *EndpointRateLimiter) Middleware(name string) func(http.Handler) http.Handler {
	limiter, ok := l.limiters[name]
	if !ok {
		limiter = l.general
		name = "general"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(GetClientIP(r)) {
				metrics.RateLimitBlocked.WithLabelValues(r.URL.Path, name).Inc()
				w.Header().Set("Retry-After", "1")
				WriteErrorEnvelope(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", nil, TraceIDFromContext(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
