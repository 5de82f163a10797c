package httpadapter

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// tenantLimiters hands out one token bucket per tenant; unauthenticated or
// tenant-less requests share the "anonymous" bucket.
type tenantLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newTenantLimiters(rps float64, burst int) *tenantLimiters {
	if burst <= 0 {
		burst = 1
	}
	return &tenantLimiters{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (tl *tenantLimiters) get(tenantID string) *rate.Limiter {
	if tenantID == "" {
		tenantID = "anonymous"
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	limiter, ok := tl.limiters[tenantID]
	if !ok {
		limiter = rate.NewLimiter(tl.rps, tl.burst)
		tl.limiters[tenantID] = limiter
	}
	return limiter
}

func (rt *Router) rateLimitMiddleware(next http.Handler) http.Handler {
	limiters := newTenantLimiters(rt.tenantRPS, rt.tenantBurst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isProtectedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		tenantID := strings.TrimSpace(r.Header.Get(tenantIDHeader))
		limiter := limiters.get(tenantID)
		if !limiter.Allow() {
			if rt.metrics != nil {
				rt.metrics.RecordRateLimited()
			}
			w.Header().Set("Retry-After", retryAfterValue(time.Second))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func retryAfterValue(d time.Duration) string {
	seconds := int(d / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
