package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig allows Max requests per Window for every key.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// KeyFunc selects the bucket of a request; the client IP by default.
	KeyFunc func(*http.Request) string
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

type buckets struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
}

func newBuckets(cfg RateLimitConfig) *buckets {
	return &buckets{
		limit:    rate.Limit(float64(cfg.Max) / cfg.Window.Seconds()),
		burst:    cfg.Max,
		visitors: make(map[string]*visitor),
	}
}

func (b *buckets) get(key string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.visitors[key] = v
	}
	v.seen = now
	return v.limiter
}

// sweep forgets keys idle for longer than idle; their buckets are full again.
func (b *buckets) sweep(now time.Time, idle time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, v := range b.visitors {
		if now.Sub(v.seen) > idle {
			delete(b.visitors, key)
		}
	}
}

// RateLimit rejects requests above the configured rate with 429. Every
// response carries X-RateLimit-Limit and X-RateLimit-Remaining; rejected ones
// also carry Retry-After. Idle keys are evicted until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	b := newBuckets(cfg)

	go func() {
		ticker := time.NewTicker(2 * cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				b.sweep(now, 2*cfg.Window)
			}
		}
	}()

	limit := strconv.Itoa(cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			lim := b.get(cfg.KeyFunc(r), now)

			allowed := lim.AllowN(now, 1)
			remaining := int(math.Max(0, math.Floor(lim.TokensAt(now))))

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				wait := time.Duration(float64(time.Second) * (1 - lim.TokensAt(now)) / float64(lim.Limit()))
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
