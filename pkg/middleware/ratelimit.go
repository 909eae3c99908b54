package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Asdisarson/ss/pkg/httputil"
)

// RateLimitConfig configures a per-client token bucket.
type RateLimitConfig struct {
	// Limit is the sustained request rate. Zero or negative disables limiting.
	Limit rate.Limit
	Burst int
	// IdleTTL is how long an idle client's bucket is kept.
	IdleTTL time.Duration
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientBuckets holds one limiter per client IP. Idle buckets are swept
// lazily while handling requests, so no background goroutine is needed.
type clientBuckets struct {
	mu        sync.Mutex
	buckets   map[string]*clientBucket
	cfg       RateLimitConfig
	lastSweep time.Time
	now       func() time.Time
}

func newClientBuckets(cfg RateLimitConfig) *clientBuckets {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 3 * time.Minute
	}
	return &clientBuckets{
		buckets: make(map[string]*clientBucket),
		cfg:     cfg,
		now:     time.Now,
	}
}

func (b *clientBuckets) limiter(ip string) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastSweep) >= b.cfg.IdleTTL {
		for key, c := range b.buckets {
			if now.Sub(c.lastSeen) > b.cfg.IdleTTL {
				delete(b.buckets, key)
			}
		}
		b.lastSweep = now
	}

	c, ok := b.buckets[ip]
	if !ok {
		c = &clientBucket{limiter: rate.NewLimiter(b.cfg.Limit, b.cfg.Burst)}
		b.buckets[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

func (b *clientBuckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buckets)
}

// RateLimit returns middleware enforcing a token bucket per client IP. The
// client is identified by the connection's remote address, the same address
// IPAllowlist checks; forwarding headers are not trusted. Rejected requests
// get 429 with a Retry-After header.
func RateLimit(cfg RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.Limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	buckets := newClientBuckets(cfg)
	return rateLimit(buckets, logger)
}

func rateLimit(buckets *clientBuckets, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := remoteIP(r)
			lim := buckets.limiter(ip)

			res := lim.Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(delay.Round(time.Second)/time.Second)+1))
				httputil.WriteMessage(w, r, http.StatusTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
