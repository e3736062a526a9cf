package httpserver

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Somchit-cmd/adminawaylog/internal/config"
	"github.com/Somchit-cmd/adminawaylog/internal/userctx"
	"golang.org/x/time/rate"
)

// clientIdleTTL — через сколько без запросов клиент забывается
const clientIdleTTL = 10 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters держит token bucket на каждый клиентский IP.
type clientLimiters struct {
	mu        sync.Mutex
	buckets   map[string]*clientBucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

func newClientLimiters(rps, burst int) *clientLimiters {
	return &clientLimiters{
		buckets: make(map[string]*clientBucket),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

func (c *clientLimiters) allow(ip string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) > clientIdleTTL {
		c.sweep(now)
		c.lastSweep = now
	}

	b, ok := c.buckets[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (c *clientLimiters) sweep(now time.Time) {
	for ip, b := range c.buckets {
		if now.Sub(b.lastSeen) > clientIdleTTL {
			delete(c.buckets, ip)
		}
	}
}

// retryAfter — секунды до следующего токена, минимум 1
func (c *clientLimiters) retryAfter() string {
	secs := int(math.Ceil(1 / float64(c.limit)))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// RateLimitMiddleware ограничивает запросы с одного IP (token bucket).
// RATE_LIMIT_RPS <= 0 выключает лимит. /healthz не лимитируется.
func RateLimitMiddleware(cfg *config.Config, next http.Handler) http.Handler {
	if cfg.RateLimitRPS <= 0 {
		return next
	}

	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = cfg.RateLimitRPS
	}
	clients := newClientLimiters(cfg.RateLimitRPS, burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		ip := userctx.GetClientIP(r.Context())
		if ip == "" {
			ip = extractIP(r)
		}

		if !clients.allow(ip, time.Now()) {
			log.Printf("WARN ratelimit: ip=%s path=%s request_id=%s", ip, r.URL.Path, userctx.GetRequestID(r.Context()))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", clients.retryAfter())
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{
					"code":    "rate_limited",
					"message": "Too many requests",
				},
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
