package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MrSnakeDoc/folio/internal/utils"
)

var rateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "folio",
		Name:      "rate_limited_total",
		Help:      "Requests rejected with 429 by a rate limiter",
	},
	[]string{"limiter"},
)

// RateLimitConfig configures a per-client-IP token bucket.
type RateLimitConfig struct {
	Name         string // metric label
	Burst        int
	RefillPerMin int
	// FailuresOnly refunds the token of requests answered below 400, so
	// that only failed attempts drain the bucket.
	FailuresOnly bool
	MaxClients   int           // sweep idle clients early past this size
	IdleTTL      time.Duration // forget clients idle for longer
	TrustProxy   bool          // resolve IP from proxy headers when true
	Now          func() time.Time
}

type allowance struct {
	tokens   float64
	refilled time.Time
}

type ipLimiter struct {
	cfg      RateLimitConfig
	perSec   float64
	capacity float64

	mu        sync.Mutex
	clients   map[string]*allowance
	lastSweep time.Time
}

func newIPLimiter(cfg RateLimitConfig) *ipLimiter {
	cfg.Burst = max(cfg.Burst, 1)
	cfg.RefillPerMin = max(cfg.RefillPerMin, 1)
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	return &ipLimiter{
		cfg:       cfg,
		perSec:    float64(cfg.RefillPerMin) / 60,
		capacity:  float64(cfg.Burst),
		clients:   make(map[string]*allowance),
		lastSweep: cfg.Now(),
	}
}

// take consumes one token for ip. When none is left it returns the number of
// seconds until one is.
func (l *ipLimiter) take(ip string, now time.Time) (ok bool, remaining, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	a := l.clients[ip]
	if a == nil {
		a = &allowance{tokens: l.capacity, refilled: now}
		l.clients[ip] = a
	}
	if elapsed := now.Sub(a.refilled).Seconds(); elapsed > 0 {
		a.tokens = math.Min(l.capacity, a.tokens+elapsed*l.perSec)
		a.refilled = now
	}

	if a.tokens < 1 {
		return false, 0, max(int(math.Ceil((1-a.tokens)/l.perSec)), 1)
	}
	a.tokens--
	return true, int(a.tokens), 0
}

func (l *ipLimiter) refund(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a := l.clients[ip]; a != nil {
		a.tokens = math.Min(l.capacity, a.tokens+1)
	}
}

// sweep drops full, idle allowances. Caller holds l.mu.
func (l *ipLimiter) sweep(now time.Time) {
	crowded := l.cfg.MaxClients > 0 && len(l.clients) >= l.cfg.MaxClients
	if !crowded && now.Sub(l.lastSweep) < time.Minute {
		return
	}
	for ip, a := range l.clients {
		if now.Sub(a.refilled) > l.cfg.IdleTTL {
			delete(l.clients, ip)
		}
	}
	l.lastSweep = now
}

// RateLimit answers 429 with Retry-After once a client has used up its
// bucket. Used on the login route to slow down password guessing.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newIPLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)
	rejected := rateLimitedTotal.WithLabelValues(l.cfg.Name)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, l.cfg.TrustProxy)

			ok, remaining, retry := l.take(ip, l.cfg.Now())
			w.Header().Set("X-RateLimit-Limit", limit)
			if !ok {
				rejected.Inc()
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("X-RateLimit-Remaining", "0")
				writeError(w, http.StatusTooManyRequests, "Too many attempts, try again later")
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !l.cfg.FailuresOnly {
				next.ServeHTTP(w, r)
				return
			}
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)
			if sw.code() < http.StatusBadRequest {
				l.refund(ip)
			}
		})
	}
}
