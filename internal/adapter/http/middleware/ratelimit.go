package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iho/trustledger/internal/infrastructure/metrics"
)

// DefaultLimiterIdle is how long a client's bucket survives without traffic.
const DefaultLimiterIdle = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles callers per client IP with a token bucket each.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rate    rate.Limit
	burst   int
	idle    time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRateLimiter allows r requests per second with bursts of b per client.
func NewRateLimiter(r float64, b int, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(r),
		burst:   b,
		idle:    DefaultLimiterIdle,
		metrics: m,
		now:     time.Now,
	}
}

func (rl *RateLimiter) reserve(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, ok := rl.clients[ip]
	if !ok {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[ip] = client
	}
	client.lastSeen = now

	if client.limiter.AllowN(now, 1) {
		return true, 0
	}
	wait := time.Second
	if rl.rate > 0 {
		wait = time.Duration(float64(time.Second) / float64(rl.rate))
	}
	return false, wait
}

// Limit rejects requests over the caller's budget with 429 and Retry-After.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getIP(r)

		allowed, wait := rl.reserve(ip)
		if !allowed {
			if rl.metrics != nil {
				rl.metrics.RateLimitHits.WithLabelValues(ip).Inc()
			}
			seconds := int(wait.Round(time.Second) / time.Second)
			w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getIP extracts the client IP from the request
func getIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// CleanupLimiters forgets clients idle for longer than DefaultLimiterIdle and
// returns how many were dropped. The server calls it periodically.
func (rl *RateLimiter) CleanupLimiters() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idle)
	dropped := 0
	for ip, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
			dropped++
		}
	}
	return dropped
}

// Len reports how many clients are tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
