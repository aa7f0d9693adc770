package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/juju/ratelimit"
	"golang.org/x/time/rate"
)

type rateLimiter interface {
	Allow() bool
}

type limiterAdapter struct {
	limiter *rate.Limiter
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) rateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &limiterAdapter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

func (l *limiterAdapter) Allow() bool {
	if l == nil || l.limiter == nil {
		return true
	}
	return l.limiter.Allow()
}

func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow() {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}

// clientLimiter keeps one token bucket per client address. Calculations cost
// more than reads.
type clientLimiter struct {
	rate     float64
	capacity int64

	mu      sync.RWMutex
	clients map[string]*ratelimit.Bucket
}

const (
	calculateCost = 5
	readCost      = 1
)

func newClientLimiter(ratePerSecond float64, capacity int64) *clientLimiter {
	return &clientLimiter{
		rate:     ratePerSecond,
		capacity: capacity,
		clients:  make(map[string]*ratelimit.Bucket),
	}
}

func (cl *clientLimiter) bucket(client string) *ratelimit.Bucket {
	cl.mu.RLock()
	b, ok := cl.clients[client]
	cl.mu.RUnlock()
	if ok {
		return b
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if b, ok = cl.clients[client]; !ok {
		b = ratelimit.NewBucketWithRate(cl.rate, cl.capacity)
		cl.clients[client] = b
	}
	return b
}

// prune drops clients whose bucket has refilled completely.
func (cl *clientLimiter) prune() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	removed := 0
	for client, b := range cl.clients {
		if b.Available() >= b.Capacity() {
			delete(cl.clients, client)
			removed++
		}
	}
	return removed
}

// pruneEvery runs prune on interval until stop is closed.
func (cl *clientLimiter) pruneEvery(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cl.prune()
			case <-stop:
				return
			}
		}
	}()
}

func requestCost(r *http.Request) int64 {
	if r.Method == http.MethodPost {
		return calculateCost
	}
	return readCost
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func clientRateLimitMiddleware(cl *clientLimiter, next http.Handler) http.Handler {
	if cl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := cl.bucket(clientKey(r))
		cost := requestCost(r)

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(b.Capacity(), 10))
		// a rejected request must not drain the tokens it could not use
		if _, ok := b.TakeMaxDuration(cost, 0); !ok {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "Too many requests", "client rate limit exceeded, please retry shortly")
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(b.Available(), 10))
		next.ServeHTTP(w, r)
	})
}
