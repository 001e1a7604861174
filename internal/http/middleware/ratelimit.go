package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"svckit/internal/async"
	"svckit/internal/config"
)

// RateLimiter applies a per-client token bucket. Each client (keyed by IP)
// may make cfg.Requests requests per cfg.Window; the bucket refills
// continuously. Responses carry the conventional X-RateLimit-* headers, and
// rejected requests get 429 with Retry-After.
type RateLimiter struct {
	limit  int
	window time.Duration
	every  rate.Limit

	mu      sync.Mutex
	clients map[string]*rateClient
}

type rateClient struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter from the configured requests-per-window.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	limit := cfg.Requests
	if limit <= 0 {
		limit = 60
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		every:   rate.Every(window / time.Duration(limit)),
		clients: make(map[string]*rateClient),
	}
}

func (rl *RateLimiter) client(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[key]
	if !ok {
		cl = &rateClient{limiter: rate.NewLimiter(rl.every, rl.limit)}
		rl.clients[key] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

// Handler returns the fiber middleware handler.
func (rl *RateLimiter) Handler() fiber.Handler {
	windowSecs := strconv.Itoa(int(rl.window.Seconds()))

	return func(c *fiber.Ctx) error {
		limiter := rl.client(c.IP())

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Set("X-RateLimit-Reset", windowSecs)

		if !limiter.Allow() {
			c.Set("X-RateLimit-Remaining", "0")
			c.Set("Retry-After", windowSecs)
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}

		remaining := int(limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		return c.Next()
	}
}

// Janitor sweeps idle client buckets every window until ctx ends. Run it in
// its own goroutine.
func (rl *RateLimiter) Janitor(ctx context.Context) {
	_ = async.Poll(ctx, rl.window, func(context.Context) (bool, error) {
		cutoff := time.Now().Add(-3 * rl.window)

		rl.mu.Lock()
		for key, cl := range rl.clients {
			if cl.lastSeen.Before(cutoff) {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
		return false, nil
	})
}

// Size reports the number of tracked clients. Used by the janitor tests.
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
