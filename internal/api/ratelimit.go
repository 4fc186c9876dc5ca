package api

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimitConfig holds rate limiter configuration.
type RateLimitConfig struct {
	RPS   int // requests per second
	Burst int
}

type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(rps, burst int) *tokenBucket {
	if burst < 1 {
		burst = rps
	}
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: float64(rps),
		lastRefill: time.Now(),
	}
}

func (b *tokenBucket) allow(now time.Time) bool {
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*tokenBucket
	cfg     RateLimitConfig
}

// sweep drops buckets idle for longer than maxIdle.
func (rl *rateLimiter) sweep(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for k, v := range rl.clients {
		if now.Sub(v.lastRefill) > maxIdle {
			delete(rl.clients, k)
		}
	}
}

// NewRateLimitMiddleware returns a per-client token-bucket rate limiter. The
// stale-bucket sweeper exits when done is closed.
func NewRateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) fiber.Handler {
	rl := &rateLimiter{
		clients: make(map[string]*tokenBucket),
		cfg:     cfg,
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				rl.sweep(10 * time.Minute)
			}
		}
	}()

	return func(c *fiber.Ctx) error {
		if publicPath(c.Path()) {
			return c.Next()
		}

		ip := c.IP()
		rl.mu.Lock()
		bucket, ok := rl.clients[ip]
		if !ok {
			bucket = newTokenBucket(rl.cfg.RPS, rl.cfg.Burst)
			rl.clients[ip] = bucket
		}
		allowed := bucket.allow(time.Now())
		rl.mu.Unlock()

		if !allowed {
			return problemResponse(c, fiber.StatusTooManyRequests,
				"rate_limit_exceeded", "Too Many Requests",
				"Rate limit exceeded. Please try again later.")
		}
		return c.Next()
	}
}
