package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Limiter is a fixed one-minute window counter per client IP.
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time
	rejected     int64

	// Configuration
	requestsPerMinute int
	cleanupInterval   time.Duration
	staleAfter        time.Duration
}

type clientInfo struct {
	windowStart time.Time
	lastRequest time.Time
	requests    int
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	StaleAfter        time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		StaleAfter:        10 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter and starts its cleanup goroutine.
// Call Stop to release it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = def.StaleAfter
	}

	rl := &Limiter{
		clients:           make(map[string]*clientInfo),
		stopCleanup:       make(chan struct{}),
		now:               time.Now,
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
		staleAfter:        config.StaleAfter,
	}
	go rl.startCleanup()
	return rl
}

// Allow checks if a request from the given IP should be allowed
func (rl *Limiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, exists := rl.clients[clientIP]
	if !exists || now.Sub(client.windowStart) >= time.Minute {
		rl.clients[clientIP] = &clientInfo{windowStart: now, lastRequest: now, requests: 1}
		return true
	}

	client.requests++
	client.lastRequest = now
	if client.requests > rl.requestsPerMinute {
		atomic.AddInt64(&rl.rejected, 1)
		return false
	}
	return true
}

// RetryAfter is the time until clientIP's window resets.
func (rl *Limiter) RetryAfter(clientIP string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	client, ok := rl.clients[clientIP]
	if !ok {
		return 0
	}
	d := client.windowStart.Add(time.Minute).Sub(rl.now())
	if d < 0 {
		return 0
	}
	return d
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *Limiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	cutoff := rl.now().Add(-rl.staleAfter)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Rejected returns how many requests were refused since start.
func (rl *Limiter) Rejected() int64 {
	return atomic.LoadInt64(&rl.rejected)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Middleware limits requests whose method is in methods; an empty list
// limits everything. onLimit writes the rejection; a plain 429 is sent
// when it is nil.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request), methods ...string) func(http.Handler) http.Handler {
	limited := make(map[string]bool, len(methods))
	for _, m := range methods {
		limited[m] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(limited) > 0 && !limited[r.Method] {
				next.ServeHTTP(w, r)
				return
			}
			clientIP := extractIP(r)
			if !rl.Allow(clientIP) {
				secs := int(rl.RetryAfter(clientIP).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
