package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// clientLimiter keeps one token bucket per client address. It backs the
// brute-force limiter on the auth endpoints.
type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (l *clientLimiter) allow(clientKey string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[clientKey]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[clientKey] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
