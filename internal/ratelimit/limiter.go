package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter implements a token bucket rate limiter
type Limiter struct {
	tokens     int
	maxTokens  int
	refillRate time.Duration
	mu         sync.Mutex
	lastRefill time.Time
}

// NewLimiter creates a bucket holding maxTokens that regains one token
// every refillRate.
func NewLimiter(maxTokens int, refillRate time.Duration) *Limiter {
	if maxTokens < 1 {
		maxTokens = 1
	}
	if refillRate <= 0 {
		refillRate = time.Millisecond
	}
	return &Limiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// PerMinute allows n requests per minute with a burst of n.
func PerMinute(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return NewLimiter(n, time.Minute/time.Duration(n))
}

// Allow consumes a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillTokens()

	if l.tokens > 0 {
		l.tokens--
		return true
	}
	return false
}

// WaitContext blocks until a token is taken or ctx is done.
func (l *Limiter) WaitContext(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}
		timer := time.NewTimer(l.pollInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TokensAvailable returns the current number of tokens available
func (l *Limiter) TokensAvailable() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillTokens()
	return l.tokens
}

func (l *Limiter) pollInterval() time.Duration {
	d := l.refillRate / time.Duration(l.maxTokens)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// refillTokens must be called with mu held.
func (l *Limiter) refillTokens() {
	now := time.Now()
	tokensToAdd := int(now.Sub(l.lastRefill) / l.refillRate)

	if tokensToAdd > 0 {
		l.tokens = min(l.maxTokens, l.tokens+tokensToAdd)
		l.lastRefill = l.lastRefill.Add(time.Duration(tokensToAdd) * l.refillRate)
		if l.tokens == l.maxTokens {
			l.lastRefill = now
		}
	}
}
