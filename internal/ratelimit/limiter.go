// Package ratelimit implements per-client token bucket rate limiting for the
// sandbox HTTP API.
package ratelimit

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long an idle, full bucket is kept.
const staleAfter = 10 * time.Minute

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int           // requests per second, rounded up
	Remaining  int           // tokens left in the bucket
	ResetAt    time.Time     // when the bucket will be full again
	RetryAfter time.Duration // how long to wait before retrying (0 if allowed)
}

// Limiter manages one token bucket per client key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
	now     func() time.Time
	trusted []netip.Prefix
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter creates a limiter allowing rps requests per second per key with
// the given burst. A non-positive rps returns nil, which allows everything.
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return nil
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(rps),
		burst:   max(burst, 1),
		now:     time.Now,
	}
}

// TrustProxies makes Middleware key requests coming from these peers on
// their forwarding headers. A nil Limiter ignores it.
func (l *Limiter) TrustProxies(p []netip.Prefix) {
	if l == nil {
		return
	}
	l.trusted = p
}

// Allow consumes one token for key if available.
func (l *Limiter) Allow(key string) Result {
	if l == nil {
		return Result{Allowed: true}
	}
	now := l.now()
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	reservation := b.limiter.ReserveN(now, 1)
	allowed := reservation.OK() && reservation.DelayFrom(now) == 0
	if !allowed && reservation.OK() {
		reservation.CancelAt(now)
	}

	tokens := b.limiter.TokensAt(now)
	missing := float64(l.burst) - tokens
	res := Result{
		Allowed:   allowed,
		Limit:     int(float64(l.rate) + 0.999),
		Remaining: max(int(tokens), 0),
		ResetAt:   now.Add(time.Duration(missing / float64(l.rate) * float64(time.Second))),
	}
	if !allowed {
		res.RetryAfter = max(time.Duration(float64(time.Second)/float64(l.rate)), time.Second)
	}
	return res
}

// Run removes idle buckets every minute until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	if l == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// cleanup removes buckets that haven't been used recently and are full.
func (l *Limiter) cleanup() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > staleAfter && b.limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, key)
		}
	}
}
