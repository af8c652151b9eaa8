// Package ratelimit throttles inbound commands per device host, protecting
// a device's scheduler from a misbehaving or malicious publisher flooding
// state/upd commands.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per host, created lazily on first use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

// New builds a Limiter allowing ratePerSecond sustained commands per host
// with burst headroom of burst commands.
func New(ratePerSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(ratePerSecond),
		burst:   burst,
	}
}

// Allow reports whether host may process a command now, consuming a token
// if so.
func (l *Limiter) Allow(host string) bool {
	return l.bucketFor(host).Allow()
}

func (l *Limiter) bucketFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[host]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[host] = b
	}
	return b
}
