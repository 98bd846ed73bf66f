package auth

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiters hands out one token bucket per key. Callers pick the key: the
// webhook middleware keys by client ip, the Telegram client by chat id.
type Limiters struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

// NewLimiters builds a pool. Non-positive values fall back to 5 rps / burst 10.
func NewLimiters(rps float64, burst int) *Limiters {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Limiters{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (p *Limiters) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

// Allow reports whether a request for key may proceed now.
func (p *Limiters) Allow(key string) bool {
	return p.get(key).Allow()
}

// Wait blocks until key has a token or ctx is done.
func (p *Limiters) Wait(ctx context.Context, key string) error {
	return p.get(key).Wait(ctx)
}

// Len is the number of keys seen so far.
func (p *Limiters) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}
