// Package ratelimit throttles calls to upstream services and inbound clients.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Waiter is invoked before each upstream call.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Delay sleeps for a fixed duration on every Wait, independent of other callers.
type Delay struct {
	d time.Duration
}

// NewDelay returns a Waiter that sleeps d on every call.
func NewDelay(d time.Duration) *Delay {
	return &Delay{d: d}
}

// Wait sleeps for the configured duration. It only fails if ctx ends first.
func (w *Delay) Wait(ctx context.Context) error {
	if w.d <= 0 {
		return nil
	}
	t := time.NewTimer(w.d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "ratelimit: delay interrupted")
	case <-t.C:
		return nil
	}
}

// Spacing enforces a minimum interval between successive calls across all goroutines.
type Spacing struct {
	limiter *rate.Limiter
}

// NewSpacing returns a Waiter that admits one call per interval d.
// A non-positive d disables limiting.
func NewSpacing(d time.Duration) *Spacing {
	if d <= 0 {
		return &Spacing{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Spacing{limiter: rate.NewLimiter(rate.Every(d), 1)}
}

// Wait blocks until the next call slot is available.
func (w *Spacing) Wait(ctx context.Context) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "ratelimit: spacing wait")
	}
	return nil
}

// New builds a Waiter for the given mode ("delay" or "spacing").
func New(mode string, d time.Duration) (Waiter, error) {
	switch mode {
	case "delay":
		return NewDelay(d), nil
	case "spacing", "":
		return NewSpacing(d), nil
	default:
		return nil, eris.Errorf("ratelimit: unknown mode %q", mode)
	}
}

// PerKey hands out an independent token bucket per key (e.g. client IP).
type PerKey struct {
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	nowFunc  func() time.Time
}

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewPerKey allows n requests per window for each key, with a burst of n.
func NewPerKey(n int, window time.Duration) *PerKey {
	if n <= 0 {
		n = 1
	}
	return &PerKey{
		limiters: make(map[string]*keyLimiter),
		limit:    rate.Every(window / time.Duration(n)),
		burst:    n,
		idleTTL:  window,
		nowFunc:  time.Now,
	}
}

// Allow reports whether the key may proceed now.
func (p *PerKey) Allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFunc()
	kl, ok := p.limiters[key]
	if !ok {
		kl = &keyLimiter{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.limiters[key] = kl
	}
	kl.lastSeen = now
	return kl.limiter.AllowN(now, 1)
}

// Prune drops limiters for keys idle longer than one window. Returns the number removed.
func (p *PerKey) Prune() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFunc()
	removed := 0
	for k, kl := range p.limiters {
		if now.Sub(kl.lastSeen) > p.idleTTL {
			delete(p.limiters, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (p *PerKey) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.limiters)
}
