// Package resilience guards calls to external services with a circuit breaker.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State is the position of a Breaker.
type State int

const (
	// Closed lets every call through.
	Closed State = iota
	// Open rejects calls until the cooldown has passed.
	Open
	// HalfOpen admits one probe call to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow while the breaker rejects calls.
var ErrOpen = eris.New("resilience: circuit open")

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithStateHook calls fn on every state transition. fn runs with the breaker
// locked and must not call back into it.
func WithStateHook(fn func(from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

// Breaker opens after threshold consecutive failures and stays open for the
// cooldown. It then admits a single probe; a successful probe closes it and a
// failed one reopens it.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	state     State
	failures  int
	openedAt  time.Time
	probing   bool
	onChange  func(from, to State)
	nowFunc   func() time.Time
}

// NewBreaker creates a closed breaker. Non-positive arguments fall back to 5
// failures and 30 seconds.
func NewBreaker(threshold int, cooldown time.Duration, opts ...BreakerOption) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	b := &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a call may proceed. Every nil return must be
// followed by exactly one Done or Release.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.nowFunc().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.setState(HalfOpen)
		b.probing = true
		return nil
	case HalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Done records the outcome of an allowed call.
func (b *Breaker) Done(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.probing = false
		if failed {
			b.trip()
			return
		}
		b.failures = 0
		b.setState(Closed)
		return
	}

	if !failed {
		b.failures = 0
		return
	}
	b.failures++
	if b.state == Closed && b.failures >= b.threshold {
		b.trip()
	}
}

// Release ends an allowed call whose outcome says nothing about the
// upstream, such as one cancelled by its caller. A half-open breaker stays
// half-open and admits the next probe.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen {
		b.probing = false
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) trip() {
	b.openedAt = b.nowFunc()
	b.setState(Open)
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onChange != nil {
		b.onChange(from, to)
	}
}
