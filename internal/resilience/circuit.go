package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned when a call is rejected by an open breaker.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// Breaker tracks consecutive failures for one upstream service and rejects
// calls while the circuit is open, so a flaky parser service falls through
// to the next adapter immediately instead of eating its full timeout.
type Breaker struct {
	mu          sync.Mutex
	failures    int
	openUntil   time.Time
	lastFailure time.Time

	threshold int           // consecutive failures to trip
	window    time.Duration // failures must occur within this window
	cooldown  time.Duration // how long the circuit stays open

	nowFunc func() time.Time
}

// NewBreaker creates a Breaker. threshold consecutive failures within window
// open the circuit for cooldown.
func NewBreaker(threshold int, window, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if window <= 0 {
		window = 30 * time.Second
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &Breaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		nowFunc:   time.Now,
	}
}

// Allow reports whether a call may proceed. Returns ErrCircuitOpen otherwise.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nowFunc().Before(b.openUntil) {
		return ErrCircuitOpen
	}
	return nil
}

// Record updates the breaker with the outcome of a call.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		return
	}

	now := b.nowFunc()
	if now.Sub(b.lastFailure) > b.window {
		b.failures = 0
	}
	b.failures++
	b.lastFailure = now
	if b.failures >= b.threshold {
		b.openUntil = now.Add(b.cooldown)
	}
}

// Open reports whether the circuit is currently open.
func (b *Breaker) Open() bool {
	return b.Allow() != nil
}
