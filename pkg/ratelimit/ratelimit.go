package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter paces calls against a remote API at a fixed rate with optional
// jitter. It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	ticker   *time.Ticker
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
	ch       <-chan time.Time
	sleeper  Sleeper

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// NewLimiter creates a limiter allowing rps calls per second. Jitter is
// clamped to [0, 1] and adds up to jitter*interval of extra delay after a
// tick. If rps is <= 0, the limiter does not block.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}

	l := &Limiter{
		jitter:  jitter,
		sleeper: Real,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if rps <= 0 {
		return l
	}

	l.interval = time.Duration(float64(time.Second) / rps)
	l.ticker = time.NewTicker(l.interval)
	l.ch = l.ticker.C
	return l
}

// WithSleeper replaces the sleeper used for the jitter delay.
func (l *Limiter) WithSleeper(s Sleeper) *Limiter {
	if s != nil {
		l.sleeper = s
	}
	return l
}

// Wait blocks until the next call may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.ch == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ch:
	}

	if l.jitter == 0 {
		return nil
	}

	// The ticker already enforces the base interval, so only the positive
	// half of the jitter range produces an extra delay.
	l.rndMu.Lock()
	factor := l.rnd.Float64()*2 - 1
	l.rndMu.Unlock()

	extra := time.Duration(float64(l.interval) * l.jitter * factor)
	if extra <= 0 {
		return nil
	}
	return l.sleeper.Sleep(ctx, extra)
}

// Stop releases the ticker.
func (l *Limiter) Stop() {
	if l != nil && l.ticker != nil {
		l.ticker.Stop()
	}
}
