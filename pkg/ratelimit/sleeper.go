package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Sleeper pauses the caller. Every fixed or randomised pause in the workflow
// goes through a Sleeper so tests can run without wall-clock waits.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleepFunc adapts a function to the Sleeper interface.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f(ctx, d).
func (f SleepFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// Real sleeps on a timer and returns early with ctx.Err() on cancellation.
var Real Sleeper = SleepFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
})

// Recorder is a Sleeper that never blocks and remembers every requested
// pause. It honours cancellation so loops driven by it still terminate.
type Recorder struct {
	mu     sync.Mutex
	pauses []time.Duration
}

// Sleep records d.
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.pauses = append(r.pauses, d)
	r.mu.Unlock()
	return nil
}

// Pauses returns a copy of the recorded pauses in call order.
func (r *Recorder) Pauses() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.pauses))
	copy(out, r.pauses)
	return out
}

// Total returns the sum of the recorded pauses.
func (r *Recorder) Total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total time.Duration
	for _, d := range r.pauses {
		total += d
	}
	return total
}
