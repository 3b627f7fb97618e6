package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_NoBlockWhenZeroRPS(t *testing.T) {
	limiter := NewLimiter(0, 0.5)

	start := time.Now()
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("limiter with 0 RPS should not block")
	}
}

func TestLimiter_NilIsNoop(t *testing.T) {
	var limiter *Limiter
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter should not fail: %v", err)
	}
	limiter.Stop()
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(10, 0) // 100ms interval
	defer limiter.Stop()

	ctx := context.Background()

	// Throw away the first tick because time.NewTicker starts counting immediately
	_ = limiter.Wait(ctx)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	duration := time.Since(start)
	if duration < 50*time.Millisecond || duration > 150*time.Millisecond {
		t.Errorf("expected wait around 100ms, took %v", duration)
	}
}

func TestLimiter_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(1, 0)
	defer limiter.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatalf("expected context canceled error")
	}
}

func TestLimiter_JitterUsesSleeper(t *testing.T) {
	rec := &Recorder{}
	limiter := NewLimiter(50, 1).WithSleeper(rec) // 20ms interval, up to 20ms extra
	defer limiter.Stop()

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for _, d := range rec.Pauses() {
		if d <= 0 || d > 20*time.Millisecond {
			t.Errorf("jitter pause %v outside (0, 20ms]", d)
		}
	}
}

func TestRealSleeper_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := Real.Sleep(ctx, time.Hour); err == nil {
		t.Fatal("expected cancellation error")
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("cancelled sleep should return immediately")
	}
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	ctx := context.Background()
	_ = rec.Sleep(ctx, 10*time.Millisecond)
	_ = rec.Sleep(ctx, 5*time.Millisecond)

	if got := rec.Total(); got != 15*time.Millisecond {
		t.Errorf("expected total 15ms, got %v", got)
	}
	if got := len(rec.Pauses()); got != 2 {
		t.Errorf("expected 2 pauses, got %d", got)
	}
}
