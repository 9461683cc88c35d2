package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunInvokesTickUntilCancelled(t *testing.T) {
	sched := New(Options{Interval: time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	ticks := 0
	err := sched.Run(ctx, func(ctx context.Context, now time.Time) time.Duration {
		ticks++
		if ticks == 3 {
			cancel()
		}
		return 0
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ticks != 3 {
		t.Fatalf("expected 3 ticks, got %d", ticks)
	}
}

func TestRunAppliesExtraBackoff(t *testing.T) {
	sched := New(Options{Interval: time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var first, second time.Time
	ticks := 0
	_ = sched.Run(ctx, func(ctx context.Context, now time.Time) time.Duration {
		ticks++
		switch ticks {
		case 1:
			first = time.Now()
			return 50 * time.Millisecond
		case 2:
			second = time.Now()
			cancel()
		}
		return 0
	})

	if elapsed := second.Sub(first); elapsed < 50*time.Millisecond {
		t.Fatalf("expected at least 50ms between ticks, got %v", elapsed)
	}
}

func TestRunHonorsStartupDelayCancellation(t *testing.T) {
	sched := New(Options{Interval: time.Millisecond, StartupDelay: time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sched.Run(ctx, func(ctx context.Context, now time.Time) time.Duration {
		t.Fatal("tick must not run when cancelled during startup delay")
		return 0
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewPanicsOnNonPositiveInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero interval")
		}
	}()
	New(Options{}, zerolog.Nop())
}
