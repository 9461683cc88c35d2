package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc runs one polling iteration. The returned extra delay is added to
// the normal cadence sleep before the next iteration (escalating backoff).
type TickFunc func(ctx context.Context, now time.Time) time.Duration

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
}

// Scheduler drives fixed-cadence execution of polling iterations. An
// iteration always runs to completion before the next sleep begins; there
// is no overlap between ticks.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function once per interval until ctx is
// cancelled. Cancellation interrupts the sleeps but never a running tick:
// an in-flight iteration is allowed to finish.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now().UTC()
		s.logger.Debug().Time("start", start).Msg("executing tick")
		extra := tick(ctx, start)

		if extra > 0 {
			s.logger.Warn().Dur("extra", extra).Msg("backing off before next cycle")
			if err := sleep(ctx, extra); err != nil {
				return err
			}
		}
		if err := sleep(ctx, s.opts.Interval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
