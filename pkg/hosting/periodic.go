package hosting

import (
	"context"
	"time"

	gherrors "github.com/vnykmshr/gohost/pkg/common/errors"
	"github.com/vnykmshr/gohost/pkg/lifecycle"
)

// PeriodicConfig holds configuration options for a periodic task.
type PeriodicConfig struct {
	// Interval is the time between runs. Must be positive.
	Interval time.Duration

	// RunImmediately runs fn once before the first tick.
	RunImmediately bool

	// Gate, when set, delays the first run until the lifecycle
	// signal reports started. If the task is canceled while waiting,
	// fn never runs.
	Gate lifecycle.Signal

	// StopOnError ends the task with fn's error on the first
	// failure. When false the task keeps ticking and failures are
	// reported through OnError only.
	StopOnError bool

	// OnError is called with each failure of fn.
	OnError func(err error)
}

// Periodic returns a task that invokes fn once per interval until its
// context is canceled. Every wait is cancellable; the task never
// sleeps uninterruptibly.
func Periodic(interval time.Duration, fn func(ctx context.Context) error) Task {
	return PeriodicWithConfig(PeriodicConfig{Interval: interval}, fn)
}

// PeriodicWithConfig returns a periodic task with the specified
// configuration.
func PeriodicWithConfig(config PeriodicConfig, fn func(ctx context.Context) error) Task {
	if config.Interval <= 0 {
		panic("periodic interval must be positive")
	}
	if fn == nil {
		panic("periodic function cannot be nil")
	}

	return TaskFunc(func(ctx context.Context) error {
		if config.Gate != nil && !config.Gate.WaitStarted(ctx) {
			return ctx.Err()
		}

		run := func() error {
			err := fn(ctx)
			switch {
			case err == nil:
				return nil
			case gherrors.IsCancellation(err) && ctx.Err() != nil:
				// Cooperative cancellation mid-run, not a failure.
				return err
			}
			if config.OnError != nil {
				config.OnError(err)
			}
			if config.StopOnError {
				return err
			}
			return nil
		}

		if config.RunImmediately {
			if err := run(); err != nil {
				return err
			}
		}

		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := run(); err != nil {
					return err
				}
			}
		}
	})
}
