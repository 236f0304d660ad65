package hosting

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	gherrors "github.com/vnykmshr/gohost/pkg/common/errors"
	"github.com/vnykmshr/gohost/pkg/lifecycle"
)

// CronConfig holds configuration options for a cron task.
type CronConfig struct {
	// TimeZone evaluates the schedule in the given location.
	// Defaults to time.Local.
	TimeZone *time.Location

	// Gate, when set, delays scheduling until the lifecycle signal
	// reports started.
	Gate lifecycle.Signal

	// MaxRuns ends the task after this many runs. Zero means
	// unlimited.
	MaxRuns int

	// StopOnError ends the task with fn's error on the first
	// failure.
	StopOnError bool

	// OnError is called with each failure of fn.
	OnError func(err error)
}

// Cron returns a task that invokes fn on the schedule described by a
// cron expression with a seconds field, such as "0 */5 * * * *".
// Descriptors like "@hourly" are accepted.
func Cron(expr string, fn func(ctx context.Context) error) (Task, error) {
	return CronWithConfig(expr, CronConfig{}, fn)
}

// CronWithConfig returns a cron task with the specified configuration.
func CronWithConfig(expr string, config CronConfig, fn func(ctx context.Context) error) (Task, error) {
	if fn == nil {
		return nil, fmt.Errorf("cron function cannot be nil")
	}
	if expr == "" {
		return nil, fmt.Errorf("cron expression cannot be empty")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression '%s': %w", expr, err)
	}

	timezone := config.TimeZone
	if timezone == nil {
		timezone = time.Local
	}

	return TaskFunc(func(ctx context.Context) error {
		if config.Gate != nil && !config.Gate.WaitStarted(ctx) {
			return ctx.Err()
		}

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		runs := 0
		for {
			if config.MaxRuns > 0 && runs >= config.MaxRuns {
				return nil
			}

			now := time.Now().In(timezone)
			next := schedule.Next(now)
			if next.IsZero() {
				// The schedule has no future activation.
				return nil
			}

			// The timer only needs resetting after its previous
			// fire was consumed by the select below.
			if timer == nil {
				timer = time.NewTimer(next.Sub(now))
			} else {
				timer.Reset(next.Sub(now))
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}

			runs++
			err := fn(ctx)
			switch {
			case err == nil:
				continue
			case gherrors.IsCancellation(err) && ctx.Err() != nil:
				return err
			}
			if config.OnError != nil {
				config.OnError(err)
			}
			if config.StopOnError {
				return err
			}
		}
	}), nil
}
