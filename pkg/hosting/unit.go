package hosting

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	gherrors "github.com/vnykmshr/gohost/pkg/common/errors"
)

// Status describes where a unit is in its lifecycle.
type Status int

const (
	// StatusNotStarted means Start has not been called.
	StatusNotStarted Status = iota

	// StatusRunning means the unit's work is in flight.
	StatusRunning

	// StatusSucceeded means the work finished without error.
	StatusSucceeded

	// StatusFailed means the work finished with an error.
	StatusFailed

	// StatusStopped means the work ended because it was told to stop.
	StatusStopped
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not-started"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusStopped
}

// FailureKind distinguishes when a failed unit's error occurred.
type FailureKind int

const (
	// FailureNone means the unit has not failed.
	FailureNone FailureKind = iota

	// FailureStartup means the work failed before Start returned.
	FailureStartup

	// FailureRuntime means the work failed after it was running.
	FailureRuntime
)

// String returns a human-readable representation of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureStartup:
		return "startup"
	case FailureRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// UnitStatus is a point-in-time snapshot of a unit.
type UnitStatus struct {
	// Name identifies the unit.
	Name string

	// Status is the unit's lifecycle state.
	Status Status

	// Failure reports when the error occurred, if the unit failed.
	Failure FailureKind

	// Err is the failure cause. It is set only for StatusFailed;
	// a cooperative stop is not recorded as an error.
	Err error

	// StartedAt is when Start was called. Zero if never started.
	StartedAt time.Time

	// FinishedAt is when the unit reached a terminal state.
	FinishedAt time.Time
}

// Unit is the supervision handle around one Task or Service.
type Unit interface {
	// Name returns the unit's name.
	Name() string

	// Start begins the work. Only valid once: later calls return
	// ErrAlreadyStarted. The unit derives its own cancellation from
	// ctx, so canceling ctx stops the work but stopping the unit
	// never cancels ctx. A failure known before Start returns is
	// surfaced directly as the return value.
	Start(ctx context.Context) error

	// Stop signals the work to stop and waits for it to finish or
	// for ctx to fire, whichever happens first. Calling Stop before
	// Start is a no-op returning nil. A run that ends because it was
	// told to stop is a successful stop; Stop returns ctx.Err() only
	// when ctx fired before the work settled.
	Stop(ctx context.Context) error

	// Close cancels any outstanding work and releases held
	// resources. Idempotent and callable from any state.
	Close() error

	// Done returns a channel closed when the unit reaches a
	// terminal state.
	Done() <-chan struct{}

	// Status returns a snapshot of the unit.
	Status() UnitStatus
}

// UnitConfig holds configuration options for creating a unit.
type UnitConfig struct {
	// Name identifies the unit. Must not be empty.
	Name string

	// Task is the run-loop work shape. Exactly one of Task or
	// Service must be set.
	Task Task

	// Service is the start/stop work shape.
	Service Service

	// OnExit is called once when the unit reaches a terminal state,
	// with the terminal snapshot. Called from the unit's own
	// goroutine for running work, or from the calling goroutine for
	// startup failures.
	OnExit func(status UnitStatus)

	// PanicHandler is called when the work panics. The panic is
	// always recovered and recorded as a failure; the handler is for
	// additional reporting.
	PanicHandler func(name string, recovered interface{})
}

// NewUnit creates a unit supervising the given task.
func NewUnit(name string, task Task) Unit {
	return NewUnitWithConfig(UnitConfig{Name: name, Task: task})
}

// NewServiceUnit creates a unit supervising the given service.
func NewServiceUnit(name string, svc Service) Unit {
	return NewUnitWithConfig(UnitConfig{Name: name, Service: svc})
}

// NewUnitWithConfig creates a unit with the specified configuration.
func NewUnitWithConfig(config UnitConfig) Unit {
	if config.Name == "" {
		panic("unit name cannot be empty")
	}

	switch {
	case config.Task != nil && config.Service != nil:
		panic("unit cannot wrap both a task and a service")
	case config.Task != nil:
		return &taskUnit{
			config: config,
			done:   make(chan struct{}),
		}
	case config.Service != nil:
		return &serviceUnit{
			config: config,
			done:   make(chan struct{}),
		}
	default:
		panic("unit requires a task or a service")
	}
}

// taskUnit supervises a Task running on its own goroutine.
type taskUnit struct {
	config UnitConfig

	mu            sync.Mutex
	status        Status
	failure       FailureKind
	err           error
	startedAt     time.Time
	finishedAt    time.Time
	startReturned bool
	closed        bool
	cancel        context.CancelFunc

	done      chan struct{}
	closeOnce sync.Once
}

func (u *taskUnit) Name() string {
	return u.config.Name
}

func (u *taskUnit) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return fmt.Errorf("unit %q: %w", u.config.Name, gherrors.ErrClosed)
	}
	if u.status != StatusNotStarted {
		u.mu.Unlock()
		return fmt.Errorf("unit %q: %w", u.config.Name, gherrors.ErrAlreadyStarted)
	}
	runCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.status = StatusRunning
	u.startedAt = time.Now()
	u.mu.Unlock()

	if init, ok := u.config.Task.(Initializer); ok {
		if err := u.guard(func() error { return init.Initialize(runCtx) }); err != nil {
			cancel()
			u.finish(runCtx, err)
			return err
		}
	}

	go u.run(runCtx)

	// A run that failed before Start finished its bookkeeping is
	// surfaced to the caller instead of being reported as running.
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status == StatusFailed {
		return u.err
	}
	u.startReturned = true
	return nil
}

func (u *taskUnit) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	u.mu.Lock()
	if u.status == StatusNotStarted {
		u.mu.Unlock()
		return nil
	}
	cancel := u.cancel
	u.mu.Unlock()

	// Signal first, then wait. The signal is delivered even when the
	// caller's context is already expired.
	cancel()

	select {
	case <-u.done:
		return nil
	default:
	}

	select {
	case <-u.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (u *taskUnit) Close() error {
	var err error
	u.closeOnce.Do(func() {
		u.mu.Lock()
		u.closed = true
		cancel := u.cancel
		u.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if fin, ok := u.config.Task.(Finalizer); ok {
			err = fin.Cleanup()
		}
	})
	return err
}

func (u *taskUnit) Done() <-chan struct{} {
	return u.done
}

func (u *taskUnit) Status() UnitStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.snapshotLocked()
}

func (u *taskUnit) snapshotLocked() UnitStatus {
	return UnitStatus{
		Name:       u.config.Name,
		Status:     u.status,
		Failure:    u.failure,
		Err:        u.err,
		StartedAt:  u.startedAt,
		FinishedAt: u.finishedAt,
	}
}

// run executes the task and records its terminal outcome.
func (u *taskUnit) run(ctx context.Context) {
	err := u.guard(func() error { return u.config.Task.Run(ctx) })
	u.finish(ctx, err)
}

// guard invokes fn with panic recovery, converting a panic into an
// error carrying the stack trace.
func (u *taskUnit) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if handler := u.config.PanicHandler; handler != nil {
				handler(u.config.Name, r)
			}
			err = fmt.Errorf("unit %q panicked: %v\nStack trace:\n%s", u.config.Name, r, debug.Stack())
		}
	}()
	return fn()
}

// finish classifies the run outcome and moves the unit to its
// terminal state. A cancellation error while the run context was
// canceled is a cooperative stop, not a failure.
func (u *taskUnit) finish(ctx context.Context, err error) {
	u.mu.Lock()
	switch {
	case err == nil:
		u.status = StatusSucceeded
	case gherrors.IsCancellation(err) && ctx.Err() != nil:
		u.status = StatusStopped
	default:
		u.status = StatusFailed
		u.err = err
		if u.startReturned {
			u.failure = FailureRuntime
		} else {
			u.failure = FailureStartup
		}
	}
	u.finishedAt = time.Now()
	snapshot := u.snapshotLocked()
	u.mu.Unlock()

	close(u.done)

	if u.config.OnExit != nil {
		u.config.OnExit(snapshot)
	}
}

// serviceUnit supervises a Service with explicit start and stop
// phases. It owns its own cancellation source and status, separate
// from taskUnit.
type serviceUnit struct {
	config UnitConfig

	mu         sync.Mutex
	status     Status
	failure    FailureKind
	err        error
	startedAt  time.Time
	finishedAt time.Time
	closed     bool
	cancel     context.CancelFunc

	done       chan struct{}
	stopOnce   sync.Once
	finishOnce sync.Once
	closeOnce  sync.Once
}

func (u *serviceUnit) Name() string {
	return u.config.Name
}

func (u *serviceUnit) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return fmt.Errorf("unit %q: %w", u.config.Name, gherrors.ErrClosed)
	}
	if u.status != StatusNotStarted {
		u.mu.Unlock()
		return fmt.Errorf("unit %q: %w", u.config.Name, gherrors.ErrAlreadyStarted)
	}
	runCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.status = StatusRunning
	u.startedAt = time.Now()
	u.mu.Unlock()

	if init, ok := u.config.Service.(Initializer); ok {
		if err := u.guard(func() error { return init.Initialize(runCtx) }); err != nil {
			cancel()
			u.fail(err)
			return err
		}
	}

	if err := u.guard(func() error { return u.config.Service.Start(runCtx) }); err != nil {
		cancel()
		u.fail(err)
		return err
	}
	return nil
}

func (u *serviceUnit) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	u.mu.Lock()
	if u.status == StatusNotStarted {
		u.mu.Unlock()
		return nil
	}
	cancel := u.cancel
	u.mu.Unlock()

	cancel()

	select {
	case <-u.done:
		return u.stopResult()
	default:
	}

	// Service.Stop runs on its own goroutine so a misbehaving
	// implementation that ignores its context cannot pin this call
	// past the caller's deadline.
	u.stopOnce.Do(func() {
		go u.stopService(ctx)
	})

	select {
	case <-u.done:
		return u.stopResult()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopResult reports a failure of the stop phase itself. A service
// that ended via cancellation stopped successfully and reports nil.
func (u *serviceUnit) stopResult() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status == StatusFailed && u.failure == FailureRuntime {
		return u.err
	}
	return nil
}

func (u *serviceUnit) Close() error {
	var err error
	u.closeOnce.Do(func() {
		u.mu.Lock()
		u.closed = true
		cancel := u.cancel
		started := u.status != StatusNotStarted
		u.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		// A started service has no run goroutine of its own to
		// observe the cancellation, so closing is what settles its
		// bookkeeping when Stop was never called.
		if started {
			u.settle(StatusStopped, FailureNone, nil)
		}
		if fin, ok := u.config.Service.(Finalizer); ok {
			err = fin.Cleanup()
		}
	})
	return err
}

func (u *serviceUnit) Done() <-chan struct{} {
	return u.done
}

func (u *serviceUnit) Status() UnitStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.snapshotLocked()
}

func (u *serviceUnit) snapshotLocked() UnitStatus {
	return UnitStatus{
		Name:       u.config.Name,
		Status:     u.status,
		Failure:    u.failure,
		Err:        u.err,
		StartedAt:  u.startedAt,
		FinishedAt: u.finishedAt,
	}
}

// stopService drives the service's stop phase and records the
// terminal outcome.
func (u *serviceUnit) stopService(ctx context.Context) {
	err := u.guard(func() error { return u.config.Service.Stop(ctx) })

	if err == nil || (gherrors.IsCancellation(err) && ctx.Err() != nil) {
		u.settle(StatusStopped, FailureNone, nil)
		return
	}
	u.settle(StatusFailed, FailureRuntime, err)
}

// fail records a startup failure for a service that never ran.
func (u *serviceUnit) fail(err error) {
	u.settle(StatusFailed, FailureStartup, err)
}

// settle moves the unit to a terminal state exactly once. Later
// calls are no-ops, so a stop racing a failing start cannot settle
// the unit twice.
func (u *serviceUnit) settle(status Status, kind FailureKind, err error) {
	u.finishOnce.Do(func() {
		u.mu.Lock()
		u.status = status
		u.failure = kind
		u.err = err
		u.finishedAt = time.Now()
		snapshot := u.snapshotLocked()
		u.mu.Unlock()

		close(u.done)

		if u.config.OnExit != nil {
			u.config.OnExit(snapshot)
		}
	})
}

func (u *serviceUnit) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if handler := u.config.PanicHandler; handler != nil {
				handler(u.config.Name, r)
			}
			err = fmt.Errorf("unit %q panicked: %v\nStack trace:\n%s", u.config.Name, r, debug.Stack())
		}
	}()
	return fn()
}
