package hosting

import "context"

// Task represents a long-running unit of background work.
type Task interface {
	// Run executes the work until it finishes or ctx is canceled.
	// It should respect context cancellation; returning ctx.Err() after
	// a cancellation reports a cooperative stop rather than a failure.
	Run(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Run implements the Task interface for TaskFunc.
func (f TaskFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Service is an alternative work shape for components with explicit
// start and stop phases. Start is expected to return soon after
// launching its background work; Stop blocks until the work is drained
// or ctx fires.
type Service interface {
	// Start begins the service. The context carries the unit's
	// cancellation; services that adopt it for their background work
	// are stopped by supervisor shutdown even before Stop is called.
	Start(ctx context.Context) error

	// Stop shuts the service down. The context bounds how long the
	// shutdown may take; implementations must return when it fires.
	Stop(ctx context.Context) error
}

// Initializer is an optional interface for tasks and services that
// need synchronous setup before running. Initialize is called on the
// caller's goroutine during Unit.Start; an error fails the start and
// the work never runs.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Finalizer is an optional interface for tasks and services holding
// resources that outlive their run. Cleanup is called once when the
// unit is closed.
type Finalizer interface {
	Cleanup() error
}
