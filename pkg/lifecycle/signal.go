package lifecycle

import (
	"context"
	"sync"
)

// Signal coordinates process lifetime between a host and its background units.
//
// It carries three one-way transitions: started, stopping, and stopped. Each
// transition fires at most once and stays fired. The host drives the
// transitions; any number of goroutines may observe them concurrently.
type Signal interface {
	// Started returns a channel that is closed once the host has finished
	// bringing the process up. A channel that was closed before the call is
	// immediately ready, so late observers never miss the transition.
	Started() <-chan struct{}

	// Stopping returns a channel that is closed when shutdown has been
	// requested. Units should treat this as the cue to wind down.
	Stopping() <-chan struct{}

	// Stopped returns a channel that is closed once the host has finished
	// shutting down.
	Stopped() <-chan struct{}

	// IsStarted reports whether the started transition has fired.
	IsStarted() bool

	// IsStopping reports whether the stopping transition has fired.
	IsStopping() bool

	// IsStopped reports whether the stopped transition has fired.
	IsStopped() bool

	// MarkStarted fires the started transition. Idempotent.
	MarkStarted()

	// RequestStop fires the stopping transition, steering the process toward
	// shutdown. Idempotent and safe to call from any goroutine, including
	// from inside a running unit.
	RequestStop()

	// MarkStopped fires the stopped transition. Idempotent.
	MarkStopped()

	// WaitStarted blocks until the started transition fires or ctx is done,
	// whichever comes first. It returns true only if started won the race.
	// A ctx that was already done when the call was made always loses.
	WaitStarted(ctx context.Context) bool
}

// signal implements the Signal interface.
type signal struct {
	started  chan struct{}
	stopping chan struct{}
	stopped  chan struct{}

	startedOnce  sync.Once
	stoppingOnce sync.Once
	stoppedOnce  sync.Once
}

// New creates a Signal with all three transitions unfired.
func New() Signal {
	return &signal{
		started:  make(chan struct{}),
		stopping: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (s *signal) Started() <-chan struct{} {
	return s.started
}

func (s *signal) Stopping() <-chan struct{} {
	return s.stopping
}

func (s *signal) Stopped() <-chan struct{} {
	return s.stopped
}

func (s *signal) IsStarted() bool {
	return fired(s.started)
}

func (s *signal) IsStopping() bool {
	return fired(s.stopping)
}

func (s *signal) IsStopped() bool {
	return fired(s.stopped)
}

func (s *signal) MarkStarted() {
	s.startedOnce.Do(func() {
		close(s.started)
	})
}

func (s *signal) RequestStop() {
	s.stoppingOnce.Do(func() {
		close(s.stopping)
	})
}

func (s *signal) MarkStopped() {
	s.stoppedOnce.Do(func() {
		close(s.stopped)
	})
}

// fired reports whether a transition channel has been closed.
func fired(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
