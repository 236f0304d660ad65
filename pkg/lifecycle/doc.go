/*
Package lifecycle provides the shared signal that coordinates process lifetime
between a host and its background units.

A Signal carries three one-way transitions: started, stopping, and stopped.
Each fires at most once and stays fired. Observers wait on channels, so a
transition that fired before the observer arrived is seen immediately. There
is no registration step and nothing to unregister.

Basic usage:

	sig := lifecycle.New()

	// Host side: drive the transitions.
	sig.MarkStarted()
	// ... later ...
	sig.RequestStop()
	sig.MarkStopped()

	// Unit side: observe them.
	select {
	case <-sig.Stopping():
		// wind down
	case <-workDone:
	}

Requesting shutdown:

RequestStop may be called from anywhere, including from inside a running unit
that has decided the process should exit (for example after a fatal error).
Calling it repeatedly is harmless.

	sig.RequestStop()
	sig.RequestStop() // no-op

The readiness gate:

Units that must not begin work before the process is fully up use WaitStarted,
which races the started transition against the unit's own cancellation:

	func (w *warmupWorker) Run(ctx context.Context) error {
		if !sig.WaitStarted(ctx) {
			// Shutdown began before startup completed. Do not start work.
			return ctx.Err()
		}
		// ... main loop ...
	}

WaitStarted returns true only if started won the race. A context that was
already done when the call was made always loses, so a unit stopped before
startup completes deterministically skips its work loop.

Independence of transitions:

The three transitions are independent. In a process that fails early, stopping
may fire without started ever firing, so observers of Stopping must not assume
the process ever came up.

Thread Safety:

All methods are safe for concurrent use. The host is the intended writer; any
goroutine may read.
*/
package lifecycle
