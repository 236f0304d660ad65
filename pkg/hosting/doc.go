/*
Package hosting provides supervised lifecycle management for long-running background tasks.

A supervisor owns an ordered set of units, starts them together, watches their
outcomes, and shuts them down concurrently within a bounded grace period. This
pattern keeps background work observable and makes process shutdown best-effort
but never unbounded: a misbehaving task can be abandoned, it cannot hang the
process.

Basic usage:

	sup := hosting.New("background")
	defer sup.Close()

	err := sup.Register("worker", hosting.TaskFunc(func(ctx context.Context) error {
		<-ctx.Done() // do work until told to stop
		return ctx.Err()
	}))
	if err != nil {
		log.Fatal(err)
	}

	if err := sup.StartAll(context.Background()); err != nil {
		log.Printf("startup failures: %v", err)
	}

	// ... run the application ...

	report := sup.StopAll(10 * time.Second)
	log.Printf("stopped, %d abandoned", report.Abandoned)

Key Features:

The supervisor provides:
  - Ordered startup with per-unit failure isolation
  - Concurrent shutdown bounded by a single grace period
  - Cooperative cancellation through derived contexts
  - Distinction between startup failures, runtime failures, and cooperative stops
  - Panic recovery around every unit's work
  - A non-blocking event feed for lifecycle observation
  - Optional Prometheus instrumentation via NewWithMetrics

Work Shapes:

Long-running work implements a single-method interface:

	type Task interface {
		Run(ctx context.Context) error
	}

Run blocks until the work finishes or ctx fires. Returning ctx.Err() after a
cancellation reports a cooperative stop, not a failure. Components with
explicit start and stop phases implement Service instead:

	type Service interface {
		Start(ctx context.Context) error
		Stop(ctx context.Context) error
	}

Tasks and services may additionally implement Initializer for synchronous
setup during start, and Finalizer for resource release at close.

Timer-driven work comes ready-made: Periodic builds a task that runs a
function on a fixed interval, Cron on a cron schedule. Both wait only in
cancellable selects; neither ever sleeps uninterruptibly, because an
uninterruptible sleep would break the shutdown contract for the whole
process.

Stop Semantics:

StopAll first cancels every unit's derived context, so each unit receives its
stop signal in the same shutdown round regardless of how slowly another unit
reacts. Then all units are stopped concurrently and awaited, bounded by the
grace period. A unit whose work does not settle in time is abandoned: StopAll
returns, the report marks the unit, and its goroutine is left to unwind in
the background. Cancellation is cooperative, not preemptive - work that never
observes its context cannot be force-terminated, only abandoned.

Events:

Subscribe returns a feed of unit transitions (started, completed, stopped,
startup-failed, runtime-failed, abandoned). Delivery is best-effort with a
bounded buffer; a slow consumer loses oldest events rather than stalling
supervision. The recommended policy for runtime failures is to treat them as
fatal to the process - a background task silently dying is worse than a loud
restart - but the supervisor only reports, the host decides.

Thread Safety:

All Supervisor and Unit methods are safe for concurrent use. Registration is
write-once: it must finish before StartAll, and registering afterwards
returns an error.
*/
package hosting
