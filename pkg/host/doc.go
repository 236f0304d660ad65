// Package host ties a supervisor to process lifetime.
//
// A host owns the sequence main would otherwise hand-roll: start every
// unit, announce readiness through a lifecycle signal, block until an OS
// signal or an explicit stop, then drive a bounded shutdown round and
// report completion. Units that want to end the process call Stop
// instead of os.Exit, so shutdown always runs.
//
// # Basic Usage
//
//	s := hosting.New("myapp")
//	s.Register("worker", worker)
//	s.RegisterService("http", server)
//
//	h, err := host.New(host.Config{
//		Supervisor:  s,
//		GracePeriod: 10 * time.Second,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := h.Run(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// # Readiness
//
// The host marks its lifecycle signal started only after every unit
// started. Components that must not act before the process is up gate
// on the shared signal:
//
//	gate := lifecycle.New()
//	task := hosting.PeriodicWithConfig(hosting.PeriodicConfig{
//		Interval: time.Minute,
//		Gate:     gate,
//	}, poll)
//
//	h, _ := host.New(host.Config{Supervisor: s, Lifecycle: gate})
//
// # Startup Failure
//
// If any unit fails to start, the host aborts: units that did start are
// stopped, the lifecycle is never marked started, and Run returns the
// collected start error.
//
// # Fatal Runtime Failures
//
// By default a unit crashing at runtime is isolated; its siblings keep
// running. Setting FatalOnRuntimeFailure makes the first runtime
// failure shut the whole host down, for processes whose units are not
// useful without each other.
package host
