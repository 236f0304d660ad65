/*
Package gohost provides a Go library for running background tasks and
services under supervision with coordinated startup and shutdown.

Supervision (pkg/hosting):
  - Unit: one task or service under lifecycle management
  - Supervisor: starts, watches, and stops a set of units
  - Periodic and Cron: recurring tasks as supervised units
  - MetricsSupervisor: Prometheus instrumentation

Process Lifetime (pkg/host):
  - Host: ties a supervisor to OS signals and readiness

Coordination (pkg/lifecycle):
  - Signal: started/stopping/stopped transitions
  - WaitStarted: readiness gate for units that must wait for startup

Observation (pkg/events, pkg/metrics):
  - Feed: bounded fan-out event delivery
  - Registry: Prometheus metric instances

Built-in Tasks (pkg/tasks):
  - heartbeat: Redis-backed instance presence

Example usage:

	import (
		"github.com/vnykmshr/gohost/pkg/host"
		"github.com/vnykmshr/gohost/pkg/hosting"
	)

	s := hosting.New("app")
	s.Register("worker", hosting.TaskFunc(run))

	h, _ := host.New(host.Config{Supervisor: s})
	h.Run(context.Background()) // blocks until SIGINT/SIGTERM
*/
package gohost
