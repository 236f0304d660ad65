// Package metrics provides Prometheus instrumentation for gohost components.
//
// This package enables monitoring and observability for gohost's unit
// supervision and hosted tasks through Prometheus metrics.
//
// # Overview
//
// The metrics package provides automatic instrumentation for:
//   - Supervision (registered units, running units, starts, failures, stops)
//   - Shutdown rounds (abandoned units, stop round duration)
//   - Individual units (run duration from start to terminal state)
//   - Heartbeat tasks (beats written, failed writes)
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructors:
//
//	// Supervisor with metrics
//	sup := hosting.NewWithMetrics("background")
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	config := metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	}
//
//	sup := hosting.NewWithConfigAndMetrics(
//		hosting.Config{Name: "background"},
//		config,
//	)
//
// # Available Metrics
//
// ## Supervision Metrics
//
//   - gohost_supervisor_units_registered: Number of units registered with the supervisor
//   - gohost_supervisor_units_running: Number of units currently running
//   - gohost_supervisor_unit_starts_total: Total number of successful unit starts
//   - gohost_supervisor_startup_failures_total: Total number of units that failed to start
//   - gohost_supervisor_runtime_failures_total: Total number of units that failed while running
//   - gohost_supervisor_cooperative_stops_total: Total number of units that stopped cooperatively
//   - gohost_supervisor_units_completed_total: Total number of units that completed without error
//   - gohost_supervisor_units_abandoned_total: Total number of units abandoned after the grace period
//   - gohost_supervisor_start_duration_seconds: Time spent starting all units
//   - gohost_supervisor_stop_duration_seconds: Time spent in the stop round
//
// ## Unit Metrics
//
//   - gohost_unit_run_duration_seconds: Time from unit start to terminal state
//
// ## Heartbeat Metrics
//
//   - gohost_heartbeat_beats_total: Total number of heartbeats written
//   - gohost_heartbeat_failures_total: Total number of failed heartbeat writes
//
// # Labels
//
// Metrics include relevant labels for filtering and aggregation:
//
//   - supervisor: User-provided name for the supervisor instance
//   - unit: Name of the supervised unit
//   - instance: Heartbeat instance identifier
//
// # Configuration
//
// Metrics can be configured globally or per-component:
//
//	config := metrics.Config{
//		Enabled:   true,                           // Enable/disable metrics
//		Registry:  prometheus.DefaultRegisterer,   // Custom registry
//		Namespace: "myapp",                        // Override default "gohost"
//		Labels:    prometheus.Labels{"version": "1.0"}, // Additional labels
//	}
//
// # Runtime Control
//
// Components implementing the Instrumentable interface support runtime control:
//
//	sup := hosting.NewWithMetrics("background")
//	ms := sup.(metrics.Instrumentable)
//	ms.DisableMetrics()           // Stop collecting metrics
//	ms.EnableMetrics(config)      // Re-enable with new config
//	enabled := ms.MetricsEnabled() // Check current state
//
// # Performance
//
// Metrics collection is designed for minimal overhead:
//   - Counters are driven by the supervisor's own event feed
//   - Gauges are recomputed from cheap status snapshots
//   - Conditional metrics updates based on enabled state
package metrics
