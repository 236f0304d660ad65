// Package metrics provides Prometheus instrumentation for gohost components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for gohost components.
type Registry struct {
	// Supervision Metrics
	UnitsRegistered  *prometheus.GaugeVec
	UnitsRunning     *prometheus.GaugeVec
	UnitStarts       *prometheus.CounterVec
	StartupFailures  *prometheus.CounterVec
	RuntimeFailures  *prometheus.CounterVec
	CooperativeStops *prometheus.CounterVec
	UnitsCompleted   *prometheus.CounterVec
	UnitsAbandoned   *prometheus.CounterVec
	StartDuration    *prometheus.HistogramVec
	StopDuration     *prometheus.HistogramVec

	// Unit Metrics
	UnitRunDuration *prometheus.HistogramVec

	// Heartbeat Metrics
	HeartbeatBeats    *prometheus.CounterVec
	HeartbeatFailures *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by gohost components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Supervision Metrics
		UnitsRegistered: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gohost",
				Subsystem: "supervisor",
				Name:      "units_registered",
				Help:      "Number of units registered with the supervisor",
			},
			[]string{"supervisor"},
		),

		UnitsRunning: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gohost",
				Subsystem: "supervisor",
				Name:      "units_running",
				Help:      "Number of units currently running",
			},
			[]string{"supervisor"},
		),

		UnitStarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gohost",
				Subsystem: "supervisor",
				Name:      "unit_starts_total",
				Help:      "Total number of successful unit starts",
			},
			[]string{"supervisor"},
		),

		StartupFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gohost",
				Subsystem: "supervisor",
				Name:      "startup_failures_total",
				Help:      "Total number of units that failed to start",
			},
			[]string{"supervisor"},
		),

		RuntimeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gohost",
				Subsystem: "supervisor",
				Name:      "runtime_failures_total",
				Help:      "Total number of units that failed while running",
			},
			[]string{"supervisor"},
		),

		CooperativeStops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gohost",
				Subsystem: "supervisor",
				Name:      "cooperative_stops_total",
				Help:      "Total number of units that stopped cooperatively",
			},
			[]string{"supervisor"},
		),

		UnitsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gohost",
				Subsystem: "supervisor",
				Name:      "units_completed_total",
				Help:      "Total number of units that completed without error",
			},
			[]string{"supervisor"},
		),

		UnitsAbandoned: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gohost",
				Subsystem: "supervisor",
				Name:      "units_abandoned_total",
				Help:      "Total number of units abandoned after the grace period",
			},
			[]string{"supervisor"},
		),

		StartDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gohost",
				Subsystem: "supervisor",
				Name:      "start_duration_seconds",
				Help:      "Time spent starting all units",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"supervisor"},
		),

		StopDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gohost",
				Subsystem: "supervisor",
				Name:      "stop_duration_seconds",
				Help:      "Time spent in the stop round",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"supervisor"},
		),

		// Unit Metrics
		UnitRunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gohost",
				Subsystem: "unit",
				Name:      "run_duration_seconds",
				Help:      "Time from unit start to terminal state",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"supervisor", "unit"},
		),

		// Heartbeat Metrics
		HeartbeatBeats: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gohost",
				Subsystem: "heartbeat",
				Name:      "beats_total",
				Help:      "Total number of heartbeats written",
			},
			[]string{"instance"},
		),

		HeartbeatFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gohost",
				Subsystem: "heartbeat",
				Name:      "failures_total",
				Help:      "Total number of failed heartbeat writes",
			},
			[]string{"instance"},
		),
	}
}
