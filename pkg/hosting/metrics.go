package hosting

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/gohost/pkg/events"
	"github.com/vnykmshr/gohost/pkg/metrics"
)

// MetricsSupervisor wraps a Supervisor with Prometheus metrics collection.
// Counters are driven by the wrapped supervisor's event feed; the feed
// consumer exits when the supervisor is closed.
type MetricsSupervisor struct {
	supervisor Supervisor
	name       string
	registry   *metrics.Registry
	enabled    bool
}

// NewWithMetrics creates a new supervisor with metrics enabled.
func NewWithMetrics(name string) Supervisor {
	// Use a separate registry for each metrics-enabled component to avoid conflicts
	registry := prometheus.NewRegistry()
	config := metrics.Config{
		Enabled:  true,
		Registry: registry,
	}

	return NewWithConfigAndMetrics(Config{Name: name}, config)
}

// NewWithConfigAndMetrics creates a new supervisor with custom config and metrics.
func NewWithConfigAndMetrics(config Config, metricsConfig metrics.Config) Supervisor {
	base := NewWithConfig(config)

	if !metricsConfig.Enabled {
		return base
	}

	registry := metrics.DefaultRegistry
	if metricsConfig.Registry != nil {
		// Create custom registry if provided
		registry = metrics.NewRegistry(metricsConfig.Registry)
	}

	name := config.Name
	if name == "" {
		name = "supervisor"
	}

	ms := &MetricsSupervisor{
		supervisor: base,
		name:       name,
		registry:   registry,
		enabled:    true,
	}

	if sub, err := base.Subscribe(); err == nil {
		go ms.consume(sub)
	}

	// Initialize metrics
	ms.updateMetrics()

	return ms
}

// consume records events until the wrapped supervisor's feed closes.
func (ms *MetricsSupervisor) consume(sub events.Subscription[Event]) {
	for event := range sub.C() {
		ms.record(event)
	}
}

// record translates one supervision event into metric updates.
func (ms *MetricsSupervisor) record(event Event) {
	if !ms.enabled {
		return
	}

	switch event.Type {
	case EventStarted:
		ms.registry.UnitStarts.WithLabelValues(ms.name).Inc()
	case EventCompleted:
		ms.registry.UnitsCompleted.WithLabelValues(ms.name).Inc()
	case EventStopped:
		ms.registry.CooperativeStops.WithLabelValues(ms.name).Inc()
	case EventStartupFailed:
		ms.registry.StartupFailures.WithLabelValues(ms.name).Inc()
	case EventRuntimeFailed:
		ms.registry.RuntimeFailures.WithLabelValues(ms.name).Inc()
	case EventAbandoned:
		ms.registry.UnitsAbandoned.WithLabelValues(ms.name).Inc()
	}

	switch event.Type {
	case EventCompleted, EventStopped, EventRuntimeFailed:
		if status, ok := ms.supervisor.Unit(event.Unit); ok && !status.FinishedAt.IsZero() {
			ms.registry.UnitRunDuration.WithLabelValues(ms.name, event.Unit).
				Observe(status.FinishedAt.Sub(status.StartedAt).Seconds())
		}
	}

	ms.updateMetrics()
}

// updateMetrics updates the current state gauges.
func (ms *MetricsSupervisor) updateMetrics() {
	if !ms.enabled {
		return
	}

	statuses := ms.supervisor.Units()
	running := 0
	for _, status := range statuses {
		if status.Status == StatusRunning {
			running++
		}
	}

	ms.registry.UnitsRegistered.WithLabelValues(ms.name).Set(float64(len(statuses)))
	ms.registry.UnitsRunning.WithLabelValues(ms.name).Set(float64(running))
}

// Register appends a task to the unit sequence.
func (ms *MetricsSupervisor) Register(name string, task Task) error {
	err := ms.supervisor.Register(name, task)
	if err == nil && ms.enabled {
		ms.updateMetrics()
	}
	return err
}

// RegisterService appends a service to the unit sequence.
func (ms *MetricsSupervisor) RegisterService(name string, svc Service) error {
	err := ms.supervisor.RegisterService(name, svc)
	if err == nil && ms.enabled {
		ms.updateMetrics()
	}
	return err
}

// StartAll starts every unit in registration order.
func (ms *MetricsSupervisor) StartAll(ctx context.Context) error {
	start := time.Now()
	err := ms.supervisor.StartAll(ctx)

	if ms.enabled {
		ms.registry.StartDuration.WithLabelValues(ms.name).Observe(time.Since(start).Seconds())
		ms.updateMetrics()
	}
	return err
}

// StopAll stops every unit concurrently, bounded by the grace period.
func (ms *MetricsSupervisor) StopAll(grace time.Duration) StopReport {
	report := ms.supervisor.StopAll(grace)

	if ms.enabled {
		ms.registry.StopDuration.WithLabelValues(ms.name).Observe(report.Elapsed.Seconds())
		ms.updateMetrics()
	}
	return report
}

// Units returns a status snapshot of every registered unit.
func (ms *MetricsSupervisor) Units() []UnitStatus {
	return ms.supervisor.Units()
}

// Unit returns the status of the named unit.
func (ms *MetricsSupervisor) Unit(name string) (UnitStatus, bool) {
	return ms.supervisor.Unit(name)
}

// Subscribe returns a subscription to the supervision event feed.
func (ms *MetricsSupervisor) Subscribe() (events.Subscription[Event], error) {
	return ms.supervisor.Subscribe()
}

// Done returns the wrapped supervisor's done channel.
func (ms *MetricsSupervisor) Done() <-chan struct{} {
	return ms.supervisor.Done()
}

// Close closes the wrapped supervisor and releases the collector.
func (ms *MetricsSupervisor) Close() error {
	return ms.supervisor.Close()
}

// EnableMetrics enables metrics collection.
func (ms *MetricsSupervisor) EnableMetrics(config metrics.Config) error {
	ms.enabled = config.Enabled

	if config.Registry != nil {
		ms.registry = metrics.NewRegistry(config.Registry)
	}

	if ms.enabled {
		ms.updateMetrics()
	}

	return nil
}

// DisableMetrics disables metrics collection.
func (ms *MetricsSupervisor) DisableMetrics() {
	ms.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (ms *MetricsSupervisor) MetricsEnabled() bool {
	return ms.enabled
}
