package host

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	gherrors "github.com/vnykmshr/gohost/pkg/common/errors"
	"github.com/vnykmshr/gohost/pkg/common/validation"
	"github.com/vnykmshr/gohost/pkg/events"
	"github.com/vnykmshr/gohost/pkg/hosting"
	"github.com/vnykmshr/gohost/pkg/lifecycle"
)

// Config holds configuration options for creating a host.
type Config struct {
	// Name identifies the host in logs and errors. Defaults to "host".
	Name string

	// Supervisor owns the units the host runs. Required.
	Supervisor hosting.Supervisor

	// Lifecycle is the signal the host drives through its
	// started/stopping/stopped transitions. Defaults to a fresh
	// signal; pass a shared one so units can gate on it.
	Lifecycle lifecycle.Signal

	// GracePeriod bounds the shutdown round. Zero uses the
	// supervisor's configured grace.
	GracePeriod time.Duration

	// Signals lists the OS signals that trigger shutdown.
	// Defaults to SIGINT and SIGTERM.
	Signals []os.Signal

	// Logger receives host logs. Defaults to a discard logger.
	Logger *slog.Logger

	// FatalOnRuntimeFailure shuts the host down when any unit fails at
	// runtime. When false, failures are isolated and the host keeps
	// running.
	FatalOnRuntimeFailure bool
}

// Host ties a supervisor to process lifetime: it starts the units,
// reports readiness, waits for a shutdown trigger, and drives the
// shutdown sequence.
type Host struct {
	config    Config
	logger    *slog.Logger
	lifecycle lifecycle.Signal

	stop     chan struct{}
	stopOnce sync.Once

	mu  sync.Mutex
	ran bool
}

// New creates a host with the specified configuration.
func New(config Config) (*Host, error) {
	if err := validation.ValidateNotNil("host", "supervisor", config.Supervisor); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration("host", "grace_period", config.GracePeriod); err != nil {
		return nil, err
	}

	if config.Name == "" {
		config.Name = "host"
	}
	if config.Lifecycle == nil {
		config.Lifecycle = lifecycle.New()
	}
	if len(config.Signals) == 0 {
		config.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Host{
		config:    config,
		logger:    config.Logger.With("host", config.Name),
		lifecycle: config.Lifecycle,
		stop:      make(chan struct{}),
	}, nil
}

// Lifecycle returns the signal the host drives. Units and readiness
// probes observe it.
func (h *Host) Lifecycle() lifecycle.Signal {
	return h.lifecycle
}

// Run starts every unit, marks the lifecycle started, and blocks until
// an OS signal arrives, ctx is canceled, or Stop is called. It then
// requests stop, drives the shutdown round, marks the lifecycle
// stopped, and closes the supervisor.
//
// A startup failure aborts the run: already-started units are stopped
// and the start error is returned. The lifecycle is never marked
// started in that case. Valid once.
func (h *Host) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	h.mu.Lock()
	if h.ran {
		h.mu.Unlock()
		return fmt.Errorf("host %q: %w", h.config.Name, gherrors.ErrAlreadyStarted)
	}
	h.ran = true
	h.mu.Unlock()

	s := h.config.Supervisor

	// Watch for fatal failures before any unit starts, so an early
	// crash is not missed.
	if h.config.FatalOnRuntimeFailure {
		if sub, err := s.Subscribe(); err == nil {
			go h.watchFailures(sub)
		}
	}

	if err := s.StartAll(ctx); err != nil {
		h.logger.Error("startup failed, stopping started units", "error", err)
		h.lifecycle.RequestStop()
		s.StopAll(h.config.GracePeriod)
		h.lifecycle.MarkStopped()
		if closeErr := s.Close(); closeErr != nil {
			h.logger.Warn("supervisor close failed", "error", closeErr)
		}
		return err
	}

	h.lifecycle.MarkStarted()
	h.logger.Info("host started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, h.config.Signals...)
	defer signal.Stop(sigCh)

	var reason string
	select {
	case sig := <-sigCh:
		reason = sig.String()
	case <-ctx.Done():
		reason = "context canceled"
	case <-h.stop:
		reason = "stop requested"
	}

	h.logger.Info("shutting down", "reason", reason)
	h.lifecycle.RequestStop()

	report := s.StopAll(h.config.GracePeriod)
	if report.Abandoned > 0 {
		h.logger.Warn("units abandoned at shutdown", "count", report.Abandoned)
	}

	h.lifecycle.MarkStopped()
	h.logger.Info("host stopped", "elapsed", report.Elapsed)
	return s.Close()
}

// Stop triggers shutdown. Idempotent and safe from any goroutine; a
// running unit may call it to end the process.
func (h *Host) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// watchFailures stops the host on the first runtime failure. It drains
// the subscription until the supervisor's feed closes.
func (h *Host) watchFailures(sub events.Subscription[hosting.Event]) {
	for event := range sub.C() {
		if event.Type == hosting.EventRuntimeFailed {
			h.logger.Error("unit failed, stopping host", "unit", event.Unit, "error", event.Err)
			h.Stop()
		}
	}
}
