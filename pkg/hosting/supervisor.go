package hosting

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	gherrors "github.com/vnykmshr/gohost/pkg/common/errors"
	"github.com/vnykmshr/gohost/pkg/events"
)

const (
	// DefaultGracePeriod is the shutdown grace period used when the
	// configuration leaves it zero.
	DefaultGracePeriod = 30 * time.Second

	// DefaultEventBuffer is the per-subscriber event buffer used when
	// the configuration leaves it zero.
	DefaultEventBuffer = 64
)

// Supervisor owns an ordered set of units and drives the two fan-out
// operations: start-all and stop-all.
type Supervisor interface {
	// Register appends a task to the unit sequence under the given
	// name. Registration must happen before StartAll; names must be
	// unique and non-empty.
	Register(name string, task Task) error

	// RegisterService appends a service to the unit sequence.
	RegisterService(name string, svc Service) error

	// StartAll starts every unit in registration order. One unit's
	// startup failure does not prevent later units from starting;
	// after all starts were attempted, the collected failures are
	// returned as a *StartError. Valid once.
	StartAll(ctx context.Context) error

	// StopAll cancels every unit's work, then stops all units
	// concurrently and waits for the stops to settle, bounded by the
	// grace period. A nonpositive grace uses the configured default.
	// Units whose stop did not settle in time are reported abandoned;
	// that is never an error. Idempotent: later calls return the
	// recorded report.
	StopAll(grace time.Duration) StopReport

	// Units returns a status snapshot of every registered unit in
	// registration order.
	Units() []UnitStatus

	// Unit returns the status of the named unit.
	Unit(name string) (UnitStatus, bool)

	// Subscribe returns a subscription to the supervisor's event
	// feed. Events are delivered best-effort; a slow consumer drops
	// oldest events rather than stalling supervision.
	Subscribe() (events.Subscription[Event], error)

	// Done returns a channel closed once every started unit has
	// reached a terminal state, including stragglers that outlived
	// the grace period.
	Done() <-chan struct{}

	// Close cancels outstanding work, closes every unit and the
	// event feed. Idempotent.
	Close() error
}

// Config holds configuration options for creating a supervisor.
type Config struct {
	// Name identifies the supervisor in logs and errors.
	// Defaults to "supervisor".
	Name string

	// GracePeriod is the default shutdown grace for StopAll.
	// Defaults to DefaultGracePeriod.
	GracePeriod time.Duration

	// Logger receives supervision logs. Defaults to a discard
	// logger so the zero configuration stays silent.
	Logger *slog.Logger

	// EventBuffer is the per-subscriber buffer of the event feed.
	// Defaults to DefaultEventBuffer.
	EventBuffer int

	// OnUnitStart is called immediately before each unit's start.
	OnUnitStart func(name string)

	// OnUnitExit is called when a unit reaches a terminal state.
	OnUnitExit func(status UnitStatus)

	// PanicHandler is called when a unit's work panics. The panic is
	// always recovered and recorded as a unit failure; the handler
	// is for additional reporting.
	PanicHandler func(name string, recovered interface{})
}

// UnitError records the startup failure of a single unit.
type UnitError struct {
	// Unit is the name of the unit that failed to start.
	Unit string

	// Err is the failure returned by the unit's start.
	Err error
}

func (e UnitError) Error() string {
	return fmt.Sprintf("unit %q: %v", e.Unit, e.Err)
}

func (e UnitError) Unwrap() error {
	return e.Err
}

// StartError aggregates the startup failures of one StartAll round.
// It unwraps to the per-unit errors, in registration order.
type StartError struct {
	// Supervisor is the name of the reporting supervisor.
	Supervisor string

	// Failures lists the units whose start failed, in registration
	// order.
	Failures []UnitError
}

func (e *StartError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("supervisor %q: unit %q failed to start: %v",
			e.Supervisor, e.Failures[0].Unit, e.Failures[0].Err)
	}
	return fmt.Sprintf("supervisor %q: %d units failed to start",
		e.Supervisor, len(e.Failures))
}

func (e *StartError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// StopResult is the per-unit outcome of a StopAll round.
type StopResult struct {
	// Name identifies the unit.
	Name string

	// Status is the unit's state when its stop settled or was
	// abandoned.
	Status Status

	// Abandoned reports that the grace period elapsed before the
	// unit's stop settled. The unit's work may still be unwinding.
	Abandoned bool

	// Err is a stop failure unrelated to the grace period, such as a
	// service whose stop phase returned an error.
	Err error
}

// StopReport summarizes a StopAll round.
type StopReport struct {
	// Results holds the per-unit outcomes in registration order.
	Results []StopResult

	// Abandoned counts the units that did not settle in time.
	Abandoned int

	// Elapsed is the wall-clock duration of the round.
	Elapsed time.Duration
}

// supervisor implements the Supervisor interface.
type supervisor struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	units   []Unit
	byName  map[string]Unit
	started bool
	stopped bool
	report  StopReport
	cancel  context.CancelFunc
	closed  bool

	feed     events.Feed[Event]
	done     chan struct{}
	doneOnce sync.Once
}

// New creates a supervisor with default configuration.
func New(name string) Supervisor {
	return NewWithConfig(Config{Name: name})
}

// NewWithConfig creates a supervisor with the specified configuration.
func NewWithConfig(config Config) Supervisor {
	if config.GracePeriod < 0 {
		panic("grace period cannot be negative")
	}
	if config.EventBuffer < 0 {
		panic("event buffer cannot be negative")
	}

	if config.Name == "" {
		config.Name = "supervisor"
	}
	if config.GracePeriod == 0 {
		config.GracePeriod = DefaultGracePeriod
	}
	if config.EventBuffer == 0 {
		config.EventBuffer = DefaultEventBuffer
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &supervisor{
		config: config,
		logger: config.Logger.With("supervisor", config.Name),
		byName: make(map[string]Unit),
		feed: events.NewWithConfig[Event](events.Config{
			BufferSize: config.EventBuffer,
			Strategy:   events.DropOldest,
		}),
		done: make(chan struct{}),
	}
}

func (s *supervisor) Register(name string, task Task) error {
	if name == "" {
		return fmt.Errorf("unit name cannot be empty")
	}
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	return s.register(name, NewUnitWithConfig(UnitConfig{
		Name:         name,
		Task:         task,
		OnExit:       s.unitExited,
		PanicHandler: s.config.PanicHandler,
	}))
}

func (s *supervisor) RegisterService(name string, svc Service) error {
	if name == "" {
		return fmt.Errorf("unit name cannot be empty")
	}
	if svc == nil {
		return fmt.Errorf("service cannot be nil")
	}
	return s.register(name, NewUnitWithConfig(UnitConfig{
		Name:         name,
		Service:      svc,
		OnExit:       s.unitExited,
		PanicHandler: s.config.PanicHandler,
	}))
}

func (s *supervisor) register(name string, unit Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("cannot register unit %q: %w", name, gherrors.ErrClosed)
	}
	if s.started {
		return fmt.Errorf("cannot register unit %q: %w", name, gherrors.ErrAlreadyStarted)
	}
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("cannot register unit %q: %w", name, gherrors.ErrAlreadyRegistered)
	}

	s.units = append(s.units, unit)
	s.byName[name] = unit
	return nil
}

func (s *supervisor) StartAll(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("supervisor %q: %w", s.config.Name, gherrors.ErrClosed)
	}
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("supervisor %q: %w", s.config.Name, gherrors.ErrAlreadyStarted)
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	units := make([]Unit, len(s.units))
	copy(units, s.units)
	s.mu.Unlock()

	var failures []UnitError
	for _, u := range units {
		if s.config.OnUnitStart != nil {
			s.config.OnUnitStart(u.Name())
		}
		if err := u.Start(runCtx); err != nil {
			failures = append(failures, UnitError{Unit: u.Name(), Err: err})
			continue
		}
		s.publish(Event{Type: EventStarted, Unit: u.Name(), Time: time.Now()})
		s.logger.Info("unit started", "unit", u.Name())
	}

	go s.watch(units)

	if len(failures) > 0 {
		return &StartError{Supervisor: s.config.Name, Failures: failures}
	}
	return nil
}

func (s *supervisor) StopAll(grace time.Duration) StopReport {
	if grace <= 0 {
		grace = s.config.GracePeriod
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return StopReport{}
	}
	if s.stopped {
		report := s.report
		s.mu.Unlock()
		return report
	}
	s.stopped = true
	cancel := s.cancel
	units := make([]Unit, len(s.units))
	copy(units, s.units)
	s.mu.Unlock()

	start := time.Now()
	s.logger.Info("stopping units", "count", len(units), "grace", grace)

	graceCtx, graceCancel := context.WithTimeout(context.Background(), grace)
	defer graceCancel()

	// Cancellation reaches every unit in the same shutdown round
	// before any unit is awaited.
	cancel()

	results := make([]StopResult, len(units))
	var wg sync.WaitGroup
	for i, u := range units {
		wg.Add(1)
		go func(i int, u Unit) {
			defer wg.Done()
			results[i] = s.stopUnit(graceCtx, u)
		}(i, u)
	}
	wg.Wait()

	report := StopReport{Results: results, Elapsed: time.Since(start)}
	for _, r := range results {
		if r.Abandoned {
			report.Abandoned++
		}
	}

	s.mu.Lock()
	s.report = report
	s.mu.Unlock()

	s.logger.Info("stop round complete",
		"abandoned", report.Abandoned, "elapsed", report.Elapsed)
	return report
}

// stopUnit stops one unit within the grace context and records the
// outcome.
func (s *supervisor) stopUnit(graceCtx context.Context, u Unit) StopResult {
	err := u.Stop(graceCtx)
	result := StopResult{Name: u.Name(), Status: u.Status().Status}

	switch {
	case err == nil:
		s.logger.Info("unit stop settled", "unit", u.Name(), "status", result.Status.String())
	case gherrors.IsCancellation(err):
		result.Abandoned = true
		s.publish(Event{Type: EventAbandoned, Unit: u.Name(), Time: time.Now()})
		s.logger.Warn("unit abandoned after grace period", "unit", u.Name())
	default:
		result.Err = err
		s.logger.Error("unit stop failed", "unit", u.Name(), "error", err)
	}
	return result
}

func (s *supervisor) Units() []UnitStatus {
	s.mu.Lock()
	units := make([]Unit, len(s.units))
	copy(units, s.units)
	s.mu.Unlock()

	statuses := make([]UnitStatus, len(units))
	for i, u := range units {
		statuses[i] = u.Status()
	}
	return statuses
}

func (s *supervisor) Unit(name string) (UnitStatus, bool) {
	s.mu.Lock()
	u, ok := s.byName[name]
	s.mu.Unlock()

	if !ok {
		return UnitStatus{}, false
	}
	return u.Status(), true
}

func (s *supervisor) Subscribe() (events.Subscription[Event], error) {
	return s.feed.Subscribe()
}

func (s *supervisor) Done() <-chan struct{} {
	return s.done
}

func (s *supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	started := s.started
	units := make([]Unit, len(s.units))
	copy(units, s.units)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, u := range units {
		if err := u.Close(); err != nil {
			s.logger.Warn("unit close failed", "unit", u.Name(), "error", err)
		}
	}
	if !started {
		s.doneOnce.Do(func() { close(s.done) })
	}
	return s.feed.Close()
}

// watch closes the done channel once every started unit has reached
// a terminal state, however long its work outlives the grace period.
func (s *supervisor) watch(units []Unit) {
	for _, u := range units {
		<-u.Done()
	}
	s.doneOnce.Do(func() { close(s.done) })
}

// unitExited translates a unit's terminal snapshot into the event
// feed and the configured hook.
func (s *supervisor) unitExited(status UnitStatus) {
	event := Event{Unit: status.Name, Err: status.Err, Time: time.Now()}
	switch {
	case status.Status == StatusSucceeded:
		event.Type = EventCompleted
		s.logger.Info("unit completed", "unit", status.Name)
	case status.Status == StatusStopped:
		event.Type = EventStopped
		s.logger.Info("unit stopped", "unit", status.Name)
	case status.Failure == FailureStartup:
		event.Type = EventStartupFailed
		s.logger.Error("unit start failed", "unit", status.Name, "error", status.Err)
	default:
		event.Type = EventRuntimeFailed
		s.logger.Error("unit failed", "unit", status.Name, "error", status.Err)
	}
	s.publish(event)

	if s.config.OnUnitExit != nil {
		s.config.OnUnitExit(status)
	}
}

// publish delivers an event best-effort. Publishing after the feed
// closed is discarded.
func (s *supervisor) publish(event Event) {
	_ = s.feed.Publish(event)
}
