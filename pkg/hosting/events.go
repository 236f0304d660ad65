package hosting

import "time"

// EventType identifies what happened to a supervised unit.
type EventType int

const (
	// EventStarted means the unit's start call succeeded.
	EventStarted EventType = iota

	// EventCompleted means the unit's work finished without error.
	EventCompleted

	// EventStopped means the unit's work ended cooperatively after a
	// stop request.
	EventStopped

	// EventStartupFailed means the unit failed before running.
	EventStartupFailed

	// EventRuntimeFailed means the unit failed while running. The
	// recommended host policy is to treat this as fatal; the
	// supervisor reports it and leaves the decision to the host.
	EventRuntimeFailed

	// EventAbandoned means the unit did not settle within the grace
	// period during StopAll. Its work may still be unwinding.
	EventAbandoned
)

// String returns a human-readable representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventStopped:
		return "stopped"
	case EventStartupFailed:
		return "startup-failed"
	case EventRuntimeFailed:
		return "runtime-failed"
	case EventAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Event describes one observable transition of a supervised unit.
type Event struct {
	// Type is what happened.
	Type EventType

	// Unit is the name of the unit the event concerns.
	Unit string

	// Err is the failure cause for failure events, nil otherwise.
	Err error

	// Time is when the event was recorded.
	Time time.Time
}
