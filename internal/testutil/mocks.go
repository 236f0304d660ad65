package testutil

import (
	"sync"
)

// CallRecorder records a sequence of named calls for order-sensitive
// assertions, such as verifying that units start in registration order.
// Safe for concurrent use.
type CallRecorder struct {
	mu    sync.Mutex
	calls []string
}

// NewCallRecorder creates an empty recorder.
func NewCallRecorder() *CallRecorder {
	return &CallRecorder{}
}

// Record appends a call name to the sequence.
func (r *CallRecorder) Record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

// Calls returns a copy of the recorded sequence.
func (r *CallRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := make([]string, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// Len returns the number of recorded calls.
func (r *CallRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Reset clears the recorded sequence.
func (r *CallRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
