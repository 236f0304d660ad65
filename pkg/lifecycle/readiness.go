package lifecycle

import "context"

// WaitStarted implements the readiness gate used by units that must not begin
// work before the process has finished starting.
//
// The call races the started transition against ctx. Cancellation is checked
// first, so a ctx that was already done when the call was made returns false
// even if started has also fired. Waiting is select-based; a losing waiter
// leaves nothing registered behind, no matter how many times the gate is used.
func (s *signal) WaitStarted(ctx context.Context) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return false
	default:
	}

	select {
	case <-s.started:
		return true
	case <-ctx.Done():
		return false
	}
}
