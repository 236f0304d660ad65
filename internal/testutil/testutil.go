package testutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// TestTimeout is the default timeout for tests
const TestTimeout = 5 * time.Second

// WithTimeout creates a context with the default test timeout
func WithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), TestTimeout)
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertEqual fails the test if got != want
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// AssertNotEqual fails the test if got == notWant
func AssertNotEqual[T comparable](t *testing.T, got, notWant T) {
	t.Helper()
	if got == notWant {
		t.Fatalf("got %v, want anything else", got)
	}
}

// AssertClosed fails the test unless ch closes within the default
// test timeout
func AssertClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(TestTimeout):
		t.Fatal("channel did not close in time")
	}
}

// AssertNotClosed fails the test if ch closes within the given window
func AssertNotClosed(t *testing.T, ch <-chan struct{}, window time.Duration) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("channel closed unexpectedly")
	case <-time.After(window):
	}
}

// WaitForInt32 polls an atomic counter until it reaches want or the
// timeout elapses
func WaitForInt32(t *testing.T, addr *int32, want int32, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if atomic.LoadInt32(addr) == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("counter = %d, want %d after %v", atomic.LoadInt32(addr), want, timeout)
		case <-time.After(time.Millisecond):
		}
	}
}
