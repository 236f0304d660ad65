package hosting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vnykmshr/gohost/internal/testutil"
	gherrors "github.com/vnykmshr/gohost/pkg/common/errors"
	"github.com/vnykmshr/gohost/pkg/events"
)

// collectEvents receives n events from the subscription or fails the
// test.
func collectEvents(t *testing.T, sub events.Subscription[Event], n int) []Event {
	t.Helper()

	collected := make([]Event, 0, n)
	deadline := time.After(testutil.TestTimeout)
	for len(collected) < n {
		select {
		case event, ok := <-sub.C():
			if !ok {
				t.Fatalf("event feed closed after %d of %d events", len(collected), n)
			}
			collected = append(collected, event)
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", len(collected), n)
		}
	}
	return collected
}

func countByType(collected []Event) map[EventType]int {
	counts := make(map[EventType]int)
	for _, event := range collected {
		counts[event.Type]++
	}
	return counts
}

func TestNewSupervisorWithConfig(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectPanic bool
	}{
		{"default config", Config{}, false},
		{"named", Config{Name: "workers", GracePeriod: time.Second}, false},
		{"negative grace", Config{GracePeriod: -1}, true},
		{"negative event buffer", Config{EventBuffer: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.expectPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Error("expected panic")
					}
				}()
			}

			s := NewWithConfig(tt.config)
			if !tt.expectPanic {
				testutil.AssertNoError(t, s.Close())
			}
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	s := New("test")
	defer s.Close()

	testutil.AssertError(t, s.Register("", &TestTask{}))
	testutil.AssertError(t, s.Register("worker", nil))
	testutil.AssertError(t, s.RegisterService("", &TestService{}))
	testutil.AssertError(t, s.RegisterService("svc", nil))

	testutil.AssertNoError(t, s.Register("worker", &TestTask{}))
	err := s.Register("worker", &TestTask{})
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, errors.Is(err, gherrors.ErrAlreadyRegistered), true)

	// Task and service units share one namespace.
	err = s.RegisterService("worker", &TestService{})
	testutil.AssertEqual(t, errors.Is(err, gherrors.ErrAlreadyRegistered), true)
}

func TestRegisterAfterStart(t *testing.T) {
	s := New("test")
	defer s.Close()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	testutil.AssertNoError(t, s.Register("a", &TestTask{}))
	testutil.AssertNoError(t, s.StartAll(ctx))

	err := s.Register("b", &TestTask{})
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, errors.Is(err, gherrors.ErrAlreadyStarted), true)

	testutil.AssertClosed(t, s.Done())
}

func TestStartAllOrder(t *testing.T) {
	recorder := testutil.NewCallRecorder()
	s := NewWithConfig(Config{
		Name:        "ordered",
		OnUnitStart: func(name string) { recorder.Record(name) },
	})
	defer s.Close()

	testutil.AssertNoError(t, s.Register("a", &TestTask{}))
	testutil.AssertNoError(t, s.Register("b", &TestTask{}))
	testutil.AssertNoError(t, s.Register("c", &TestTask{}))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, s.StartAll(ctx))

	testutil.AssertEqual(t, strings.Join(recorder.Calls(), ","), "a,b,c")
	testutil.AssertClosed(t, s.Done())
}

func TestStartAllTwice(t *testing.T) {
	s := New("test")
	defer s.Close()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	testutil.AssertNoError(t, s.Register("a", &TestTask{}))
	testutil.AssertNoError(t, s.StartAll(ctx))

	err := s.StartAll(ctx)
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, errors.Is(err, gherrors.ErrAlreadyStarted), true)

	testutil.AssertClosed(t, s.Done())
}

func TestStartAllContinuesPastFailure(t *testing.T) {
	errBoom := errors.New("boom")
	s := New("test")
	defer s.Close()

	testutil.AssertNoError(t, s.Register("ok1", &TestTask{Block: true}))
	testutil.AssertNoError(t, s.Register("bad", &initTask{InitErr: errBoom}))
	testutil.AssertNoError(t, s.Register("ok2", &TestTask{Block: true}))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	err := s.StartAll(ctx)
	testutil.AssertError(t, err)

	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("expected *StartError, got %T", err)
	}
	testutil.AssertEqual(t, len(startErr.Failures), 1)
	testutil.AssertEqual(t, startErr.Failures[0].Unit, "bad")
	testutil.AssertEqual(t, errors.Is(err, errBoom), true)

	// The failure did not prevent the later unit from starting.
	status, ok := s.Unit("ok2")
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, status.Status, StatusRunning)

	status, _ = s.Unit("bad")
	testutil.AssertEqual(t, status.Status, StatusFailed)
	testutil.AssertEqual(t, status.Failure, FailureStartup)

	report := s.StopAll(time.Second)
	testutil.AssertEqual(t, report.Abandoned, 0)
	testutil.AssertClosed(t, s.Done())
}

func TestStopAllCooperative(t *testing.T) {
	s := New("test")
	defer s.Close()

	for _, name := range []string{"a", "b", "c"} {
		testutil.AssertNoError(t, s.Register(name, &TestTask{Block: true}))
	}

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, s.StartAll(ctx))

	report := s.StopAll(time.Second)
	testutil.AssertEqual(t, len(report.Results), 3)
	testutil.AssertEqual(t, report.Abandoned, 0)
	for _, r := range report.Results {
		testutil.AssertEqual(t, r.Status, StatusStopped)
		testutil.AssertNoError(t, r.Err)
	}

	testutil.AssertClosed(t, s.Done())
}

func TestStopAllBoundedByGrace(t *testing.T) {
	releaseA := make(chan struct{})
	releaseB := make(chan struct{})

	s := New("test")
	defer s.Close()

	testutil.AssertNoError(t, s.Register("stuck-a", &TestTask{IgnoreCtx: releaseA}))
	testutil.AssertNoError(t, s.Register("stuck-b", &TestTask{IgnoreCtx: releaseB}))
	testutil.AssertNoError(t, s.Register("polite", &TestTask{Block: true}))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, s.StartAll(ctx))

	grace := 200 * time.Millisecond
	report := s.StopAll(grace)

	// Stops run concurrently against one deadline, so two stragglers
	// cost one grace period, not two.
	if report.Elapsed >= 2*grace {
		t.Fatalf("stop round took %v, want under %v", report.Elapsed, 2*grace)
	}
	testutil.AssertEqual(t, report.Abandoned, 2)

	byName := make(map[string]StopResult)
	for _, r := range report.Results {
		byName[r.Name] = r
	}
	testutil.AssertEqual(t, byName["stuck-a"].Abandoned, true)
	testutil.AssertEqual(t, byName["stuck-b"].Abandoned, true)
	testutil.AssertEqual(t, byName["polite"].Abandoned, false)
	testutil.AssertEqual(t, byName["polite"].Status, StatusStopped)

	// Stragglers are abandoned, not forgotten: once they yield, the
	// supervisor's done channel closes.
	close(releaseA)
	close(releaseB)
	testutil.AssertClosed(t, s.Done())
}

func TestStopAllBeforeStart(t *testing.T) {
	s := New("test")
	defer s.Close()

	testutil.AssertNoError(t, s.Register("a", &TestTask{}))

	report := s.StopAll(time.Second)
	testutil.AssertEqual(t, len(report.Results), 0)
	testutil.AssertEqual(t, report.Abandoned, 0)
}

func TestStopAllIdempotent(t *testing.T) {
	s := New("test")
	defer s.Close()

	testutil.AssertNoError(t, s.Register("a", &TestTask{Block: true}))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, s.StartAll(ctx))

	first := s.StopAll(time.Second)
	second := s.StopAll(time.Second)

	testutil.AssertEqual(t, len(second.Results), len(first.Results))
	testutil.AssertEqual(t, second.Abandoned, first.Abandoned)
	testutil.AssertEqual(t, second.Elapsed, first.Elapsed)
	testutil.AssertClosed(t, s.Done())
}

func TestStopAllUsesConfiguredGrace(t *testing.T) {
	release := make(chan struct{})
	s := NewWithConfig(Config{Name: "test", GracePeriod: 2 * time.Second})
	defer s.Close()

	testutil.AssertNoError(t, s.Register("slow", &TestTask{IgnoreCtx: release}))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, s.StartAll(ctx))

	timer := time.AfterFunc(50*time.Millisecond, func() { close(release) })
	defer timer.Stop()

	// Zero grace falls back to the configured period, which is long
	// enough for the delayed release to settle the unit.
	report := s.StopAll(0)
	testutil.AssertEqual(t, report.Abandoned, 0)
	testutil.AssertEqual(t, report.Results[0].Status, StatusStopped)
	testutil.AssertClosed(t, s.Done())
}

func TestUnitsSnapshot(t *testing.T) {
	s := New("test")
	defer s.Close()

	testutil.AssertNoError(t, s.Register("a", &TestTask{}))
	testutil.AssertNoError(t, s.RegisterService("b", &TestService{}))

	statuses := s.Units()
	testutil.AssertEqual(t, len(statuses), 2)
	testutil.AssertEqual(t, statuses[0].Name, "a")
	testutil.AssertEqual(t, statuses[1].Name, "b")
	testutil.AssertEqual(t, statuses[0].Status, StatusNotStarted)

	_, ok := s.Unit("a")
	testutil.AssertEqual(t, ok, true)
	_, ok = s.Unit("missing")
	testutil.AssertEqual(t, ok, false)
}

func TestDoneWithZeroUnits(t *testing.T) {
	s := New("test")
	defer s.Close()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	testutil.AssertNoError(t, s.StartAll(ctx))
	testutil.AssertClosed(t, s.Done())

	report := s.StopAll(time.Second)
	testutil.AssertEqual(t, len(report.Results), 0)
}

func TestSubscribeEvents(t *testing.T) {
	s := New("test")
	defer s.Close()

	sub, err := s.Subscribe()
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, s.Register("ok", &TestTask{}))
	testutil.AssertNoError(t, s.Register("stop", &TestTask{Block: true}))
	testutil.AssertNoError(t, s.Register("fail", &TestTask{Duration: 5 * time.Millisecond, ShouldErr: true}))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, s.StartAll(ctx))

	// Three starts, one completion, one runtime failure.
	collected := collectEvents(t, sub, 5)

	s.StopAll(time.Second)
	collected = append(collected, collectEvents(t, sub, 1)...)

	counts := countByType(collected)
	testutil.AssertEqual(t, counts[EventStarted], 3)
	testutil.AssertEqual(t, counts[EventCompleted], 1)
	testutil.AssertEqual(t, counts[EventRuntimeFailed], 1)
	testutil.AssertEqual(t, counts[EventStopped], 1)
	testutil.AssertClosed(t, s.Done())
}

func TestRuntimeFailureEventAndIsolation(t *testing.T) {
	s := New("test")
	defer s.Close()

	sub, err := s.Subscribe()
	testutil.AssertNoError(t, err)

	failing := &TestTask{Duration: 5 * time.Millisecond, ShouldErr: true}
	testutil.AssertNoError(t, s.Register("bad", failing))
	testutil.AssertNoError(t, s.Register("good", &TestTask{Block: true}))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, s.StartAll(ctx))

	var failure Event
	deadline := time.After(testutil.TestTimeout)
	for failure.Type != EventRuntimeFailed {
		select {
		case event := <-sub.C():
			failure = event
		case <-deadline:
			t.Fatal("runtime failure event never arrived")
		}
	}
	testutil.AssertEqual(t, failure.Unit, "bad")
	testutil.AssertError(t, failure.Err)

	// One unit's crash does not disturb its siblings.
	status, _ := s.Unit("good")
	testutil.AssertEqual(t, status.Status, StatusRunning)

	s.StopAll(time.Second)
	testutil.AssertClosed(t, s.Done())
}

func TestCloseWithoutStart(t *testing.T) {
	s := New("test")

	testutil.AssertNoError(t, s.Register("a", &TestTask{}))
	testutil.AssertNoError(t, s.Close())
	testutil.AssertClosed(t, s.Done())

	err := s.Register("b", &TestTask{})
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, errors.Is(err, gherrors.ErrClosed), true)

	err = s.StartAll(context.Background())
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, errors.Is(err, gherrors.ErrClosed), true)

	// Close is idempotent.
	testutil.AssertNoError(t, s.Close())
}

func TestCloseStopsRunningUnits(t *testing.T) {
	s := New("test")

	testutil.AssertNoError(t, s.Register("a", &TestTask{Block: true}))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, s.StartAll(ctx))

	testutil.AssertNoError(t, s.Close())
	testutil.AssertClosed(t, s.Done())

	status, _ := s.Unit("a")
	testutil.AssertEqual(t, status.Status, StatusStopped)

	_, err := s.Subscribe()
	testutil.AssertError(t, err)
}

func TestSupervisorPanicHandler(t *testing.T) {
	panics := make(chan string, 1)
	s := NewWithConfig(Config{
		Name: "test",
		PanicHandler: func(name string, recovered interface{}) {
			panics <- name
		},
	})
	defer s.Close()

	testutil.AssertNoError(t, s.Register("panicky", &TestTask{ShouldPanic: true}))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	_ = s.StartAll(ctx)

	select {
	case name := <-panics:
		testutil.AssertEqual(t, name, "panicky")
	case <-time.After(testutil.TestTimeout):
		t.Fatal("panic handler was not called")
	}
	testutil.AssertClosed(t, s.Done())
}

func TestOnUnitExitHook(t *testing.T) {
	exits := make(chan UnitStatus, 1)
	s := NewWithConfig(Config{
		Name:       "test",
		OnUnitExit: func(status UnitStatus) { exits <- status },
	})
	defer s.Close()

	testutil.AssertNoError(t, s.Register("quick", &TestTask{}))

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, s.StartAll(ctx))

	select {
	case status := <-exits:
		testutil.AssertEqual(t, status.Name, "quick")
		testutil.AssertEqual(t, status.Status, StatusSucceeded)
	case <-time.After(testutil.TestTimeout):
		t.Fatal("exit hook was not called")
	}
	testutil.AssertClosed(t, s.Done())
}
