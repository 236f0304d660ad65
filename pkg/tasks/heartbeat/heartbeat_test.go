package heartbeat

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/gohost/internal/testutil"
	"github.com/vnykmshr/gohost/pkg/hosting"
	"github.com/vnykmshr/gohost/pkg/lifecycle"
)

// testClient returns a client that never connects; configuration and
// key shaping need no live server.
func testClient() redis.UniversalClient {
	return redis.NewClient(&redis.Options{Addr: "localhost:6379"})
}

func TestNewValidation(t *testing.T) {
	rdb := testClient()
	defer rdb.Close()

	tests := []struct {
		name      string
		config    Config
		expectErr string
	}{
		{"valid", Config{Redis: rdb, Key: "app:presence"}, ""},
		{"missing redis", Config{Key: "app:presence"}, "redis client is required"},
		{"missing key", Config{Redis: rdb}, "key is required"},
		{"negative interval", Config{Redis: rdb, Key: "k", Interval: -time.Second}, "interval cannot be negative"},
		{"negative ttl", Config{Redis: rdb, Key: "k", TTL: -time.Second}, "ttl cannot be negative"},
		{"ttl below interval", Config{Redis: rdb, Key: "k", Interval: 10 * time.Second, TTL: 5 * time.Second}, "ttl must exceed the beat interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hb, err := New(tt.config)
			if tt.expectErr == "" {
				testutil.AssertNoError(t, err)
				if hb == nil {
					t.Fatal("expected a heartbeat")
				}
				return
			}

			testutil.AssertError(t, err)
			var configErr *ConfigError
			if !errors.As(err, &configErr) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			testutil.AssertEqual(t, configErr.Message, tt.expectErr)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	testutil.AssertEqual(t, config.Interval, 5*time.Second)
	testutil.AssertEqual(t, config.TTL, 15*time.Second)
	testutil.AssertEqual(t, config.RedisTimeout, 500*time.Millisecond)
	testutil.AssertNotEqual(t, config.InstanceID, "")
}

func TestApplyConfigDefaults(t *testing.T) {
	config := applyConfigDefaults(Config{Interval: 2 * time.Second})

	testutil.AssertEqual(t, config.Interval, 2*time.Second)
	testutil.AssertEqual(t, config.TTL, 6*time.Second)
	testutil.AssertEqual(t, config.RedisTimeout, 500*time.Millisecond)
	testutil.AssertNotEqual(t, config.InstanceID, "")
	if config.Logger == nil {
		t.Fatal("expected a default logger")
	}
}

func TestGenerateInstanceID(t *testing.T) {
	first := generateInstanceID()
	second := generateInstanceID()

	testutil.AssertNotEqual(t, first, "")
	testutil.AssertNotEqual(t, first, second)
}

func TestKeyShapes(t *testing.T) {
	rdb := testClient()
	defer rdb.Close()

	hb, err := New(Config{Redis: rdb, Key: "app:presence", InstanceID: "worker-1"})
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, hb.InstanceID(), "worker-1")
	testutil.AssertEqual(t, hb.keys["instances"], "app:presence:instances")
	testutil.AssertEqual(t, hb.aliveKey("worker-1"), "app:presence:alive:worker-1")
}

func TestRunRetriesBeatFailures(t *testing.T) {
	// A client pointed at a dead address makes every beat fail.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()

	var failures int32
	hb, err := New(Config{
		Redis:    rdb,
		Key:      "test:presence",
		Interval: 20 * time.Millisecond,
		TTL:      60 * time.Millisecond,
		OnError:  func(err error) { atomic.AddInt32(&failures, 1) },
	})
	testutil.AssertNoError(t, err)

	unit := hosting.NewUnit("presence", hb)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, unit.Start(ctx))

	// Failed beats are reported and retried; the task keeps running.
	deadline := time.Now().Add(testutil.TestTimeout)
	for atomic.LoadInt32(&failures) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := atomic.LoadInt32(&failures); got < 2 {
		t.Fatalf("beat failures = %d, want at least 2", got)
	}
	testutil.AssertEqual(t, unit.Status().Status, hosting.StatusRunning)

	testutil.AssertNoError(t, unit.Stop(ctx))
	testutil.AssertEqual(t, unit.Status().Status, hosting.StatusStopped)
}

func TestRunStoppedWhileGated(t *testing.T) {
	rdb := testClient()
	defer rdb.Close()

	var failures int32
	gate := lifecycle.New()
	hb, err := New(Config{
		Redis:   rdb,
		Key:     "test:presence",
		Gate:    gate,
		OnError: func(err error) { atomic.AddInt32(&failures, 1) },
	})
	testutil.AssertNoError(t, err)

	unit := hosting.NewUnit("presence", hb)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, unit.Start(ctx))

	// Stopped while still gated: no beat was ever attempted.
	testutil.AssertNoError(t, unit.Stop(ctx))
	testutil.AssertEqual(t, unit.Status().Status, hosting.StatusStopped)
	testutil.AssertEqual(t, atomic.LoadInt32(&failures), int32(0))
}

func TestErrorTypes(t *testing.T) {
	configErr := &ConfigError{"key is required"}
	testutil.AssertEqual(t, configErr.Error(), "heartbeat config error: key is required")

	cause := errors.New("connection refused")
	redisErr := &RedisError{"beat", cause}
	testutil.AssertEqual(t, redisErr.Error(), "redis error in beat: connection refused")
	testutil.AssertEqual(t, errors.Is(redisErr, cause), true)
}
