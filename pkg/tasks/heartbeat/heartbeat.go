package heartbeat

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	gherrors "github.com/vnykmshr/gohost/pkg/common/errors"
	"github.com/vnykmshr/gohost/pkg/hosting"
	"github.com/vnykmshr/gohost/pkg/lifecycle"
	"github.com/vnykmshr/gohost/pkg/metrics"
)

// Config holds configuration for an instance heartbeat.
type Config struct {
	// Redis client for coordination
	Redis redis.UniversalClient

	// Key is the Redis key prefix for this presence group
	Key string

	// InstanceID uniquely identifies this application instance
	InstanceID string

	// Interval is the time between beats (defaults to 5s)
	Interval time.Duration

	// TTL is how long a beat keeps the instance alive. Must exceed the
	// interval so a single delayed beat does not flap presence
	// (defaults to 3x the interval).
	TTL time.Duration

	// RedisTimeout is the timeout for Redis operations
	RedisTimeout time.Duration

	// Gate, when set, delays the first beat until the lifecycle signal
	// reports started
	Gate lifecycle.Signal

	// Logger receives beat failures and shutdown notices. Defaults to
	// a discard logger.
	Logger *slog.Logger

	// OnError is called with each beat failure
	OnError func(err error)

	// Metrics, when set, records beats and failures
	Metrics *metrics.Registry
}

// DefaultConfig returns a default heartbeat configuration.
func DefaultConfig() Config {
	return Config{
		InstanceID:   generateInstanceID(),
		Interval:     5 * time.Second,
		TTL:          15 * time.Second,
		RedisTimeout: 500 * time.Millisecond,
	}
}

// Heartbeat maintains this instance's presence in Redis and answers
// queries about its peers. It runs as a hosted task: beats continue
// until the run context is canceled, then the instance deregisters.
type Heartbeat struct {
	config Config
	logger *slog.Logger
	keys   map[string]string
}

var _ hosting.Task = (*Heartbeat)(nil)

// New creates a heartbeat with the specified configuration.
func New(config Config) (*Heartbeat, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	config = applyConfigDefaults(config)
	if config.TTL <= config.Interval {
		return nil, &ConfigError{"ttl must exceed the beat interval"}
	}

	return &Heartbeat{
		config: config,
		logger: config.Logger.With("instance", config.InstanceID),
		keys:   redisKeys(config.Key),
	}, nil
}

// validateConfig validates the heartbeat configuration.
func validateConfig(config Config) error {
	if config.Redis == nil {
		return &ConfigError{"redis client is required"}
	}
	if config.Key == "" {
		return &ConfigError{"key is required"}
	}
	if config.Interval < 0 {
		return &ConfigError{"interval cannot be negative"}
	}
	if config.TTL < 0 {
		return &ConfigError{"ttl cannot be negative"}
	}
	return nil
}

// applyConfigDefaults sets default values for unspecified config fields.
func applyConfigDefaults(config Config) Config {
	if config.InstanceID == "" {
		config.InstanceID = generateInstanceID()
	}
	if config.Interval == 0 {
		config.Interval = 5 * time.Second
	}
	if config.TTL == 0 {
		config.TTL = 3 * config.Interval
	}
	if config.RedisTimeout == 0 {
		config.RedisTimeout = 500 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return config
}

// InstanceID returns the identifier this heartbeat registers.
func (h *Heartbeat) InstanceID() string {
	return h.config.InstanceID
}

// Run beats until the context is canceled, then deregisters the
// instance. Beat failures are reported and retried on the next
// interval; they never end the run.
func (h *Heartbeat) Run(ctx context.Context) error {
	if h.config.Gate != nil && !h.config.Gate.WaitStarted(ctx) {
		return ctx.Err()
	}

	// Register immediately so the instance is visible before the
	// first interval elapses.
	h.runBeat(ctx)

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.deregister()
			return ctx.Err()
		case <-ticker.C:
			h.runBeat(ctx)
		}
	}
}

// runBeat performs one beat and reports the outcome.
func (h *Heartbeat) runBeat(ctx context.Context) {
	err := h.beat(ctx)
	if err == nil {
		if h.config.Metrics != nil {
			h.config.Metrics.HeartbeatBeats.WithLabelValues(h.config.InstanceID).Inc()
		}
		return
	}

	// A beat interrupted by shutdown is not a failure.
	if gherrors.IsCancellation(err) && ctx.Err() != nil {
		return
	}

	if h.config.Metrics != nil {
		h.config.Metrics.HeartbeatFailures.WithLabelValues(h.config.InstanceID).Inc()
	}
	h.logger.Warn("heartbeat beat failed", "error", err)
	if h.config.OnError != nil {
		h.config.OnError(err)
	}
}

// beat refreshes this instance's alive key and set membership.
func (h *Heartbeat) beat(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.config.RedisTimeout)
	defer cancel()

	now := strconv.FormatInt(time.Now().Unix(), 10)

	pipe := h.config.Redis.Pipeline()
	pipe.Set(ctx, h.aliveKey(h.config.InstanceID), now, h.config.TTL)
	pipe.SAdd(ctx, h.keys["instances"], h.config.InstanceID)
	pipe.Expire(ctx, h.keys["instances"], h.config.TTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return &RedisError{"beat", err}
	}
	return nil
}

// deregister removes this instance's presence. The run context is
// already canceled at this point, so the removal uses its own
// short-lived context.
func (h *Heartbeat) deregister() {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.RedisTimeout)
	defer cancel()

	pipe := h.config.Redis.Pipeline()
	pipe.SRem(ctx, h.keys["instances"], h.config.InstanceID)
	pipe.Del(ctx, h.aliveKey(h.config.InstanceID))

	if _, err := pipe.Exec(ctx); err != nil {
		h.logger.Warn("heartbeat deregister failed", "error", err)
		return
	}
	h.logger.Debug("instance deregistered")
}

// Alive reports whether the given instance's presence is current.
func (h *Heartbeat) Alive(ctx context.Context, instanceID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.RedisTimeout)
	defer cancel()

	n, err := h.config.Redis.Exists(ctx, h.aliveKey(instanceID)).Result()
	if err != nil {
		return false, &RedisError{"alive", err}
	}
	return n > 0, nil
}

// LastBeat returns the time of the given instance's most recent beat,
// or the zero time if its presence has expired.
func (h *Heartbeat) LastBeat(ctx context.Context, instanceID string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.RedisTimeout)
	defer cancel()

	value, err := h.config.Redis.Get(ctx, h.aliveKey(instanceID)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, &RedisError{"last_beat", err}
	}

	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, &RedisError{"last_beat", err}
	}
	return time.Unix(seconds, 0), nil
}

// Instances returns the sorted IDs of instances whose presence is
// current.
func (h *Heartbeat) Instances(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.RedisTimeout)
	defer cancel()

	live, _, err := h.scanInstances(ctx)
	return live, err
}

// Prune removes registered instances whose alive keys have expired and
// returns the number removed. Instances that crash without
// deregistering leave stale set entries behind.
func (h *Heartbeat) Prune(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.RedisTimeout)
	defer cancel()

	_, stale, err := h.scanInstances(ctx)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(stale))
	for i, id := range stale {
		members[i] = id
	}

	removed, err := h.config.Redis.SRem(ctx, h.keys["instances"], members...).Result()
	if err != nil {
		return 0, &RedisError{"prune", err}
	}
	return int(removed), nil
}

// scanInstances splits the registered set into live and stale members.
func (h *Heartbeat) scanInstances(ctx context.Context) (live, stale []string, err error) {
	members, err := h.config.Redis.SMembers(ctx, h.keys["instances"]).Result()
	if err != nil {
		return nil, nil, &RedisError{"instances", err}
	}
	if len(members) == 0 {
		return nil, nil, nil
	}

	pipe := h.config.Redis.Pipeline()
	checks := make([]*redis.IntCmd, len(members))
	for i, id := range members {
		checks[i] = pipe.Exists(ctx, h.aliveKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, nil, &RedisError{"instances", err}
	}

	for i, id := range members {
		if checks[i].Val() > 0 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}
	sort.Strings(live)
	return live, stale, nil
}

// aliveKey returns the Redis key holding one instance's presence.
func (h *Heartbeat) aliveKey(instanceID string) string {
	return h.keys["alive"] + ":" + instanceID
}

// redisKeys generates Redis keys for the presence data structures.
func redisKeys(prefix string) map[string]string {
	return map[string]string{
		"instances": prefix + ":instances",
		"alive":     prefix + ":alive",
	}
}

// generateInstanceID creates a unique identifier for this application instance.
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	pid := os.Getpid()

	// Add random bytes for uniqueness
	randomBytes := make([]byte, 4)
	rand.Read(randomBytes)

	return fmt.Sprintf("%s-%d-%x-%d",
		hostname, pid, randomBytes, time.Now().Unix())
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "heartbeat config error: " + e.Message
}

// RedisError represents a Redis operation error.
type RedisError struct {
	Operation string
	Err       error
}

func (e *RedisError) Error() string {
	return "redis error in " + e.Operation + ": " + e.Err.Error()
}

func (e *RedisError) Unwrap() error {
	return e.Err
}
