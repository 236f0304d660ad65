// Package heartbeat maintains distributed instance presence using Redis as
// the coordination backend.
//
// Each application instance runs a heartbeat as a hosted task. While the
// task runs, the instance refreshes a per-instance alive key and its
// membership in a shared instance set; peers and operators can query who
// is currently alive. When the hosting supervisor cancels the task, the
// instance deregisters itself. An instance that dies without deregistering
// simply stops beating and falls out of presence when its alive key
// expires.
//
// # Quick Start
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//
//	hb, err := heartbeat.New(heartbeat.Config{
//		Redis: rdb,
//		Key:   "myapp:presence",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	s := hosting.New("myapp")
//	s.Register("presence", hb)
//	s.StartAll(context.Background())
//
// # Presence Model
//
// Presence is leased, not declared. A beat writes the instance's alive key
// with a TTL and refreshes the instance set:
//
//   - <key>:alive:<instance>  beat timestamp, expires after TTL
//   - <key>:instances         set of registered instance IDs
//
// An instance is alive while its alive key exists. The TTL must exceed the
// beat interval so one delayed beat does not flap presence; the default
// TTL is three intervals. Set entries without a live alive key are stale
// leftovers from crashed instances; Prune removes them.
//
// # Queries
//
//	alive, err := hb.Alive(ctx, "worker-2")
//	peers, err := hb.Instances(ctx)
//	last, err := hb.LastBeat(ctx, "worker-2")
//	removed, err := hb.Prune(ctx)
//
// # Failure Handling
//
// Beat failures are reported through the configured logger, OnError hook
// and metrics, then retried on the next interval; Redis being briefly
// unavailable never ends the task. A beat interrupted by shutdown is not
// reported as a failure.
//
// # Error Handling
//
// The package provides specific error types:
//
//	if err != nil {
//		var configErr *heartbeat.ConfigError
//		var redisErr *heartbeat.RedisError
//
//		switch {
//		case errors.As(err, &configErr):
//			// Configuration error
//		case errors.As(err, &redisErr):
//			// Redis operation error
//		}
//	}
package heartbeat
