/*
Package events provides a non-blocking broadcast feed for lifecycle events.

A Feed fans values out to any number of subscribers, each with its own
bounded buffer. Publishing never blocks: when a subscriber's buffer is full,
the feed drops a value according to the configured overflow strategy instead
of stalling the publisher. This makes the feed safe to use on supervision
paths, where a slow or absent consumer must never delay startup or shutdown.

Basic usage:

	feed := events.New[string]()
	defer feed.Close()

	sub, err := feed.Subscribe()
	if err != nil {
		log.Fatal(err)
	}
	defer sub.Cancel()

	go func() {
		for v := range sub.C() {
			fmt.Println("got:", v)
		}
	}()

	feed.Publish("unit started")

Overflow strategies:

	// Keep the most recent events (default). An idle subscriber catching up
	// sees the newest window of activity.
	cfg := events.Config{BufferSize: 128, Strategy: events.DropOldest}

	// Keep the earliest events. Useful when the first occurrences matter
	// more than the latest.
	cfg := events.Config{BufferSize: 128, Strategy: events.DropNewest}

Dropped values are counted per subscriber and in the feed's Stats, and the
OnDrop callback observes each one:

	cfg := events.Config{
		BufferSize: 64,
		OnDrop: func(v interface{}) {
			log.Printf("event dropped: %v", v)
		},
	}

Closing the feed closes every subscription's channel, so consumer loops that
range over C() terminate on their own.

Thread Safety:

All feed and subscription operations are safe for concurrent use.
*/
package events
