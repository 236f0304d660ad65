package events

import (
	"errors"
	"sync"
	"sync/atomic"
)

// OverflowStrategy defines how a feed handles a subscriber whose buffer is full.
type OverflowStrategy int

const (
	// DropOldest evicts the oldest buffered value to make room for the new one.
	DropOldest OverflowStrategy = iota

	// DropNewest drops the value being published to that subscriber.
	DropNewest
)

// ErrFeedClosed is returned when attempting to operate on a closed feed.
var ErrFeedClosed = errors.New("feed is closed")

// Feed is a broadcast channel for lifecycle events. Publishing never blocks:
// a subscriber that stops draining its buffer loses events according to the
// configured overflow strategy instead of stalling the publisher.
type Feed[T any] interface {
	// Subscribe registers a new subscriber and returns its subscription.
	Subscribe() (Subscription[T], error)

	// Publish broadcasts a value to all current subscribers.
	Publish(value T) error

	// Close closes the feed and every subscription's channel.
	Close() error

	// IsClosed returns true if the feed is closed.
	IsClosed() bool

	// Subscribers returns the current number of subscriptions.
	Subscribers() int

	// Stats returns feed statistics.
	Stats() Stats
}

// Subscription is one subscriber's view of a feed.
type Subscription[T any] interface {
	// C returns the delivery channel. It is closed when the subscription is
	// canceled or the feed is closed.
	C() <-chan T

	// Cancel removes the subscription from the feed and closes its channel.
	// Safe to call more than once.
	Cancel()

	// Dropped returns the number of values this subscriber lost to overflow.
	Dropped() int64
}

// Stats holds statistics about feed activity.
type Stats struct {
	// Published is the total number of Publish calls.
	Published int64

	// Delivered is the total number of values placed into subscriber buffers.
	Delivered int64

	// Dropped is the total number of values lost to overflow across all
	// subscribers.
	Dropped int64

	// Subscribers is the current number of subscriptions.
	Subscribers int
}

// Config holds configuration for a Feed.
type Config struct {
	// BufferSize is the per-subscriber buffer capacity.
	BufferSize int

	// Strategy defines what happens when a subscriber's buffer is full.
	Strategy OverflowStrategy

	// OnDrop is called with each value lost to overflow.
	OnDrop func(value interface{})
}

// DefaultConfig returns a default feed configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize: 64,
		Strategy:   DropOldest,
	}
}

// feed implements Feed.
type feed[T any] struct {
	config Config

	mu     sync.Mutex
	subs   map[int]*subscription[T]
	nextID int
	closed bool
	stats  Stats
}

// subscription implements Subscription.
type subscription[T any] struct {
	feed    *feed[T]
	id      int
	ch      chan T
	dropped atomic.Int64
	cancel  sync.Once
}

// New creates a feed with the default configuration.
func New[T any]() Feed[T] {
	return NewWithConfig[T](DefaultConfig())
}

// NewWithConfig creates a feed with the specified configuration.
func NewWithConfig[T any](config Config) Feed[T] {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}

	return &feed[T]{
		config: config,
		subs:   make(map[int]*subscription[T]),
	}
}

// Subscribe implements Feed.Subscribe.
func (f *feed[T]) Subscribe() (Subscription[T], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFeedClosed
	}

	sub := &subscription[T]{
		feed: f,
		id:   f.nextID,
		ch:   make(chan T, f.config.BufferSize),
	}
	f.subs[sub.id] = sub
	f.nextID++

	return sub, nil
}

// Publish implements Feed.Publish. Delivery is serialized under the feed
// lock, so buffers are only ever filled here and only ever drained by their
// subscribers.
func (f *feed[T]) Publish(value T) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFeedClosed
	}

	f.stats.Published++

	for _, sub := range f.subs {
		select {
		case sub.ch <- value:
			f.stats.Delivered++
			continue
		default:
		}

		// Buffer full.
		switch f.config.Strategy {
		case DropNewest:
			f.recordDrop(sub, value)
		default: // DropOldest
			select {
			case old := <-sub.ch:
				f.recordDrop(sub, old)
			default:
				// Subscriber drained concurrently; room exists now.
			}
			sub.ch <- value
			f.stats.Delivered++
		}
	}

	return nil
}

// recordDrop accounts for a value lost to overflow (must hold lock).
func (f *feed[T]) recordDrop(sub *subscription[T], value T) {
	f.stats.Dropped++
	sub.dropped.Add(1)
	if f.config.OnDrop != nil {
		f.config.OnDrop(value)
	}
}

// Close implements Feed.Close.
func (f *feed[T]) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	for id, sub := range f.subs {
		close(sub.ch)
		delete(f.subs, id)
	}

	return nil
}

// IsClosed implements Feed.IsClosed.
func (f *feed[T]) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Subscribers implements Feed.Subscribers.
func (f *feed[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Stats implements Feed.Stats.
func (f *feed[T]) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	stats := f.stats
	stats.Subscribers = len(f.subs)
	return stats
}

// C implements Subscription.C.
func (s *subscription[T]) C() <-chan T {
	return s.ch
}

// Cancel implements Subscription.Cancel.
func (s *subscription[T]) Cancel() {
	s.cancel.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()

		if _, ok := s.feed.subs[s.id]; ok {
			delete(s.feed.subs, s.id)
			close(s.ch)
		}
	})
}

// Dropped implements Subscription.Dropped.
func (s *subscription[T]) Dropped() int64 {
	return s.dropped.Load()
}
