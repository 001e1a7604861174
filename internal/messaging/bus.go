// Package messaging provides in-process messaging helpers: a topic-based
// fan-out bus and a one-shot completion handoff primitive.
package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TopicAll subscribes to every topic published on the bus.
const TopicAll = ""

var ErrBusClosed = errors.New("bus is closed")

// Envelope is the immutable record delivered to subscribers.
// Values are read through accessors; an Envelope is never mutated after publish.
type Envelope[T any] struct {
	id    string
	topic string
	at    time.Time
	data  T
}

// ID returns the unique identifier assigned at publish time.
func (e Envelope[T]) ID() string { return e.id }

// Topic returns the topic the envelope was published under.
func (e Envelope[T]) Topic() string { return e.topic }

// At returns the publish timestamp.
func (e Envelope[T]) At() time.Time { return e.at }

// Data returns the published value.
func (e Envelope[T]) Data() T { return e.data }

// Bus is a topic-based in-process publish/subscribe bus.
// Delivery is fan-out: every subscriber of the topic (and every TopicAll
// subscriber) receives its own copy. Sends never block the publisher; a
// subscriber whose buffer is full misses the envelope and the bus counts
// the drop.
type Bus[T any] struct {
	buffer int

	mu     sync.RWMutex
	subs   map[string][]*Subscription[T]
	closed bool

	dropped atomic.Uint64
}

// Subscription is a single subscriber's receive handle.
type Subscription[T any] struct {
	topic string
	ch    chan Envelope[T]
	bus   *Bus[T]
	once  sync.Once
}

// NewBus creates a bus whose subscribers each get a channel with the given
// buffer capacity. A non-positive buffer defaults to 1.
func NewBus[T any](buffer int) *Bus[T] {
	if buffer <= 0 {
		buffer = 1
	}
	return &Bus[T]{
		buffer: buffer,
		subs:   make(map[string][]*Subscription[T]),
	}
}

// Subscribe registers a new subscriber for the given topic.
// Use TopicAll to receive envelopes from every topic.
func (b *Bus[T]) Subscribe(topic string) (*Subscription[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &Subscription[T]{
		topic: topic,
		ch:    make(chan Envelope[T], b.buffer),
		bus:   b,
	}
	b.subs[topic] = append(b.subs[topic], sub)
	return sub, nil
}

// Publish delivers data to every matching subscriber and returns the number
// of subscribers that received it.
func (b *Bus[T]) Publish(ctx context.Context, topic string, data T) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	env := Envelope[T]{
		id:    uuid.NewString(),
		topic: topic,
		at:    time.Now().UTC(),
		data:  data,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrBusClosed
	}

	delivered := 0
	for _, sub := range b.subs[topic] {
		delivered += b.send(sub, env)
	}
	if topic != TopicAll {
		for _, sub := range b.subs[TopicAll] {
			delivered += b.send(sub, env)
		}
	}
	return delivered, nil
}

func (b *Bus[T]) send(sub *Subscription[T], env Envelope[T]) int {
	select {
	case sub.ch <- env:
		return 1
	default:
		b.dropped.Add(1)
		return 0
	}
}

// Dropped reports how many envelopes were not delivered because a
// subscriber's buffer was full.
func (b *Bus[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// Close rejects further publishes and subscriptions and closes every
// subscriber channel. Close is idempotent.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	b.subs = make(map[string][]*Subscription[T])
}

// C returns the receive channel. The channel is closed when the
// subscription is cancelled or the bus shuts down.
func (s *Subscription[T]) C() <-chan Envelope[T] {
	return s.ch
}

// Topic returns the topic this subscription listens on.
func (s *Subscription[T]) Topic() string {
	return s.topic
}

// Unsubscribe removes the subscription from the bus and closes its channel.
// Safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	subs := s.bus.subs[s.topic]
	for i, candidate := range subs {
		if candidate == s {
			s.bus.subs[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	s.once.Do(func() { close(s.ch) })
}
