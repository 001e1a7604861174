package messaging

import (
	"context"
	"sync"
)

// Completion is a one-shot producer/consumer handoff. The producer settles
// it exactly once with Resolve or Reject; consumers block in Await until the
// value is available or their context ends.
type Completion[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// NewCompletion returns an unsettled Completion.
func NewCompletion[T any]() *Completion[T] {
	return &Completion[T]{done: make(chan struct{})}
}

// Resolve settles the completion with a value. It reports whether this call
// was the one that settled it.
func (c *Completion[T]) Resolve(v T) bool {
	settled := false
	c.once.Do(func() {
		c.val = v
		settled = true
		close(c.done)
	})
	return settled
}

// Reject settles the completion with an error. It reports whether this call
// was the one that settled it.
func (c *Completion[T]) Reject(err error) bool {
	settled := false
	c.once.Do(func() {
		c.err = err
		settled = true
		close(c.done)
	})
	return settled
}

// Await blocks until the completion is settled or ctx ends.
func (c *Completion[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed once the completion settles.
func (c *Completion[T]) Done() <-chan struct{} {
	return c.done
}
