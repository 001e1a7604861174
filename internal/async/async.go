// Package async provides small helpers for running background operations
// concurrently and for cancellation-aware polling loops.
package async

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrPollTimeout is returned by Poll when the context ends before fn reports done.
var ErrPollTimeout = errors.New("polling ended before completion")

// All runs every fn concurrently and waits for all of them to finish.
// The first error cancels the context passed to the remaining fns and is
// returned to the caller.
func All(ctx context.Context, fns ...func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error {
			return fn(ctx)
		})
	}
	return g.Wait()
}

// Poll calls fn every interval until fn returns done=true, fn returns an
// error, or ctx is cancelled. fn runs once immediately before the first tick.
func Poll(ctx context.Context, interval time.Duration, fn func(context.Context) (done bool, err error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Join(ErrPollTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
