package com

import (
	"context"
	"golang.org/x/sync/errgroup"
)

// WaitAsync calls Wait() on the passed errgroup.Group in a new goroutine and
// sends the first non-nil error (if any) to the returned channel.
// The returned channel is always closed when the group is done.
func WaitAsync(g *errgroup.Group) <-chan error {
	errs := make(chan error, 1)

	go func() {
		defer close(errs)

		if e := g.Wait(); e != nil {
			errs <- e
		}
	}()

	return errs
}

// CopyFirst asynchronously forwards all items from input to forward and
// returns the first item received separately. If the input channel is closed
// without a single item, CopyFirst returns the zero value and a closed channel.
func CopyFirst[T any](ctx context.Context, input <-chan T) (first T, forward <-chan T, err error) {
	var ok bool
	select {
	case <-ctx.Done():
		err = ctx.Err()

		return
	case first, ok = <-input:
	}

	fwd := make(chan T, 1)
	forward = fwd

	if !ok {
		close(fwd)

		return
	}

	go func() {
		defer close(fwd)

		fwd <- first

		for {
			select {
			case <-ctx.Done():
				return
			case item, more := <-input:
				if !more {
					return
				}

				select {
				case fwd <- item:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return
}
