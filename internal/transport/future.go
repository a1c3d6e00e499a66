package transport

import (
	"context"
)

// Future is the eventual result of an operation started with Go.
// The result is published exactly once, after the operation returns.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn on a new goroutine and returns its Future.
// fn receives ctx unchanged; cancellation is fn's responsibility.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns a Future that is already complete.
func Resolved[T any](value T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: value, err: err}
	close(f.done)
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the operation completes and returns its outcome.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// Await waits for the result or for ctx to end, whichever comes first.
// When ctx ends first the operation keeps running and its result is discarded.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
