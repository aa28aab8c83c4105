package rpc

import (
	"context"
	"sync"
)

// Handle is the pattern-independent view of a future returned by
// Dispatcher.NotifyInvoked.
type Handle interface {
	// Done is closed once the future settles.
	Done() <-chan struct{}
	// Err reports the rejection cause. Only meaningful after Done is closed.
	Err() error
}

// Future is a single-assignment result container. It is fulfilled with a
// value or rejected with an error exactly once; later attempts are no-ops and
// report false.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) fulfill(v T) bool {
	return f.settle(v, nil)
}

func (f *Future[T]) reject(err error) bool {
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) bool {
	settled := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		settled = true
		close(f.done)
	})
	return settled
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future was fulfilled or rejected.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *Future[T]) Err() error {
	if !f.Settled() {
		return nil
	}
	return f.err
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
