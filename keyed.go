package rpc

import "fmt"

// keyedFutures keeps one future per correlation key. It is not synchronized;
// the owning responder holds its lock around every call.
type keyedFutures[T any] struct {
	index   int
	retain  bool
	pending map[interface{}]*Future[T]
}

func newKeyedFutures[T any](index int, retain bool) keyedFutures[T] {
	return keyedFutures[T]{
		index:   index,
		retain:  retain,
		pending: make(map[interface{}]*Future[T]),
	}
}

func (k *keyedFutures[T]) key(args Args) (interface{}, error) {
	return KeyAt(args, k.index)
}

// open creates the future for key. A key whose future is still unsettled
// cannot be reused.
func (k *keyedFutures[T]) open(key interface{}) (*Future[T], error) {
	if f, ok := k.pending[key]; ok && !f.Settled() {
		return nil, fmt.Errorf("%w: %v", ErrAlreadyPending, key)
	}
	f := newFuture[T]()
	k.pending[key] = f
	return f, nil
}

// settle resolves the future for key and, unless settled futures are
// retained, forgets it. It reports false when there was nothing to settle.
func (k *keyedFutures[T]) settle(key interface{}, v T, err error) bool {
	f, ok := k.pending[key]
	if !ok {
		return false
	}
	if !k.retain {
		delete(k.pending, key)
	}
	return f.settle(v, err)
}

func (k *keyedFutures[T]) live(key interface{}) bool {
	f, ok := k.pending[key]
	return ok && !f.Settled()
}

func (k *keyedFutures[T]) size() int {
	return len(k.pending)
}
