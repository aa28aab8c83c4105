package rpc

import (
	"fmt"
	"sync"
)

// multiResponse accumulates every data event for a key and answers the
// invocation with the whole list once the completion event arrives.
type multiResponse struct {
	mu         sync.Mutex
	method     string
	errorEvent string
	completion string
	futures    keyedFutures[[]Args]
	buffers    map[interface{}][]Args
	hooks      *hooks
}

func newMultiResponse(e Entry, errorEvent string, h *hooks) *multiResponse {
	return &multiResponse{
		method:     e.Method,
		errorEvent: errorEvent,
		completion: e.Completion,
		futures:    newKeyedFutures[[]Args](e.Discriminator, e.RetainSettled),
		buffers:    make(map[interface{}][]Args),
		hooks:      h,
	}
}

func (r *multiResponse) OnInvoke(args Args, _ Listener) (Handle, error) {
	key, err := r.futures.key(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.method, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.futures.open(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.method, err)
	}
	r.buffers[key] = []Args{}
	r.hooks.log.debug("Pending %s responses for key %v", r.method, key)
	return f, nil
}

func (r *multiResponse) OnEvent(event string, args Args) error {
	r.deliver(event, args, false)
	return nil
}

func (r *multiResponse) claimEvent(event string, args Args) (bool, error) {
	return r.deliver(event, args, true), nil
}

// deliver buffers or settles for the key of args. With liveOnly set, events
// for keys without an unsettled future are left for another responder.
func (r *multiResponse) deliver(event string, args Args, liveOnly bool) bool {
	key, err := r.futures.key(args)
	if err != nil {
		if !liveOnly {
			r.hooks.dropped(event, err.Error())
		}
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if liveOnly && !r.futures.live(key) {
		return false
	}

	switch event {
	case r.completion:
		results := make([]Args, len(r.buffers[key]))
		copy(results, r.buffers[key])
		settled := r.futures.settle(key, results, nil)
		r.release(key)
		if settled {
			r.hooks.settled(r.method, outcomeFulfilled)
			return true
		}
	case r.errorEvent:
		r.hooks.log.errorf("Error received when handling %s response: %v", r.method, args)
		settled := r.futures.settle(key, nil, &CallbackError{Event: event, Args: args})
		r.release(key)
		if settled {
			r.hooks.settled(r.method, outcomeRejected)
			return true
		}
	default:
		if buf, ok := r.buffers[key]; ok {
			r.buffers[key] = append(buf, args)
			return true
		}
	}

	r.hooks.dropped(event, reasonUnknownKey)
	return false
}

func (r *multiResponse) Abort(args Args, cause error) {
	key, err := r.futures.key(args)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.futures.settle(key, nil, cause) {
		r.hooks.settled(r.method, outcomeAborted)
	}
	delete(r.buffers, key)
}

// release drops the buffer of a settled key unless settled state is retained.
func (r *multiResponse) release(key interface{}) {
	if !r.futures.retain {
		delete(r.buffers, key)
	}
}

// buffered returns a copy of the accumulated events for key.
func (r *multiResponse) buffered(key interface{}) ([]Args, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.buffers[key]
	if !ok {
		return nil, false
	}
	return append([]Args(nil), buf...), true
}
