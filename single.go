package rpc

import (
	"fmt"
	"sync"
)

// singleResponse answers an invocation with the first callback event carrying
// the same correlation key.
type singleResponse struct {
	mu         sync.Mutex
	method     string
	errorEvent string
	futures    keyedFutures[Args]
	hooks      *hooks
}

func newSingleResponse(e Entry, errorEvent string, h *hooks) *singleResponse {
	return &singleResponse{
		method:     e.Method,
		errorEvent: errorEvent,
		futures:    newKeyedFutures[Args](e.Discriminator, e.RetainSettled),
		hooks:      h,
	}
}

func (r *singleResponse) OnInvoke(args Args, _ Listener) (Handle, error) {
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
	r.hooks.log.debug("Pending %s response for key %v", r.method, key)
	return f, nil
}

func (r *singleResponse) OnEvent(event string, args Args) error {
	r.deliver(event, args, false)
	return nil
}

func (r *singleResponse) claimEvent(event string, args Args) (bool, error) {
	return r.deliver(event, args, true), nil
}

// deliver settles the future for the key of args. With liveOnly set, an event
// whose key has no unsettled future is left alone for another responder
// instead of being dropped.
func (r *singleResponse) deliver(event string, args Args, liveOnly bool) bool {
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

	if event == r.errorEvent {
		r.hooks.log.errorf("Error received when handling %s response: %v", r.method, args)
		if r.futures.settle(key, nil, &CallbackError{Event: event, Args: args}) {
			r.hooks.settled(r.method, outcomeRejected)
			return true
		}
	} else if r.futures.settle(key, args, nil) {
		r.hooks.settled(r.method, outcomeFulfilled)
		return true
	}

	r.hooks.dropped(event, reasonUnknownKey)
	return false
}

func (r *singleResponse) Abort(args Args, cause error) {
	key, err := r.futures.key(args)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.futures.settle(key, nil, cause) {
		r.hooks.settled(r.method, outcomeAborted)
	}
}
