package rpc

import (
	"fmt"
	"sync"
)

// streaming forwards every event to the listener of the latest invocation.
// Unkeyed by default: one listener slot per method, last invocation wins.
// Keyed streaming keeps one slot per correlation key instead.
type streaming struct {
	mu         sync.Mutex
	method     string
	errorEvent string
	index      int
	keyed      bool
	policy     ErrorPolicy
	listener   Listener
	listeners  map[interface{}]Listener
	hooks      *hooks
}

func newStreaming(e Entry, errorEvent string, h *hooks) *streaming {
	return &streaming{
		method:     e.Method,
		errorEvent: errorEvent,
		index:      e.Discriminator,
		keyed:      e.Keyed,
		policy:     e.ErrorPolicy,
		listeners:  make(map[interface{}]Listener),
		hooks:      h,
	}
}

func (r *streaming) OnInvoke(args Args, listener Listener) (Handle, error) {
	if !r.keyed {
		r.mu.Lock()
		r.listener = listener
		r.mu.Unlock()
		return nil, nil
	}

	key, err := KeyAt(args, r.index)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.method, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if listener == nil {
		delete(r.listeners, key)
	} else {
		r.listeners[key] = listener
	}
	return nil, nil
}

func (r *streaming) OnEvent(event string, args Args) error {
	isError := event == r.errorEvent
	if isError && r.policy == RaiseSynchronously {
		r.hooks.log.errorf("Error received when streaming %s: %v", r.method, args)
		return &CallbackError{Event: event, Args: args}
	}

	listener := r.current(args)
	if listener == nil {
		r.hooks.dropped(event, reasonNoListener)
		return nil
	}
	listener(Event{Name: event, Args: args, IsError: isError})
	return nil
}

func (r *streaming) Abort(args Args, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.keyed {
		r.listener = nil
		return
	}
	if key, err := KeyAt(args, r.index); err == nil {
		delete(r.listeners, key)
	}
}

// claimEvent takes a shared event whose key has a listener. Unkeyed streams
// own no key and never claim here.
func (r *streaming) claimEvent(event string, args Args) (bool, error) {
	if !r.keyed {
		return false, nil
	}
	listener := r.current(args)
	if listener == nil {
		return false, nil
	}
	return true, r.emit(listener, event, args)
}

// claimUnowned takes a shared event carrying the key that belongs to no
// request, provided an unkeyed listener is subscribed.
func (r *streaming) claimUnowned(event string, args Args, unowned interface{}) (bool, error) {
	if r.keyed {
		return false, nil
	}
	key, err := KeyAt(args, r.index)
	if err != nil || key != unowned {
		return false, nil
	}
	listener := r.current(args)
	if listener == nil {
		return false, nil
	}
	return true, r.emit(listener, event, args)
}

func (r *streaming) emit(listener Listener, event string, args Args) error {
	isError := event == r.errorEvent
	if isError && r.policy == RaiseSynchronously {
		r.hooks.log.errorf("Error received when streaming %s: %v", r.method, args)
		return &CallbackError{Event: event, Args: args}
	}
	listener(Event{Name: event, Args: args, IsError: isError})
	return nil
}

func (r *streaming) current(args Args) Listener {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.keyed {
		return r.listener
	}
	key, err := KeyAt(args, r.index)
	if err != nil {
		return nil
	}
	return r.listeners[key]
}
