package rpc

import (
	"sort"

	"github.com/hashicorp/go-multierror"
)

// Dispatcher routes invocation and event notifications from the transport to
// the responders bound at configuration time. Its tables never change after
// Registry.Build, so lookups need no locking; responders serialize their own
// state.
type Dispatcher struct {
	methods    map[string]Responder
	events     map[string][]Responder
	entries    []Entry
	errorEvent string
	shared     bool
	unowned    interface{}
	hasUnowned bool
	hooks      *hooks
}

// NotifyInvoked hands an outgoing invocation to the responder bound to
// method. Unregistered methods are ignored and yield a nil handle.
func (d *Dispatcher) NotifyInvoked(method string, args Args, listener Listener) (Handle, error) {
	responder, exists := d.methods[method]
	if !exists {
		d.hooks.log.debug("No responder for method %s", method)
		return nil, nil
	}

	handle, err := responder.OnInvoke(args, listener)
	if err != nil {
		return nil, err
	}
	d.hooks.invoked(method)
	return handle, nil
}

// NotifyEvent hands an incoming callback event to the responder bound to
// event. Unregistered events are dropped.
//
// A shared error event goes to the first responder, in registration order,
// with a live correlation for its key: a pending future, or a listener of a
// keyed stream. Unkeyed streams own no key; they only receive errors carrying
// the unowned key set with WithUnownedErrorKey. Anything else is dropped.
//
// An error is returned only when the responder raises one, which streaming
// responders do for error events under RaiseSynchronously.
func (d *Dispatcher) NotifyEvent(event string, args Args) error {
	responders := d.events[event]
	switch len(responders) {
	case 0:
		d.hooks.dropped(event, reasonUnrouted)
		return nil
	case 1:
		d.hooks.routed(event)
		return responders[0].OnEvent(event, args)
	}

	for _, responder := range responders {
		if c, ok := responder.(claimer); ok {
			if claimed, err := c.claimEvent(event, args); claimed {
				d.hooks.routed(event)
				return err
			}
		}
	}
	if d.hasUnowned {
		if delivered, err := d.broadcastUnowned(event, args, responders); delivered {
			d.hooks.routed(event)
			return err
		}
	}
	d.hooks.dropped(event, reasonUnclaimed)
	return nil
}

// broadcastUnowned hands a shared event carrying the unowned key to every
// unkeyed stream with a listener. Errors they raise are returned together.
func (d *Dispatcher) broadcastUnowned(event string, args Args, responders []Responder) (bool, error) {
	var (
		delivered bool
		result    *multierror.Error
	)
	for _, responder := range responders {
		u, ok := responder.(unownedClaimer)
		if !ok {
			continue
		}
		claimed, err := u.claimUnowned(event, args, d.unowned)
		delivered = delivered || claimed
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	if result != nil && len(result.Errors) == 1 {
		return delivered, result.Errors[0]
	}
	return delivered, result.ErrorOrNil()
}

// NotifyFailed tells the responder bound to method that the invocation never
// left the process, rejecting its pending future with cause.
func (d *Dispatcher) NotifyFailed(method string, args Args, cause error) {
	if responder, exists := d.methods[method]; exists {
		responder.Abort(args, cause)
	}
}

// Pattern reports the completion pattern registered for method.
func (d *Dispatcher) Pattern(method string) (Pattern, bool) {
	for _, e := range d.entries {
		if e.Method == method {
			return e.Pattern, true
		}
	}
	return 0, false
}

func (d *Dispatcher) ErrorEvent() string {
	return d.errorEvent
}

// SharedErrorEvent reports whether several entries may list the error event.
func (d *Dispatcher) SharedErrorEvent() bool {
	return d.shared
}

// UnownedErrorKey reports the key of shared error events that belong to no
// request.
func (d *Dispatcher) UnownedErrorKey() (interface{}, bool) {
	return d.unowned, d.hasUnowned
}

// Entries returns the registrations in registration order.
func (d *Dispatcher) Entries() []Entry {
	return append([]Entry(nil), d.entries...)
}

func (d *Dispatcher) Methods() []string {
	methods := make([]string, 0, len(d.methods))
	for method := range d.methods {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}

func (d *Dispatcher) Events() []string {
	events := make([]string, 0, len(d.events))
	for event := range d.events {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}
