package rpc

import (
	"fmt"
	"strings"
)

type (
	// Args is the ordered argument tuple of an invocation or a callback event.
	Args []interface{}

	// Event is what a streaming listener receives.
	Event struct {
		Name    string
		Args    Args
		IsError bool
	}

	// Listener receives streaming events inline on the delivering goroutine.
	Listener func(Event)

	// Responder binds invocations of one method to the callback events they
	// trigger.
	Responder interface {
		// OnInvoke records an invocation. Promise based responders return the
		// future that will carry the answer; streaming responders return nil.
		OnInvoke(args Args, listener Listener) (Handle, error)
		// OnEvent consumes a callback event. A non-nil error is raised to the
		// goroutine delivering the event.
		OnEvent(event string, args Args) error
		// Abort drops the invocation identified by args, rejecting its
		// future with cause when one is pending.
		Abort(args Args, cause error)
	}

	// claimer is implemented by responders that can take an event shared by
	// several entries. claimEvent handles the event only when its key belongs
	// to one of their live correlations, checking and handling under one lock.
	claimer interface {
		claimEvent(event string, args Args) (bool, error)
	}

	// unownedClaimer is implemented by unkeyed streams, which receive shared
	// events carrying the key that belongs to no request.
	unownedClaimer interface {
		claimUnowned(event string, args Args, unowned interface{}) (bool, error)
	}

	Pattern int

	// ErrorPolicy selects how a streaming responder surfaces error events.
	ErrorPolicy int
)

const (
	PatternSingle Pattern = iota + 1
	PatternMulti
	PatternStream
)

const (
	// RaiseSynchronously returns a CallbackError to the dispatching goroutine.
	RaiseSynchronously ErrorPolicy = iota
	// PropagateAsEvent hands error events to the listener like any other event.
	PropagateAsEvent
)

func (p Pattern) String() string {
	switch p {
	case PatternSingle:
		return "single"
	case PatternMulti:
		return "multi"
	case PatternStream:
		return "stream"
	}
	return fmt.Sprintf("pattern(%d)", int(p))
}

func ParsePattern(s string) (Pattern, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single":
		return PatternSingle, nil
	case "multi":
		return PatternMulti, nil
	case "stream", "streaming":
		return PatternStream, nil
	}
	return 0, fmt.Errorf("%w: unknown pattern %q", ErrInvalidEntry, s)
}

func (p ErrorPolicy) String() string {
	if p == PropagateAsEvent {
		return "event"
	}
	return "raise"
}

func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raise":
		return RaiseSynchronously, nil
	case "event":
		return PropagateAsEvent, nil
	}
	return 0, fmt.Errorf("%w: unknown error policy %q", ErrInvalidEntry, s)
}
