package rpc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateRegistration is returned when a method or an event name is
	// bound to more than one responder.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrAlreadyPending is returned when an invocation reuses a correlation key
	// whose previous future has not settled yet.
	ErrAlreadyPending = errors.New("invocation already pending for key")

	// ErrCallback is wrapped by every CallbackError.
	ErrCallback = errors.New("callback error")

	ErrInvalidEntry    = errors.New("invalid registration entry")
	ErrRegistryFrozen  = errors.New("registry already built")
	ErrMissingKey      = errors.New("correlation key missing")
	ErrUnhashableKey   = errors.New("correlation key is not comparable")
	ErrNotRegistered   = errors.New("method is not registered")
	ErrPatternMismatch = errors.New("method registered with a different pattern")
	ErrNoDispatcher    = errors.New("no dispatcher configured")
)

// DuplicateRegistrationError names the method or event that was bound twice.
type DuplicateRegistrationError struct {
	Kind string // "method" or "event"
	Name string
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrDuplicateRegistration, e.Kind, e.Name)
}

func (e *DuplicateRegistrationError) Unwrap() error {
	return ErrDuplicateRegistration
}

// CallbackError carries the arguments of an error event reported by the
// brokerage API.
type CallbackError struct {
	Event string
	Args  Args
}

func (e *CallbackError) Error() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = fmt.Sprint(a)
	}
	return fmt.Sprintf("%s: %s(%s)", ErrCallback, e.Event, strings.Join(parts, ". "))
}

func (e *CallbackError) Unwrap() error {
	return ErrCallback
}
