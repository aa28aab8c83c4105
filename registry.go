package rpc

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/metric"
)

// DefaultErrorEvent is the callback name the brokerage API uses to report
// failures.
const DefaultErrorEvent = "error"

type (
	// Entry describes one registration: which method it answers, which events
	// it consumes and how they complete the invocation.
	Entry struct {
		Method        string
		Events        []string
		Pattern       Pattern
		Discriminator int
		// Completion finalizes a multi response. It is added to Events.
		Completion string
		// ErrorPolicy applies to streaming entries only.
		ErrorPolicy ErrorPolicy
		// Keyed routes streaming events to a listener per correlation key.
		Keyed bool
		// RetainSettled keeps settled futures and buffers instead of evicting
		// them. Single and multi entries only.
		RetainSettled bool
	}

	EntryOption func(*Entry)

	RegistryOption func(*Registry)

	// Registry collects registrations at startup. Build freezes it into a
	// Dispatcher; registering afterwards fails with ErrRegistryFrozen.
	//
	// Registry is not safe for concurrent use. Register everything from one
	// goroutine before building.
	Registry struct {
		errorEvent   string
		sharedErrors bool
		unowned      interface{}
		hasUnowned   bool
		log          logger
		meter        metric.Meter
		hooks        *hooks
		entries      []Entry
		methods      map[string]Responder
		events       map[string][]Responder
		built        bool
	}
)

// WithErrorPolicy sets how a streaming entry surfaces error events.
func WithErrorPolicy(p ErrorPolicy) EntryOption {
	return func(e *Entry) {
		e.ErrorPolicy = p
	}
}

// WithKeyedListeners gives a streaming entry one listener per correlation key.
func WithKeyedListeners() EntryOption {
	return func(e *Entry) {
		e.Keyed = true
	}
}

// WithRetainSettled keeps settled futures and buffers around.
func WithRetainSettled() EntryOption {
	return func(e *Entry) {
		e.RetainSettled = true
	}
}

func WithErrorEvent(name string) RegistryOption {
	return func(r *Registry) {
		r.errorEvent = name
	}
}

// WithSharedErrorEvent lets several entries list the error event. Each error
// is handed to the first of them with a live correlation for its arguments.
func WithSharedErrorEvent() RegistryOption {
	return func(r *Registry) {
		r.sharedErrors = true
	}
}

// WithUnownedErrorKey names the correlation key of shared error events that
// belong to no request, such as -1 for IB connectivity messages. Such errors
// go to every unkeyed stream with a listener. Without it unkeyed streams
// receive no shared errors.
func WithUnownedErrorKey(key interface{}) RegistryOption {
	return func(r *Registry) {
		r.unowned = normalizeKey(key)
		r.hasUnowned = true
	}
}

func WithMeter(m metric.Meter) RegistryOption {
	return func(r *Registry) {
		r.meter = m
	}
}

func WithErrorLog(f LogFunc) RegistryOption {
	return func(r *Registry) {
		r.log.errorf = f
	}
}

func WithInfoLog(f LogFunc) RegistryOption {
	return func(r *Registry) {
		r.log.info = f
	}
}

func WithDebugLog(f LogFunc) RegistryOption {
	return func(r *Registry) {
		r.log.debug = f
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		errorEvent: DefaultErrorEvent,
		log:        defaultLogger(),
		methods:    make(map[string]Responder),
		events:     make(map[string][]Responder),
	}
	for _, setter := range opts {
		setter(r)
	}
	r.hooks = newHooks(r.log, r.meter)
	return r
}

func (r *Registry) RegisterSingleResponse(method string, events []string, discriminator int, opts ...EntryOption) error {
	return r.Register(buildEntry(Entry{
		Method:        method,
		Events:        events,
		Pattern:       PatternSingle,
		Discriminator: discriminator,
	}, opts))
}

func (r *Registry) RegisterMultiResponse(method string, events []string, completion string, discriminator int, opts ...EntryOption) error {
	return r.Register(buildEntry(Entry{
		Method:        method,
		Events:        events,
		Pattern:       PatternMulti,
		Discriminator: discriminator,
		Completion:    completion,
	}, opts))
}

func (r *Registry) RegisterStreaming(method string, events []string, discriminator int, opts ...EntryOption) error {
	return r.Register(buildEntry(Entry{
		Method:        method,
		Events:        events,
		Pattern:       PatternStream,
		Discriminator: discriminator,
	}, opts))
}

// Register validates e and binds its method and events to a new responder.
// Nothing is bound when validation fails.
func (r *Registry) Register(e Entry) error {
	if r.built {
		return ErrRegistryFrozen
	}

	e, err := r.normalize(e)
	if err != nil {
		return err
	}

	if _, exists := r.methods[e.Method]; exists {
		return &DuplicateRegistrationError{Kind: "method", Name: e.Method}
	}
	for _, event := range e.Events {
		if len(r.events[event]) == 0 {
			continue
		}
		if !r.sharedErrors || event != r.errorEvent {
			return &DuplicateRegistrationError{Kind: "event", Name: event}
		}
	}

	responder := r.newResponder(e)
	r.methods[e.Method] = responder
	for _, event := range e.Events {
		r.events[event] = append(r.events[event], responder)
	}
	r.entries = append(r.entries, e)

	r.log.debug("Registered %s responder for %s on %s", e.Pattern, e.Method, strings.Join(e.Events, ", "))
	return nil
}

// Build freezes the registry and returns the dispatcher over its tables.
func (r *Registry) Build() *Dispatcher {
	r.built = true

	d := &Dispatcher{
		methods:    make(map[string]Responder, len(r.methods)),
		events:     make(map[string][]Responder, len(r.events)),
		entries:    append([]Entry(nil), r.entries...),
		errorEvent: r.errorEvent,
		shared:     r.sharedErrors,
		unowned:    r.unowned,
		hasUnowned: r.hasUnowned,
		hooks:      r.hooks,
	}
	for method, responder := range r.methods {
		d.methods[method] = responder
	}
	for event, responders := range r.events {
		d.events[event] = append([]Responder(nil), responders...)
	}
	return d
}

func (r *Registry) normalize(e Entry) (Entry, error) {
	e.Method = strings.TrimSpace(e.Method)
	if e.Method == "" {
		return e, fmt.Errorf("%w: empty method name", ErrInvalidEntry)
	}
	if e.Discriminator < 0 {
		return e, fmt.Errorf("%w: %s: negative discriminator %d", ErrInvalidEntry, e.Method, e.Discriminator)
	}

	switch e.Pattern {
	case PatternSingle, PatternMulti, PatternStream:
	default:
		return e, fmt.Errorf("%w: %s: unknown pattern %s", ErrInvalidEntry, e.Method, e.Pattern)
	}

	if e.Pattern == PatternMulti {
		if e.Completion == "" {
			return e, fmt.Errorf("%w: %s: multi response needs a completion event", ErrInvalidEntry, e.Method)
		}
		if e.Completion == r.errorEvent {
			return e, fmt.Errorf("%w: %s: completion event can't be the error event", ErrInvalidEntry, e.Method)
		}
	} else if e.Completion != "" {
		return e, fmt.Errorf("%w: %s: completion event on %s pattern", ErrInvalidEntry, e.Method, e.Pattern)
	}

	if e.Pattern == PatternStream && e.RetainSettled {
		return e, fmt.Errorf("%w: %s: streaming keeps no settled state", ErrInvalidEntry, e.Method)
	}
	if e.Pattern != PatternStream && (e.Keyed || e.ErrorPolicy != RaiseSynchronously) {
		return e, fmt.Errorf("%w: %s: listener options on %s pattern", ErrInvalidEntry, e.Method, e.Pattern)
	}

	events := make([]string, 0, len(e.Events)+1)
	seen := make(map[string]bool, len(e.Events)+1)
	candidates := e.Events
	if e.Completion != "" {
		candidates = append(append([]string(nil), e.Events...), e.Completion)
	}
	for _, event := range candidates {
		event = strings.TrimSpace(event)
		if event == "" {
			return e, fmt.Errorf("%w: %s: empty event name", ErrInvalidEntry, e.Method)
		}
		if !seen[event] {
			seen[event] = true
			events = append(events, event)
		}
	}
	if len(events) == 0 {
		return e, fmt.Errorf("%w: %s: no events", ErrInvalidEntry, e.Method)
	}
	e.Events = events
	return e, nil
}

func (r *Registry) newResponder(e Entry) Responder {
	switch e.Pattern {
	case PatternMulti:
		return newMultiResponse(e, r.errorEvent, r.hooks)
	case PatternStream:
		return newStreaming(e, r.errorEvent, r.hooks)
	default:
		return newSingleResponse(e, r.errorEvent, r.hooks)
	}
}

func buildEntry(e Entry, opts []EntryOption) Entry {
	for _, setter := range opts {
		setter(&e)
	}
	return e
}
