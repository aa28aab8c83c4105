package transport

type (
	// Call is one message on the wire: an invocation travelling to the
	// gateway, or a callback event travelling back to the caller. For events
	// Method is the event name and ID echoes the invocation id.
	Call interface {
		ID() string
		Method() string
		Payload() []byte
		Source() string
	}

	// Reply is a callback event produced while handling Request.
	Reply interface {
		Request() Call
		Event() string
		Payload() []byte
	}

	SubscribeFunc func(Call) error
)
