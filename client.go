package rpc

import (
	"context"
	"fmt"

	"github.com/RidgeA/ib-rpc/transport"
	"github.com/google/uuid"
)

// Request invokes a single response method. The future settles with the
// arguments of the first callback event carrying the same correlation key.
func (rpc *rpc) Request(method string, args ...interface{}) (*Future[Args], error) {
	if err := rpc.expect(method, PatternSingle); err != nil {
		return nil, err
	}
	handle, err := rpc.invoke(method, args, nil)
	if err != nil {
		return nil, err
	}
	return handle.(*Future[Args]), nil
}

// RequestAll invokes a multi response method. The future settles with every
// data event received before the completion event, in arrival order.
func (rpc *rpc) RequestAll(method string, args ...interface{}) (*Future[[]Args], error) {
	if err := rpc.expect(method, PatternMulti); err != nil {
		return nil, err
	}
	handle, err := rpc.invoke(method, args, nil)
	if err != nil {
		return nil, err
	}
	return handle.(*Future[[]Args]), nil
}

// Stream invokes a streaming method. listener runs on the goroutine that
// delivers events, so a slow listener holds back every later event.
func (rpc *rpc) Stream(method string, listener Listener, args ...interface{}) error {
	if err := rpc.expect(method, PatternStream); err != nil {
		return err
	}
	_, err := rpc.invoke(method, args, listener)
	return err
}

// Send invokes method without waiting for anything. Registered methods are
// still reported to the dispatcher.
func (rpc *rpc) Send(method string, args ...interface{}) error {
	_, err := rpc.invoke(method, args, nil)
	return err
}

// Call is Request followed by waiting for the answer. When ctx ends first the
// invocation stays pending and its key can't be reused until an answer
// arrives.
func (rpc *rpc) Call(ctx context.Context, method string, args ...interface{}) (Args, error) {
	future, err := rpc.Request(method, args...)
	if err != nil {
		return nil, err
	}
	return future.Await(ctx)
}

func (rpc *rpc) CallAll(ctx context.Context, method string, args ...interface{}) ([]Args, error) {
	future, err := rpc.RequestAll(method, args...)
	if err != nil {
		return nil, err
	}
	return future.Await(ctx)
}

func (rpc *rpc) expect(method string, pattern Pattern) error {
	if rpc.d == nil {
		return ErrNoDispatcher
	}
	registered, exists := rpc.d.Pattern(method)
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotRegistered, method)
	}
	if registered != pattern {
		return fmt.Errorf("%w: %s is %s, not %s", ErrPatternMismatch, method, registered, pattern)
	}
	return nil
}

// invoke registers the invocation with the dispatcher before sending it, so
// an answer can't arrive ahead of its pending entry.
func (rpc *rpc) invoke(method string, args Args, listener Listener) (Handle, error) {
	rpc.debug("Calling method %s", method)

	payload, err := transport.EncodeArgs(args)
	if err != nil {
		return nil, err
	}

	var handle Handle
	if rpc.d != nil {
		if handle, err = rpc.d.NotifyInvoked(method, args, listener); err != nil {
			return nil, err
		}
	}

	p := request{
		id:      uuid.New().String(),
		payload: payload,
		method:  method,
		source:  rpc.instanceId,
	}

	if err = rpc.t.Send(p); err != nil {
		rpc.errorf("Can't send %s: %s", method, err.Error())
		if rpc.d != nil {
			rpc.d.NotifyFailed(method, args, err)
		}
		return nil, err
	}
	return handle, nil
}

func (rpc *rpc) startClient() error {
	rpc.info("Starting client")
	return rpc.t.Subscribe(rpc.instanceId, rpc.dispatchEvent, 0)
}

func (rpc *rpc) dispatchEvent(message transport.Call) error {
	rpc.info("Dispatching event %s, id: %s", message.Method(), message.ID())
	args, err := transport.DecodeArgs(message.Payload())
	if err != nil {
		rpc.errorf("Can't decode %s event: %s", message.Method(), err.Error())
		return err
	}
	return rpc.d.NotifyEvent(message.Method(), args)
}
