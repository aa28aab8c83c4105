package rpc

import (
	"github.com/RidgeA/ib-rpc/transport"
)

// RegisterHandler binds a gateway handler to method. Handlers registered after
// Start are not subscribed.
func (rpc *rpc) RegisterHandler(method string, f GatewayFunc, options ...HandlerOptionsFunc) {
	rpc.debug("Register handler for method %s", method)
	h := &handler{
		method:  method,
		handler: f,
	}
	for _, setter := range options {
		setter(h)
	}
	rpc.handlers[method] = h
}

func (rpc *rpc) startGateway() error {

	rpc.info("Starting gateway")

	for _, handler := range rpc.handlers {
		err := rpc.t.Subscribe(handler.method, rpc.handle(handler.handler), handler.throughput)
		if err != nil {
			return err
		}
	}

	return nil
}

func (rpc *rpc) handle(f GatewayFunc) transport.SubscribeFunc {

	return func(p transport.Call) error {
		args, err := transport.DecodeArgs(p.Payload())
		if err != nil {
			rpc.errorf("Can't decode %s invocation: %s", p.Method(), err.Error())
			return err
		}

		invocation := Invocation{
			ID:     p.ID(),
			Method: p.Method(),
			Source: p.Source(),
			Args:   args,
		}
		if err = f(invocation, rpc.emitter(p)); err != nil {
			rpc.errorf("Handler for %s failed: %s", p.Method(), err.Error())
		}
		return err
	}
}

func (rpc *rpc) emitter(req transport.Call) Emitter {
	return func(event string, args ...interface{}) error {
		payload, err := transport.EncodeArgs(args)
		if err != nil {
			return err
		}
		rpc.debug("Emitting %s for %s", event, req.ID())
		return rpc.t.Reply(response{
			req:     req,
			event:   event,
			payload: payload,
		})
	}
}
