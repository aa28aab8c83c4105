package rpc

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/RidgeA/ib-rpc/transport"
	"github.com/google/uuid"
)

//go:generate mockgen -destination=mock_transport_test.go -package=rpc . Transport

var (
	silentLog = func(format string, args ...interface{}) {}
	errorLog  = log.Printf
)

const (
	ModeClient = 1 << iota
	ModeGateway
	ModeDuplex = ModeClient | ModeGateway
)

type (
	// Gateway plays the brokerage side: it receives invocations and emits the
	// callback events answering them.
	Gateway interface {
		runner
		handlerRegisterer
	}

	// Client issues invocations and correlates the callback events coming
	// back through its Dispatcher.
	Client interface {
		runner
		caller
	}

	Duplex interface {
		runner
		caller
		handlerRegisterer
	}

	Transport interface {
		Initialize() error
		Shutdown()
		Send(call transport.Call) error
		Subscribe(key string, subscription transport.SubscribeFunc, throughput uint) error
		Reply(transport.Reply) error
	}

	LogFunc func(string, ...interface{})

	// Invocation is a decoded method call as seen by a gateway handler.
	Invocation struct {
		ID     string
		Method string
		Source string
		Args   Args
	}

	// Emitter publishes a callback event back to the client that issued the
	// invocation being handled.
	Emitter func(event string, args ...interface{}) error

	GatewayFunc func(Invocation, Emitter) error

	OptionsFunc func(*rpc)

	HandlerOptionsFunc func(*handler)

	runner interface {
		Start() error
		Shutdown()
	}

	handlerRegisterer interface {
		RegisterHandler(string, GatewayFunc, ...HandlerOptionsFunc)
	}

	caller interface {
		Request(method string, args ...interface{}) (*Future[Args], error)
		RequestAll(method string, args ...interface{}) (*Future[[]Args], error)
		Stream(method string, listener Listener, args ...interface{}) error
		Send(method string, args ...interface{}) error
		Call(ctx context.Context, method string, args ...interface{}) (Args, error)
		CallAll(ctx context.Context, method string, args ...interface{}) ([]Args, error)
	}

	handler struct {
		method     string
		handler    GatewayFunc
		throughput uint
	}

	request struct {
		id      string
		payload []byte
		source  string
		method  string
	}

	response struct {
		req     transport.Call
		event   string
		payload []byte
	}

	logger struct {
		errorf, info, debug LogFunc
	}

	rpc struct {
		errorf, info, debug LogFunc
		t                   Transport
		d                   *Dispatcher
		instanceId          string
		mode                int
		url                 string
		name                string
		handlers            map[string]*handler
	}
)

func defaultLogger() logger {
	return logger{errorf: errorLog, info: silentLog, debug: silentLog}
}

func (r response) Request() transport.Call {
	return r.req
}

func (r response) Event() string {
	return r.event
}

func (r response) Payload() []byte {
	return r.payload
}

func (p request) ID() string {
	return p.id
}

func (p request) Payload() []byte {
	return p.payload
}

func (p request) Source() string {
	return p.source
}

func (p request) Method() string {
	return p.method
}

func NewGateway(name string, opts ...OptionsFunc) Gateway {
	r := newRPC(name, opts...)
	r.mode = ModeGateway
	return r
}

func NewClient(name string, opts ...OptionsFunc) Client {
	r := newRPC(name, opts...)
	r.mode = ModeClient
	return r
}

func NewDuplex(name string, opts ...OptionsFunc) Duplex {
	r := newRPC(name, opts...)
	r.mode = ModeDuplex
	return r
}

func SetError(f LogFunc) OptionsFunc {
	return func(r *rpc) {
		r.errorf = f
	}
}

func SetInfo(f LogFunc) OptionsFunc {
	return func(r *rpc) {
		r.info = f
	}
}

func SetDebug(f LogFunc) OptionsFunc {
	return func(r *rpc) {
		r.debug = f
	}
}

func SetUrl(url string) OptionsFunc {
	return func(r *rpc) {
		r.url = url
	}
}

func SetTransport(transport Transport) OptionsFunc {
	return func(r *rpc) {
		r.t = transport
	}
}

// SetDispatcher sets the dispatcher correlating callback events with
// invocations. Required by clients.
func SetDispatcher(d *Dispatcher) OptionsFunc {
	return func(r *rpc) {
		r.d = d
	}
}

func SetHandlerThroughput(throughput uint) HandlerOptionsFunc {
	return func(h *handler) {
		h.throughput = throughput
	}
}

func (rpc *rpc) Shutdown() {
	rpc.info("Shutting down rpc")
	rpc.t.Shutdown()
}

func (rpc *rpc) Start() error {

	if rpc.mode&ModeClient == ModeClient && rpc.d == nil {
		return ErrNoDispatcher
	}

	if err := rpc.t.Initialize(); err != nil {
		return err
	}

	if rpc.mode&ModeClient == ModeClient {
		if err := rpc.startClient(); err != nil {
			return err
		}
	}

	if rpc.mode&ModeGateway == ModeGateway {
		if err := rpc.startGateway(); err != nil {
			return err
		}
	}

	return nil
}

func newRPC(name string, opts ...OptionsFunc) (r *rpc) {
	r = new(rpc)
	r.name = name
	r.errorf = errorLog
	r.info = silentLog
	r.debug = silentLog
	r.instanceId = r.createInstanceId()
	r.handlers = make(map[string]*handler)

	for _, setter := range opts {
		setter(r)
	}

	if r.t == nil {
		cfg, err := transport.ConfigFromEnv()
		if err != nil {
			r.errorf("Falling back to default amqp settings: %s", err.Error())
		}
		if r.url != "" {
			cfg.URL = r.url
		}
		r.t = transport.NewAMQPTransport(
			r.name,
			r.instanceId,
			cfg.URL,
			append(cfg.Options(), transport.SetErrorLog(r.errorf))...,
		)
	}
	return
}

func (rpc *rpc) createInstanceId() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown.host"
	}
	pid := strconv.Itoa(os.Getpid())
	return rpc.name + "." + pid + "." + host + "." + uuid.New().String()[:8]
}
