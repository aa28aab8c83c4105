package transport

import (
	"errors"
	"log"
	"sync"

	"github.com/streadway/amqp"
)

type (
	AMQPTransport struct {
		url          string
		name         string
		tag          string
		exchangeName string
		exchangeKind string
		prefetch     uint
		extConn      bool
		errorf       func(string, ...interface{})
		conn         *amqp.Connection
		out          *amqp.Channel
		mu           sync.Mutex
		inChannels   map[string]*amqp.Channel
		initOnce     sync.Once
		initErr      error
		initialized  chan struct{}
	}

	OptionsFunc func(transport *AMQPTransport)

	// AMQPParcel is a delivery seen as a Call. The message type carries the
	// method or event name.
	AMQPParcel amqp.Delivery
)

var ErrNotInitialized = errors.New("amqp transport is not initialized")

func (p AMQPParcel) Method() string {
	return p.Type
}

func (p AMQPParcel) Source() string {
	return p.ReplyTo
}

func (p AMQPParcel) ID() string {
	return p.CorrelationId
}

func (p AMQPParcel) Payload() []byte {
	return p.Body
}

func NewAMQPTransport(name, id, url string, options ...OptionsFunc) *AMQPTransport {
	t := &AMQPTransport{
		url:          url,
		name:         name,
		exchangeName: exchangeName(name),
		exchangeKind: "direct",
		tag:          id,
		errorf:       log.Printf,
	}

	for _, f := range options {
		f(t)
	}

	t.inChannels = make(map[string]*amqp.Channel)
	t.initialized = make(chan struct{})
	return t
}

func SetConnection(conn *amqp.Connection) OptionsFunc {
	return func(t *AMQPTransport) {
		t.extConn = true
		t.conn = conn
	}
}

func SetExchangeKind(kind string) OptionsFunc {
	return func(t *AMQPTransport) {
		if kind != "" {
			t.exchangeKind = kind
		}
	}
}

// SetPrefetch limits unacknowledged deliveries per subscription when the
// subscriber doesn't ask for its own throughput.
func SetPrefetch(n uint) OptionsFunc {
	return func(t *AMQPTransport) {
		t.prefetch = n
	}
}

func SetErrorLog(f func(string, ...interface{})) OptionsFunc {
	return func(t *AMQPTransport) {
		t.errorf = f
	}
}

// Initialize connects to the broker and declares the exchange. Roles sharing
// one transport may all call it; only the first call does the work.
func (t *AMQPTransport) Initialize() error {
	t.initOnce.Do(func() {
		t.initErr = t.initialize()
		close(t.initialized)
	})
	return t.initErr
}

func (t *AMQPTransport) initialize() error {
	var err error

	if t.conn == nil {
		t.conn, err = amqp.Dial(t.url)
		if err != nil {
			return err
		}
	}

	t.out, err = t.conn.Channel()
	if err != nil {
		return err
	}

	return t.out.ExchangeDeclare(t.exchangeName, t.exchangeKind, false, true, false, false, nil)
}

func (t *AMQPTransport) Shutdown() {
	t.mu.Lock()
	for key, ch := range t.inChannels {
		if err := ch.Close(); err != nil {
			t.errorf("Error while closing %s channel: %s", key, err.Error())
		}
	}
	t.inChannels = make(map[string]*amqp.Channel)
	t.mu.Unlock()

	if t.out != nil {
		if err := t.out.Close(); err != nil {
			t.errorf("Error while closing out channel: %s", err.Error())
		}
	}

	if !t.extConn && t.conn != nil {
		if err := t.conn.Close(); err != nil {
			t.errorf("Error while closing connection: %s", err.Error())
		}
	}
}

// Send publishes an invocation to the queue of its method. Events produced by
// it are routed back to this transport's own queue.
func (t *AMQPTransport) Send(p Call) error {
	if t.out == nil {
		return ErrNotInitialized
	}
	publishing := amqp.Publishing{
		ReplyTo:       requestQueue(t.name, t.tag),
		DeliveryMode:  amqp.Persistent,
		CorrelationId: p.ID(),
		Type:          p.Method(),
		ContentType:   "application/json",
		Body:          p.Payload(),
	}
	return t.out.Publish(t.exchangeName, requestQueue(t.name, p.Method()), true, false, publishing)
}

func (t *AMQPTransport) Reply(reply Reply) error {
	if t.out == nil {
		return ErrNotInitialized
	}
	publishing := amqp.Publishing{
		ReplyTo:       t.tag,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: reply.Request().ID(),
		Type:          reply.Event(),
		ContentType:   "application/json",
		Body:          reply.Payload(),
	}
	return t.out.Publish(t.exchangeName, reply.Request().Source(), true, false, publishing)
}

// Subscribe consumes the queue for key. Deliveries of one subscription are
// handled sequentially, in the order the broker hands them out.
func (t *AMQPTransport) Subscribe(key string, subscription SubscribeFunc, throughput uint) error {
	<-t.initialized
	if t.initErr != nil {
		return t.initErr
	}
	ch, err := t.getSubscribeChannel(key)
	if err != nil {
		return err
	}

	queueName := requestQueue(t.name, key)

	if err = t.ensureQueue(ch, queueName); err != nil {
		return err
	}

	if throughput == 0 {
		throughput = t.prefetch
	}
	if throughput > 0 {
		if err = ch.Qos(int(throughput), 0, false); err != nil {
			return err
		}
	}

	delivery, err := ch.Consume(queueName, t.tag, false, false, false, false, nil)
	if err != nil {
		return err
	}

	go t.handle(delivery, subscription)

	return nil
}

func (t *AMQPTransport) handle(in <-chan amqp.Delivery, f SubscribeFunc) {
	for msg := range in {
		var err error
		if err = f(AMQPParcel(msg)); err != nil {
			t.errorf("Rejecting %s message %s: %s", msg.Type, msg.CorrelationId, err.Error())
			err = msg.Nack(false, false)
		} else {
			err = msg.Ack(false)
		}
		if err != nil {
			t.errorf("Can't acknowledge message %s: %s", msg.CorrelationId, err.Error())
		}
	}
}

func (t *AMQPTransport) getSubscribeChannel(key string) (*amqp.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ch, exists := t.inChannels[key]; exists {
		return ch, nil
	}
	if t.conn == nil {
		return nil, ErrNotInitialized
	}
	ch, err := t.conn.Channel()
	if err != nil {
		return nil, err
	}
	t.inChannels[key] = ch
	return ch, nil
}

func (t *AMQPTransport) ensureQueue(channel *amqp.Channel, name string) error {
	_, err := channel.QueueDeclare(name, false, true, false, false, nil)
	if err != nil {
		return err
	}
	return channel.QueueBind(name, name, t.exchangeName, false, nil)
}

func exchangeName(name string) string {
	return name + ".rpc.exchange"
}

func requestQueue(name, method string) string {
	return name + ".rpc." + method
}
