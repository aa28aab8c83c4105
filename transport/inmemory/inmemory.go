// In-memory implementation of transport for tests and examples.
// Not meant to use in production

package inmemory

import (
	"errors"
	"sync"

	"github.com/RidgeA/ib-rpc/transport"
)

var (
	ErrShutdown       = errors.New("in-memory transport is shut down")
	ErrNotInitialized = errors.New("in-memory transport is not initialized")
)

type (
	// InMemory hands every subscription its own unbounded mailbox drained by
	// its own workers, so a subscriber may publish any number of messages
	// from inside its handler without waiting on anyone.
	InMemory struct {
		mu            sync.RWMutex
		subscriptions map[string]*subscription
		initialized   bool
		shutdown      bool
		onError       func(transport.Call, error)
		wg            sync.WaitGroup
	}

	OptionsFunc func(*InMemory)

	pack struct {
		replyTo string
		id      string
		payload []byte
		method  string
	}

	subscription struct {
		key     string
		sFunc   transport.SubscribeFunc
		mu      sync.Mutex
		ready   *sync.Cond
		pending []*pack
		closed  bool
	}
)

func (p pack) ID() string {
	return p.id
}

func (p pack) Method() string {
	return p.method
}

func (p pack) Payload() []byte {
	return p.payload
}

func (p pack) Source() string {
	return p.replyTo
}

// SetErrorHandler receives errors returned by subscribers.
func SetErrorHandler(f func(transport.Call, error)) OptionsFunc {
	return func(t *InMemory) {
		t.onError = f
	}
}

func New(options ...OptionsFunc) *InMemory {
	t := &InMemory{}
	for _, f := range options {
		f(t)
	}
	return t
}

func (t *InMemory) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		t.subscriptions = make(map[string]*subscription)
		t.initialized = true
	}
	return nil
}

// Shutdown stops every subscription and waits for running handlers. Messages
// still waiting in a mailbox are discarded.
func (t *InMemory) Shutdown() {
	t.mu.Lock()
	t.shutdown = true
	for _, sub := range t.subscriptions {
		sub.close()
	}
	t.mu.Unlock()
	t.wg.Wait()
}

// Send routes an invocation to the subscriber of its method.
func (t *InMemory) Send(parcel transport.Call) error {
	return t.enqueue(parcel.Method(), &pack{
		id:      parcel.ID(),
		replyTo: parcel.Source(),
		payload: parcel.Payload(),
		method:  parcel.Method(),
	})
}

// Reply routes an event to the subscriber the request came from.
func (t *InMemory) Reply(reply transport.Reply) error {
	return t.enqueue(reply.Request().Source(), &pack{
		method:  reply.Event(),
		payload: reply.Payload(),
		id:      reply.Request().ID(),
	})
}

// Subscribe registers f for messages routed to key, replacing an earlier
// subscription. With throughput 0 or 1 the messages are handled one by one in
// arrival order; otherwise up to throughput of them run concurrently.
func (t *InMemory) Subscribe(key string, f transport.SubscribeFunc, throughput uint) error {
	sub := &subscription{key: key, sFunc: f}
	sub.ready = sync.NewCond(&sub.mu)

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		return ErrNotInitialized
	}
	if t.shutdown {
		return ErrShutdown
	}
	if old, exists := t.subscriptions[key]; exists {
		old.close()
	}
	t.subscriptions[key] = sub

	if throughput == 0 {
		throughput = 1
	}
	for i := uint(0); i < throughput; i++ {
		t.wg.Add(1)
		go t.work(sub)
	}
	return nil
}

// enqueue never blocks: messages for unknown routes are dropped, the rest
// wait in the route's mailbox.
func (t *InMemory) enqueue(route string, p *pack) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.initialized {
		return ErrNotInitialized
	}
	if t.shutdown {
		return ErrShutdown
	}
	if sub, exists := t.subscriptions[route]; exists {
		sub.push(p)
	}
	return nil
}

func (t *InMemory) work(sub *subscription) {
	defer t.wg.Done()
	for {
		p, ok := sub.next()
		if !ok {
			return
		}
		if err := sub.sFunc(p); err != nil && t.onError != nil {
			t.onError(p, err)
		}
	}
}

func (s *subscription) push(p *pack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = append(s.pending, p)
	s.ready.Signal()
}

// next blocks until a message is available or the subscription is closed.
func (s *subscription) next() (*pack, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) == 0 && !s.closed {
		s.ready.Wait()
	}
	if s.closed {
		return nil, false
	}
	p := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	return p, true
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
	s.ready.Broadcast()
}
