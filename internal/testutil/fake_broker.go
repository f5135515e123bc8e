package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/alisaviation/mqtt-bridge/internal/broker"
	"github.com/alisaviation/mqtt-bridge/internal/models"
)

// Published is one recorded Publish call.
type Published struct {
	Topic   string
	Payload []byte
}

// FakeBroker is a reusable in-memory broker.Client for tests. Connect fails
// FailConnects times with ConnectError before succeeding. Like the paho link,
// it only reports a failure to OnConnect when ConnectError wraps
// broker.ErrConnectionRefused.
type FakeBroker struct {
	mu sync.Mutex

	FailConnects   int
	ConnectError   error
	SubscribeError error
	PublishError   error
	OnConnect      broker.ConnectHandler

	ConnectCalls    int
	SubscribeCalls  []string
	PublishCalls    []Published
	DisconnectCalls int

	state    broker.State
	handlers map[string]broker.MessageHandler
}

func NewFakeBroker() *FakeBroker {
	return &FakeBroker{handlers: make(map[string]broker.MessageHandler)}
}

func (f *FakeBroker) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.ConnectCalls++
	if err := ctx.Err(); err != nil {
		f.mu.Unlock()
		return err
	}
	var err error
	if f.ConnectCalls <= f.FailConnects {
		err = f.ConnectError
		f.state = broker.Disconnected
	} else {
		f.state = broker.Connected
	}
	hook := f.OnConnect
	f.mu.Unlock()

	if hook != nil && (err == nil || errors.Is(err, broker.ErrConnectionRefused)) {
		hook(f, err)
	}
	return err
}

func (f *FakeBroker) Subscribe(topic string, handler broker.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SubscribeCalls = append(f.SubscribeCalls, topic)
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.handlers[topic] = handler
	return nil
}

func (f *FakeBroker) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PublishCalls = append(f.PublishCalls, Published{Topic: topic, Payload: append([]byte(nil), payload...)})
	return f.PublishError
}

func (f *FakeBroker) IsConnected() bool {
	return f.State() == broker.Connected
}

func (f *FakeBroker) State() broker.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetState forces the link state, e.g. to simulate a dropped connection.
func (f *FakeBroker) SetState(s broker.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func (f *FakeBroker) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DisconnectCalls++
	f.state = broker.Disconnected
}

// Deliver feeds payload to the handler subscribed on topic, as the broker
// would. It reports whether a handler was subscribed.
func (f *FakeBroker) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	handler, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		return false
	}
	handler(models.Message{Topic: topic, Payload: payload})
	return true
}

func (f *FakeBroker) Published() []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Published, len(f.PublishCalls))
	copy(out, f.PublishCalls)
	return out
}

func (f *FakeBroker) Subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.SubscribeCalls...)
}

func (f *FakeBroker) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ConnectCalls
}

var _ broker.Client = (*FakeBroker)(nil)
