// Package broker wraps an MQTT client behind a small interface and tracks the
// link's connection state explicitly.
package broker

import (
	"context"
	"errors"

	"github.com/alisaviation/mqtt-bridge/internal/models"
)

var (
	ErrNotConnected      = errors.New("broker link is not connected")
	ErrConnectionRefused = errors.New("connection refused by broker")
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

type MessageHandler func(msg models.Message)

// ConnectHandler is invoked with a nil error after every successful
// (re)connect, and with an error wrapping ErrConnectionRefused when the broker
// rejects a connect attempt. Dial and network failures do not reach it.
type ConnectHandler func(c Client, err error)

type Connector interface {
	Connect(ctx context.Context) error
}

type Publisher interface {
	IsConnected() bool
	Publish(topic string, payload []byte) error
}

type Subscriber interface {
	Subscribe(topic string, handler MessageHandler) error
}

// Client is one MQTT link.
type Client interface {
	Connector
	Publisher
	Subscriber
	State() State
	Disconnect()
}
