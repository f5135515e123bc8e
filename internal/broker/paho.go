package broker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alisaviation/mqtt-bridge/internal/config"
	"github.com/alisaviation/mqtt-bridge/internal/helpers"
	"github.com/alisaviation/mqtt-bridge/internal/logger"
	"github.com/alisaviation/mqtt-bridge/internal/models"
)

// QoS 0, never retained: the bridge is fire-and-forget on both sides.
const (
	qos      byte = 0
	retained      = false
)

type Options struct {
	Endpoint       config.Endpoint
	ClientIDPrefix string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	OnConnect      ConnectHandler
}

func OptionsFromConfig(cfg config.Config, ep config.Endpoint) Options {
	return Options{
		Endpoint:       ep,
		ClientIDPrefix: cfg.ClientIDPrefix,
		KeepAlive:      cfg.KeepAlive,
		ConnectTimeout: cfg.ConnectTimeout,
		ReconnectDelay: cfg.RetryDelay,
	}
}

type pahoClient struct {
	opts   Options
	client mqtt.Client
	state  atomic.Int32
	log    *zap.Logger
}

// NewClient builds a paho-backed link. Nothing is dialled until Connect.
func NewClient(opts Options) Client {
	c := &pahoClient{
		opts: opts,
		log: logger.Log.With(
			zap.String("link", opts.Endpoint.Name),
			zap.String("broker", helpers.BrokerURL(opts.Endpoint.Host, opts.Endpoint.Port)),
		),
	}

	po := mqtt.NewClientOptions().
		AddBroker(helpers.BrokerURL(opts.Endpoint.Host, opts.Endpoint.Port)).
		SetClientID(clientID(opts.ClientIDPrefix, opts.Endpoint.Name)).
		SetProtocolVersion(4).
		SetCleanSession(true).
		SetKeepAlive(opts.KeepAlive).
		SetConnectTimeout(opts.ConnectTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(opts.ReconnectDelay).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(po)
	return c
}

func clientID(prefix, link string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, link, uuid.NewString()[:8])
}

func (c *pahoClient) State() State {
	return State(c.state.Load())
}

func (c *pahoClient) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.log.Debug("Link state changed", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

func (c *pahoClient) IsConnected() bool {
	return c.State() == Connected
}

// Connect performs one connection attempt and waits for its outcome.
func (c *pahoClient) Connect(ctx context.Context) error {
	c.setState(Connecting)
	c.log.Info("Connecting to broker")

	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		c.client.Disconnect(0)
		c.setState(Disconnected)
		return ctx.Err()
	}

	if err := token.Error(); err != nil {
		c.setState(Disconnected)
		if !refused(returnCode(token)) {
			return fmt.Errorf("connect %s broker: %w", c.opts.Endpoint.Name, err)
		}

		err = fmt.Errorf("connect %s broker: %w: %w", c.opts.Endpoint.Name, ErrConnectionRefused, err)
		if c.opts.OnConnect != nil {
			c.opts.OnConnect(c, err)
		}
		return err
	}

	c.markConnected()
	return nil
}

// markConnected moves Connecting to Connected. A link that was lost while the
// connect token completed stays Disconnected.
func (c *pahoClient) markConnected() bool {
	if !c.state.CompareAndSwap(int32(Connecting), int32(Connected)) {
		return false
	}
	c.log.Debug("Link state changed", zap.Stringer("from", Connecting), zap.Stringer("to", Connected))
	return true
}

func returnCode(token mqtt.Token) byte {
	if ct, ok := token.(*mqtt.ConnectToken); ok {
		return ct.ReturnCode()
	}
	return packets.ErrNetworkError
}

// refused reports whether rc is a CONNACK rejection sent by the broker, as
// opposed to a dial or protocol failure on our side.
func refused(rc byte) bool {
	return rc >= packets.ErrRefusedBadProtocolVersion && rc <= packets.ErrRefusedNotAuthorised
}

func (c *pahoClient) Subscribe(topic string, handler MessageHandler) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		handler(models.Message{
			Topic:      m.Topic(),
			Payload:    m.Payload(),
			ReceivedAt: time.Now(),
		})
	})
	if !token.WaitTimeout(c.opts.ConnectTimeout) {
		return fmt.Errorf("subscribe to %q: timed out after %s", topic, c.opts.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %q: %w", topic, err)
	}
	return nil
}

// Publish hands payload to the client without waiting for delivery. Only an
// error the client reports immediately is returned.
func (c *pahoClient) Publish(topic string, payload []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	select {
	case <-token.Done():
		return token.Error()
	default:
		return nil
	}
}

func (c *pahoClient) Disconnect() {
	c.client.Disconnect(250)
	c.setState(Disconnected)
}

func (c *pahoClient) onConnect(_ mqtt.Client) {
	c.setState(Connected)
	c.log.Info("Connected to broker")
	if c.opts.OnConnect != nil {
		c.opts.OnConnect(c, nil)
	}
}

func (c *pahoClient) onConnectionLost(_ mqtt.Client, err error) {
	c.setState(Disconnected)
	c.log.Warn("Connection to broker lost", zap.Error(err))
}

func (c *pahoClient) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	c.setState(Connecting)
	c.log.Info("Reconnecting to broker", zap.Duration("max_interval", c.opts.ReconnectDelay))
}
