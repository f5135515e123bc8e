// Package bridge republishes messages from a source MQTT topic onto a
// destination topic and records the numeric ones as metrics.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alisaviation/mqtt-bridge/internal/broker"
	"github.com/alisaviation/mqtt-bridge/internal/logger"
)

var ErrDestinationUnavailable = errors.New("destination broker unavailable")

type Settings struct {
	SourceTopic      string
	DestinationTopic string
	RetryDelay       time.Duration
}

// Bridge owns the destination link and drives the source link handed to Run.
type Bridge struct {
	settings    Settings
	destination broker.Client
	handler     *Handler
}

func New(settings Settings, destination broker.Client, recorder Recorder) *Bridge {
	return &Bridge{
		settings:    settings,
		destination: destination,
		handler:     NewHandler(destination, settings.DestinationTopic, recorder),
	}
}

// OnSourceConnected is the source link's connect hook: it subscribes to the
// source topic after a successful connect and logs a connection the broker
// refused. Transient dial failures never reach it; ConnectWithRetry warns
// about those.
func (b *Bridge) OnSourceConnected(source broker.Client, err error) {
	if err != nil {
		logger.Log.Error("Source connection failed", zap.Error(err))
		return
	}

	logger.Log.Info("Connected to source broker")
	if err := source.Subscribe(b.settings.SourceTopic, b.handler.HandleMessage); err != nil {
		logger.Log.Error("Subscribe to source topic failed",
			zap.String("topic", b.settings.SourceTopic),
			zap.Error(err))
		return
	}
	logger.Log.Info("Subscribed to source topic", zap.String("topic", b.settings.SourceTopic))
}

// Run connects the destination, then the source, and blocks until ctx is
// done. A destination that cannot be reached is fatal: the source is never
// attempted and the returned error wraps ErrDestinationUnavailable.
func (b *Bridge) Run(ctx context.Context, source broker.Client) error {
	logger.Log.Info("Connecting to destination broker")
	if err := b.destination.Connect(ctx); err != nil {
		logger.Log.Error("Critical failure connecting to destination broker", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrDestinationUnavailable, err)
	}

	logger.Log.Info("Connecting to source broker")
	if err := ConnectWithRetry(ctx, source, b.settings.RetryDelay, "source"); err != nil {
		b.destination.Disconnect()
		return err
	}

	<-ctx.Done()
	logger.Log.Info("Shutting down bridge")
	source.Disconnect()
	b.destination.Disconnect()
	return nil
}

// ConnectWithRetry calls Connect until it succeeds, waiting delay between
// attempts. It gives up only when ctx is done.
func ConnectWithRetry(ctx context.Context, c broker.Connector, delay time.Duration, link string) error {
	for attempt := 1; ; attempt++ {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		logger.Log.Warn("Retrying connection",
			zap.String("link", link),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
