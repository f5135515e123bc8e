package bridge

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/alisaviation/mqtt-bridge/internal/broker"
	"github.com/alisaviation/mqtt-bridge/internal/helpers"
	"github.com/alisaviation/mqtt-bridge/internal/logger"
	"github.com/alisaviation/mqtt-bridge/internal/models"
)

var (
	ErrInvalidEncoding         = errors.New("payload is not valid UTF-8")
	ErrNotNumeric              = errors.New("payload is not a finite number")
	ErrDestinationDisconnected = errors.New("destination broker disconnected")
)

// Recorder receives the metric updates for every numeric payload.
type Recorder interface {
	IncForwardCount()
	SetLastValue(v float64)
}

// Handler forwards source payloads to the destination topic. It carries
// everything a message needs, so it can run against fake links in tests.
type Handler struct {
	destination broker.Publisher
	topic       string
	recorder    Recorder
}

func NewHandler(destination broker.Publisher, topic string, recorder Recorder) *Handler {
	return &Handler{
		destination: destination,
		topic:       topic,
		recorder:    recorder,
	}
}

// HandleMessage processes one source message. It never panics and never
// returns an error: every failure is logged and the message is dropped.
func (h *Handler) HandleMessage(msg models.Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Error processing message",
				zap.String("topic", msg.Topic),
				zap.Any("panic", r))
		}
	}()

	if err := h.handle(msg.Payload); err != nil {
		logger.Log.Error("Message dropped",
			zap.String("topic", msg.Topic),
			zap.ByteString("payload", msg.Payload),
			zap.Error(err))
	}
}

func (h *Handler) handle(payload []byte) error {
	if !utf8.Valid(payload) {
		return ErrInvalidEncoding
	}
	text := string(payload)

	value, parseErr := ParseValue(text)
	if parseErr != nil {
		logger.Log.Warn("Non-numeric payload received", zap.String("payload", text))
	} else {
		h.recorder.IncForwardCount()
		h.recorder.SetLastValue(value)
	}

	if !h.destination.IsConnected() {
		return ErrDestinationDisconnected
	}
	if err := h.destination.Publish(h.topic, payload); err != nil {
		return fmt.Errorf("publish to %q: %w", h.topic, err)
	}

	fields := []zap.Field{zap.String("topic", h.topic), zap.String("payload", text)}
	if parseErr == nil {
		fields = append(fields, zap.String("value", helpers.FormatFloat(value)))
	}
	logger.Log.Info("Forwarded to destination", fields...)
	return nil
}

// ParseValue reads text as a float. Surrounding whitespace is ignored; NaN and
// infinities are rejected.
func ParseValue(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, text)
	}
	return v, nil
}
