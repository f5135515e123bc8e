package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/alisaviation/mqtt-bridge/internal/broker"
	"github.com/alisaviation/mqtt-bridge/internal/testutil"
)

func testSettings() Settings {
	return Settings{
		SourceTopic:      "Temp",
		DestinationTopic: "Temp",
		RetryDelay:       time.Millisecond,
	}
}

// newSource returns a fake source link whose connect hook is the bridge's.
func newSource(b *Bridge) *testutil.FakeBroker {
	src := testutil.NewFakeBroker()
	src.OnConnect = b.OnSourceConnected
	return src
}

func TestRun_DestinationFailureIsFatal(t *testing.T) {
	testutil.ObserveLogs(t)
	dst := testutil.NewFakeBroker()
	dst.FailConnects = 1
	dst.ConnectError = errors.New("connection refused")

	b := New(testSettings(), dst, &fakeRecorder{})
	src := newSource(b)

	err := b.Run(context.Background(), src)

	require.ErrorIs(t, err, ErrDestinationUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, src.Connects(), "source must not be attempted")
}

func TestRun_SourceRetriedThenSubscribedOnce(t *testing.T) {
	logs := testutil.ObserveLogs(t)
	dst := testutil.NewFakeBroker()
	b := New(testSettings(), dst, &fakeRecorder{})

	src := newSource(b)
	src.FailConnects = 3
	src.ConnectError = errors.New("network unreachable")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, src) }()

	require.Eventually(t, func() bool { return len(src.Subscriptions()) > 0 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 4, src.Connects())
	assert.Equal(t, []string{"Temp"}, src.Subscriptions())
	assert.Equal(t, 3, testutil.CountLevel(logs, zapcore.WarnLevel))
	assert.Equal(t, 3, logs.FilterMessage("Retrying connection").Len())
	assert.Zero(t, testutil.CountLevel(logs, zapcore.ErrorLevel), "transient failures are warnings only")
	assert.Equal(t, 1, logs.FilterMessage("Subscribed to source topic").Len())

	assert.Equal(t, 1, src.DisconnectCalls)
	assert.Equal(t, 1, dst.DisconnectCalls)
}

func TestRun_SourceRefusedByBroker(t *testing.T) {
	logs := testutil.ObserveLogs(t)
	dst := testutil.NewFakeBroker()
	b := New(testSettings(), dst, &fakeRecorder{})

	src := newSource(b)
	src.FailConnects = 2
	src.ConnectError = fmt.Errorf("%w: not authorised", broker.ErrConnectionRefused)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, src) }()

	require.Eventually(t, func() bool { return len(src.Subscriptions()) > 0 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 2, testutil.CountLevel(logs, zapcore.WarnLevel))
	failed := logs.FilterMessage("Source connection failed").All()
	require.Len(t, failed, 2)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Contains(t, failed[0].ContextMap()["error"], "not authorised")
}

func TestRun_EndToEnd(t *testing.T) {
	testutil.ObserveLogs(t)
	dst := testutil.NewFakeBroker()
	rec := &fakeRecorder{forwarded: 10}
	b := New(testSettings(), dst, rec)
	src := newSource(b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, src) }()

	require.Eventually(t, func() bool { return len(src.Subscriptions()) == 1 }, time.Second, time.Millisecond)

	require.True(t, src.Deliver("Temp", []byte("23.5")))
	require.True(t, src.Deliver("Temp", []byte("room is warm")))

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 11, rec.forwarded)
	assert.Equal(t, 23.5, rec.lastValue)

	published := dst.Published()
	require.Len(t, published, 2)
	assert.Equal(t, testutil.Published{Topic: "Temp", Payload: []byte("23.5")}, published[0])
	assert.Equal(t, testutil.Published{Topic: "Temp", Payload: []byte("room is warm")}, published[1])
}

func TestRun_ConfigurableTopics(t *testing.T) {
	testutil.ObserveLogs(t)
	dst := testutil.NewFakeBroker()
	settings := testSettings()
	settings.SourceTopic = "sensors/outdoor"
	settings.DestinationTopic = "home/temp"
	b := New(settings, dst, &fakeRecorder{})
	src := newSource(b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, src) }()

	require.Eventually(t, func() bool { return len(src.Subscriptions()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"sensors/outdoor"}, src.Subscriptions())
	require.True(t, src.Deliver("sensors/outdoor", []byte("5")))

	cancel()
	require.NoError(t, <-done)

	published := dst.Published()
	require.Len(t, published, 1)
	assert.Equal(t, "home/temp", published[0].Topic)
}

func TestRun_CancelledWhileRetryingSource(t *testing.T) {
	testutil.ObserveLogs(t)
	dst := testutil.NewFakeBroker()
	settings := testSettings()
	settings.RetryDelay = time.Hour
	b := New(settings, dst, &fakeRecorder{})

	src := newSource(b)
	src.FailConnects = 1
	src.ConnectError = errors.New("refused")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, src) }()

	require.Eventually(t, func() bool { return src.Connects() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.Subscriptions())
	assert.Equal(t, 1, dst.DisconnectCalls)
}

func TestOnSourceConnected_SubscribeFailure(t *testing.T) {
	logs := testutil.ObserveLogs(t)
	b := New(testSettings(), testutil.NewFakeBroker(), &fakeRecorder{})

	src := testutil.NewFakeBroker()
	src.SetState(broker.Connected)
	src.SubscribeError = errors.New("not authorized")

	b.OnSourceConnected(src, nil)

	assert.Equal(t, 1, logs.FilterMessage("Subscribe to source topic failed").Len())
	assert.Zero(t, logs.FilterMessage("Subscribed to source topic").Len())
}

func TestOnSourceConnected_FailureDoesNotSubscribe(t *testing.T) {
	logs := testutil.ObserveLogs(t)
	b := New(testSettings(), testutil.NewFakeBroker(), &fakeRecorder{})
	src := testutil.NewFakeBroker()

	b.OnSourceConnected(src, errors.New("bad credentials"))

	assert.Empty(t, src.Subscriptions())
	assert.Equal(t, 1, testutil.CountLevel(logs, zapcore.ErrorLevel))
}

func TestConnectWithRetry_SucceedsFirstTime(t *testing.T) {
	logs := testutil.ObserveLogs(t)
	c := testutil.NewFakeBroker()

	require.NoError(t, ConnectWithRetry(context.Background(), c, time.Hour, "source"))
	assert.Equal(t, 1, c.Connects())
	assert.Zero(t, testutil.CountLevel(logs, zapcore.WarnLevel))
}

func TestConnectWithRetry_WaitsBetweenAttempts(t *testing.T) {
	testutil.ObserveLogs(t)
	c := testutil.NewFakeBroker()
	c.FailConnects = 2
	c.ConnectError = errors.New("refused")

	start := time.Now()
	require.NoError(t, ConnectWithRetry(context.Background(), c, 20*time.Millisecond, "source"))

	assert.Equal(t, 3, c.Connects())
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
