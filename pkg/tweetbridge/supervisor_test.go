package tweetbridge_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/messagepipeline"
	"github.com/umair8920/Real-time-tweets-pipline-interactive-dashboard-SuperSet/pkg/tweetbridge"
)

type harness struct {
	subscriber *fakeSubscriber
	publisher  *fakePublisher
	sink       *recordingSink
	supervisor *tweetbridge.Supervisor
	bridge     *tweetbridge.Bridge
	cancel     context.CancelFunc
	result     chan error
}

func testBridgeConfig() *tweetbridge.Config {
	cfg := tweetbridge.DefaultConfig()
	cfg.StartupAttempts = 3
	cfg.StartupBackoff = time.Millisecond
	cfg.ConnectTimeout = time.Second
	cfg.DrainTimeout = 5 * time.Second
	return cfg
}

func newHarness(t *testing.T, subscriber *fakeSubscriber, publisher *fakePublisher) *harness {
	t.Helper()
	cfg := testBridgeConfig()
	sink := &recordingSink{}
	bridge, err := tweetbridge.NewBridge(cfg, "twitter-tweets", subscriber, publisher, sink, zerolog.Nop())
	require.NoError(t, err)
	return &harness{
		subscriber: subscriber,
		publisher:  publisher,
		sink:       sink,
		supervisor: tweetbridge.NewSupervisor(cfg, zerolog.Nop()),
		bridge:     bridge,
	}
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.result = make(chan error, 1)
	go func() { h.result <- h.supervisor.Run(ctx, h.bridge) }()
	t.Cleanup(cancel)
}

func (h *harness) waitFor(t *testing.T, state tweetbridge.State) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.supervisor.WaitForState(ctx, state), "supervisor never reached %s, is %s", state, h.supervisor.State())
}

func (h *harness) stop(t *testing.T) error {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not return after shutdown")
		return nil
	}
}

func TestSupervisor_ForwardsInOrder(t *testing.T) {
	h := newHarness(t, newFakeSubscriber(1), &fakePublisher{})
	h.run(t)
	h.waitFor(t, tweetbridge.StateReady)

	for _, p := range []string{`{"user_id": 1}`, `{"user_id": 2}`, `{"tweet": "no key"}`, `{"user_id": 3}`} {
		h.subscriber.deliver(p)
	}

	require.Eventually(t, func() bool { return len(h.publisher.publishedKeys()) == 4 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.stop(t))

	assert.Equal(t, []string{"1", "2", "", "3"}, h.publisher.publishedKeys())
	assert.Equal(t, tweetbridge.StateStopped, h.supervisor.State())
	assert.Equal(t, int64(4), h.bridge.Forwarded())
	assert.True(t, h.publisher.isStopped())
	assert.True(t, h.sink.closed)

	acked, nacked := h.subscriber.settled()
	assert.Equal(t, []string{"msg-1", "msg-2", "msg-3", "msg-4"}, acked)
	assert.Empty(t, nacked)
}

func TestSupervisor_ScenarioPublishesKeyedRecord(t *testing.T) {
	h := newHarness(t, newFakeSubscriber(1), &fakePublisher{})
	h.run(t)
	h.waitFor(t, tweetbridge.StateReady)

	payload := `{"user_id": 42, "tweet": "hello", "timestamp": "2024-01-01 00:00:00"}`
	h.subscriber.deliver(payload)
	require.Eventually(t, func() bool { return len(h.publisher.publishedKeys()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.stop(t))

	rec := h.publisher.published[0]
	assert.Equal(t, "twitter-tweets", rec.Topic)
	assert.Equal(t, "42", rec.Key)
	assert.JSONEq(t, payload, string(rec.Value))
}

func TestSupervisor_DecodeErrorDoesNotStopPipeline(t *testing.T) {
	h := newHarness(t, newFakeSubscriber(1), &fakePublisher{})
	h.run(t)
	h.waitFor(t, tweetbridge.StateReady)

	h.subscriber.deliver(`{"user_id": 1}`)
	badID := h.subscriber.deliver(`{"user_id": `)
	h.subscriber.deliver("")
	h.subscriber.deliver(`{"user_id": 2}`)

	require.Eventually(t, func() bool { return len(h.publisher.publishedKeys()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.stop(t))

	assert.Equal(t, []string{"1", "2"}, h.publisher.publishedKeys())
	letters := h.sink.all()
	require.Len(t, letters, 2)
	assert.Equal(t, badID, letters[0].Message.ID)
	assert.Equal(t, messagepipeline.StageTransform, letters[0].Stage)
	assert.Equal(t, "DecodeError", letters[0].ErrorClass)
	assert.Equal(t, "DecodeError", letters[1].ErrorClass, "an empty payload is malformed input")

	_, nacked := h.subscriber.settled()
	assert.Len(t, nacked, 2)
}

func TestSupervisor_ForwardsLargePayload(t *testing.T) {
	h := newHarness(t, newFakeSubscriber(1), &fakePublisher{})
	h.run(t)
	h.waitFor(t, tweetbridge.StateReady)

	large := `{"user_id": 7, "tweet": "` + strings.Repeat("x", 300*1024) + `"}`
	h.subscriber.deliver(large)
	h.subscriber.deliver(`{"user_id": 8}`)

	require.Eventually(t, func() bool { return len(h.publisher.publishedKeys()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.stop(t))

	assert.Equal(t, []string{"7", "8"}, h.publisher.publishedKeys())
	assert.JSONEq(t, large, string(h.publisher.published[0].Value))
	assert.Empty(t, h.sink.all())
}

func TestSupervisor_PayloadLimitWhenConfigured(t *testing.T) {
	cfg := testBridgeConfig()
	cfg.MaxPayloadBytes = 64
	subscriber, publisher, sink := newFakeSubscriber(1), &fakePublisher{}, &recordingSink{}
	bridge, err := tweetbridge.NewBridge(cfg, "twitter-tweets", subscriber, publisher, sink, zerolog.Nop())
	require.NoError(t, err)
	h := &harness{
		subscriber: subscriber,
		publisher:  publisher,
		sink:       sink,
		supervisor: tweetbridge.NewSupervisor(cfg, zerolog.Nop()),
		bridge:     bridge,
	}
	h.run(t)
	h.waitFor(t, tweetbridge.StateReady)

	h.subscriber.deliver(`{"user_id": 1, "tweet": "` + strings.Repeat("y", 100) + `"}`)
	h.subscriber.deliver("")
	h.subscriber.deliver(`{"user_id": 2}`)

	require.Eventually(t, func() bool { return len(h.sink.all()) == 2 && len(publisher.publishedKeys()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.stop(t))

	assert.Equal(t, []string{"2"}, publisher.publishedKeys())
	letters := h.sink.all()
	assert.Equal(t, "PayloadSizeError", letters[0].ErrorClass)
	assert.Equal(t, "DecodeError", letters[1].ErrorClass)
}

func TestSupervisor_PublishFailureDropsOnlyThatMessage(t *testing.T) {
	publisher := &fakePublisher{
		publishFn: func(_ context.Context, rec messagepipeline.OutboundRecord) error {
			if rec.Key == "1" {
				return errors.New("kafka: retries exhausted")
			}
			return nil
		},
	}
	h := newHarness(t, newFakeSubscriber(1), publisher)
	h.run(t)
	h.waitFor(t, tweetbridge.StateReady)

	failedID := h.subscriber.deliver(`{"user_id": 1}`)
	h.subscriber.deliver(`{"user_id": 2}`)

	require.Eventually(t, func() bool { return len(publisher.publishedKeys()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.stop(t))

	assert.Equal(t, []string{"2"}, publisher.publishedKeys())
	assert.Len(t, publisher.attempts, 2, "the message after the failure must still be attempted")

	letters := h.sink.all()
	require.Len(t, letters, 1)
	assert.Equal(t, failedID, letters[0].Message.ID)
	assert.Equal(t, messagepipeline.StageProcess, letters[0].Stage)
	assert.Equal(t, "PublishError", letters[0].ErrorClass)
	assert.Contains(t, letters[0].Error, "retries exhausted")
	assert.JSONEq(t, `{"user_id": 1}`, string(letters[0].Message.Payload))
}

func TestSupervisor_ReconnectResumesForwarding(t *testing.T) {
	h := newHarness(t, newFakeSubscriber(1), &fakePublisher{})
	h.run(t)
	h.waitFor(t, tweetbridge.StateReady)

	h.subscriber.deliver(`{"user_id": 1}`)
	require.Eventually(t, func() bool { return len(h.publisher.publishedKeys()) == 1 }, 2*time.Second, 10*time.Millisecond)

	h.supervisor.OnConnectionLost(errors.New("EOF"))
	assert.Equal(t, tweetbridge.StateReconnecting, h.supervisor.State())
	h.supervisor.OnReconnecting()
	assert.Equal(t, tweetbridge.StateReconnecting, h.supervisor.State())
	h.supervisor.OnConnected()
	h.waitFor(t, tweetbridge.StateReady)

	h.subscriber.deliver(`{"user_id": 2}`)
	require.Eventually(t, func() bool { return len(h.publisher.publishedKeys()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.stop(t))

	assert.Equal(t, []string{"1", "2"}, h.publisher.publishedKeys(), "already forwarded messages are not reprocessed")
}

func TestSupervisor_ConnectionLostDuringStartupIsNotReady(t *testing.T) {
	subscriber := newFakeSubscriber(1)
	h := newHarness(t, subscriber, &fakePublisher{})
	subscriber.afterStart = func() {
		subscriber.connected.Store(false)
		h.supervisor.OnConnectionLost(errors.New("EOF"))
	}
	h.run(t)
	h.waitFor(t, tweetbridge.StateReconnecting)

	// Ready must wait for the resubscribe, not the end of startup.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, tweetbridge.StateReconnecting, h.supervisor.State())
	assert.False(t, h.supervisor.Ready())

	subscriber.connected.Store(true)
	h.supervisor.OnConnected()
	h.waitFor(t, tweetbridge.StateReady)

	h.subscriber.deliver(`{"user_id": 1}`)
	require.Eventually(t, func() bool { return len(h.publisher.publishedKeys()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, h.stop(t))
}

func TestSupervisor_DrainCompletesInFlightPublish(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	publisher := &fakePublisher{
		publishFn: func(ctx context.Context, _ messagepipeline.OutboundRecord) error {
			started <- struct{}{}
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	h := newHarness(t, newFakeSubscriber(1), publisher)
	h.run(t)
	h.waitFor(t, tweetbridge.StateReady)

	h.subscriber.deliver(`{"user_id": 1}`)
	<-started
	// Buffered in the handoff slot while the first publish is blocked.
	h.subscriber.deliver(`{"user_id": 2}`)

	h.cancel()
	h.waitFor(t, tweetbridge.StateDraining)
	select {
	case <-h.result:
		t.Fatal("supervisor returned before the in-flight publish finished")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-h.result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not finish draining")
	}

	assert.Equal(t, tweetbridge.StateStopped, h.supervisor.State())
	assert.Equal(t, []string{"1", "2"}, publisher.publishedKeys())
	acked, _ := h.subscriber.settled()
	assert.Len(t, acked, 2, "every dequeued message gets a final outcome")
}

func TestSupervisor_StartupGivesUp(t *testing.T) {
	publisher := &fakePublisher{connectErrs: 100}
	h := newHarness(t, newFakeSubscriber(1), publisher)

	err := h.supervisor.Run(context.Background(), h.bridge)
	require.Error(t, err)

	var connErr *tweetbridge.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, 3, connErr.Attempts)
	assert.Contains(t, err.Error(), "no brokers reachable")
	assert.Equal(t, "ConnectionError", messagepipeline.ErrorClass(err))
	assert.Equal(t, int32(3), publisher.connects.Load())
	assert.Equal(t, int32(0), h.subscriber.starts.Load(), "subscriber is not started before kafka is reachable")
	assert.True(t, publisher.isStopped())
}

func TestSupervisor_StartupRetriesUntilSubscribed(t *testing.T) {
	subscriber := newFakeSubscriber(1)
	subscriber.startErrs = 2
	h := newHarness(t, subscriber, &fakePublisher{})
	h.run(t)
	h.waitFor(t, tweetbridge.StateReady)

	assert.Equal(t, int32(3), subscriber.starts.Load())
	require.NoError(t, h.stop(t))
}

func TestSupervisor_CancelDuringStartupIsClean(t *testing.T) {
	publisher := &fakePublisher{connectErrs: 100}
	h := newHarness(t, newFakeSubscriber(1), publisher)
	h.supervisor.WithStartupPolicy(messagepipeline.RetryPolicy{
		MaxAttempts: 100,
		Delay:       messagepipeline.FixedDelay(time.Hour),
	})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- h.supervisor.Run(ctx, h.bridge) }()

	require.Eventually(t, func() bool { return publisher.connects.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not return after cancel during startup")
	}
	assert.Equal(t, tweetbridge.StateStopped, h.supervisor.State())
}

func TestSupervisor_WaitForStateHonoursContext(t *testing.T) {
	sup := tweetbridge.NewSupervisor(testBridgeConfig(), zerolog.Nop())
	assert.Equal(t, tweetbridge.StateDisconnected, sup.State())
	assert.False(t, sup.Ready())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sup.WaitForState(ctx, tweetbridge.StateReady), context.DeadlineExceeded)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Ready", tweetbridge.StateReady.String())
	assert.Equal(t, "Reconnecting", tweetbridge.StateReconnecting.String())
	assert.Equal(t, "Unknown", tweetbridge.State(99).String())
}
