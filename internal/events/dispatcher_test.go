package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/monepiceriz/api/internal/metrics"
	"github.com/monepiceriz/api/internal/ws"
)

type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []Event
	block  chan struct{}
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(ctx context.Context, e Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) received() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func testEvent(name string) Event {
	return New(name, uuid.New(), "ME-000001", time.Now(), StatusChanged{From: "pending", To: "confirmed"})
}

func TestDispatcher_DeliversToEverySinkInOrder(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	d := NewDispatcher(8, nil, []Sink{a, b})
	go d.Run(context.Background())

	first, second := testEvent(NameStatusChanged), testEvent(NameOrderCancelled)
	require.NoError(t, d.Emit(context.Background(), first))
	require.NoError(t, d.Emit(context.Background(), second))
	require.NoError(t, d.Close(context.Background()))

	for _, s := range []*recordingSink{a, b} {
		got := s.received()
		require.Len(t, got, 2, s.name)
		assert.Equal(t, first.ID, got[0].ID)
		assert.Equal(t, second.ID, got[1].ID)
	}
}

func TestDispatcher_FullQueueDropsWithoutBlocking(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	d := NewDispatcher(1, nil, nil, WithMetrics(m))

	// Run is not started, so the queue never drains
	require.NoError(t, d.Emit(context.Background(), testEvent(NameStatusChanged)))

	done := make(chan error, 1)
	go func() { done <- d.Emit(context.Background(), testEvent(NameStatusChanged)) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsDropped))
}

func TestDispatcher_SinkFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	failing := &recordingSink{name: "broken", err: errors.New("broker unavailable")}
	healthy := &recordingSink{name: "ok"}

	d := NewDispatcher(4, zap.New(core), []Sink{failing, healthy})
	go d.Run(context.Background())

	require.NoError(t, d.Emit(context.Background(), testEvent(NameWeightsFinalized)))
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, healthy.received(), 1)
	entries := logs.FilterMessage("event delivery failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "broken", entries[0].ContextMap()["sink"])
}

func TestDispatcher_EmitAfterClose(t *testing.T) {
	d := NewDispatcher(4, nil, nil)
	go d.Run(context.Background())
	require.NoError(t, d.Close(context.Background()))

	assert.ErrorIs(t, d.Emit(context.Background(), testEvent(NameOrderCreated)), ErrClosed)
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_CloseRespectsContext(t *testing.T) {
	slow := &recordingSink{name: "slow", block: make(chan struct{})}
	d := NewDispatcher(4, nil, []Sink{slow})
	go d.Run(context.Background())
	require.NoError(t, d.Emit(context.Background(), testEvent(NameOrderCreated)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
	close(slow.block)
}

func TestDispatcher_CloseDeliversEventsEmittedWhileShuttingDown(t *testing.T) {
	sink := &recordingSink{name: "kafka", block: make(chan struct{})}
	d := NewDispatcher(8, nil, []Sink{sink})
	go d.Run(context.Background())

	// first event is in flight, the others arrive from requests still finishing
	require.NoError(t, d.Emit(context.Background(), testEvent(NameStatusChanged)))
	require.NoError(t, d.Emit(context.Background(), testEvent(NamePaymentCaptured)))
	require.NoError(t, d.Emit(context.Background(), testEvent(NameOrderCancelled)))

	closed := make(chan error, 1)
	go func() { closed <- d.Close(context.Background()) }()
	close(sink.block)

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the queue drained")
	}
	assert.Len(t, sink.received(), 3)
}

func TestDispatcher_CancelledRunReportsUndeliveredEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	core, logs := observer.New(zap.WarnLevel)
	sink := &recordingSink{name: "kafka"}
	d := NewDispatcher(8, zap.New(core), []Sink{sink}, WithMetrics(m))

	require.NoError(t, d.Emit(context.Background(), testEvent(NameStatusChanged)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	assert.ErrorIs(t, d.Emit(context.Background(), testEvent(NamePaymentCaptured)), ErrClosed)
	err := d.Close(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Contains(t, err.Error(), "1 events undelivered")

	assert.Empty(t, sink.received())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsDropped))
	assert.Len(t, logs.FilterMessage("event dropped, dispatcher stopped").All(), 1)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSink_KeysByOrder(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w}
	e := testEvent(NamePaymentCaptured)

	require.NoError(t, sink.Publish(context.Background(), e))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, e.OrderID.String(), string(w.msgs[0].Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, NamePaymentCaptured, decoded["name"])
	assert.Equal(t, e.ID, decoded["id"])
}

type fakeBroadcaster struct {
	event ws.Event
	rooms []string
}

func (b *fakeBroadcaster) Broadcast(ctx context.Context, event ws.Event, rooms ...string) error {
	b.event = event
	b.rooms = rooms
	return nil
}

func TestHubSink_BroadcastsToOrderAndDashboardRooms(t *testing.T) {
	b := &fakeBroadcaster{}
	e := testEvent(NameStatusChanged)

	require.NoError(t, NewHubSink(b).Publish(context.Background(), e))
	assert.Equal(t, NameStatusChanged, b.event.Type)
	assert.ElementsMatch(t, []string{ws.RoomAllOrders, ws.OrderRoom(e.OrderID.String())}, b.rooms)
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, ParseBrokers(" kafka-1:9092, ,kafka-2:9092 "))
	assert.Empty(t, ParseBrokers(""))
}
