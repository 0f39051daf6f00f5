package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/monepiceriz/api/internal/ws"
)

// DefaultTopic is the Kafka topic order events are written to.
const DefaultTopic = "order-events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes events as JSON keyed by order id, so one order's events
// land on one partition in order.
type KafkaSink struct {
	writer messageWriter
}

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	brokers := []string{}
	for _, b := range strings.Split(csv, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaSink{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.OrderID.String()),
		Value: data,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(e.Name)},
			{Key: "event_id", Value: []byte(e.ID)},
		},
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

type broadcaster interface {
	Broadcast(ctx context.Context, event ws.Event, rooms ...string) error
}

// HubSink pushes events to connected admin dashboards: the all-orders room and
// the order's own room.
type HubSink struct {
	hub broadcaster
}

func NewHubSink(hub broadcaster) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "websocket" }

func (s *HubSink) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.hub.Broadcast(ctx, ws.Event{Type: e.Name, Payload: data}, ws.RoomAllOrders, ws.OrderRoom(e.OrderID.String()))
}

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(_ context.Context, e Event) error {
	s.logger.Info("order event",
		zap.String("event", e.Name),
		zap.String("event_id", e.ID),
		zap.Stringer("order_id", e.OrderID),
		zap.String("order_number", e.OrderNumber),
		zap.Any("payload", e.Payload))
	return nil
}
