// Package events carries order engine notifications to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Event names. Consumers switch on these strings.
const (
	NameOrderCreated         = "order.created"
	NameStatusChanged        = "order.status_changed"
	NamePaymentCaptured      = "order.payment_captured"
	NamePaymentStatusChanged = "order.payment_status_changed"
	NameWeightsFinalized     = "order.weights_finalized"
	NameOrderCancelled       = "order.cancelled"
)

// Event is one notification. Payload is one of the payload structs below.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	OccurredAt  time.Time `json:"occurredAt"`
	Payload     any       `json:"payload"`
}

// New stamps an event with a fresh ULID.
func New(name string, orderID uuid.UUID, orderNumber string, at time.Time, payload any) Event {
	return Event{
		ID:          ulid.Make().String(),
		Name:        name,
		OrderID:     orderID,
		OrderNumber: orderNumber,
		OccurredAt:  at.UTC(),
		Payload:     payload,
	}
}

type OrderCreated struct {
	OrderID  uuid.UUID `json:"orderId"`
	Number   string    `json:"number"`
	Total    int64     `json:"total"`
	Currency string    `json:"currency"`
}

type StatusChanged struct {
	OrderID uuid.UUID `json:"orderId"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Actor   uuid.UUID `json:"actor"`
}

// PaymentCaptured sets RefundRequired when the order was cancelled while the
// charge was in flight.
type PaymentCaptured struct {
	OrderID        uuid.UUID `json:"orderId"`
	TransactionID  string    `json:"transactionId"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	RefundRequired bool      `json:"refundRequired,omitempty"`
}

type PaymentStatusChanged struct {
	OrderID   uuid.UUID `json:"orderId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reference string    `json:"reference,omitempty"`
}

// WeightsFinalized amounts are in the currency's minor unit.
type WeightsFinalized struct {
	OrderID        uuid.UUID `json:"orderId"`
	EstimatedTotal int64     `json:"estimatedTotal"`
	FinalTotal     int64     `json:"finalTotal"`
	Delta          int64     `json:"delta"`
	Currency       string    `json:"currency"`
}

type OrderCancelled struct {
	OrderID uuid.UUID `json:"orderId"`
	Reason  string    `json:"reason"`
}

// Emitter accepts events from the engine. Implementations must not block on
// downstream delivery.
type Emitter interface {
	Emit(ctx context.Context, e Event) error
}

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, e Event) error
}
