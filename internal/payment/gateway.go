// Package payment talks to payment service providers on behalf of the order engine.
package payment

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/monepiceriz/api/internal/money"
)

// CaptureRequest asks the provider to settle a pre-authorized payment.
type CaptureRequest struct {
	OrderID                uuid.UUID
	OrderNumber            string
	AuthorizationReference string
	Amount                 money.Money
	IdempotencyKey         string
}

// CaptureResult is the provider's verdict. A decline is Success=false with a nil error;
// a transport failure or timeout is a non-nil error.
type CaptureResult struct {
	Success       bool
	TransactionID string
	Message       string
}

// RefundRequest asks the provider to return money for a paid or authorized order.
type RefundRequest struct {
	OrderID                uuid.UUID
	OrderNumber            string
	PaymentReference       string
	AuthorizationReference string
	Amount                 money.Money
	Reason                 string
	IdempotencyKey         string
}

// RefundResult mirrors CaptureResult for refunds.
type RefundResult struct {
	Success  bool
	RefundID string
	Message  string
}

// Gateway is the provider contract used by the order service.
type Gateway interface {
	AuthorizeCapture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}

// CaptureKey is the provider idempotency key for capturing an order. declined is
// the number of earlier attempts the provider definitively rejected: retries after
// a timeout reuse the key, retries after a decline get a fresh one, because
// providers replay the stored response for a known key.
func CaptureKey(orderID uuid.UUID, declined int) string {
	return attemptKey("capture-", orderID, declined)
}

// RefundKey is the idempotency key for refunding an order; see CaptureKey.
func RefundKey(orderID uuid.UUID, declined int) string {
	return attemptKey("refund-", orderID, declined)
}

func attemptKey(prefix string, orderID uuid.UUID, declined int) string {
	if declined <= 0 {
		return prefix + orderID.String()
	}
	return prefix + orderID.String() + "-" + strconv.Itoa(declined)
}
