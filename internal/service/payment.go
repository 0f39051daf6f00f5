package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/monepiceriz/api/internal/events"
	"github.com/monepiceriz/api/internal/money"
	"github.com/monepiceriz/api/internal/order"
	"github.com/monepiceriz/api/internal/payment"
)

// CaptureCommand settles a pre-authorized payment. A zero Timeout uses the
// service default.
type CaptureCommand struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Timeout time.Duration
}

// CaptureReceipt is the outcome of a successful capture.
type CaptureReceipt struct {
	Order         *order.Order
	TransactionID string
	Amount        money.Money
}

// Capture charges the order's final total against its authorization. The
// gateway is called at most once per call and never for an order that is not
// authorized, so a repeated capture fails with ErrNotAuthorized.
func (s *OrderService) Capture(ctx context.Context, cmd CaptureCommand) (receipt *CaptureReceipt, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.Capture", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID.String()),
	))
	defer func() { endSpan(span, err) }()

	o, err := s.repo.Load(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := o.CheckCapture(); err != nil {
		s.metrics.ObserveCapture("rejected")
		return nil, err
	}

	req := payment.CaptureRequest{
		OrderID:        o.ID,
		OrderNumber:    o.Number,
		Amount:         o.TotalAmount,
		IdempotencyKey: payment.CaptureKey(o.ID, o.CaptureAttempts),
	}
	if o.AuthorizationReference != nil {
		req.AuthorizationReference = *o.AuthorizationReference
	}
	res, err := s.callCapture(ctx, req, cmd.Timeout)
	if err != nil {
		s.metrics.ObserveCapture("error")
		s.logger.Warn("payment capture failed",
			zap.Stringer("order_id", o.ID),
			zap.String("order_number", o.Number),
			zap.Error(err))
		return nil, order.Errorf(order.ErrCaptureFailed, "capture of order %s failed: %v", o.Number, err)
	}
	if !res.Success {
		s.metrics.ObserveCapture("declined")
		s.logger.Warn("payment capture declined",
			zap.Stringer("order_id", o.ID),
			zap.String("order_number", o.Number),
			zap.String("message", res.Message))
		declined := o.CaptureAttempts
		s.recordDecline(ctx, o,
			func(cur *order.Order) bool { return cur.CaptureAttempts > declined },
			func(cur *order.Order, at time.Time) error {
				cur.RecordCaptureDecline(at)
				cur.AddNote(at, cmd.ActorID, "Payment capture declined: "+s.sanitize(res.Message))
				return nil
			})
		return nil, order.Errorf(order.ErrCaptureFailed, "capture of order %s declined: %s", o.Number, res.Message)
	}

	// The charge has happened: persistence must not be abandoned with the request.
	persistCtx := context.WithoutCancel(ctx)
	amount := o.TotalAmount
	refundRequired := false
	o, err = s.settle(persistCtx, o,
		func(cur *order.Order) bool {
			return cur.PaymentStatus == order.PaymentPaid && cur.PaymentReference != nil && *cur.PaymentReference == res.TransactionID
		},
		func(cur *order.Order, at time.Time) error {
			if err := cur.RecordCapture(res.TransactionID, at); err != nil {
				return err
			}
			cur.AddNote(at, cmd.ActorID, fmt.Sprintf("Payment captured: %s (transaction %s)", amount, res.TransactionID))
			// A cancel that landed while the gateway was charging cannot undo the charge.
			refundRequired = cur.Status == order.StatusCancelled
			if refundRequired {
				cur.AddNote(at, cmd.ActorID, "Refund required: order was cancelled while payment was being captured")
			}
			return nil
		})
	if err != nil {
		s.metrics.ObserveCapture("unrecorded")
		s.logger.Error("captured payment could not be recorded",
			zap.Stringer("order_id", cmd.OrderID),
			zap.String("transaction_id", res.TransactionID),
			zap.Stringer("amount", amount),
			zap.Error(err))
		return nil, err
	}

	if refundRequired {
		s.metrics.ObserveCapture("refund_required")
		s.logger.Warn("payment captured on cancelled order; refund required",
			zap.Stringer("order_id", o.ID),
			zap.String("order_number", o.Number),
			zap.String("transaction_id", res.TransactionID),
			zap.Stringer("amount", amount))
	} else {
		s.metrics.ObserveCapture("success")
		s.logger.Info("payment captured",
			zap.Stringer("order_id", o.ID),
			zap.String("order_number", o.Number),
			zap.String("transaction_id", res.TransactionID),
			zap.Stringer("amount", amount))
	}
	s.emit(ctx, o, events.NamePaymentCaptured, events.PaymentCaptured{
		OrderID:        o.ID,
		TransactionID:  res.TransactionID,
		Amount:         amount.Minor(),
		Currency:       amount.Currency(),
		RefundRequired: refundRequired,
	})
	return &CaptureReceipt{Order: o, TransactionID: res.TransactionID, Amount: amount}, nil
}

func (s *OrderService) callCapture(ctx context.Context, req payment.CaptureRequest, timeout time.Duration) (payment.CaptureResult, error) {
	if timeout <= 0 {
		timeout = s.captureTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return s.gateway.AuthorizeCapture(ctx, req)
}

// RefundCommand returns the money of an authorized or paid order.
type RefundCommand struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Reason  string
	Timeout time.Duration
}

// Refund releases an authorization or refunds a captured payment through the gateway.
func (s *OrderService) Refund(ctx context.Context, cmd RefundCommand) (o *order.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.Refund", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID.String()),
	))
	defer func() { endSpan(span, err) }()

	o, err = s.repo.Load(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if err := o.CheckPayment(order.PaymentRefunded); err != nil {
		s.metrics.ObserveRefund("rejected")
		return nil, err
	}

	reason := s.sanitize(cmd.Reason)
	req := payment.RefundRequest{
		OrderID:        o.ID,
		OrderNumber:    o.Number,
		Amount:         o.TotalAmount,
		Reason:         reason,
		IdempotencyKey: payment.RefundKey(o.ID, o.RefundAttempts),
	}
	if o.PaymentReference != nil {
		req.PaymentReference = *o.PaymentReference
	}
	if o.AuthorizationReference != nil {
		req.AuthorizationReference = *o.AuthorizationReference
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = s.captureTimeout
	}
	gctx, cancel := context.WithTimeout(ctx, timeout)
	res, err := s.gateway.Refund(gctx, req)
	cancel()
	if err != nil {
		s.metrics.ObserveRefund("error")
		return nil, order.Errorf(order.ErrRefundFailed, "refund of order %s failed: %v", o.Number, err)
	}
	if !res.Success {
		s.metrics.ObserveRefund("declined")
		s.logger.Warn("refund declined",
			zap.Stringer("order_id", o.ID),
			zap.String("order_number", o.Number),
			zap.String("message", res.Message))
		declined := o.RefundAttempts
		s.recordDecline(ctx, o,
			func(cur *order.Order) bool { return cur.RefundAttempts > declined },
			func(cur *order.Order, at time.Time) error {
				cur.RecordRefundDecline(at)
				cur.AddNote(at, cmd.ActorID, "Refund declined: "+s.sanitize(res.Message))
				return nil
			})
		return nil, order.Errorf(order.ErrRefundFailed, "refund of order %s declined: %s", o.Number, res.Message)
	}

	from := o.PaymentStatus
	o, err = s.settle(context.WithoutCancel(ctx), o,
		func(cur *order.Order) bool { return cur.PaymentStatus == order.PaymentRefunded },
		func(cur *order.Order, at time.Time) error {
			if err := cur.ApplyPayment(order.PaymentRefunded, "", at); err != nil {
				return err
			}
			note := fmt.Sprintf("Payment refunded: %s (refund %s)", cur.TotalAmount, res.RefundID)
			if reason != "" {
				note += ": " + reason
			}
			cur.AddNote(at, cmd.ActorID, note)
			return nil
		})
	if err != nil {
		s.metrics.ObserveRefund("unrecorded")
		s.logger.Error("refund could not be recorded",
			zap.Stringer("order_id", cmd.OrderID),
			zap.String("refund_id", res.RefundID),
			zap.Error(err))
		return nil, err
	}

	s.metrics.ObserveRefund("success")
	s.logger.Info("payment refunded",
		zap.Stringer("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.String("refund_id", res.RefundID))
	s.emit(ctx, o, events.NamePaymentStatusChanged, events.PaymentStatusChanged{
		OrderID:   o.ID,
		From:      string(from),
		To:        string(order.PaymentRefunded),
		Reference: res.RefundID,
	})
	return o, nil
}

// ReconcileCommand records a payment fact reported by the storefront or a
// gateway webhook: an authorization, a direct payment or a failure.
type ReconcileCommand struct {
	OrderID   uuid.UUID
	Target    order.PaymentStatus
	Reference string
	ActorID   uuid.UUID
}

// ReconcilePayment applies a payment status change that did not go through
// Capture or Refund.
func (s *OrderService) ReconcilePayment(ctx context.Context, cmd ReconcileCommand) (o *order.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.ReconcilePayment", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID.String()),
		attribute.String("order.target_payment_status", string(cmd.Target)),
	))
	defer func() { endSpan(span, err) }()

	switch cmd.Target {
	case order.PaymentAuthorized, order.PaymentPaid, order.PaymentFailed:
	case order.PaymentRefunded:
		return nil, order.Errorf(order.ErrIllegalPaymentTransition, "refunds must go through the refund operation")
	default:
		return nil, order.Errorf(order.ErrInvalidInput, "unknown payment status %q", cmd.Target)
	}

	o, err = s.repo.Load(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if cmd.Target == order.PaymentPaid && o.PaymentStatus == order.PaymentAuthorized {
		return nil, order.Errorf(order.ErrIllegalPaymentTransition, "order %s is authorized and can only be paid by capture", o.Number)
	}

	from := o.PaymentStatus
	now := s.clock()
	if err := o.ApplyPayment(cmd.Target, cmd.Reference, now); err != nil {
		return nil, err
	}
	o.AddNote(now, cmd.ActorID, fmt.Sprintf("Payment %s -> %s", from, cmd.Target))
	if err := s.save(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info("payment status reconciled",
		zap.Stringer("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(o.PaymentStatus)))
	s.emit(ctx, o, events.NamePaymentStatusChanged, events.PaymentStatusChanged{
		OrderID:   o.ID,
		From:      string(from),
		To:        string(o.PaymentStatus),
		Reference: cmd.Reference,
	})
	return o, nil
}

// recordDecline persists a definitive gateway decline so the next attempt uses
// a new idempotency key. A failure here only costs a replayed decline on retry,
// so it is logged and the decline is still returned to the caller.
func (s *OrderService) recordDecline(ctx context.Context, o *order.Order, done func(*order.Order) bool, apply func(*order.Order, time.Time) error) {
	if _, err := s.settle(context.WithoutCancel(ctx), o, done, apply); err != nil {
		s.logger.Error("gateway decline could not be recorded",
			zap.Stringer("order_id", o.ID),
			zap.Error(err))
	}
}

// settle records a gateway outcome that has already happened. On a version
// conflict it reloads and re-applies; done reports whether the reloaded order
// already reflects the outcome.
func (s *OrderService) settle(ctx context.Context, o *order.Order, done func(*order.Order) bool, apply func(*order.Order, time.Time) error) (*order.Order, error) {
	for attempt := 1; ; attempt++ {
		if err := apply(o, s.clock()); err != nil {
			return nil, err
		}
		err := s.save(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, order.ErrConcurrentModification) || attempt >= maxSettleAttempts {
			return nil, err
		}

		s.logger.Warn("reconciling gateway outcome after concurrent update",
			zap.Stringer("order_id", o.ID),
			zap.Int("attempt", attempt))
		id := o.ID
		if o, err = s.repo.Load(ctx, id); err != nil {
			return nil, err
		}
		if done(o) {
			return o, nil
		}
	}
}
