package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"
)

type stripePaymentIntentAPI interface {
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	intents stripePaymentIntentAPI
	refunds stripeRefundAPI
}

// StripeConfig configures the StripeGateway.
type StripeConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Logger    *zap.Logger

	clients *stripeClients
}

// StripeGateway captures and refunds Stripe PaymentIntents created with
// capture_method=manual at checkout.
type StripeGateway struct {
	api     stripeClients
	account string
	logger  *zap.Logger
}

// NewStripeGateway builds a gateway backed by the Stripe API.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.clients != nil {
		clients = *cfg.clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents: sc.PaymentIntents,
			refunds: sc.Refunds,
		}
	}
	if clients.intents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StripeGateway{
		api:     clients,
		account: strings.TrimSpace(cfg.AccountID),
		logger:  logger,
	}, nil
}

// AuthorizeCapture captures the final order amount on the authorized PaymentIntent.
func (g *StripeGateway) AuthorizeCapture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	intentID := strings.TrimSpace(req.AuthorizationReference)
	if intentID == "" {
		return CaptureResult{Success: false, Message: "missing payment intent"}, nil
	}

	params := &stripe.PaymentIntentCaptureParams{
		AmountToCapture: stripe.Int64(req.Amount.Minor()),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("order_number", req.OrderNumber)

	intent, err := g.api.intents.Capture(intentID, params)
	if err != nil {
		if msg, declined := stripeDecline(err); declined {
			g.logger.Info("stripe capture declined",
				zap.String("order_number", req.OrderNumber),
				zap.String("payment_intent", intentID),
				zap.String("reason", msg))
			return CaptureResult{Success: false, Message: msg}, nil
		}
		return CaptureResult{}, fmt.Errorf("stripe: capture payment intent: %w", err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return CaptureResult{
			Success: false,
			Message: fmt.Sprintf("payment intent is %s", intent.Status),
		}, nil
	}

	txID := intent.ID
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		txID = intent.LatestCharge.ID
	}
	g.logger.Info("stripe capture succeeded",
		zap.String("order_number", req.OrderNumber),
		zap.String("payment_intent", intent.ID),
		zap.Int64("amount_received", intent.AmountReceived))
	return CaptureResult{Success: true, TransactionID: txID}, nil
}

// Refund refunds the captured charge, or releases the PaymentIntent when
// only an authorization exists.
func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	params := &stripe.RefundParams{}
	switch {
	case strings.HasPrefix(req.PaymentReference, "ch_") || strings.HasPrefix(req.PaymentReference, "py_"):
		params.Charge = stripe.String(req.PaymentReference)
	case req.AuthorizationReference != "":
		params.PaymentIntent = stripe.String(req.AuthorizationReference)
	case req.PaymentReference != "":
		params.PaymentIntent = stripe.String(req.PaymentReference)
	default:
		return RefundResult{Success: false, Message: "no payment reference to refund"}, nil
	}
	if !req.Amount.IsZero() {
		params.Amount = stripe.Int64(req.Amount.Minor())
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}
	if reason := mapRefundReason(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}
	params.AddMetadata("order_id", req.OrderID.String())

	refund, err := g.api.refunds.New(params)
	if err != nil {
		if msg, declined := stripeDecline(err); declined {
			return RefundResult{Success: false, Message: msg}, nil
		}
		return RefundResult{}, fmt.Errorf("stripe: refund: %w", err)
	}

	switch refund.Status {
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return RefundResult{Success: false, RefundID: refund.ID, Message: fmt.Sprintf("refund is %s", refund.Status)}, nil
	}
	g.logger.Info("stripe refund created",
		zap.String("order_number", req.OrderNumber),
		zap.String("refund", refund.ID),
		zap.String("status", string(refund.Status)))
	return RefundResult{Success: true, RefundID: refund.ID}, nil
}

// stripeDecline reports whether err is a definitive rejection by Stripe rather
// than a transport problem worth retrying.
func stripeDecline(err error) (string, bool) {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return "", false
	}
	switch se.Type {
	case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
		if se.Msg != "" {
			return se.Msg, true
		}
		return string(se.Code), true
	}
	return "", false
}

func mapRefundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case string(stripe.RefundReasonDuplicate):
		return string(stripe.RefundReasonDuplicate)
	case string(stripe.RefundReasonFraudulent):
		return string(stripe.RefundReasonFraudulent)
	case string(stripe.RefundReasonRequestedByCustomer):
		return string(stripe.RefundReasonRequestedByCustomer)
	default:
		return ""
	}
}
