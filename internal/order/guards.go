package order

// Guard vetoes a legal transition that would break a rule linking the status to
// other order state. It returns nil to allow the transition.
type Guard func(o *Order, target Status) error

// DefaultGuards are checked on every status transition, in this order.
var DefaultGuards = []Guard{
	RequireConfirmedWeights,
	RequirePaymentForCompletion,
}

// RequireConfirmedWeights blocks production work until variable weights are finalized.
func RequireConfirmedWeights(o *Order, target Status) error {
	if target.requiresWeights() && o.weightsPending() {
		return errorf(ErrWeightConfirmationRequired, "order %s: finalize weights before moving to %s", o.Number, target)
	}
	return nil
}

// RequirePaymentForCompletion blocks completing an order that has not been paid.
func RequirePaymentForCompletion(o *Order, target Status) error {
	if target == StatusCompleted && o.PaymentStatus != PaymentPaid {
		return errorf(ErrPaymentRequired, "order %s cannot be completed while payment is %s", o.Number, o.PaymentStatus)
	}
	return nil
}
