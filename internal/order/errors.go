package order

import (
	"errors"
	"fmt"
)

// Errors returned by the order engine. Callers match them with errors.Is;
// the wrapped message names the specific order, item or status involved.
var (
	ErrIllegalTransition          = errors.New("illegal status transition")
	ErrIllegalPaymentTransition   = errors.New("illegal payment transition")
	ErrWeightConfirmationRequired = errors.New("weight confirmation required")
	ErrPaymentRequired            = errors.New("payment required")
	ErrNotAuthorized              = errors.New("payment is not authorized")
	ErrCaptureFailed              = errors.New("payment capture failed")
	ErrRefundFailed               = errors.New("payment refund failed")
	ErrNotApplicable              = errors.New("order does not require weight confirmation")
	ErrAlreadyFinalized           = errors.New("weights already finalized")
	ErrUnknownItem                = errors.New("unknown variable-weight item")
	ErrWeightOutOfRange           = errors.New("weight out of range")
	ErrIncompleteWeights          = errors.New("incomplete weights")
	ErrNotFound                   = errors.New("order not found")
	ErrConcurrentModification     = errors.New("order was modified concurrently")
	ErrInvalidInput               = errors.New("invalid input")
	ErrInvariantViolation         = errors.New("order invariant violated")
)

// Error carries an actionable message while still matching its sentinel.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

func errorf(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Errorf builds an engine error of the given kind. kind must be one of the Err* sentinels.
func Errorf(kind error, format string, args ...any) error {
	return errorf(kind, format, args...)
}

var kinds = []struct {
	err  error
	name string
}{
	{ErrIllegalTransition, "IllegalTransition"},
	{ErrIllegalPaymentTransition, "IllegalPaymentTransition"},
	{ErrWeightConfirmationRequired, "WeightConfirmationRequired"},
	{ErrPaymentRequired, "PaymentRequired"},
	{ErrNotAuthorized, "NotAuthorized"},
	{ErrCaptureFailed, "CaptureError"},
	{ErrRefundFailed, "RefundError"},
	{ErrNotApplicable, "NotApplicable"},
	{ErrAlreadyFinalized, "AlreadyFinalized"},
	{ErrUnknownItem, "UnknownItem"},
	{ErrWeightOutOfRange, "WeightOutOfRange"},
	{ErrIncompleteWeights, "IncompleteWeights"},
	{ErrNotFound, "NotFound"},
	{ErrConcurrentModification, "ConcurrentModification"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrInvariantViolation, "InvariantViolation"},
}

// KindOf returns the machine-readable kind of err, or "Internal" when err is
// not an engine error.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// IsRetryable reports whether the caller may retry the same operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCaptureFailed) ||
		errors.Is(err, ErrRefundFailed) ||
		errors.Is(err, ErrConcurrentModification)
}
