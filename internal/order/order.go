// Package order models the order aggregate with its two cross-validated state
// machines (fulfilment status and payment status) and the weight finalization rules.
package order

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/monepiceriz/api/internal/money"
)

// Customer is the contact snapshot taken at checkout.
type Customer struct {
	Name  string
	Phone string
	Email string
}

// Note is one entry of the order's append-only note log.
type Note struct {
	At       time.Time
	AuthorID uuid.UUID
	Text     string
}

// StatusTransition records one applied status change.
type StatusTransition struct {
	From    Status
	To      Status
	At      time.Time
	ActorID uuid.UUID
	Note    string
}

// Item is an order line. UnitPrice is per unit for fixed items and per
// reference weight (1 kg) for variable-weight items.
type Item struct {
	ID              uuid.UUID
	ProductSkuID    uuid.UUID
	ProductName     string
	SkuName         string
	UnitPrice       money.Money
	VariableWeight  bool
	Quantity        int64
	EstimatedWeight money.Weight
	ActualWeight    *money.Weight
	LineTotal       money.Money
}

// OrderedQuantityOrWeight is the count for fixed items and the estimated grams for variable ones.
func (it Item) OrderedQuantityOrWeight() int64 {
	if it.VariableWeight {
		return it.EstimatedWeight.Grams()
	}
	return it.Quantity
}

// BilledWeight is the actual weight when known, else the estimate.
func (it Item) BilledWeight() money.Weight {
	if it.ActualWeight != nil {
		return *it.ActualWeight
	}
	return it.EstimatedWeight
}

// ComputeLineTotal prices the item from its unit price and quantity or billed weight.
func (it Item) ComputeLineTotal(reference money.Weight) (money.Money, error) {
	if it.VariableWeight {
		return it.BilledWeight().PriceFor(it.UnitPrice, reference, money.RoundHalfUp)
	}
	return it.UnitPrice.MulInt(it.Quantity)
}

// Order is the aggregate root. Status and PaymentStatus are only changed
// through the methods in this package.
type Order struct {
	ID             uuid.UUID
	Number         string
	Status         Status
	PaymentStatus  PaymentStatus
	PaymentFlow    PaymentFlow
	DeliveryMethod DeliveryMethod
	Customer       Customer
	Currency       string
	TotalAmount    money.Money

	RequiresWeightConfirmation bool
	WeightConfirmedAt          *time.Time

	PaymentReference       *string
	AuthorizationReference *string

	// Declined gateway attempts. Each decline moves the next attempt to a new
	// idempotency key; unknown outcomes keep the current one.
	CaptureAttempts int
	RefundAttempts  int

	Items       []Item
	Notes       []Note
	Transitions []StatusTransition

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	// counts of notes and transitions already stored; anything after is new.
	savedNotes       int
	savedTransitions int
}

// MarkPersisted records that every note and transition currently held has been stored.
func (o *Order) MarkPersisted() {
	o.savedNotes = len(o.Notes)
	o.savedTransitions = len(o.Transitions)
}

// NewNotes returns the notes appended since the last MarkPersisted.
func (o *Order) NewNotes() []Note {
	if o.savedNotes >= len(o.Notes) {
		return nil
	}
	return o.Notes[o.savedNotes:]
}

// NewTransitions returns the transitions recorded since the last MarkPersisted.
func (o *Order) NewTransitions() []StatusTransition {
	if o.savedTransitions >= len(o.Transitions) {
		return nil
	}
	return o.Transitions[o.savedTransitions:]
}

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]Item, len(o.Items))
	for i, it := range o.Items {
		if it.ActualWeight != nil {
			w := *it.ActualWeight
			it.ActualWeight = &w
		}
		c.Items[i] = it
	}
	c.Notes = append([]Note(nil), o.Notes...)
	c.Transitions = append([]StatusTransition(nil), o.Transitions...)
	c.WeightConfirmedAt = copyTime(o.WeightConfirmedAt)
	c.PaymentReference = copyString(o.PaymentReference)
	c.AuthorizationReference = copyString(o.AuthorizationReference)
	return &c
}

// AddNote appends a note. Blank text is ignored.
func (o *Order) AddNote(at time.Time, author uuid.UUID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	o.Notes = append(o.Notes, Note{At: at, AuthorID: author, Text: text})
	o.UpdatedAt = at
}

// CanTransitionTo reports whether target is a legal successor of the current status.
// Guards are not consulted; see CheckTransition.
func (o *Order) CanTransitionTo(target Status) bool {
	return o.Status.CanTransitionTo(target)
}

// CheckTransition validates moving to target: legality first, then each guard in order.
func (o *Order) CheckTransition(target Status, guards []Guard) error {
	if !o.Status.CanTransitionTo(target) {
		return illegalTransition(o.Status, target)
	}
	for _, g := range guards {
		if err := g(o, target); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTransition moves the order to target, appending note and an audit entry.
// On error the order is unchanged.
func (o *Order) ApplyTransition(target Status, at time.Time, actor uuid.UUID, note string, guards []Guard) error {
	if err := o.CheckTransition(target, guards); err != nil {
		return err
	}
	o.Transitions = append(o.Transitions, StatusTransition{
		From:    o.Status,
		To:      target,
		At:      at,
		ActorID: actor,
		Note:    strings.TrimSpace(note),
	})
	o.Status = target
	o.AddNote(at, actor, note)
	o.UpdatedAt = at
	return nil
}

// CheckPayment validates a payment status change against the payment table and the order's flow.
func (o *Order) CheckPayment(target PaymentStatus) error {
	if !o.PaymentStatus.CanTransitionTo(target) {
		return illegalPayment(o.PaymentStatus, target)
	}
	if target == PaymentAuthorized && o.PaymentFlow != FlowPreauthorized {
		return errorf(ErrIllegalPaymentTransition, "order %s uses %s payment and cannot be pre-authorized", o.Number, o.PaymentFlow)
	}
	if target == PaymentPaid && o.PaymentStatus == PaymentPending && o.PaymentFlow != FlowDirect {
		return errorf(ErrIllegalPaymentTransition, "order %s is pre-authorized and can only be paid by capture", o.Number)
	}
	return nil
}

// ApplyPayment moves the payment status to target and records reference when set.
// Captures go through RecordCapture instead.
func (o *Order) ApplyPayment(target PaymentStatus, reference string, at time.Time) error {
	if err := o.CheckPayment(target); err != nil {
		return err
	}
	ref := strings.TrimSpace(reference)
	switch target {
	case PaymentAuthorized:
		if ref == "" {
			return errorf(ErrInvalidInput, "authorization reference is required")
		}
		o.AuthorizationReference = &ref
	case PaymentPaid:
		if ref != "" {
			o.PaymentReference = &ref
		}
	}
	o.PaymentStatus = target
	o.UpdatedAt = at
	return nil
}

// CheckCapture reports whether the order may be captured right now.
func (o *Order) CheckCapture() error {
	if o.PaymentStatus != PaymentAuthorized {
		return errorf(ErrNotAuthorized, "order %s payment is %s, not authorized", o.Number, o.PaymentStatus)
	}
	if o.Status == StatusCancelled {
		return errorf(ErrIllegalTransition, "order %s is cancelled and cannot be captured", o.Number)
	}
	if o.weightsPending() {
		return errorf(ErrWeightConfirmationRequired, "order %s: finalize weights before capturing payment", o.Number)
	}
	return nil
}

// RecordCapture marks an authorized payment as paid with the gateway's transaction id.
func (o *Order) RecordCapture(transactionID string, at time.Time) error {
	if o.PaymentStatus != PaymentAuthorized {
		return errorf(ErrNotAuthorized, "order %s payment is %s, not authorized", o.Number, o.PaymentStatus)
	}
	ref := transactionID
	o.PaymentStatus = PaymentPaid
	o.PaymentReference = &ref
	o.UpdatedAt = at
	return nil
}

// RecordCaptureDecline counts a definitive capture decline so the next attempt
// is sent as a new provider request.
func (o *Order) RecordCaptureDecline(at time.Time) {
	o.CaptureAttempts++
	o.UpdatedAt = at
}

// RecordRefundDecline counts a definitive refund decline.
func (o *Order) RecordRefundDecline(at time.Time) {
	o.RefundAttempts++
	o.UpdatedAt = at
}

// RecalculateTotal recomputes every line total and the order total.
func (o *Order) RecalculateTotal(reference money.Weight) error {
	total := money.Zero(o.Currency)
	for i := range o.Items {
		lt, err := o.Items[i].ComputeLineTotal(reference)
		if err != nil {
			return err
		}
		o.Items[i].LineTotal = lt
		if total, err = total.Add(lt); err != nil {
			return err
		}
	}
	o.TotalAmount = total
	return nil
}

// Validate asserts the aggregate's data invariants. It is the last check before a save.
func (o *Order) Validate() error {
	if !o.Status.Valid() {
		return errorf(ErrInvariantViolation, "order %s has unknown status %q", o.Number, o.Status)
	}
	if _, err := ParsePaymentStatus(string(o.PaymentStatus)); err != nil {
		return errorf(ErrInvariantViolation, "order %s has unknown payment status %q", o.Number, o.PaymentStatus)
	}
	if o.PaymentStatus == PaymentAuthorized && o.PaymentFlow != FlowPreauthorized {
		return errorf(ErrInvariantViolation, "order %s is authorized without a pre-authorization flow", o.Number)
	}

	sum := money.Zero(o.Currency)
	variable := false
	for _, it := range o.Items {
		var err error
		if sum, err = sum.Add(it.LineTotal); err != nil {
			return errorf(ErrInvariantViolation, "order %s: %v", o.Number, err)
		}
		if it.VariableWeight {
			variable = true
		}
		hasActual := it.ActualWeight != nil
		wantActual := it.VariableWeight && o.WeightConfirmedAt != nil
		if hasActual != wantActual {
			return errorf(ErrInvariantViolation, "order %s item %s: actual weight set=%t, expected %t", o.Number, it.ID, hasActual, wantActual)
		}
	}
	if !sum.Equal(o.TotalAmount) {
		return errorf(ErrInvariantViolation, "order %s total %s does not match line totals %s", o.Number, o.TotalAmount, sum)
	}
	if variable != o.RequiresWeightConfirmation {
		return errorf(ErrInvariantViolation, "order %s requires weight confirmation=%t with variable-weight items=%t", o.Number, o.RequiresWeightConfirmation, variable)
	}
	if o.WeightConfirmedAt != nil && !o.RequiresWeightConfirmation {
		return errorf(ErrInvariantViolation, "order %s has weights confirmed without variable-weight items", o.Number)
	}
	return nil
}

func (o *Order) weightsPending() bool {
	return o.RequiresWeightConfirmation && o.WeightConfirmedAt == nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
