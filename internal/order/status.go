package order

// Status is the fulfilment state of an order. Values match the CHECK constraint on orders.status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusDelivering Status = "delivering"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusReady,
	StatusDelivering,
	StatusCompleted,
	StatusCancelled,
}

// successors is the legal-successor table. Anything not listed is illegal.
var successors = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusReady, StatusCancelled},
	StatusReady:      {StatusDelivering, StatusCancelled},
	StatusDelivering: {StatusCompleted, StatusCancelled},
}

// ParseStatus converts s into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", errorf(ErrInvalidInput, "unknown status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

// Terminal reports whether no transition out of s exists.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Successors returns a copy of the statuses s may move to.
func (s Status) Successors() []Status {
	next := successors[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether target is a legal successor of s.
func (s Status) CanTransitionTo(target Status) bool {
	if s == target {
		return false
	}
	for _, n := range successors[s] {
		if n == target {
			return true
		}
	}
	return false
}

// requiresWeights reports whether entering s needs finalized weights.
func (s Status) requiresWeights() bool {
	switch s {
	case StatusProcessing, StatusReady, StatusDelivering, StatusCompleted:
		return true
	}
	return false
}

// PaymentStatus is the payment lifecycle, tracked independently of Status.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentPaid       PaymentStatus = "paid"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

var PaymentStatuses = []PaymentStatus{
	PaymentPending,
	PaymentAuthorized,
	PaymentPaid,
	PaymentFailed,
	PaymentRefunded,
}

var paymentSuccessors = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentAuthorized, PaymentPaid, PaymentFailed},
	PaymentAuthorized: {PaymentPaid, PaymentFailed, PaymentRefunded},
	PaymentPaid:       {PaymentRefunded},
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	ps := PaymentStatus(s)
	for _, v := range PaymentStatuses {
		if v == ps {
			return ps, nil
		}
	}
	return "", errorf(ErrInvalidInput, "unknown payment status %q", s)
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) Terminal() bool {
	return p == PaymentFailed || p == PaymentRefunded
}

func (p PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, n := range paymentSuccessors[p] {
		if n == target {
			return true
		}
	}
	return false
}

// PaymentFlow says how the storefront collected payment at checkout.
type PaymentFlow string

const (
	// FlowDirect orders are charged in one step (cash on delivery, mobile money).
	FlowDirect PaymentFlow = "direct"
	// FlowPreauthorized orders hold an authorization that is captured after weighing.
	FlowPreauthorized PaymentFlow = "preauthorized"
)

func ParsePaymentFlow(s string) (PaymentFlow, error) {
	switch f := PaymentFlow(s); f {
	case FlowDirect, FlowPreauthorized:
		return f, nil
	}
	return "", errorf(ErrInvalidInput, "unknown payment flow %q", s)
}

// DeliveryMethod is how the order reaches the customer.
type DeliveryMethod string

const (
	DeliveryPickup   DeliveryMethod = "pickup"
	DeliveryDelivery DeliveryMethod = "delivery"
)

func ParseDeliveryMethod(s string) (DeliveryMethod, error) {
	switch d := DeliveryMethod(s); d {
	case DeliveryPickup, DeliveryDelivery:
		return d, nil
	}
	return "", errorf(ErrInvalidInput, "unknown delivery method %q", s)
}

func illegalTransition(from, to Status) error {
	return errorf(ErrIllegalTransition, "cannot move from %s to %s", from, to)
}

func illegalPayment(from, to PaymentStatus) error {
	return errorf(ErrIllegalPaymentTransition, "cannot move payment from %s to %s", from, to)
}
