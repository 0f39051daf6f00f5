package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/monepiceriz/api/internal/events"
	"github.com/monepiceriz/api/internal/metrics"
	"github.com/monepiceriz/api/internal/money"
	"github.com/monepiceriz/api/internal/order"
	"github.com/monepiceriz/api/internal/payment"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	defaultCaptureTimeout = 10 * time.Second
	// maxSettleAttempts bounds how often a gateway outcome is re-applied after a version conflict.
	maxSettleAttempts = 3
)

var tracer = otel.Tracer("github.com/monepiceriz/api/internal/service")

// OrderRepository persists order aggregates. Satisfied by *store.PostgresRepository
// and *store.MemoryRepository.
type OrderRepository interface {
	Create(ctx context.Context, o *order.Order) error
	Load(ctx context.Context, id uuid.UUID) (*order.Order, error)
	Save(ctx context.Context, o *order.Order) error
	AppendNote(ctx context.Context, o *order.Order, note order.Note) error
	List(ctx context.Context, f order.ListFilter) ([]*order.Order, error)
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// OrderService runs every order lifecycle operation: load the aggregate,
// validate, mutate, save under the version check, then emit.
type OrderService struct {
	repo    OrderRepository
	gateway payment.Gateway
	emitter events.Emitter
	logger  *zap.Logger
	metrics *metrics.Metrics

	clock          Clock
	newID          func() uuid.UUID
	policy         order.WeightPolicy
	guards         []order.Guard
	captureTimeout time.Duration
	currency       string
	labels         language.Tag
	sanitizer      *bluemonday.Policy
}

type Option func(*OrderService)

func WithClock(c Clock) Option {
	return func(s *OrderService) { s.clock = c }
}

func WithIDGenerator(f func() uuid.UUID) Option {
	return func(s *OrderService) { s.newID = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *OrderService) { s.metrics = m }
}

func WithWeightPolicy(p order.WeightPolicy) Option {
	return func(s *OrderService) { s.policy = p }
}

func WithGuards(g ...order.Guard) Option {
	return func(s *OrderService) { s.guards = g }
}

// WithCaptureTimeout sets the gateway deadline used when a command carries none.
func WithCaptureTimeout(d time.Duration) Option {
	return func(s *OrderService) {
		if d > 0 {
			s.captureTimeout = d
		}
	}
}

func WithCurrency(currency string) Option {
	return func(s *OrderService) { s.currency = strings.ToUpper(currency) }
}

func WithLabelLocale(locale string) Option {
	return func(s *OrderService) { s.labels = order.LabelTag(locale) }
}

// NewOrderService creates an OrderService. emitter may be nil.
func NewOrderService(repo OrderRepository, gateway payment.Gateway, emitter events.Emitter, logger *zap.Logger, opts ...Option) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &OrderService{
		repo:           repo,
		gateway:        gateway,
		emitter:        emitter,
		logger:         logger,
		clock:          time.Now,
		newID:          uuid.New,
		policy:         order.DefaultWeightPolicy(),
		guards:         order.DefaultGuards,
		captureTimeout: defaultCaptureTimeout,
		currency:       "XOF",
		labels:         language.French,
		sanitizer:      bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateItemCommand is one checkout line. UnitPrice is in minor units, per
// kilogram for variable-weight items.
type CreateItemCommand struct {
	ProductSkuID         uuid.UUID
	ProductName          string
	SkuName              string
	UnitPrice            int64
	VariableWeight       bool
	Quantity             int64
	EstimatedWeightGrams int64
}

// CreateOrderCommand is the checkout snapshot handed over by the storefront.
type CreateOrderCommand struct {
	ActorID                uuid.UUID
	Customer               order.Customer
	DeliveryMethod         string
	PaymentFlow            string
	AuthorizationReference string
	Note                   string
	Items                  []CreateItemCommand
}

// CreateOrder prices the checkout snapshot and stores it as a pending order.
// Pre-authorized orders start with payment authorized.
func (s *OrderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (o *order.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer func() { endSpan(span, err) }()

	if len(cmd.Items) == 0 {
		return nil, order.Errorf(order.ErrInvalidInput, "items are required")
	}
	flow, err := order.ParsePaymentFlow(cmd.PaymentFlow)
	if err != nil {
		return nil, err
	}
	delivery, err := order.ParseDeliveryMethod(cmd.DeliveryMethod)
	if err != nil {
		return nil, err
	}
	customerName := s.sanitize(cmd.Customer.Name)
	if customerName == "" {
		return nil, order.Errorf(order.ErrInvalidInput, "customer name is required")
	}

	now := s.clock()
	o = &order.Order{
		ID:             s.newID(),
		Status:         order.StatusPending,
		PaymentStatus:  order.PaymentPending,
		PaymentFlow:    flow,
		DeliveryMethod: delivery,
		Customer: order.Customer{
			Name:  customerName,
			Phone: strings.TrimSpace(cmd.Customer.Phone),
			Email: strings.TrimSpace(cmd.Customer.Email),
		},
		Currency:  s.currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, ic := range cmd.Items {
		it, err := s.buildItem(i, ic)
		if err != nil {
			return nil, err
		}
		if it.VariableWeight {
			o.RequiresWeightConfirmation = true
		}
		o.Items = append(o.Items, it)
	}
	if err := o.RecalculateTotal(s.policy.Reference); err != nil {
		return nil, order.Errorf(order.ErrInvalidInput, "price order: %v", err)
	}
	if flow == order.FlowPreauthorized {
		if err := o.ApplyPayment(order.PaymentAuthorized, cmd.AuthorizationReference, now); err != nil {
			return nil, err
		}
	}
	o.AddNote(now, cmd.ActorID, s.sanitize(cmd.Note))

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	span.SetAttributes(orderAttributes(o)...)
	s.logger.Info("order created",
		zap.Stringer("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.Stringer("total", o.TotalAmount),
		zap.String("payment_flow", string(o.PaymentFlow)))
	s.emit(ctx, o, events.NameOrderCreated, events.OrderCreated{
		OrderID:  o.ID,
		Number:   o.Number,
		Total:    o.TotalAmount.Minor(),
		Currency: o.Currency,
	})
	return o, nil
}

func (s *OrderService) buildItem(i int, ic CreateItemCommand) (order.Item, error) {
	name := s.sanitize(ic.ProductName)
	if name == "" {
		return order.Item{}, order.Errorf(order.ErrInvalidInput, "items[%d]: product name is required", i)
	}
	if ic.UnitPrice < 0 {
		return order.Item{}, order.Errorf(order.ErrInvalidInput, "items[%d]: unit price must be >= 0", i)
	}
	it := order.Item{
		ID:             s.newID(),
		ProductSkuID:   ic.ProductSkuID,
		ProductName:    name,
		SkuName:        s.sanitize(ic.SkuName),
		UnitPrice:      money.New(ic.UnitPrice, s.currency),
		VariableWeight: ic.VariableWeight,
	}
	if ic.VariableWeight {
		w, err := money.Grams(ic.EstimatedWeightGrams)
		if err != nil || w == 0 {
			return order.Item{}, order.Errorf(order.ErrInvalidInput, "items[%d]: estimated weight must be > 0", i)
		}
		it.EstimatedWeight = w
		return it, nil
	}
	if ic.Quantity <= 0 {
		return order.Item{}, order.Errorf(order.ErrInvalidInput, "items[%d]: quantity must be > 0", i)
	}
	it.Quantity = ic.Quantity
	return it, nil
}

// Get returns the current snapshot of an order.
func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return s.repo.Load(ctx, id)
}

// List returns orders newest first. Limit defaults to DefaultListLimit and is capped at MaxListLimit.
func (s *OrderService) List(ctx context.Context, f order.ListFilter) ([]*order.Order, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// AvailableStatuses lists the statuses the order can move to now, labelled in
// locale (the configured default when empty).
func (s *OrderService) AvailableStatuses(ctx context.Context, id uuid.UUID, locale string) ([]order.StatusOption, error) {
	o, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	tag := s.labels
	if locale != "" {
		tag = order.LabelTag(locale)
	}
	return o.AvailableStatuses(s.guards, tag), nil
}

// TransitionCommand moves an order to Target on behalf of ActorID.
type TransitionCommand struct {
	OrderID uuid.UUID
	Target  order.Status
	ActorID uuid.UUID
	Note    string
}

// Transition applies a status change. Guards run before anything is modified.
func (s *OrderService) Transition(ctx context.Context, cmd TransitionCommand) (o *order.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.Transition", trace.WithAttributes(
		attribute.String("order.id", cmd.OrderID.String()),
		attribute.String("order.target_status", string(cmd.Target)),
	))
	defer func() { endSpan(span, err) }()

	if !cmd.Target.Valid() {
		return nil, order.Errorf(order.ErrInvalidInput, "unknown status %q", cmd.Target)
	}
	o, err = s.repo.Load(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	from := o.Status
	note := s.sanitize(cmd.Note)
	if err := o.ApplyTransition(cmd.Target, s.clock(), cmd.ActorID, note, s.guards); err != nil {
		return nil, err
	}
	if err := s.save(ctx, o); err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition(string(from), string(o.Status))
	s.logger.Info("order status changed",
		zap.Stringer("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.String("from", string(from)),
		zap.String("to", string(o.Status)),
		zap.Stringer("actor", cmd.ActorID))
	s.emit(ctx, o, events.NameStatusChanged, events.StatusChanged{
		OrderID: o.ID,
		From:    string(from),
		To:      string(o.Status),
		Actor:   cmd.ActorID,
	})
	if o.Status == order.StatusCancelled {
		s.emit(ctx, o, events.NameOrderCancelled, events.OrderCancelled{OrderID: o.ID, Reason: note})
	}
	return o, nil
}

// CancelCommand cancels an order with a free-text reason.
type CancelCommand struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Reason  string
}

// Cancel moves the order to cancelled. It does not touch the payment; refunds
// go through Refund.
func (s *OrderService) Cancel(ctx context.Context, cmd CancelCommand) (*order.Order, error) {
	return s.Transition(ctx, TransitionCommand{
		OrderID: cmd.OrderID,
		Target:  order.StatusCancelled,
		ActorID: cmd.ActorID,
		Note:    cmd.Reason,
	})
}

// AppendNote adds a free-text note to the order's log.
func (s *OrderService) AppendNote(ctx context.Context, orderID, actorID uuid.UUID, text string) (*order.Order, error) {
	text = s.sanitize(text)
	if text == "" {
		return nil, order.Errorf(order.ErrInvalidInput, "note text is required")
	}
	o, err := s.repo.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	note := order.Note{At: s.clock(), AuthorID: actorID, Text: text}
	if err := s.repo.AppendNote(ctx, o, note); err != nil {
		if errors.Is(err, order.ErrConcurrentModification) {
			s.metrics.ObserveConflict()
		}
		return nil, err
	}
	return o, nil
}

// save persists o and counts version conflicts.
func (s *OrderService) save(ctx context.Context, o *order.Order) error {
	err := s.repo.Save(ctx, o)
	if errors.Is(err, order.ErrConcurrentModification) {
		s.metrics.ObserveConflict()
		s.logger.Info("stale order save rejected",
			zap.Stringer("order_id", o.ID),
			zap.Int64("version", o.Version))
	}
	return err
}

// emit hands an event to the emitter after a committed save. Failures are
// logged and never returned.
func (s *OrderService) emit(ctx context.Context, o *order.Order, name string, payload any) {
	if s.emitter == nil {
		return
	}
	e := events.New(name, o.ID, o.Number, s.clock(), payload)
	if err := s.emitter.Emit(ctx, e); err != nil {
		s.logger.Warn("emit order event",
			zap.String("event", name),
			zap.Stringer("order_id", o.ID),
			zap.Error(err))
	}
}

// sanitize strips markup from free text entered by staff or customers.
func (s *OrderService) sanitize(text string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(strings.TrimSpace(text)))
}

func orderAttributes(o *order.Order) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("order.id", o.ID.String()),
		attribute.String("order.number", o.Number),
		attribute.String("order.status", string(o.Status)),
		attribute.String("order.payment_status", string(o.PaymentStatus)),
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, order.KindOf(err))
	}
	span.End()
}
