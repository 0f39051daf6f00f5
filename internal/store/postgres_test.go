package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/monepiceriz/api/internal/database"
	"github.com/monepiceriz/api/internal/money"
	"github.com/monepiceriz/api/internal/order"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	committed bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.committed = m.commitErr == nil
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx      pgx.Tx
	err     error
	options []pgx.TxOptions
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

func (m *mockTxBeginner) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	m.options = append(m.options, opts)
	return m.tx, m.err
}

// mockOrderStore implements OrderStore. Unset functions fail the call.
type mockOrderStore struct {
	nextOrderNumberFn  func(ctx context.Context) (int64, error)
	createOrderFn      func(ctx context.Context, arg database.CreateOrderParams) error
	getOrderFn         func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listOrdersFn       func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	updateOrderFn      func(ctx context.Context, arg database.UpdateOrderParams) (int64, error)
	createOrderItemFn  func(ctx context.Context, arg database.CreateOrderItemParams) error
	listItemsFn        func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	updateItemWeightFn func(ctx context.Context, arg database.UpdateOrderItemWeightParams) error
	createNoteFn       func(ctx context.Context, arg database.CreateOrderNoteParams) error
	listNotesFn        func(ctx context.Context, orderID uuid.UUID) ([]database.OrderNote, error)
	createTransitionFn func(ctx context.Context, arg database.CreateOrderStatusTransitionParams) error
	listTransitionsFn  func(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusTransition, error)
}

var errUnexpectedCall = errors.New("unexpected store call")

func (m *mockOrderStore) NextOrderNumber(ctx context.Context) (int64, error) {
	if m.nextOrderNumberFn == nil {
		return 0, errUnexpectedCall
	}
	return m.nextOrderNumberFn(ctx)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) error {
	if m.createOrderFn == nil {
		return errUnexpectedCall
	}
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderFn == nil {
		return database.Order{}, errUnexpectedCall
	}
	return m.getOrderFn(ctx, id)
}
func (m *mockOrderStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn == nil {
		return nil, errUnexpectedCall
	}
	return m.listOrdersFn(ctx, arg)
}
func (m *mockOrderStore) UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (int64, error) {
	if m.updateOrderFn == nil {
		return 0, errUnexpectedCall
	}
	return m.updateOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) error {
	if m.createOrderItemFn == nil {
		return errUnexpectedCall
	}
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listItemsFn == nil {
		return nil, nil
	}
	return m.listItemsFn(ctx, orderID)
}
func (m *mockOrderStore) UpdateOrderItemWeight(ctx context.Context, arg database.UpdateOrderItemWeightParams) error {
	if m.updateItemWeightFn == nil {
		return errUnexpectedCall
	}
	return m.updateItemWeightFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderNote(ctx context.Context, arg database.CreateOrderNoteParams) error {
	if m.createNoteFn == nil {
		return errUnexpectedCall
	}
	return m.createNoteFn(ctx, arg)
}
func (m *mockOrderStore) ListOrderNotesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderNote, error) {
	if m.listNotesFn == nil {
		return nil, nil
	}
	return m.listNotesFn(ctx, orderID)
}
func (m *mockOrderStore) CreateOrderStatusTransition(ctx context.Context, arg database.CreateOrderStatusTransitionParams) error {
	if m.createTransitionFn == nil {
		return errUnexpectedCall
	}
	return m.createTransitionFn(ctx, arg)
}
func (m *mockOrderStore) ListOrderStatusTransitionsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusTransition, error) {
	if m.listTransitionsFn == nil {
		return nil, nil
	}
	return m.listTransitionsFn(ctx, orderID)
}

// --- Test helpers ---

var storeNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func newTestRepo(store *mockOrderStore) (*PostgresRepository, *mockTx, *mockTxBeginner) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewPostgresRepository(pool, newStore), tx, pool
}

// sampleOrder has one fixed line (2 x 750) and one tomato line at 2000/kg for 500 g.
func sampleOrder() *order.Order {
	o := &order.Order{
		ID:             uuid.New(),
		Status:         order.StatusPending,
		PaymentStatus:  order.PaymentPending,
		PaymentFlow:    order.FlowPreauthorized,
		DeliveryMethod: order.DeliveryPickup,
		Customer:       order.Customer{Name: "Awa Diop", Phone: "+221770000000"},
		Currency:       "XOF",
		Items: []order.Item{
			{ID: uuid.New(), ProductSkuID: uuid.New(), ProductName: "Riz", UnitPrice: money.New(750, "XOF"), Quantity: 2},
			{ID: uuid.New(), ProductSkuID: uuid.New(), ProductName: "Tomates", UnitPrice: money.New(2000, "XOF"), VariableWeight: true, EstimatedWeight: 500},
		},
		RequiresWeightConfirmation: true,
		CreatedAt:                  storeNow,
		UpdatedAt:                  storeNow,
	}
	if err := o.RecalculateTotal(money.Kilogram); err != nil {
		panic(err)
	}
	return o
}

// =====================
// Create
// =====================

func TestCreate_AssignsNumberAndWritesRows(t *testing.T) {
	var captured database.CreateOrderParams
	var items []database.CreateOrderItemParams
	var notes []database.CreateOrderNoteParams

	store := &mockOrderStore{
		nextOrderNumberFn: func(ctx context.Context) (int64, error) { return 42, nil },
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) error {
			captured = arg
			return nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) error {
			items = append(items, arg)
			return nil
		},
		createNoteFn: func(ctx context.Context, arg database.CreateOrderNoteParams) error {
			notes = append(notes, arg)
			return nil
		},
	}
	repo, tx, _ := newTestRepo(store)

	o := sampleOrder()
	o.AddNote(storeNow, uuid.New(), "sonner deux fois")
	if err := repo.Create(context.Background(), o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if o.Number != "ME-000042" {
		t.Errorf("order number: got %q, want ME-000042", o.Number)
	}
	if captured.OrderNumber != "ME-000042" {
		t.Errorf("stored order number: got %q", captured.OrderNumber)
	}
	if o.Version != 1 || captured.Version != 1 {
		t.Errorf("version: got %d (stored %d), want 1", o.Version, captured.Version)
	}
	// 1500 + 2000 * 500 / 1000 = 2500
	if !numericEquals(captured.TotalAmount, "2500") {
		t.Errorf("total: got %v, want 2500", numericToDecimal(captured.TotalAmount))
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[1].Position != 1 || !items[1].IsVariableWeight || items[1].OrderedWeightOrQuantity != 500 {
		t.Errorf("variable item params: %+v", items[1])
	}
	if items[1].ActualWeight.Valid {
		t.Error("actual weight should be NULL before finalization")
	}
	if len(notes) != 1 || notes[0].Body != "sonner deux fois" {
		t.Errorf("notes: got %+v", notes)
	}
	if !tx.committed {
		t.Error("expected commit")
	}
	if len(o.NewNotes()) != 0 {
		t.Error("notes should be marked persisted after create")
	}
}

func TestCreate_InvalidOrderNotWritten(t *testing.T) {
	store := &mockOrderStore{
		nextOrderNumberFn: func(ctx context.Context) (int64, error) { return 1, nil },
	}
	repo, tx, _ := newTestRepo(store)

	o := sampleOrder()
	o.TotalAmount = money.New(1, "XOF")
	err := repo.Create(context.Background(), o)
	if !errors.Is(err, order.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got: %v", err)
	}
	if tx.committed {
		t.Error("invalid order must not be committed")
	}
}

func TestCreate_BeginError(t *testing.T) {
	repo, _, pool := newTestRepo(&mockOrderStore{})
	pool.err = errors.New("connection refused")

	if err := repo.Create(context.Background(), sampleOrder()); err == nil {
		t.Fatal("expected error")
	}
}

// =====================
// Save
// =====================

func TestSave_StaleVersionIsConcurrentModification(t *testing.T) {
	itemWrites := 0
	store := &mockOrderStore{
		updateOrderFn: func(ctx context.Context, arg database.UpdateOrderParams) (int64, error) {
			return 0, pgx.ErrNoRows
		},
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return database.Order{ID: id, Version: 4}, nil
		},
		updateItemWeightFn: func(ctx context.Context, arg database.UpdateOrderItemWeightParams) error {
			itemWrites++
			return nil
		},
	}
	repo, tx, _ := newTestRepo(store)

	o := sampleOrder()
	o.Number = "ME-000007"
	o.Version = 3
	err := repo.Save(context.Background(), o)
	if !errors.Is(err, order.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got: %v", err)
	}
	if o.Version != 3 {
		t.Errorf("version should be unchanged, got %d", o.Version)
	}
	if itemWrites != 0 {
		t.Errorf("no item should be written, got %d writes", itemWrites)
	}
	if tx.committed {
		t.Error("stale save must not commit")
	}
}

func TestSave_UnknownOrderIsNotFound(t *testing.T) {
	store := &mockOrderStore{
		updateOrderFn: func(ctx context.Context, arg database.UpdateOrderParams) (int64, error) {
			return 0, pgx.ErrNoRows
		},
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
	}
	repo, tx, _ := newTestRepo(store)

	o := sampleOrder()
	o.Version = 1
	err := repo.Save(context.Background(), o)
	if !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if order.IsRetryable(err) {
		t.Error("a missing order must not be reported as retryable")
	}
	if tx.committed {
		t.Error("save of a missing order must not commit")
	}
}

func TestSave_WritesWeightsAndOnlyNewHistory(t *testing.T) {
	var update database.UpdateOrderParams
	var weights []database.UpdateOrderItemWeightParams
	var transitions []database.CreateOrderStatusTransitionParams
	var notes []database.CreateOrderNoteParams

	store := &mockOrderStore{
		updateOrderFn: func(ctx context.Context, arg database.UpdateOrderParams) (int64, error) {
			update = arg
			return arg.Version + 1, nil
		},
		updateItemWeightFn: func(ctx context.Context, arg database.UpdateOrderItemWeightParams) error {
			weights = append(weights, arg)
			return nil
		},
		createNoteFn: func(ctx context.Context, arg database.CreateOrderNoteParams) error {
			notes = append(notes, arg)
			return nil
		},
		createTransitionFn: func(ctx context.Context, arg database.CreateOrderStatusTransitionParams) error {
			transitions = append(transitions, arg)
			return nil
		},
	}
	repo, _, _ := newTestRepo(store)

	o := sampleOrder()
	o.Number = "ME-000008"
	o.Version = 1
	o.AddNote(storeNow, uuid.New(), "already stored")
	o.MarkPersisted()
	o.RecordRefundDecline(storeNow)

	if _, err := o.FinalizeWeights(map[uuid.UUID]money.Weight{o.Items[1].ID: 620}, order.DefaultWeightPolicy(), storeNow, uuid.New()); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := o.ApplyTransition(order.StatusConfirmed, storeNow, uuid.New(), "", order.DefaultGuards); err != nil {
		t.Fatalf("transition: %v", err)
	}

	if err := repo.Save(context.Background(), o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if update.Version != 1 {
		t.Errorf("expected version guard 1, got %d", update.Version)
	}
	if update.RefundAttempts != 1 {
		t.Errorf("refund attempts: got %d, want 1", update.RefundAttempts)
	}
	if o.Version != 2 {
		t.Errorf("expected version 2 after save, got %d", o.Version)
	}
	// 1500 + 2000 * 620 / 1000 = 2740
	if !numericEquals(update.TotalAmount, "2740") {
		t.Errorf("total: got %v, want 2740", numericToDecimal(update.TotalAmount))
	}
	if !update.WeightConfirmedAt.Valid {
		t.Error("weight_confirmed_at should be set")
	}
	if len(weights) != 2 {
		t.Fatalf("expected 2 item writes, got %d", len(weights))
	}
	if !weights[1].ActualWeight.Valid || weights[1].ActualWeight.Int64 != 620 {
		t.Errorf("actual weight: got %+v", weights[1].ActualWeight)
	}
	if weights[0].ActualWeight.Valid {
		t.Error("fixed item must keep a NULL actual weight")
	}
	if len(notes) != 1 {
		t.Errorf("expected only the finalization note, got %d notes", len(notes))
	}
	if len(transitions) != 1 || transitions[0].ToStatus != "confirmed" {
		t.Errorf("transitions: got %+v", transitions)
	}
}

// =====================
// Load
// =====================

func TestLoad_NotFound(t *testing.T) {
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return database.Order{}, pgx.ErrNoRows
		},
	}
	repo, _, _ := newTestRepo(store)

	_, err := repo.Load(context.Background(), uuid.New())
	if !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestLoad_HydratesAggregate(t *testing.T) {
	orderID := uuid.New()
	itemID := uuid.New()
	authRef := "pi_3Nabc"

	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return database.Order{
				ID:                         orderID,
				OrderNumber:                "ME-000009",
				Status:                     "processing",
				PaymentStatus:              "authorized",
				PaymentFlow:                "preauthorized",
				DeliveryMethod:             "delivery",
				Currency:                   "XOF",
				TotalAmount:                makeNumeric("1240.00"),
				RequiresWeightConfirmation: true,
				WeightConfirmedAt:          pgtype.Timestamptz{Time: storeNow, Valid: true},
				AuthorizationReference:     pgtype.Text{String: authRef, Valid: true},
				Version:                    4,
				CreatedAt:                  storeNow,
				UpdatedAt:                  storeNow,
				CaptureAttempts:            2,
			}, nil
		},
		listItemsFn: func(ctx context.Context, id uuid.UUID) ([]database.OrderItem, error) {
			return []database.OrderItem{{
				ID:                      itemID,
				OrderID:                 orderID,
				ProductName:             "Tomates",
				UnitPrice:               makeNumeric("2000.00"),
				IsVariableWeight:        true,
				OrderedWeightOrQuantity: 500,
				ActualWeight:            pgtype.Int8{Int64: 620, Valid: true},
				LineTotal:               makeNumeric("1240.00"),
			}}, nil
		},
		listTransitionsFn: func(ctx context.Context, id uuid.UUID) ([]database.OrderStatusTransition, error) {
			return []database.OrderStatusTransition{{OrderID: orderID, FromStatus: "confirmed", ToStatus: "processing", CreatedAt: storeNow}}, nil
		},
	}
	repo, _, pool := newTestRepo(store)

	o, err := repo.Load(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.options) != 1 || pool.options[0].IsoLevel != pgx.RepeatableRead {
		t.Errorf("expected a repeatable-read snapshot, got %+v", pool.options)
	}
	if o.TotalAmount.Minor() != 1240 {
		t.Errorf("total: got %s", o.TotalAmount)
	}
	if o.Version != 4 {
		t.Errorf("version: got %d", o.Version)
	}
	if o.CaptureAttempts != 2 || o.RefundAttempts != 0 {
		t.Errorf("declined attempts: got capture %d refund %d", o.CaptureAttempts, o.RefundAttempts)
	}
	if o.AuthorizationReference == nil || *o.AuthorizationReference != authRef {
		t.Errorf("authorization reference: got %v", o.AuthorizationReference)
	}
	if o.Items[0].EstimatedWeight != 500 || o.Items[0].ActualWeight == nil || *o.Items[0].ActualWeight != 620 {
		t.Errorf("weights: got %+v", o.Items[0])
	}
	if err := o.Validate(); err != nil {
		t.Errorf("loaded order should be valid: %v", err)
	}
	if len(o.NewTransitions()) != 0 {
		t.Error("loaded transitions must not be reported as new")
	}
}

func TestList_PassesStatusFilter(t *testing.T) {
	var captured database.ListOrdersParams
	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			captured = arg
			return nil, nil
		},
	}
	repo, _, _ := newTestRepo(store)

	status := order.StatusReady
	out, err := repo.List(context.Background(), order.ListFilter{Status: &status, Limit: 20, Offset: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty list, got %d", len(out))
	}
	if !captured.Status.Valid || captured.Status.String != "ready" {
		t.Errorf("status filter: got %+v", captured.Status)
	}
	if captured.Limit != 20 || captured.Offset != 40 {
		t.Errorf("paging: got limit=%d offset=%d", captured.Limit, captured.Offset)
	}
}

func TestFormatOrderNumber(t *testing.T) {
	if got := FormatOrderNumber(7); got != "ME-000007" {
		t.Errorf("got %q", got)
	}
	if got := FormatOrderNumber(1234567); got != "ME-1234567" {
		t.Errorf("got %q", got)
	}
}
