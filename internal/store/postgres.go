// Package store persists order aggregates. PostgresRepository is the production
// implementation; MemoryRepository backs tests and STORE_DRIVER=memory.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/monepiceriz/api/internal/database"
	"github.com/monepiceriz/api/internal/order"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// OrderStore defines the DB methods the repository needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	NextOrderNumber(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) error
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (int64, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) error
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderItemWeight(ctx context.Context, arg database.UpdateOrderItemWeightParams) error
	CreateOrderNote(ctx context.Context, arg database.CreateOrderNoteParams) error
	ListOrderNotesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderNote, error)
	CreateOrderStatusTransition(ctx context.Context, arg database.CreateOrderStatusTransitionParams) error
	ListOrderStatusTransitionsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderStatusTransition, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// PostgresRepository stores orders in PostgreSQL with an optimistic version check.
type PostgresRepository struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(pool TxBeginner, newStore NewOrderStore) *PostgresRepository {
	return &PostgresRepository{pool: pool, newStore: newStore}
}

// Create inserts a new order with its items, notes and transitions. An empty
// Number is filled from order_number_seq.
func (r *PostgresRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := r.newStore(tx)

	if o.Number == "" {
		n, err := store.NextOrderNumber(ctx)
		if err != nil {
			return fmt.Errorf("next order number: %w", err)
		}
		o.Number = FormatOrderNumber(n)
	}
	if err := o.Validate(); err != nil {
		return err
	}

	o.Version = 1
	if err := store.CreateOrder(ctx, createOrderParams(o)); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	for i, it := range o.Items {
		if err := store.CreateOrderItem(ctx, createItemParams(o.ID, i, it)); err != nil {
			return fmt.Errorf("create order item[%d]: %w", i, err)
		}
	}
	if err := insertHistory(ctx, store, o); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	o.MarkPersisted()
	return nil
}

// Load reads the order and all of its rows from one repeatable-read snapshot.
func (r *PostgresRepository) Load(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := r.newStore(tx)

	row, err := store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.Errorf(order.ErrNotFound, "order %s not found", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := store.ListOrderItemsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	notes, err := store.ListOrderNotesByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order notes: %w", err)
	}
	transitions, err := store.ListOrderStatusTransitionsByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list order transitions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return toDomain(row, items, notes, transitions)
}

// Save writes the order row (guarded by version), every item and any new notes
// and transitions in one transaction. A stale version fails with
// order.ErrConcurrentModification, an unknown order with order.ErrNotFound;
// neither writes anything.
func (r *PostgresRepository) Save(ctx context.Context, o *order.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := r.newStore(tx)

	version, err := store.UpdateOrder(ctx, updateOrderParams(o))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return staleOrMissing(ctx, store, o)
		}
		return fmt.Errorf("update order: %w", err)
	}
	for i, it := range o.Items {
		if err := store.UpdateOrderItemWeight(ctx, database.UpdateOrderItemWeightParams{
			ID:           it.ID,
			ActualWeight: weightToInt8(it.ActualWeight),
			LineTotal:    decimalToNumeric(it.LineTotal.Decimal()),
		}); err != nil {
			return fmt.Errorf("update order item[%d]: %w", i, err)
		}
	}
	if err := insertHistory(ctx, store, o); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	o.Version = version
	o.MarkPersisted()
	return nil
}

// AppendNote adds note to o and persists it under the same version check as Save.
func (r *PostgresRepository) AppendNote(ctx context.Context, o *order.Order, note order.Note) error {
	o.Notes = append(o.Notes, note)
	return r.Save(ctx, o)
}

// List returns orders newest first, with items but without notes or transitions.
func (r *PostgresRepository) List(ctx context.Context, f order.ListFilter) ([]*order.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := r.newStore(tx)

	params := database.ListOrdersParams{
		Limit:  int32(f.Limit),
		Offset: int32(f.Offset),
	}
	if f.Status != nil {
		params.Status = textOrNull(string(*f.Status))
	}
	rows, err := store.ListOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	out := make([]*order.Order, 0, len(rows))
	for _, row := range rows {
		items, err := store.ListOrderItemsByOrder(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("list order items: %w", err)
		}
		o, err := toDomain(row, items, nil, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

// staleOrMissing tells a version conflict apart from an order that was never stored.
func staleOrMissing(ctx context.Context, store OrderStore, o *order.Order) error {
	if _, err := store.GetOrder(ctx, o.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Errorf(order.ErrNotFound, "order %s not found", o.ID)
		}
		return fmt.Errorf("get order: %w", err)
	}
	return order.Errorf(order.ErrConcurrentModification, "order %s changed since version %d, reload and retry", o.Number, o.Version)
}

func insertHistory(ctx context.Context, store OrderStore, o *order.Order) error {
	for _, n := range o.NewNotes() {
		if err := store.CreateOrderNote(ctx, database.CreateOrderNoteParams{
			OrderID:   o.ID,
			AuthorID:  n.AuthorID,
			Body:      n.Text,
			CreatedAt: n.At,
		}); err != nil {
			return fmt.Errorf("create order note: %w", err)
		}
	}
	for _, t := range o.NewTransitions() {
		if err := store.CreateOrderStatusTransition(ctx, database.CreateOrderStatusTransitionParams{
			OrderID:    o.ID,
			FromStatus: string(t.From),
			ToStatus:   string(t.To),
			ActorID:    t.ActorID,
			Note:       t.Note,
			CreatedAt:  t.At,
		}); err != nil {
			return fmt.Errorf("create status transition: %w", err)
		}
	}
	return nil
}

// FormatOrderNumber renders a sequence value as a customer-facing order number.
func FormatOrderNumber(n int64) string {
	return fmt.Sprintf("ME-%06d", n)
}
