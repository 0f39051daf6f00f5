package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/monepiceriz/api/internal/order"
)

// MemoryRepository keeps orders in process memory. Every read returns a deep
// copy so callers cannot mutate stored state without going through Save.
type MemoryRepository struct {
	mu         sync.RWMutex
	nextNumber int64
	orders     map[uuid.UUID]*order.Order
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextNumber: 1,
		orders:     make(map[uuid.UUID]*order.Order),
	}
}

func (m *MemoryRepository) Create(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.ID]; ok {
		return order.Errorf(order.ErrInvalidInput, "order %s already exists", o.ID)
	}
	if o.Number == "" {
		o.Number = FormatOrderNumber(m.nextNumber)
		m.nextNumber++
	}
	if err := o.Validate(); err != nil {
		return err
	}

	o.Version = 1
	o.MarkPersisted()
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *MemoryRepository) Load(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, ok := m.orders[id]
	if !ok {
		return nil, order.Errorf(order.ErrNotFound, "order %s not found", id)
	}
	c := stored.Clone()
	c.MarkPersisted()
	return c, nil
}

func (m *MemoryRepository) Save(ctx context.Context, o *order.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.orders[o.ID]
	if !ok {
		return order.Errorf(order.ErrNotFound, "order %s not found", o.ID)
	}
	if stored.Version != o.Version {
		return order.Errorf(order.ErrConcurrentModification, "order %s changed since version %d, reload and retry", o.Number, o.Version)
	}

	o.Version++
	o.MarkPersisted()
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *MemoryRepository) AppendNote(ctx context.Context, o *order.Order, note order.Note) error {
	o.Notes = append(o.Notes, note)
	return m.Save(ctx, o)
}

// List returns matching orders newest first. A zero Limit means no limit.
func (m *MemoryRepository) List(ctx context.Context, f order.ListFilter) ([]*order.Order, error) {
	m.mu.RLock()
	out := make([]*order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		if f.Matches(o) {
			c := o.Clone()
			c.MarkPersisted()
			out = append(out, c)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*order.Order{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}
