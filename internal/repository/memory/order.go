// Package memory provides in-memory reference implementations of the store
// contracts. They back local development without PostgreSQL and serve as the
// behavioural reference for concurrency semantics: uniqueness on create,
// conditional mark-paid, and compare-and-set status updates.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chronoshop/orders-api/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository with a mutex-guarded map. All
// reads and writes copy the order so callers never share memory with the
// store.
type OrderRepository struct {
	mu        sync.Mutex
	orders    map[string]*order.Order
	bySession map[string]string
}

// NewOrderRepository returns an empty in-memory order store.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:    make(map[string]*order.Order),
		bySession: make(map[string]string),
	}
}

// Create stores a new order, enforcing uniqueness of the order id and the
// gateway session reference.
func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.ID]; ok {
		return order.ErrConflict
	}
	if o.SessionRef != "" {
		if _, ok := r.bySession[o.SessionRef]; ok {
			return order.ErrConflict
		}
	}

	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	cp := clone(o)
	r.orders[o.ID] = cp
	if o.SessionRef != "" {
		r.bySession[o.SessionRef] = o.ID
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return clone(o), nil
}

// GetBySessionRef returns the order tied to a gateway checkout session.
func (r *OrderRepository) GetBySessionRef(_ context.Context, ref string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, err := r.bySessionLocked(ref)
	if err != nil {
		return nil, err
	}
	return clone(o), nil
}

// ListByOwner returns the owner's orders, most recent first.
func (r *OrderRepository) ListByOwner(_ context.Context, ownerID string) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []order.Order
	for _, o := range r.orders {
		if o.OwnerID == ownerID {
			out = append(out, *clone(o))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// List returns orders matching the filter, most recent first.
func (r *OrderRepository) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []order.Order
	for _, o := range r.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Search != "" && !matchesSearch(o, f.Search) {
			continue
		}
		out = append(out, *clone(o))
	}
	sortNewestFirst(out)
	return out, nil
}

// MarkPaid conditionally transitions the order behind the session reference
// to Paid/Confirmed. An already-paid order is an idempotent no-op; an order
// that left Pending through another path is a conflict.
func (r *OrderRepository) MarkPaid(_ context.Context, sessionRef, paymentRef string) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, err := r.bySessionLocked(sessionRef)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == order.PaymentPaid {
		return clone(o), nil
	}
	if o.Status != order.StatusPending {
		return nil, order.ErrConflict
	}

	o.PaymentStatus = order.PaymentPaid
	o.Status = order.StatusConfirmed
	o.PaymentRef = paymentRef
	return clone(o), nil
}

// UpdateStatus transitions the order's status only if the current status
// matches expected.
func (r *OrderRepository) UpdateStatus(_ context.Context, id string, expected, next order.Status) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status != expected {
		return nil, order.ErrConflict
	}
	o.Status = next
	return clone(o), nil
}

// Delete removes an order by its identifier.
func (r *OrderRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	delete(r.orders, id)
	if o.SessionRef != "" {
		delete(r.bySession, o.SessionRef)
	}
	return nil
}

func (r *OrderRepository) bySessionLocked(ref string) (*order.Order, error) {
	id, ok := r.bySession[ref]
	if !ok {
		return nil, order.ErrNotFound
	}
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func clone(o *order.Order) *order.Order {
	cp := *o
	cp.Items = make([]order.Item, len(o.Items))
	copy(cp.Items, o.Items)
	return &cp
}

func sortNewestFirst(orders []order.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func matchesSearch(o *order.Order, term string) bool {
	term = strings.ToLower(term)
	if strings.Contains(strings.ToLower(o.ID), term) ||
		strings.Contains(strings.ToLower(o.Contact.Name), term) ||
		strings.Contains(strings.ToLower(o.Contact.Email), term) {
		return true
	}
	for _, it := range o.Items {
		if strings.Contains(strings.ToLower(it.Name), term) {
			return true
		}
	}
	return false
}
