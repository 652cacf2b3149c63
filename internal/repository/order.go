package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chronoshop/orders-api/internal/domain/order"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

const orderColumns = `order_id, COALESCE(owner_id, ''), name, email, phone, address, COALESCE(notes, ''),
	items, subtotal, tax_amount, shipping_charge, final_amount,
	payment_method, payment_status, order_status,
	COALESCE(gateway_session_ref, ''), COALESCE(gateway_payment_ref, ''), created_at`

const (
	createOrderSQL = `INSERT INTO orders
		(order_id, owner_id, name, email, phone, address, notes, items,
		 subtotal, tax_amount, shipping_charge, final_amount,
		 payment_method, payment_status, order_status,
		 gateway_session_ref, gateway_payment_ref)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NULLIF($7, ''), $8,
		        $9, $10, $11, $12, $13, $14, $15, NULLIF($16, ''), NULLIF($17, ''))
		RETURNING created_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	getOrderBySessionSQL = `SELECT ` + orderColumns + ` FROM orders WHERE gateway_session_ref = $1`

	listOrdersByOwnerSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE owner_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 = '' OR order_status = $1)
		  AND ($2 = '' OR order_id ILIKE $2 OR name ILIKE $2 OR email ILIKE $2
		       OR EXISTS (SELECT 1 FROM jsonb_array_elements(items) AS it
		                  WHERE it->>'name' ILIKE $2))
		ORDER BY created_at DESC`

	markPaidSQL = `UPDATE orders
		SET payment_status = 'Paid', order_status = 'Confirmed', gateway_payment_ref = $2
		WHERE gateway_session_ref = $1 AND payment_status <> 'Paid' AND order_status = 'Pending'
		RETURNING ` + orderColumns

	updateStatusSQL = `UPDATE orders SET order_status = $3
		WHERE order_id = $1 AND order_status = $2
		RETURNING ` + orderColumns

	deleteOrderSQL = `DELETE FROM orders WHERE order_id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The
// orders table enforces uniqueness of order_id and gateway_session_ref;
// MarkPaid and UpdateStatus are single conditional UPDATE statements so the
// database row is the per-order serialization point required for racing
// writers.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items are serialized to JSON for the JSONB
// column. A duplicate order id or session reference surfaces as
// order.ErrConflict so the caller can retry with a fresh id.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	err = r.pool.QueryRow(ctx, createOrderSQL,
		o.ID, o.OwnerID, o.Contact.Name, o.Contact.Email, o.Contact.Phone, o.Contact.Address,
		o.Notes, itemsJSON,
		o.Amounts.Subtotal, o.Amounts.TaxAmount, o.Amounts.ShippingCharge, o.Amounts.FinalAmount,
		string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status),
		o.SessionRef, o.PaymentRef,
	).Scan(&o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return order.ErrConflict
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetBySessionRef returns the order tied to a gateway checkout session.
func (r *OrderRepository) GetBySessionRef(ctx context.Context, ref string) (*order.Order, error) {
	return r.getOne(ctx, getOrderBySessionSQL, ref)
}

// ListByOwner returns the owner's orders, most recent first.
func (r *OrderRepository) ListByOwner(ctx context.Context, ownerID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByOwnerSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders by owner: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns orders matching the filter, most recent first. The search
// term matches case-insensitively as a substring against the order id,
// contact name, contact email, and item names.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	pattern := ""
	if f.Search != "" {
		pattern = "%" + escapeLike(f.Search) + "%"
	}

	rows, err := r.pool.Query(ctx, listOrdersSQL, string(f.Status), pattern)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// MarkPaid conditionally transitions the order behind the session reference
// to Paid/Confirmed. When the conditional UPDATE matches no row the stored
// order is inspected: an already-paid order is an idempotent no-op, a
// missing one is order.ErrNotFound, and an order that left Pending through
// another path (e.g. cancelled) is order.ErrConflict.
func (r *OrderRepository) MarkPaid(ctx context.Context, sessionRef, paymentRef string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, markPaidSQL, sessionRef, paymentRef)
	if err != nil {
		return nil, fmt.Errorf("marking order paid: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("marking order paid: %w", err)
	}

	existing, err := r.GetBySessionRef(ctx, sessionRef)
	if err != nil {
		return nil, err
	}
	if existing.PaymentStatus == order.PaymentPaid {
		return existing, nil
	}
	return nil, order.ErrConflict
}

// UpdateStatus transitions the order's status only if the current status
// matches expected. A mismatch from a concurrent writer is order.ErrConflict.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, expected, next order.Status) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, updateStatusSQL, id, string(expected), string(next))
	if err != nil {
		return nil, fmt.Errorf("updating order status: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating order status: %w", err)
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, order.ErrConflict
}

// Delete removes an order by its identifier.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) getOne(ctx context.Context, sql, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		method    string
		payStatus string
		status    string
	)
	err := row.Scan(
		&o.ID, &o.OwnerID, &o.Contact.Name, &o.Contact.Email, &o.Contact.Phone, &o.Contact.Address,
		&o.Notes, &itemsJSON,
		&o.Amounts.Subtotal, &o.Amounts.TaxAmount, &o.Amounts.ShippingCharge, &o.Amounts.FinalAmount,
		&method, &payStatus, &status,
		&o.SessionRef, &o.PaymentRef, &o.CreatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order items: %w", err)
	}
	o.PaymentMethod = order.PaymentMethod(method)
	o.PaymentStatus = order.PaymentStatus(payStatus)
	o.Status = order.Status(status)
	return o, nil
}

// escapeLike neutralizes LIKE metacharacters in user-supplied search terms.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := range len(s) {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
