package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentMethod selects how an order is settled.
type PaymentMethod string

const (
	// PaymentOnline settles through the hosted checkout gateway.
	PaymentOnline PaymentMethod = "Online"
	// PaymentCashOnDelivery defers settlement to delivery time.
	PaymentCashOnDelivery PaymentMethod = "Cash on Delivery"
)

// PaymentStatus tracks whether an order has been paid. The transition is
// monotonic: once Paid an order never reverts to Unpaid.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "Unpaid"
	PaymentPaid   PaymentStatus = "Paid"
)

// Sentinel errors for order validation and store outcomes.
var (
	// ErrEmptyItems is returned when an order request carries no line items.
	ErrEmptyItems = errors.New("order items are required")
	// ErrNotFound is returned when no order matches the given identifier or
	// session reference.
	ErrNotFound = errors.New("order not found")
	// ErrConflict is returned on a store uniqueness violation or when a
	// conditional update lost a race with a concurrent writer. Retryable.
	ErrConflict = errors.New("order store conflict")
	// ErrSessionRequired is returned when reconciliation is invoked without
	// a session reference.
	ErrSessionRequired = errors.New("session id is required")
	// ErrPaymentIncomplete is returned when the gateway reports the session
	// as not paid. The caller may retry once the customer completes checkout.
	ErrPaymentIncomplete = errors.New("payment not completed")
	// ErrStatusRequired is returned when a status transition request omits
	// the target status.
	ErrStatusRequired = errors.New("order status is required")
	// ErrOwnerRequired is returned when an owner-scoped listing is requested
	// without a caller identity.
	ErrOwnerRequired = errors.New("missing caller identity")
)

// MissingFieldError indicates a required contact field was absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Contact holds the customer contact details captured at creation. Immutable
// after the order is persisted.
type Contact struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// Item is a single priced, quantified line within an order.
type Item struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"price"`
	Quantity    int             `json:"qty"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"img,omitempty"`
}

// Amounts holds the derived pricing of an order. Never client-supplied.
// Invariant: FinalAmount = Subtotal + TaxAmount + ShippingCharge, each
// rounded to 2 decimal places.
type Amounts struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingCharge decimal.Decimal
	FinalAmount    decimal.Decimal
}

// Order is the central entity: one customer purchase with authoritative
// pricing and payment state.
type Order struct {
	ID            string
	OwnerID       string // empty for orders created without an authenticated owner
	Contact       Contact
	Notes         string
	Items         []Item
	Amounts       Amounts
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	Status        Status
	SessionRef    string // gateway checkout session id, online orders only
	PaymentRef    string // gateway payment reference, set once known
	CreatedAt     time.Time
}

// Filter narrows administrative order listings. Zero values match everything.
type Filter struct {
	// Status restricts results to an exact order status.
	Status Status
	// Search is matched case-insensitively as a substring against the order
	// id, contact name, contact email, and item names.
	Search string
}

// Repository defines persistence operations for orders. Implementations must
// enforce uniqueness of the order id on Create and perform MarkPaid and
// UpdateStatus as conditional updates so racing writers fail cleanly with
// ErrConflict instead of overwriting each other.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetBySessionRef(ctx context.Context, ref string) (*Order, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)

	// MarkPaid sets PaymentStatus=Paid, Status=Confirmed and records the
	// payment reference for the order with the given session reference.
	// It is idempotent: if the order is already paid the stored state is
	// returned unchanged. It returns ErrNotFound when no order carries the
	// session reference and ErrConflict when the order left Pending through
	// another path (e.g. cancelled before payment settled).
	MarkPaid(ctx context.Context, sessionRef, paymentRef string) (*Order, error)

	// UpdateStatus transitions the order's status only if its current status
	// equals expected, returning ErrConflict on a mismatch.
	UpdateStatus(ctx context.Context, id string, expected, next Status) (*Order, error)

	Delete(ctx context.Context, id string) error
}
