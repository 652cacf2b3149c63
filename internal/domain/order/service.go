package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chronoshop/orders-api/internal/domain/payment"
)

// taxLineItemName labels the synthetic gateway line item covering the
// aggregate order tax.
const taxLineItemName = "Tax (8%)"

// ServiceConfig holds checkout parameters for the order service.
type ServiceConfig struct {
	// Currency is the ISO currency code for gateway line items.
	Currency string
	// SuccessURL and CancelURL are where the gateway redirects the customer
	// after checkout.
	SuccessURL string
	CancelURL  string
}

// Service orchestrates order creation, payment reconciliation, and
// administration. It holds no mutable state; all durable state lives in the
// order Repository.
type Service struct {
	orders  Repository
	gateway payment.Gateway
	cfg     ServiceConfig
}

// NewService creates an order Service with the required dependencies.
func NewService(orders Repository, gateway payment.Gateway, cfg ServiceConfig) *Service {
	return &Service{
		orders:  orders,
		gateway: gateway,
		cfg:     cfg,
	}
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	OwnerID       string
	Contact       Contact
	Notes         string
	Items         []RawItem
	PaymentMethod PaymentMethod
}

// CreateResult is a persisted order plus, for online payment, the gateway's
// hosted checkout URL the customer must be redirected to.
type CreateResult struct {
	Order       *Order
	CheckoutURL string
}

// Create validates the request, prices the items, and persists a new order.
// For online payment a gateway checkout session is created first, so a
// persistence failure leaves an orphaned session rather than an order with
// no way to be paid; a missing order is recoverable by retrying, a missing
// payment channel is not.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if err := validateContact(req.Contact); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	items := NormalizeItems(req.Items)
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	amounts := Price(items)

	// Anything other than an explicit COD request settles online, matching
	// the storefront's historical behaviour.
	method := PaymentOnline
	if req.PaymentMethod == PaymentCashOnDelivery {
		method = PaymentCashOnDelivery
	}

	o := &Order{
		ID:            "ORD-" + uuid.New().String(),
		OwnerID:       req.OwnerID,
		Contact:       req.Contact,
		Notes:         req.Notes,
		Items:         items,
		Amounts:       amounts,
		PaymentMethod: method,
		PaymentStatus: PaymentUnpaid,
		Status:        StatusPending,
	}

	if method == PaymentCashOnDelivery {
		if err := s.orders.Create(ctx, o); err != nil {
			return nil, errors.Wrap(err, "create order")
		}
		return &CreateResult{Order: o}, nil
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		Currency:      s.cfg.Currency,
		LineItems:     checkoutLineItems(items, amounts),
		CustomerEmail: req.Contact.Email,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
		OrderID:       o.ID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}

	o.SessionRef = session.SessionID
	o.PaymentRef = session.PaymentRef
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	return &CreateResult{Order: o, CheckoutURL: session.CheckoutURL}, nil
}

// checkoutLineItems maps order items to gateway line items in minor currency
// units, appending one synthetic line covering the aggregate tax when the
// order carries any.
func checkoutLineItems(items []Item, amounts Amounts) []payment.LineItem {
	lines := make([]payment.LineItem, 0, len(items)+1)
	for _, it := range items {
		lines = append(lines, payment.LineItem{
			Name:            it.Name,
			UnitMinorAmount: toMinorUnits(it.UnitPrice),
			Quantity:        it.Quantity,
		})
	}
	if amounts.TaxAmount.IsPositive() {
		lines = append(lines, payment.LineItem{
			Name:            taxLineItemName,
			UnitMinorAmount: toMinorUnits(amounts.TaxAmount),
			Quantity:        1,
		})
	}
	return lines
}

func toMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func validateContact(c Contact) error {
	switch {
	case c.Name == "":
		return &MissingFieldError{Field: "name"}
	case c.Email == "":
		return &MissingFieldError{Field: "email"}
	case c.Phone == "":
		return &MissingFieldError{Field: "phoneNumber"}
	case c.Address == "":
		return &MissingFieldError{Field: "address"}
	}
	return nil
}
