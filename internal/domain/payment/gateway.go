// Package payment defines the contract with the external hosted-checkout
// provider. The provider owns the authoritative payment state; this package
// only describes how sessions are created and queried.
package payment

import (
	"context"
	"fmt"
)

// LineItem is one priced entry in a checkout session request. The unit
// amount is expressed in minor currency units (e.g. cents, paise).
type LineItem struct {
	Name            string
	UnitMinorAmount int64
	Quantity        int
}

// CheckoutRequest describes a hosted checkout session to create. OrderID is
// attached as session metadata so reconciliation can tie the session back to
// the local order unambiguously.
type CheckoutRequest struct {
	Currency      string
	LineItems     []LineItem
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	OrderID       string
}

// CheckoutSession is the gateway's handle for a created session.
type CheckoutSession struct {
	SessionID   string
	CheckoutURL string
	PaymentRef  string
}

// SessionStatus is the gateway's authoritative view of a session.
type SessionStatus struct {
	Paid       bool
	PaymentRef string
}

// Gateway creates checkout sessions and reports their authoritative state.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*SessionStatus, error)
}

// UpstreamError wraps a gateway failure: unreachable provider or an
// unexpected response. The order is left in its prior state and the caller
// may retry.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
