package order

import (
	"context"

	"github.com/go-faster/errors"
)

// Reconcile synchronizes the local order with the gateway's authoritative
// payment state for the given checkout session. It serves both the customer
// confirmation page and gateway callbacks, and is safe under duplicate
// invocation: a repeated call observes the order already Paid/Confirmed and
// returns the stored state without reapplying the transition.
func (s *Service) Reconcile(ctx context.Context, sessionID string) (*Order, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	status, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "retrieve session")
	}
	if !status.Paid {
		return nil, ErrPaymentIncomplete
	}

	o, err := s.orders.MarkPaid(ctx, sessionID, status.PaymentRef)
	if err != nil {
		return nil, errors.Wrap(err, "mark paid")
	}
	return o, nil
}
