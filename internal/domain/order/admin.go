package order

import (
	"context"

	"github.com/go-faster/errors"
)

// ListMine returns the given owner's orders, most recent first.
func (s *Service) ListMine(ctx context.Context, ownerID string) ([]Order, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	orders, err := s.orders.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders by owner")
	}
	return orders, nil
}

// ListAll returns all orders matching the filter, most recent first. An
// unknown status value in the filter is a validation error.
func (s *Service) ListAll(ctx context.Context, f Filter) ([]Order, error) {
	if f.Status != "" {
		if _, err := ParseStatus(string(f.Status)); err != nil {
			return nil, err
		}
	}
	orders, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Transition moves an order to the target fulfilment status. The transition
// is validated against the state machine and applied conditionally on the
// observed current status, so a racing writer surfaces as ErrConflict rather
// than a silent overwrite.
func (s *Service) Transition(ctx context.Context, id, target string) (*Order, error) {
	if target == "" {
		return nil, ErrStatusRequired
	}
	next, err := ParseStatus(target)
	if err != nil {
		return nil, err
	}

	current, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, &InvalidTransitionError{From: current.Status, To: next}
	}

	updated, err := s.orders.UpdateStatus(ctx, id, current.Status, next)
	if err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	return updated, nil
}

// Delete removes an order unconditionally. Any associated gateway session is
// left as-is; cleaning it up is out of scope.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete order")
	}
	return nil
}
