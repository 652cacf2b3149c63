package order

import "fmt"

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusConfirmed  Status = "Confirmed"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// transitions is the allowed fulfilment state machine. Delivered and
// Cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// UnknownStatusError indicates a status string outside the known set.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown order status %q", e.Status)
}

// InvalidTransitionError indicates an attempted status change outside the
// state machine.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// ParseStatus validates a status string against the known set.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", &UnknownStatusError{Status: s}
	}
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}
