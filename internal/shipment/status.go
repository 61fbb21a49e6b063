package shipment

import (
	"fmt"
	"strings"
)

// Status is the shipment lifecycle state.
type Status string

// Shipment lifecycle states, in forward order.
const (
	StatusDraft           Status = "DRAFT"
	StatusQuoted          Status = "QUOTED"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusPaid            Status = "PAID"
	StatusInTransit       Status = "IN_TRANSIT"
	StatusDelivered       Status = "DELIVERED"
	StatusCanceled        Status = "CANCELED"
)

var transitions = map[Status][]Status{
	StatusDraft:           {StatusQuoted, StatusCanceled},
	StatusQuoted:          {StatusAwaitingPayment, StatusQuoted, StatusCanceled},
	StatusAwaitingPayment: {StatusPaid, StatusCanceled},
	StatusPaid:            {StatusInTransit},
	StatusInTransit:       {StatusDelivered},
}

// ParseStatus validates an incoming status label.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusDraft, StatusQuoted, StatusAwaitingPayment, StatusPaid,
		StatusInTransit, StatusDelivered, StatusCanceled:
		return s, nil
	}
	return "", fmt.Errorf("unknown shipment status %q", raw)
}

// CanTransition reports whether the state machine allows moving from one
// status to another. Cancellation is only possible before payment.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
