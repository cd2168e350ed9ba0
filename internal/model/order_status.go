package model

// OrderStatus is a step of the order lifecycle.
type OrderStatus string

const (
	StatusNew            OrderStatus = "new"
	StatusWaitingPayment OrderStatus = "waiting_payment"
	StatusPaid           OrderStatus = "paid"
	StatusAssigned       OrderStatus = "assigned"
	StatusPickedUp       OrderStatus = "picked_up"
	StatusOnDelivery     OrderStatus = "on_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
	StatusRefunded       OrderStatus = "refunded"
	StatusFailed         OrderStatus = "failed"
	StatusReturned       OrderStatus = "returned"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusNew:            {StatusWaitingPayment: true, StatusPaid: true, StatusCancelled: true},
	StatusWaitingPayment: {StatusPaid: true, StatusCancelled: true, StatusFailed: true},
	StatusPaid:           {StatusAssigned: true, StatusCancelled: true, StatusRefunded: true},
	StatusAssigned:       {StatusPickedUp: true, StatusCancelled: true, StatusRefunded: true},
	StatusPickedUp:       {StatusOnDelivery: true, StatusFailed: true, StatusReturned: true},
	StatusOnDelivery:     {StatusDelivered: true, StatusFailed: true, StatusReturned: true},
	StatusDelivered:      {},
	StatusCancelled:      {},
	StatusRefunded:       {},
	StatusFailed:         {},
	StatusReturned:       {},
}

// CanTransition reports whether to is an allowed successor of from.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// ParseOrderStatus rejects values outside the closed set.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := validNext[st]; !ok {
		return "", NewValidationError(ErrCodeInvalidStatus, "status tidak dikenal: "+s)
	}
	return st, nil
}

func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// EndsDelivery reports statuses that close an order without delivering it.
// They all release stock and reverse commission like a cancellation.
func (s OrderStatus) EndsDelivery() bool {
	switch s {
	case StatusCancelled, StatusRefunded, StatusFailed, StatusReturned:
		return true
	}
	return false
}

// ReservesStock reports statuses in which the order holds a stock reservation.
func (s OrderStatus) ReservesStock() bool {
	switch s {
	case StatusPaid, StatusAssigned, StatusPickedUp, StatusOnDelivery:
		return true
	}
	return false
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []OrderStatus {
	return []OrderStatus{
		StatusNew, StatusWaitingPayment, StatusPaid, StatusAssigned, StatusPickedUp,
		StatusOnDelivery, StatusDelivered, StatusCancelled, StatusRefunded, StatusFailed,
		StatusReturned,
	}
}
