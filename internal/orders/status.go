package orders

import "github.com/ariefcatur/go-marketplace/internal/apperr"

type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Both exits from pending are terminal.
var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	next, ok := validNext[s]
	return ok && len(next) == 0
}

// ParseStatus accepts any known status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := validNext[st]; !ok {
		return "", apperr.InvalidRequest("unknown order status %q", s)
	}
	return st, nil
}
