package lifecycle

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPaymentRequired   = errors.New("payment required")
	ErrActorNotAllowed   = errors.New("actor is not allowed to perform this transition")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrDuplicateItem     = errors.New("item is already on the order")
	ErrOrderClosed       = errors.New("order is closed")
)
