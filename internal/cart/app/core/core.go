package core

import (
	"context"
	"errors"

	"orderhub/internal/cart/domain"
)

var ErrCartStore = errors.New("cart store failure")

// ICartRepo stores one cart per authenticated user. Get returns an empty
// cart when the user has none. PushLines appends lines whose item is not
// already in the stored cart.
type ICartRepo interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Put(ctx context.Context, userID string, cart domain.Cart) error
	PushLines(ctx context.Context, userID string, lines domain.Cart) error
}
