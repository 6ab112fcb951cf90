package memory

import (
	"context"
	"sync"

	"orderhub/internal/cart/domain"
)

type CartRepo struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
}

func NewCartRepo() *CartRepo {
	return &CartRepo{carts: make(map[string]domain.Cart)}
}

func (r *CartRepo) Get(ctx context.Context, userID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(domain.Cart{}, r.carts[userID]...), nil
}

func (r *CartRepo) Put(ctx context.Context, userID string, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[userID] = append(domain.Cart{}, cart...)
	return nil
}

func (r *CartRepo) PushLines(ctx context.Context, userID string, lines domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.carts[userID]
	present := make(map[string]bool, len(stored))
	for _, l := range stored {
		present[l.ItemID] = true
	}
	for _, l := range lines {
		if present[l.ItemID] {
			continue
		}
		present[l.ItemID] = true
		stored = append(stored, l)
	}
	r.carts[userID] = stored
	return nil
}
