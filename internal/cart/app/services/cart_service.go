package services

import (
	"context"
	"fmt"

	"orderhub/internal/cart/app/core"
	"orderhub/internal/cart/domain"
	"orderhub/internal/xpkg/logger"
)

type CartService struct {
	repo  core.ICartRepo
	mylog logger.Logger
}

func NewCartService(repo core.ICartRepo, mylog logger.Logger) *CartService {
	return &CartService{repo: repo, mylog: mylog}
}

// Reconcile merges a guest's local cart into the user's stored cart at
// login and pushes the local-only lines back to the store.
func (cs *CartService) Reconcile(ctx context.Context, userID string, local domain.Cart) (domain.MergeResult, error) {
	mylog := cs.mylog.Action("cart_reconcile").With("user_id", userID)

	if err := local.Validate(); err != nil {
		return domain.MergeResult{}, err
	}

	remote, err := cs.repo.Get(ctx, userID)
	if err != nil {
		mylog.Error("Failed to load stored cart", err)
		return domain.MergeResult{}, fmt.Errorf("%w: %v", core.ErrCartStore, err)
	}

	res := domain.Merge(remote, local)
	if len(res.ToPush) > 0 {
		if err := cs.repo.PushLines(ctx, userID, res.ToPush); err != nil {
			mylog.Error("Failed to push merged lines", err, "lines", len(res.ToPush))
			return domain.MergeResult{}, fmt.Errorf("%w: %v", core.ErrCartStore, err)
		}
	}

	mylog.WithGroup("details").With("remote", len(remote), "local", len(local), "pushed", len(res.ToPush)).Info("Cart reconciled")
	return res, nil
}

func (cs *CartService) Get(ctx context.Context, userID string) (domain.Cart, error) {
	c, err := cs.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCartStore, err)
	}
	return c, nil
}

// Put replaces the stored cart.
func (cs *CartService) Put(ctx context.Context, userID string, cart domain.Cart) error {
	if err := cart.Validate(); err != nil {
		return err
	}
	if err := cs.repo.Put(ctx, userID, cart); err != nil {
		cs.mylog.Action("cart_put").Error("Failed to store cart", err, "user_id", userID)
		return fmt.Errorf("%w: %v", core.ErrCartStore, err)
	}
	return nil
}
