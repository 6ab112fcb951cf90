package services

import (
	"context"
	"errors"
	"testing"

	"orderhub/internal/cart/adapter/memory"
	"orderhub/internal/cart/app/core"
	"orderhub/internal/cart/domain"
	"orderhub/internal/xpkg/logger"
)

type failingRepo struct {
	*memory.CartRepo
}

func (failingRepo) PushLines(ctx context.Context, userID string, lines domain.Cart) error {
	return errors.New("write timeout")
}

func TestReconcilePushesLocalOnlyLines(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCartRepo()
	repo.Put(ctx, "u-1", domain.Cart{{ItemID: "A", Quantity: 1}, {ItemID: "C", Quantity: 3}})
	svc := NewCartService(repo, logger.Nop())

	res, err := svc.Reconcile(ctx, "u-1", domain.Cart{{ItemID: "A", Quantity: 2}, {ItemID: "B", Quantity: 1}})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(res.Merged) != 3 || len(res.ToPush) != 1 || res.ToPush[0].ItemID != "B" {
		t.Fatalf("unexpected merge result %+v", res)
	}

	stored, _ := svc.Get(ctx, "u-1")
	if len(stored) != 3 || stored[0].Quantity != 1 || stored[2].ItemID != "B" {
		t.Fatalf("store does not match merged cart: %+v", stored)
	}

	again, err := svc.Reconcile(ctx, "u-1", domain.Cart{{ItemID: "A", Quantity: 2}, {ItemID: "B", Quantity: 1}})
	if err != nil {
		t.Fatalf("second Reconcile returned error: %v", err)
	}
	if len(again.ToPush) != 0 {
		t.Fatalf("second reconcile must push nothing, got %+v", again.ToPush)
	}
}

func TestReconcileIntoEmptyStore(t *testing.T) {
	ctx := context.Background()
	svc := NewCartService(memory.NewCartRepo(), logger.Nop())

	res, err := svc.Reconcile(ctx, "u-2", domain.Cart{{ItemID: "A", Quantity: 2}})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(res.ToPush) != 1 {
		t.Fatalf("expected the whole local cart to be pushed, got %+v", res.ToPush)
	}
	stored, _ := svc.Get(ctx, "u-2")
	if len(stored) != 1 || stored[0].Quantity != 2 {
		t.Fatalf("unexpected stored cart %+v", stored)
	}
}

func TestReconcileRejectsInvalidLocalCart(t *testing.T) {
	svc := NewCartService(memory.NewCartRepo(), logger.Nop())
	_, err := svc.Reconcile(context.Background(), "u-1", domain.Cart{{ItemID: "A", Quantity: 0}})
	if !errors.Is(err, domain.ErrInvalidCart) {
		t.Fatalf("expected ErrInvalidCart, got %v", err)
	}
}

func TestReconcileSurfacesStoreFailure(t *testing.T) {
	svc := NewCartService(failingRepo{memory.NewCartRepo()}, logger.Nop())
	_, err := svc.Reconcile(context.Background(), "u-1", domain.Cart{{ItemID: "A", Quantity: 1}})
	if !errors.Is(err, core.ErrCartStore) {
		t.Fatalf("expected ErrCartStore, got %v", err)
	}
}
