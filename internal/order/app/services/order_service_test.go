package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"orderhub/internal/order/adapter/memstore"
	"orderhub/internal/order/app/core"
	"orderhub/internal/order/domain/kot"
	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/order/domain/models"
	"orderhub/internal/xpkg/logger"

	"github.com/shopspring/decimal"
)

type recordingPublisher struct {
	mu   sync.Mutex
	reqs []lifecycle.PublishRequest
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, req lifecycle.PublishRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	return p.err
}

func (p *recordingPublisher) kinds() []lifecycle.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]lifecycle.EventKind, 0, len(p.reqs))
	for _, r := range p.reqs {
		out = append(out, r.Kind)
	}
	return out
}

func newTestService(t *testing.T) (*OrderService, *memstore.Store, *recordingPublisher) {
	t.Helper()
	store := memstore.New(models.OutletInfo{ID: "outlet-1", Name: "Downtown", RestaurantID: "rest-1", RestaurantName: "Luigi's"})
	pub := &recordingPublisher{}
	svc := NewOrderService(store, store, pub, logger.Nop())
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return svc, store, pub
}

func dineInDraft(ids ...string) lifecycle.Draft {
	items := make([]models.LineItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, models.LineItem{ItemID: id, Name: "Dish " + id, UnitPrice: decimal.NewFromInt(10), Quantity: 1})
	}
	return lifecycle.Draft{
		OutletID:    "outlet-1",
		Type:        models.TypeDineIn,
		TableNumber: "12",
		PaymentType: models.PayLater,
		Customer:    models.Customer{UserID: "u-1"},
		Items:       items,
	}
}

var (
	customer = lifecycle.Actor{ID: "u-1", Role: lifecycle.RoleCustomer}
	staff    = lifecycle.Actor{ID: "s-1", Role: lifecycle.RoleStaff, Outlets: []string{"outlet-1"}}
)

func TestPayLaterOrderVisibleToOutletOnlyAfterPayment(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService(t)

	order, err := svc.Create(ctx, dineInDraft("A", "B"), customer)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if order.Status != models.StatusPending || order.PaymentStatus != models.PaymentPending {
		t.Fatalf("expected pending/pending, got %s/%s", order.Status, order.PaymentStatus)
	}
	if order.RestaurantID != "rest-1" {
		t.Fatalf("expected restaurant resolved from the outlet, got %q", order.RestaurantID)
	}

	listed, _ := svc.ListByOutlet(ctx, "outlet-1")
	if len(listed) != 0 {
		t.Fatalf("unpaid order must not be listed for the outlet, got %d", len(listed))
	}

	if _, err := svc.Transition(ctx, order.ID, models.StatusConfirmed, staff); !errors.Is(err, lifecycle.ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}

	paid, err := svc.MarkPaid(ctx, order.ID)
	if err != nil {
		t.Fatalf("MarkPaid returned error: %v", err)
	}
	if paid.Status != models.StatusPending {
		t.Fatalf("status must stay pending, got %s", paid.Status)
	}

	listed, _ = svc.ListByOutlet(ctx, "outlet-1")
	if len(listed) != 1 || listed[0].ID != order.ID {
		t.Fatalf("expected the paid order in the outlet listing, got %+v", listed)
	}

	again, err := svc.MarkPaid(ctx, order.ID)
	if err != nil {
		t.Fatalf("second MarkPaid returned error: %v", err)
	}
	if again.Revision != paid.Revision {
		t.Fatalf("second MarkPaid must not write, revision %d -> %d", paid.Revision, again.Revision)
	}

	got := pub.kinds()
	want := []lifecycle.EventKind{lifecycle.EventOrderCreated, lifecycle.EventPaymentUpdated}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("unexpected published events %v", got)
	}
}

func TestTransitionWritesHistory(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	d := dineInDraft("A")
	d.PaymentType = models.PayNow
	order, err := svc.Create(ctx, d, customer)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	for _, s := range []models.Status{models.StatusConfirmed, models.StatusPreparing, models.StatusReady, models.StatusDelivered} {
		if order, err = svc.Transition(ctx, order.ID, s, staff); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if _, err := svc.Transition(ctx, order.ID, models.StatusPreparing, staff); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from delivered, got %v", err)
	}

	hist, err := svc.History(ctx, order.ID)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(hist) != 5 || hist[0].Note != "order created" || hist[4].Status != string(models.StatusDelivered) {
		t.Fatalf("unexpected history %+v", hist)
	}
}

func TestStaleSaveIsReportedAsConflict(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	d := dineInDraft("A")
	d.PaymentType = models.PayNow
	order, err := svc.Create(ctx, d, customer)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := svc.Transition(ctx, order.ID, models.StatusConfirmed, staff); err != nil {
		t.Fatalf("Transition returned error: %v", err)
	}

	stale := order.Clone()
	stale.Status = models.StatusCancelled
	if _, err := store.Save(ctx, stale, order.Revision, nil); !errors.Is(err, core.ErrStoreConflict) {
		t.Fatalf("expected ErrStoreConflict, got %v", err)
	}
}

func TestGenerateTicketTwiceYieldsNothingToPrint(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newTestService(t)

	d := dineInDraft("A", "B", "C")
	d.PaymentType = models.PayNow
	order, err := svc.Create(ctx, d, customer)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	_, ticket, err := svc.GenerateTicket(ctx, order.ID, nil, staff)
	if err != nil {
		t.Fatalf("GenerateTicket returned error: %v", err)
	}
	if len(ticket.Items) != 3 || ticket.OutletName != "Downtown" || ticket.RestaurantName != "Luigi's" {
		t.Fatalf("unexpected ticket %+v", ticket)
	}

	if _, err := svc.AddItems(ctx, order.ID, []models.LineItem{{ItemID: "D", Name: "Dish D", UnitPrice: decimal.NewFromInt(4), Quantity: 2}}, staff); err != nil {
		t.Fatalf("AddItems returned error: %v", err)
	}
	_, ticket, err = svc.GenerateTicket(ctx, order.ID, nil, staff)
	if err != nil {
		t.Fatalf("second GenerateTicket returned error: %v", err)
	}
	if len(ticket.Items) != 1 || ticket.Items[0].ItemID != "D" {
		t.Fatalf("expected only D on the second ticket, got %+v", ticket.Items)
	}

	before := len(pub.kinds())
	if _, _, err := svc.GenerateTicket(ctx, order.ID, nil, staff); !errors.Is(err, kot.ErrNothingToPrint) {
		t.Fatalf("expected ErrNothingToPrint, got %v", err)
	}
	if len(pub.kinds()) != before {
		t.Fatal("a rejected ticket must not publish")
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := newTestService(t)
	pub.err = errors.New("broker down")

	order, err := svc.Create(ctx, dineInDraft("A"), customer)
	if err != nil {
		t.Fatalf("Create must succeed when publishing fails, got %v", err)
	}
	if _, err := store.Get(ctx, order.ID); err != nil {
		t.Fatalf("order not stored: %v", err)
	}
}

func TestAddItemsRequiresOutletStaff(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	d := dineInDraft("A")
	d.PaymentType = models.PayNow
	order, err := svc.Create(ctx, d, customer)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	extra := []models.LineItem{{ItemID: "Z", Name: "Zeppole", UnitPrice: decimal.NewFromInt(80), Quantity: 5}}

	otherOutlet := lifecycle.Actor{ID: "s-9", Role: lifecycle.RoleStaff, Outlets: []string{"outlet-2"}}
	for name, actor := range map[string]lifecycle.Actor{
		"owning customer": customer,
		"guest":           {Role: lifecycle.RoleCustomer},
		"other outlet":    otherOutlet,
	} {
		if _, err := svc.AddItems(ctx, order.ID, extra, actor); !errors.Is(err, lifecycle.ErrActorNotAllowed) {
			t.Fatalf("%s: expected ErrActorNotAllowed, got %v", name, err)
		}
		if _, _, err := svc.GenerateTicket(ctx, order.ID, nil, actor); !errors.Is(err, lifecycle.ErrActorNotAllowed) {
			t.Fatalf("%s: expected ErrActorNotAllowed from GenerateTicket, got %v", name, err)
		}
	}

	updated, err := svc.AddItems(ctx, order.ID, extra, staff)
	if err != nil {
		t.Fatalf("outlet staff AddItems returned error: %v", err)
	}
	if len(updated.Items) != 2 || !updated.TotalPrice.Equal(order.TotalPrice) {
		t.Fatalf("expected 2 items and an unchanged total, got %d items total %s", len(updated.Items), updated.TotalPrice)
	}
	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, core.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
