package syncagent

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"orderhub/internal/hub"
	"orderhub/internal/order/adapter/memstore"
	orderhttp "orderhub/internal/order/api/http"
	"orderhub/internal/order/app/core"
	"orderhub/internal/order/app/services"
	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/order/domain/models"
	"orderhub/internal/xpkg/auth"
	"orderhub/internal/xpkg/logger"
)

const secret = "e2e-secret"

func startOrderService(t *testing.T) string {
	t.Helper()
	h := hub.New()
	store := memstore.New(models.OutletInfo{ID: "o1", Name: "Downtown", RestaurantID: "r1", RestaurantName: "Spice Route"})
	orders := services.NewOrderService(store, store, hub.NewLocalPublisher(h), logger.Nop())
	srv := orderhttp.NewServer(&core.OrderParams{Port: core.DefaultPort}, orderhttp.Deps{
		Orders:     orders,
		Hub:        h,
		SendBuffer: 16,
		JWTSecret:  secret,
	}, logger.Nop())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func tokenFor(t *testing.T, id string, role lifecycle.Role, outlets ...string) string {
	t.Helper()
	tok, err := auth.Sign(secret, id, role, time.Hour, outlets...)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func startSync(t *testing.T, baseURL, token string, scope Scope) *Agent {
	t.Helper()
	client := NewAPIClient(baseURL, token, nil)
	a, err := New(scope, client, client, WithRefetchInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	transport := NewWSTransport(baseURL, token, []string{scope.Topic()}, logger.Nop())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		transport.Run(ctx, a)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return a
}

func post(t *testing.T, url, token, body string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		t.Fatalf("POST %s: status %d", url, resp.StatusCode)
	}
}

func TestAgentsFollowOrderOverWebsocket(t *testing.T) {
	baseURL := startOrderService(t)
	alice := tokenFor(t, "alice", lifecycle.RoleCustomer)
	staff := tokenFor(t, "s1", lifecycle.RoleStaff, "o1")

	userAgent := startSync(t, baseURL, alice, Scope{Kind: ScopeUser, ID: "alice"})
	outletAgent := startSync(t, baseURL, staff, Scope{Kind: ScopeOutlet, ID: "o1"})

	// let both connect and join before the order exists
	time.Sleep(100 * time.Millisecond)

	post(t, baseURL+"/orders", alice, `{
		"outletId": "o1",
		"orderType": "dine_in",
		"tableNumber": "12",
		"paymentType": "pay_later",
		"items": [{"itemId": "A", "name": "Dal", "unitPrice": "90", "quantity": 2}]
	}`)

	mine := eventually(t, userAgent, func(o []models.Order) bool { return len(o) == 1 })
	if mine[0].PaymentStatus != models.PaymentPending {
		t.Fatalf("expected unpaid order, got %+v", mine[0])
	}
	if orders, _ := outletAgent.Orders(context.Background()); len(orders) != 0 {
		t.Fatalf("unpaid order reached the outlet view: %+v", orders)
	}

	orderID := mine[0].ID
	post(t, baseURL+"/payments/confirm", tokenFor(t, "payments", lifecycle.RoleSystem), `{"orderId":"`+orderID+`"}`)

	eventually(t, outletAgent, func(o []models.Order) bool { return len(o) == 1 && o[0].ID == orderID })

	confirmed, err := outletAgent.Submit(context.Background(), Action{Kind: ActionTransition, OrderID: orderID, Status: models.StatusConfirmed})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if confirmed.Status != models.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}
	eventually(t, userAgent, func(o []models.Order) bool { return o[0].Status == models.StatusConfirmed })

	ticket, err := outletAgent.Submit(context.Background(), Action{Kind: ActionGenerateTicket, OrderID: orderID})
	if err != nil {
		t.Fatalf("ticket: %v", err)
	}
	if len(ticket.KOTItems) != 1 || !ticket.KOTItems[0].KOTGenerated {
		t.Fatalf("expected generated kot item, got %+v", ticket.KOTItems)
	}
	again, err := outletAgent.Submit(context.Background(), Action{Kind: ActionGenerateTicket, OrderID: orderID})
	if err != nil || again.ID != orderID {
		t.Fatalf("expected nothing-to-print to return the stored order, got %+v, %v", again, err)
	}
}

func TestAPIClientSurfacesErrors(t *testing.T) {
	baseURL := startOrderService(t)
	client := NewAPIClient(baseURL, tokenFor(t, "s1", lifecycle.RoleStaff, "o1"), nil)

	_, err := client.Submit(context.Background(), Action{Kind: ActionTransition, OrderID: "missing", Status: models.StatusConfirmed})
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
}
