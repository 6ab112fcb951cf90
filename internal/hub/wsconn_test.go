package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/order/domain/models"
	"orderhub/internal/xpkg/logger"

	"github.com/gorilla/websocket"
)

func startWSServer(t *testing.T, h *Hub) string {
	t.Helper()
	upgrader := NewUpgrader()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		allow := func(topic string) bool { return !strings.HasPrefix(topic, "user:") || topic == "user:me" }
		NewWSConn(conn, h, 8, allow, logger.Nop()).Serve(context.Background())
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWSJoinReceivesEvents(t *testing.T) {
	h := New()
	conn := dial(t, startWSServer(t, h))

	if err := conn.WriteJSON(ClientMessage{Op: OpJoin, Topic: "outlet:1"}); err != nil {
		t.Fatalf("write join: %v", err)
	}
	var r Reply
	if err := conn.ReadJSON(&r); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if !r.OK || r.Topic != "outlet:1" {
		t.Fatalf("unexpected reply %+v", r)
	}

	if n, _ := h.Publish("outlet:1", lifecycle.EventOrderCreated, models.Order{ID: "o1", Status: models.StatusPending}); n != 1 {
		t.Fatalf("expected one delivery, got %d", n)
	}
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Kind != lifecycle.EventOrderCreated || ev.Order.ID != "o1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWSRejectsForbiddenTopicAndUnknownOp(t *testing.T) {
	h := New()
	conn := dial(t, startWSServer(t, h))

	conn.WriteJSON(ClientMessage{Op: OpJoin, Topic: "user:someone-else"})
	var r Reply
	if err := conn.ReadJSON(&r); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if r.OK || r.Error != ErrTopicForbidden.Error() {
		t.Fatalf("expected forbidden reply, got %+v", r)
	}
	if h.Subscribers("user:someone-else") != 0 {
		t.Fatal("forbidden join must not subscribe")
	}

	conn.WriteJSON(ClientMessage{Op: "shout", Topic: "outlet:1"})
	if err := conn.ReadJSON(&r); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if r.OK {
		t.Fatalf("unknown op must fail, got %+v", r)
	}
}

func TestWSDisconnectUnsubscribes(t *testing.T) {
	h := New()
	url := startWSServer(t, h)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.WriteJSON(ClientMessage{Op: OpJoin, Topic: "outlet:1"})
	var r Reply
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&r); err != nil || !r.OK {
		t.Fatalf("join failed: %+v %v", r, err)
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for h.Subscribers("outlet:1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription survived the disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
