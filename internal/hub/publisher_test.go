package hub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/order/domain/models"
	"orderhub/internal/xpkg/rabbitmq"
)

type fakeBroker struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (b *fakeBroker) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	if exchange != rabbitmq.OrderEventsExchange {
		return errors.New("unexpected exchange " + exchange)
	}
	b.keys = append(b.keys, routingKey)
	b.bodies = append(b.bodies, body)
	return b.err
}

func TestLocalPublisherFansOutToEveryTopic(t *testing.T) {
	h := New()
	outlet := NewSubscriber(2)
	user := NewSubscriber(2)
	h.Subscribe("outlet:1", outlet)
	h.Subscribe("user:7", user)

	req := lifecycle.PublishRequest{
		Topics: []string{"outlet:1", "user:7"},
		Kind:   lifecycle.EventPaymentUpdated,
		Order:  models.Order{ID: "o1"},
	}
	if err := NewLocalPublisher(h).Publish(context.Background(), req); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	for _, sub := range []*Subscriber{outlet, user} {
		ev := <-sub.Events()
		if ev.Kind != lifecycle.EventPaymentUpdated || ev.Order.ID != "o1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
}

func TestBrokerPublisherRoutesByTopic(t *testing.T) {
	b := &fakeBroker{}
	req := lifecycle.PublishRequest{
		Topics: []string{"outlet:1", "user:7"},
		Kind:   lifecycle.EventOrderCreated,
		Order:  models.Order{ID: "o1"},
	}
	if err := NewBrokerPublisher(b).Publish(context.Background(), req); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(b.keys) != 2 || b.keys[0] != "outlet:1" || b.keys[1] != "user:7" {
		t.Fatalf("unexpected routing keys %v", b.keys)
	}
	var ev Event
	if err := json.Unmarshal(b.bodies[1], &ev); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if ev.Topic != "user:7" || ev.Kind != lifecycle.EventOrderCreated {
		t.Fatalf("unexpected event %+v", ev)
	}

	b.err = errors.New("channel closed")
	if err := NewBrokerPublisher(b).Publish(context.Background(), req); err == nil {
		t.Fatal("expected broker error to surface")
	}
}

func TestBridgeDispatchRepublishesLocally(t *testing.T) {
	h := New()
	sub := NewSubscriber(2)
	h.Subscribe("outlet:1", sub)
	bridge := &BrokerBridge{hub: h}

	body, _ := json.Marshal(Event{Kind: lifecycle.EventOrderUpdated, Topic: "outlet:1", Order: models.Order{ID: "o2"}})
	if err := bridge.dispatch(body); err != nil {
		t.Fatalf("dispatch returned error: %v", err)
	}
	if ev := <-sub.Events(); ev.Order.ID != "o2" {
		t.Fatalf("unexpected event %+v", ev)
	}

	if err := bridge.dispatch([]byte("{")); err == nil {
		t.Fatal("expected malformed body to fail")
	}
	if err := bridge.dispatch([]byte(`{"eventKind":"order_updated"}`)); !errors.Is(err, ErrEmptyTopic) {
		t.Fatalf("expected ErrEmptyTopic, got %v", err)
	}
}
