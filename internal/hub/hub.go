// Package hub fans order snapshots out to subscribers of outlet and user
// topics. Delivery is best effort and at most once per handle; a handle
// that falls behind loses events and is expected to refetch.
package hub

import (
	"errors"
	"fmt"
	"sync"

	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/order/domain/models"
	"orderhub/internal/xpkg/logger"
)

var (
	ErrBufferFull  = errors.New("subscriber buffer full")
	ErrClosed      = errors.New("subscriber closed")
	ErrUnknownKind = errors.New("unknown event kind")
	ErrEmptyTopic  = errors.New("topic is empty")
)

// Event is the push payload sent to clients.
type Event struct {
	Kind  lifecycle.EventKind `json:"eventKind"`
	Topic string              `json:"topic"`
	Order models.Order        `json:"order"`
}

// Handle is a connected subscriber. Send must not block; it returns
// ErrBufferFull when the event is dropped.
type Handle interface {
	HandleID() string
	Send(Event) error
}

type Option func(*Hub)

func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.mylog = l
		}
	}
}

type topic struct {
	mu   sync.Mutex
	subs map[string]Handle
	// join order, so delivery order is stable
	order []string
}

// Hub keeps the topic registry. The registry map has its own lock; every
// topic serializes its own subscribe, unsubscribe and publish.
type Hub struct {
	mu          sync.Mutex
	topics      map[string]*topic
	memberships map[string]map[string]struct{}
	mylog       logger.Logger
}

func New(opts ...Option) *Hub {
	h := &Hub{
		topics:      make(map[string]*topic),
		memberships: make(map[string]map[string]struct{}),
		mylog:       logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Subscribe adds the handle to the topic. Repeating it is a no-op.
func (h *Hub) Subscribe(name string, handle Handle) error {
	if name == "" {
		return ErrEmptyTopic
	}
	id := handle.HandleID()

	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.topics[name]
	if t == nil {
		t = &topic{subs: make(map[string]Handle)}
		h.topics[name] = t
	}
	t.mu.Lock()
	if _, ok := t.subs[id]; !ok {
		t.subs[id] = handle
		t.order = append(t.order, id)
	}
	t.mu.Unlock()

	if h.memberships[id] == nil {
		h.memberships[id] = make(map[string]struct{})
	}
	h.memberships[id][name] = struct{}{}
	return nil
}

// Leave removes the handle from a single topic.
func (h *Hub) Leave(name string, handle Handle) {
	id := handle.HandleID()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(name, id)
	if m := h.memberships[id]; m != nil {
		delete(m, name)
		if len(m) == 0 {
			delete(h.memberships, id)
		}
	}
}

// Unsubscribe removes the handle from every topic it joined.
func (h *Hub) Unsubscribe(handle Handle) {
	id := handle.HandleID()

	h.mu.Lock()
	defer h.mu.Unlock()

	for name := range h.memberships[id] {
		h.removeLocked(name, id)
	}
	delete(h.memberships, id)
}

func (h *Hub) removeLocked(name, id string) {
	t := h.topics[name]
	if t == nil {
		return
	}
	t.mu.Lock()
	if _, ok := t.subs[id]; ok {
		delete(t.subs, id)
		for i, v := range t.order {
			if v == id {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
	empty := len(t.subs) == 0
	t.mu.Unlock()
	if empty {
		delete(h.topics, name)
	}
}

// Publish delivers the snapshot to every current subscriber of the topic
// and returns how many accepted it.
func (h *Hub) Publish(name string, kind lifecycle.EventKind, order models.Order) (int, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	h.mu.Lock()
	t := h.topics[name]
	h.mu.Unlock()
	if t == nil {
		return 0, nil
	}

	ev := Event{Kind: kind, Topic: name, Order: order}

	t.mu.Lock()
	defer t.mu.Unlock()

	delivered := 0
	for _, id := range t.order {
		if err := t.subs[id].Send(ev); err != nil {
			h.mylog.Action("event_dropped").Warn("Dropped event for subscriber",
				"topic", name, "handle", id, "event", kind, "order_id", order.ID, "reason", err.Error())
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Subscribers reports the number of handles on a topic.
func (h *Hub) Subscribers(name string) int {
	h.mu.Lock()
	t := h.topics[name]
	h.mu.Unlock()
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
