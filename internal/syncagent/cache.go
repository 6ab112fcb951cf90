// Package syncagent keeps a client's local view of orders for one outlet
// or one user. Refetches are authoritative; pushed events only shorten
// the time until the view catches up.
package syncagent

import (
	"fmt"

	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/order/domain/models"
)

type ScopeKind string

const (
	ScopeOutlet ScopeKind = "outlet"
	ScopeUser   ScopeKind = "user"
)

// Scope names whose orders a cache holds.
type Scope struct {
	Kind ScopeKind
	ID   string
}

func (s Scope) Valid() bool {
	return (s.Kind == ScopeOutlet || s.Kind == ScopeUser) && s.ID != ""
}

// Topic is the fan-out topic carrying this scope's events.
func (s Scope) Topic() string {
	if s.Kind == ScopeOutlet {
		return lifecycle.OutletTopic(s.ID)
	}
	return lifecycle.UserTopic(s.ID)
}

// Key identifies the scope in the persistent store.
func (s Scope) Key() string {
	return fmt.Sprintf("%s-%s", s.Kind, s.ID)
}

// Cache is an ordered list of orders, most recent first. It is not safe
// for concurrent use; an Agent owns its cache.
type Cache struct {
	orders []models.Order
}

func NewCache(orders []models.Order) *Cache {
	c := &Cache{}
	c.Replace(orders)
	return c
}

// ApplyEvent upserts the snapshot by order id. A known order is
// overwritten in place; an unknown one goes to the front. A snapshot with
// an older revision than the cached one is ignored. Reports whether the
// cache changed.
func (c *Cache) ApplyEvent(o models.Order) bool {
	for i := range c.orders {
		if c.orders[i].ID != o.ID {
			continue
		}
		if o.Revision != 0 && o.Revision < c.orders[i].Revision {
			return false
		}
		c.orders[i] = o.Clone()
		return true
	}
	c.orders = append([]models.Order{o.Clone()}, c.orders...)
	return true
}

// AcceptPaymentEvent is ApplyEvent for outlet views: unpaid orders are
// never admitted.
func (c *Cache) AcceptPaymentEvent(o models.Order) bool {
	if !o.Paid() {
		return false
	}
	return c.ApplyEvent(o)
}

// Replace swaps in the result of a full refetch.
func (c *Cache) Replace(orders []models.Order) {
	c.orders = make([]models.Order, 0, len(orders))
	for _, o := range orders {
		c.orders = append(c.orders, o.Clone())
	}
}

// Orders returns a copy of the cached list.
func (c *Cache) Orders() []models.Order {
	out := make([]models.Order, 0, len(c.orders))
	for _, o := range c.orders {
		out = append(out, o.Clone())
	}
	return out
}

func (c *Cache) Len() int {
	return len(c.orders)
}
