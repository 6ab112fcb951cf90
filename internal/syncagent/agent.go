package syncagent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderhub/internal/hub"
	"orderhub/internal/order/domain/models"
	"orderhub/internal/xpkg/logger"
)

const (
	DefaultRefetchInterval = 30 * time.Second
	inboxSize              = 256
)

var ErrInvalidScope = errors.New("invalid scope")

// Fetcher loads the authoritative order list for a scope.
type Fetcher interface {
	Fetch(ctx context.Context, scope Scope) ([]models.Order, error)
}

type ActionKind string

const (
	ActionTransition     ActionKind = "transition"
	ActionGenerateTicket ActionKind = "generate_ticket"
	ActionAddItems       ActionKind = "add_items"
)

// Action is a change the agent asks the server to make.
type Action struct {
	Kind    ActionKind
	OrderID string
	Status  models.Status
	ItemIDs []string
	Items   []models.LineItem
}

// Submitter sends an action and returns the order as the server stored it.
type Submitter interface {
	Submit(ctx context.Context, a Action) (models.Order, error)
}

type msg interface{ isMsg() }

type eventMsg struct{ ev hub.Event }

type refetchMsg struct{}

type connectedMsg struct{}

type disconnectedMsg struct{ err error }

type localUpdateMsg struct{ order models.Order }

type snapshotMsg struct{ reply chan []models.Order }

func (eventMsg) isMsg()        {}
func (refetchMsg) isMsg()      {}
func (connectedMsg) isMsg()    {}
func (disconnectedMsg) isMsg() {}
func (localUpdateMsg) isMsg()  {}
func (snapshotMsg) isMsg()     {}

type Option func(*Agent)

func WithRefetchInterval(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.interval = d
		}
	}
}

func WithPersister(p Persister) Option {
	return func(a *Agent) {
		a.store = p
	}
}

func WithLogger(l logger.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.mylog = l
		}
	}
}

// WithOnChange registers a callback run on the agent goroutine after
// every cache change. It must not block.
func WithOnChange(fn func([]models.Order)) Option {
	return func(a *Agent) {
		a.onChange = fn
	}
}

// Agent serializes everything that touches its cache through one inbox.
type Agent struct {
	scope     Scope
	cache     *Cache
	fetcher   Fetcher
	submitter Submitter
	store     Persister
	interval  time.Duration
	inbox     chan msg
	onChange  func([]models.Order)
	mylog     logger.Logger
}

// New builds an agent and seeds its cache from the persister, so a
// restart shows the last known view before the first refetch.
func New(scope Scope, fetcher Fetcher, submitter Submitter, opts ...Option) (*Agent, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %q %q", ErrInvalidScope, scope.Kind, scope.ID)
	}
	a := &Agent{
		scope:     scope,
		cache:     NewCache(nil),
		fetcher:   fetcher,
		submitter: submitter,
		interval:  DefaultRefetchInterval,
		inbox:     make(chan msg, inboxSize),
		mylog:     logger.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.mylog = a.mylog.With("scope", scope.Key())

	if a.store != nil {
		orders, err := a.store.Load(scope)
		if err != nil {
			a.mylog.Action("cache_load_failed").Error("Failed to load persisted cache", err)
		} else {
			a.cache.Replace(orders)
		}
	}
	return a, nil
}

func (a *Agent) Scope() Scope {
	return a.scope
}

// Run processes the inbox until ctx ends. It refetches once on start and
// then on every tick.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.refetch(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.refetch(ctx)
		case m := <-a.inbox:
			a.handle(ctx, m)
		}
	}
}

func (a *Agent) handle(ctx context.Context, m msg) {
	switch m := m.(type) {
	case eventMsg:
		if a.accept(m.ev.Order) {
			a.changed()
		}
	case localUpdateMsg:
		if a.accept(m.order) {
			a.changed()
		}
	case refetchMsg:
		a.refetch(ctx)
	case connectedMsg:
		a.mylog.Action("transport_connected").Info("Transport connected, refetching")
		a.refetch(ctx)
	case disconnectedMsg:
		a.mylog.Action("transport_disconnected").Warn("Transport disconnected", "reason", errString(m.err))
	case snapshotMsg:
		m.reply <- a.cache.Orders()
	}
}

// accept routes a snapshot through the visibility rule of the scope.
func (a *Agent) accept(o models.Order) bool {
	if a.scope.Kind == ScopeOutlet {
		if o.OutletID != a.scope.ID {
			return false
		}
		return a.cache.AcceptPaymentEvent(o)
	}
	if o.Customer.UserID != a.scope.ID {
		return false
	}
	return a.cache.ApplyEvent(o)
}

// refetch replaces the cache. A failed fetch keeps the last known view.
func (a *Agent) refetch(ctx context.Context) {
	orders, err := a.fetcher.Fetch(ctx, a.scope)
	if err != nil {
		if ctx.Err() == nil {
			a.mylog.Action("refetch_failed").Error("Failed to refetch orders, keeping cached view", err)
		}
		return
	}
	a.cache.Replace(orders)
	a.changed()
	a.mylog.Action("refetched").Debug("Cache refreshed", "orders", len(orders))
}

func (a *Agent) changed() {
	orders := a.cache.Orders()
	if a.store != nil {
		if err := a.store.Save(a.scope, orders); err != nil {
			a.mylog.Action("cache_save_failed").Error("Failed to persist cache", err)
		}
	}
	if a.onChange != nil {
		a.onChange(orders)
	}
}

func (a *Agent) send(ctx context.Context, m msg) error {
	select {
	case a.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver queues a pushed event.
func (a *Agent) Deliver(ctx context.Context, ev hub.Event) error {
	return a.send(ctx, eventMsg{ev: ev})
}

func (a *Agent) Connected(ctx context.Context) error {
	return a.send(ctx, connectedMsg{})
}

func (a *Agent) Disconnected(ctx context.Context, err error) error {
	return a.send(ctx, disconnectedMsg{err: err})
}

// Refetch asks for a full reload on the agent goroutine.
func (a *Agent) Refetch(ctx context.Context) error {
	return a.send(ctx, refetchMsg{})
}

// Submit sends the action on the caller's goroutine. The returned order
// is applied only when the server confirms it; any failure, including a
// timeout, leaves the cache alone and schedules a refetch.
func (a *Agent) Submit(ctx context.Context, action Action) (models.Order, error) {
	order, err := a.submitter.Submit(ctx, action)
	if err != nil {
		a.mylog.Action("submit_failed").Warn("Action failed, will refetch", "kind", action.Kind, "order_id", action.OrderID, "reason", err.Error())
		select {
		case a.inbox <- refetchMsg{}:
		default:
		}
		return models.Order{}, err
	}
	if err := a.send(ctx, localUpdateMsg{order: order}); err != nil {
		return order, err
	}
	return order, nil
}

// Orders returns the current view. It goes through the inbox, so it
// blocks until Run picks it up.
func (a *Agent) Orders(ctx context.Context) ([]models.Order, error) {
	reply := make(chan []models.Order, 1)
	if err := a.send(ctx, snapshotMsg{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case orders := <-reply:
		return orders, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
