package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderhub/internal/order/app/core"
	"orderhub/internal/order/domain/kot"
	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/order/domain/models"
	"orderhub/internal/xpkg/logger"

	"github.com/google/uuid"
)

// OrderService runs every order mutation as load, pure domain step,
// revision-checked save and then fan-out.
type OrderService struct {
	orderRepo core.IOrderRepo
	directory core.IDirectory
	publisher core.IPublisher
	mylog     logger.Logger

	now   func() time.Time
	newID func() string
}

func NewOrderService(
	orderRepo core.IOrderRepo,
	directory core.IDirectory,
	publisher core.IPublisher,
	mylogger logger.Logger,
) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		directory: directory,
		publisher: publisher,
		mylog:     mylogger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

func (os *OrderService) Create(ctx context.Context, draft lifecycle.Draft, actor lifecycle.Actor) (models.Order, error) {
	mylog := os.mylog.Action("create_order")

	if draft.RestaurantID == "" && os.directory != nil {
		if outlet, err := os.directory.Outlet(ctx, draft.OutletID); err == nil {
			draft.RestaurantID = outlet.RestaurantID
		}
	}

	number, err := os.orderRepo.NextNumber(ctx)
	if err != nil {
		mylog.Error("Failed to allocate order number", err)
		return models.Order{}, fmt.Errorf("cannot allocate order number: %w", err)
	}

	res, err := lifecycle.NewOrder(draft, os.newID(), number, actor, os.now())
	if err != nil {
		return models.Order{}, err
	}

	created, err := os.orderRepo.Create(ctx, res.Order, res.Log)
	if err != nil {
		if errors.Is(err, core.ErrDBConn) {
			mylog.Error("Failed to connect to db", err)
			return models.Order{}, fmt.Errorf("cannot connect to db: %w", err)
		}
		mylog.Error("Failed to save order record", err)
		return models.Order{}, fmt.Errorf("cannot save order: %w", err)
	}

	res.Publish.Order = created
	os.publish(ctx, res.Publish)

	mylog.WithGroup("details").With("order_id", created.ID, "order_number", created.Number, "payment_status", created.PaymentStatus).Info("Order created successfully")
	return created, nil
}

func (os *OrderService) Transition(ctx context.Context, orderID string, to models.Status, actor lifecycle.Actor) (models.Order, error) {
	return os.apply(ctx, "transition_order", orderID, func(o models.Order) (lifecycle.Result, error) {
		return lifecycle.Transition(o, to, actor, os.now())
	})
}

// MarkPaid confirms payment. Calling it for an already paid order returns
// the stored order unchanged.
func (os *OrderService) MarkPaid(ctx context.Context, orderID string) (models.Order, error) {
	return os.apply(ctx, "mark_paid", orderID, func(o models.Order) (lifecycle.Result, error) {
		return lifecycle.MarkPaid(o, os.now())
	})
}

// AddItems is an outlet operation: the total is fixed at creation, so
// customers cannot append to their own orders.
func (os *OrderService) AddItems(ctx context.Context, orderID string, items []models.LineItem, actor lifecycle.Actor) (models.Order, error) {
	return os.apply(ctx, "add_items", orderID, func(o models.Order) (lifecycle.Result, error) {
		if err := lifecycle.AuthorizeOutlet(o, actor); err != nil {
			return lifecycle.Result{}, err
		}
		return lifecycle.AddItems(o, items, os.now())
	})
}

// GenerateTicket prints the not yet ticketed items (or the selected ones)
// and persists their generated flags.
func (os *OrderService) GenerateTicket(ctx context.Context, orderID string, itemIDs []string, actor lifecycle.Actor) (models.Order, kot.Ticket, error) {
	var ticket kot.Ticket
	order, err := os.apply(ctx, "generate_ticket", orderID, func(o models.Order) (lifecycle.Result, error) {
		if err := lifecycle.AuthorizeOutlet(o, actor); err != nil {
			return lifecycle.Result{}, err
		}
		meta := kot.TicketMeta{}
		if os.directory != nil {
			outlet, err := os.directory.Outlet(ctx, o.OutletID)
			if err != nil && !errors.Is(err, core.ErrOutletNotFound) {
				return lifecycle.Result{}, fmt.Errorf("cannot resolve outlet: %w", err)
			}
			meta = kot.TicketMeta{RestaurantName: outlet.RestaurantName, OutletName: outlet.Name}
		}

		res, t, err := kot.Generate(o, itemIDs, meta, os.now())
		if err != nil {
			return lifecycle.Result{}, err
		}
		ticket = t
		return res, nil
	})
	if err != nil {
		return models.Order{}, kot.Ticket{}, err
	}
	return order, ticket, nil
}

func (os *OrderService) Get(ctx context.Context, orderID string) (models.Order, error) {
	return os.orderRepo.Get(ctx, orderID)
}

// ListByOutlet returns paid orders only, newest first.
func (os *OrderService) ListByOutlet(ctx context.Context, outletID string) ([]models.Order, error) {
	return os.orderRepo.ListByOutlet(ctx, outletID)
}

func (os *OrderService) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return os.orderRepo.ListByUser(ctx, userID)
}

func (os *OrderService) History(ctx context.Context, orderID string) ([]models.StatusLog, error) {
	return os.orderRepo.History(ctx, orderID)
}

func (os *OrderService) apply(ctx context.Context, action, orderID string, op func(models.Order) (lifecycle.Result, error)) (models.Order, error) {
	mylog := os.mylog.Action(action).With("order_id", orderID)

	current, err := os.orderRepo.Get(ctx, orderID)
	if err != nil {
		if !errors.Is(err, core.ErrOrderNotFound) {
			mylog.Error("Failed to load order", err)
		}
		return models.Order{}, err
	}

	res, err := op(current)
	if err != nil {
		mylog.Debug("Order operation rejected", "reason", err.Error())
		return models.Order{}, err
	}
	if !res.Changed {
		return current, nil
	}

	saved, err := os.orderRepo.Save(ctx, res.Order, current.Revision, res.Log)
	if err != nil {
		if errors.Is(err, core.ErrStoreConflict) {
			mylog.Warn("Order changed concurrently", "expected_revision", current.Revision)
		} else {
			mylog.Error("Failed to save order", err)
		}
		return models.Order{}, err
	}

	res.Publish.Order = saved
	os.publish(ctx, res.Publish)

	mylog.WithGroup("details").With("status", saved.Status, "payment_status", saved.PaymentStatus, "revision", saved.Revision).Info("Order updated")
	return saved, nil
}

// publish failures are logged, never returned.
func (os *OrderService) publish(ctx context.Context, req lifecycle.PublishRequest) {
	if req.Empty() || os.publisher == nil {
		return
	}
	if err := os.publisher.Publish(ctx, req); err != nil {
		os.mylog.Action("publish_failed").Error("Failed to fan out order event",
			fmt.Errorf("%w: %v", core.ErrTransportUnavailable, err),
			"order_id", req.Order.ID, "event", req.Kind, "topics", req.Topics)
	}
}
