package lifecycle

import (
	"fmt"
	"time"

	"orderhub/internal/order/domain/models"
)

// Result is the outcome of a lifecycle operation: the updated order, the
// snapshot to fan out and an optional status log entry to persist with it.
type Result struct {
	Order   models.Order
	Publish PublishRequest
	Log     *models.StatusLog
	Changed bool
}

// successors lists the direct forward edges. ready is resolved per order type.
var successors = map[models.Status][]models.Status{
	models.StatusPending:        {models.StatusConfirmed},
	models.StatusConfirmed:      {models.StatusPreparing},
	models.StatusPreparing:      {models.StatusReady},
	models.StatusOutForDelivery: {models.StatusDelivered},
}

// Next returns the statuses directly reachable from the order's current status.
func Next(o models.Order) []models.Status {
	if o.Status.Terminal() {
		return nil
	}
	var next []models.Status
	if o.Status == models.StatusReady {
		if o.Type == models.TypeDelivery {
			next = []models.Status{models.StatusOutForDelivery}
		} else {
			next = []models.Status{models.StatusDelivered}
		}
	} else {
		next = append(next, successors[o.Status]...)
	}
	return append(next, models.StatusCancelled)
}

// CanTransition reports whether to is a direct successor of the current status.
func CanTransition(o models.Order, to models.Status) bool {
	for _, s := range Next(o) {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the order one step along the lifecycle.
func Transition(o models.Order, to models.Status, actor Actor, now time.Time) (Result, error) {
	if !to.Valid() {
		return Result{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(o, to) {
		return Result{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	if !o.Paid() {
		return Result{}, fmt.Errorf("%w: order %s is unpaid", ErrPaymentRequired, o.ID)
	}
	if err := authorize(o, to, actor); err != nil {
		return Result{}, err
	}

	updated := o.Clone()
	updated.Status = to
	updated.UpdatedAt = now

	return Result{
		Order:   updated,
		Publish: publish(EventOrderUpdated, updated),
		Log: &models.StatusLog{
			OrderID:   o.ID,
			Status:    string(to),
			ChangedBy: actor.String(),
			ChangedAt: now,
			Note:      fmt.Sprintf("%s -> %s", o.Status, to),
		},
		Changed: true,
	}, nil
}

// AuthorizeOutlet admits system actors and the staff or owners of the order's outlet.
func AuthorizeOutlet(o models.Order, actor Actor) error {
	if !actor.ServesOutlet(o.OutletID) {
		return fmt.Errorf("%w: %s does not serve outlet %s", ErrActorNotAllowed, actor, o.OutletID)
	}
	return nil
}

// authorize limits customers to cancelling their own order before it is confirmed.
func authorize(o models.Order, to models.Status, actor Actor) error {
	switch actor.Role {
	case RoleStaff, RoleOwner, RoleSystem:
		return AuthorizeOutlet(o, actor)
	case RoleCustomer:
		if to != models.StatusCancelled || o.Status != models.StatusPending {
			return fmt.Errorf("%w: customers may only cancel pending orders", ErrActorNotAllowed)
		}
		if o.Customer.Authenticated() && actor.ID != o.Customer.UserID {
			return fmt.Errorf("%w: order belongs to another customer", ErrActorNotAllowed)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown role %q", ErrActorNotAllowed, actor.Role)
	}
}

// MarkPaid records payment once. A second call is a no-op returning the
// order unchanged. Cancelled orders still record payment so refunds can
// be reconciled; their status stays cancelled.
func MarkPaid(o models.Order, now time.Time) (Result, error) {
	if o.Paid() {
		return Result{Order: o}, nil
	}

	updated := o.Clone()
	updated.PaymentStatus = models.PaymentPaid
	paidAt := now
	updated.PaidAt = &paidAt
	updated.UpdatedAt = now

	return Result{
		Order:   updated,
		Publish: publish(EventPaymentUpdated, updated),
		Log: &models.StatusLog{
			OrderID:   o.ID,
			Status:    string(updated.Status),
			ChangedBy: string(RoleSystem),
			ChangedAt: now,
			Note:      "payment confirmed",
		},
		Changed: true,
	}, nil
}

// Label is the human readable status for an order type. Only ready varies.
func Label(t models.OrderType, s models.Status) string {
	switch s {
	case models.StatusReady:
		switch t {
		case models.TypeDelivery:
			return "out for delivery"
		case models.TypeDineIn:
			return "started preparing"
		case models.TypeTakeaway:
			return "packed"
		}
		return "ready"
	case models.StatusOutForDelivery:
		return "out for delivery"
	default:
		return string(s)
	}
}
