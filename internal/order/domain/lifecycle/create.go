package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"orderhub/internal/order/domain/models"

	"github.com/shopspring/decimal"
)

const (
	MinItems           = 1
	MaxItems           = 50
	MinItemQuantity    = 1
	MaxItemQuantity    = 100
	MaxItemNameLen     = 100
	MaxTableNumberLen  = 10
	MinDeliveryAddrLen = 5
	MaxDeliveryAddrLen = 300
	MaxCustomerNameLen = 100
	// PricePlaces is the scale of stored money columns.
	PricePlaces = 2
)

// Draft is an order as submitted, before the store assigns identity.
type Draft struct {
	Items           []models.LineItem
	OutletID        string
	RestaurantID    string
	Type            models.OrderType
	TableNumber     string
	DeliveryAddress string
	PaymentType     models.PaymentType
	Customer        models.Customer
}

// NewOrder validates the draft and builds the initial order. pay_now orders
// are paid at creation; pay_later orders start unpaid and stay invisible to
// outlet views until MarkPaid.
func NewOrder(d Draft, id, number string, actor Actor, now time.Time) (Result, error) {
	if err := validateDraft(&d); err != nil {
		return Result{}, err
	}

	o := models.Order{
		ID:              id,
		Number:          number,
		Items:           append([]models.LineItem(nil), d.Items...),
		OutletID:        d.OutletID,
		RestaurantID:    d.RestaurantID,
		Type:            d.Type,
		TableNumber:     d.TableNumber,
		DeliveryAddress: d.DeliveryAddress,
		PaymentType:     d.PaymentType,
		PaymentStatus:   models.PaymentPending,
		Status:          models.StatusPending,
		KOTItems:        kotRefs(d.Items),
		TotalPrice:      total(d.Items),
		Customer:        d.Customer,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if d.PaymentType == models.PayNow {
		o.PaymentStatus = models.PaymentPaid
		paidAt := now
		o.PaidAt = &paidAt
	}

	return Result{
		Order:   o,
		Publish: publish(EventOrderCreated, o),
		Log: &models.StatusLog{
			OrderID:   id,
			Status:    string(models.StatusPending),
			ChangedBy: actor.String(),
			ChangedAt: now,
			Note:      "order created",
		},
		Changed: true,
	}, nil
}

// AddItems appends new, distinct line items to an open order together with
// their kitchen tracking entries. TotalPrice is fixed at creation and is
// not recomputed.
func AddItems(o models.Order, items []models.LineItem, now time.Time) (Result, error) {
	if o.Status.Terminal() {
		return Result{}, fmt.Errorf("%w: status %s", ErrOrderClosed, o.Status)
	}
	if len(items) == 0 {
		return Result{}, fmt.Errorf("%w: no items to add", ErrInvalidOrder)
	}
	if len(o.Items)+len(items) > MaxItems {
		return Result{}, fmt.Errorf("%w: order cannot hold more than %d items", ErrInvalidOrder, MaxItems)
	}

	seen := make(map[string]bool, len(o.Items)+len(items))
	for _, li := range o.Items {
		seen[li.ItemID] = true
	}
	for i := range items {
		if err := validateItem(i, &items[i]); err != nil {
			return Result{}, err
		}
		if seen[items[i].ItemID] {
			return Result{}, fmt.Errorf("%w: %s", ErrDuplicateItem, items[i].ItemID)
		}
		seen[items[i].ItemID] = true
	}

	updated := o.Clone()
	updated.Items = append(updated.Items, items...)
	updated.KOTItems = append(updated.KOTItems, kotRefs(items)...)
	updated.UpdatedAt = now

	return Result{
		Order:   updated,
		Publish: publish(EventOrderUpdated, updated),
		Changed: true,
	}, nil
}

func validateDraft(d *Draft) error {
	if strings.TrimSpace(d.OutletID) == "" {
		return fmt.Errorf("%w: outlet is required", ErrInvalidOrder)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: undefined order type %q", ErrInvalidOrder, d.Type)
	}
	if !d.PaymentType.Valid() {
		return fmt.Errorf("%w: undefined payment type %q", ErrInvalidOrder, d.PaymentType)
	}

	switch d.Type {
	case models.TypeDineIn:
		d.DeliveryAddress = ""
		d.TableNumber = strings.TrimSpace(d.TableNumber)
		if d.TableNumber == "" {
			return fmt.Errorf("%w: table number is required for dine_in", ErrInvalidOrder)
		}
		if len(d.TableNumber) > MaxTableNumberLen {
			return fmt.Errorf("%w: table number longer than %d", ErrInvalidOrder, MaxTableNumberLen)
		}
	case models.TypeDelivery:
		d.TableNumber = ""
		d.DeliveryAddress = strings.TrimSpace(d.DeliveryAddress)
		if l := len(d.DeliveryAddress); l < MinDeliveryAddrLen || l > MaxDeliveryAddrLen {
			return fmt.Errorf("%w: delivery address length %d, must be in range [%d, %d]", ErrInvalidOrder, l, MinDeliveryAddrLen, MaxDeliveryAddrLen)
		}
	case models.TypeTakeaway:
		d.TableNumber = ""
		d.DeliveryAddress = ""
	}

	if err := validateCustomer(d.Customer); err != nil {
		return err
	}

	if n := len(d.Items); n < MinItems || n > MaxItems {
		return fmt.Errorf("%w: amount of items %d, must be in range [%d, %d]", ErrInvalidOrder, n, MinItems, MaxItems)
	}
	seen := make(map[string]bool, len(d.Items))
	for i := range d.Items {
		if err := validateItem(i, &d.Items[i]); err != nil {
			return err
		}
		if seen[d.Items[i].ItemID] {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, d.Items[i].ItemID)
		}
		seen[d.Items[i].ItemID] = true
	}
	return nil
}

func validateCustomer(c models.Customer) error {
	hasUser := c.UserID != ""
	hasGuest := c.Guest != nil
	switch {
	case hasUser && hasGuest:
		return fmt.Errorf("%w: customer is either a user or a guest", ErrInvalidOrder)
	case !hasUser && !hasGuest:
		return fmt.Errorf("%w: customer is required", ErrInvalidOrder)
	case hasGuest:
		name := strings.TrimSpace(c.Guest.Name)
		if name == "" || len(name) > MaxCustomerNameLen {
			return fmt.Errorf("%w: guest name must be 1..%d characters", ErrInvalidOrder, MaxCustomerNameLen)
		}
		if c.Guest.Email == "" && c.Guest.Phone == "" {
			return fmt.Errorf("%w: guest needs an email or a phone", ErrInvalidOrder)
		}
	}
	return nil
}

func validateItem(i int, item *models.LineItem) error {
	item.ItemID = strings.TrimSpace(item.ItemID)
	item.Name = strings.TrimSpace(item.Name)
	if item.ItemID == "" {
		return fmt.Errorf("%w: item %d: id is required", ErrInvalidOrder, i+1)
	}
	if item.Name == "" || len(item.Name) > MaxItemNameLen {
		return fmt.Errorf("%w: item %d: name must be 1..%d characters", ErrInvalidOrder, i+1, MaxItemNameLen)
	}
	if item.Quantity < MinItemQuantity || item.Quantity > MaxItemQuantity {
		return fmt.Errorf("%w: item %d: quantity %d, must be in range [%d, %d]", ErrInvalidOrder, i+1, item.Quantity, MinItemQuantity, MaxItemQuantity)
	}
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: item %d: price cannot be negative", ErrInvalidOrder, i+1)
	}
	if !item.UnitPrice.Equal(item.UnitPrice.Round(PricePlaces)) {
		return fmt.Errorf("%w: item %d: price %s has more than %d decimal places", ErrInvalidOrder, i+1, item.UnitPrice, PricePlaces)
	}
	return nil
}

func kotRefs(items []models.LineItem) []models.KOTLineRef {
	refs := make([]models.KOTLineRef, 0, len(items))
	for _, li := range items {
		refs = append(refs, models.KOTLineRef{ItemID: li.ItemID, ItemName: li.Name})
	}
	return refs
}

func total(items []models.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, li := range items {
		sum = sum.Add(li.Subtotal())
	}
	return sum
}
