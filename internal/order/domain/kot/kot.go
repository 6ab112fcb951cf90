// Package kot tracks which line items of an order have been sent to the
// kitchen and produces kitchen order tickets for the rest.
package kot

import (
	"errors"
	"fmt"
	"time"

	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/order/domain/models"

	"github.com/shopspring/decimal"
)

var ErrNothingToPrint = errors.New("nothing to print")

// TicketMeta carries the display names the order itself does not hold.
type TicketMeta struct {
	RestaurantName string
	OutletName     string
}

type TicketLine struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type Ticket struct {
	OrderID        string       `json:"orderId"`
	OrderNumber    string       `json:"orderNumber"`
	RestaurantName string       `json:"restaurantName"`
	OutletName     string       `json:"outletName"`
	OrderType      string       `json:"orderType"`
	TableNumber    string       `json:"tableNumber,omitempty"`
	CustomerName   string       `json:"customerName"`
	Items          []TicketLine `json:"items"`
	GeneratedAt    time.Time    `json:"generatedAt"`
}

// Pending returns the ids of line items not yet sent to the kitchen.
func Pending(o models.Order) []string {
	var ids []string
	for _, ref := range o.KOTItems {
		if !ref.KOTGenerated {
			ids = append(ids, ref.ItemID)
		}
	}
	return ids
}

// Generate selects unprinted entries (all of them when itemIDs is empty,
// otherwise only the listed ones), marks them generated and returns the
// ticket. Entries already printed are never selected again.
func Generate(o models.Order, itemIDs []string, meta TicketMeta, now time.Time) (lifecycle.Result, Ticket, error) {
	if !o.Paid() {
		return lifecycle.Result{}, Ticket{}, fmt.Errorf("%w: order %s is unpaid", lifecycle.ErrPaymentRequired, o.ID)
	}
	if o.Status.Terminal() {
		return lifecycle.Result{}, Ticket{}, fmt.Errorf("%w: status %s", lifecycle.ErrOrderClosed, o.Status)
	}

	var wanted map[string]bool
	if len(itemIDs) > 0 {
		wanted = make(map[string]bool, len(itemIDs))
		for _, id := range itemIDs {
			wanted[id] = true
		}
	}

	lines := make(map[string]models.LineItem, len(o.Items))
	for _, li := range o.Items {
		lines[li.ItemID] = li
	}

	updated := o.Clone()
	var selected []TicketLine
	for i, ref := range updated.KOTItems {
		if ref.KOTGenerated {
			continue
		}
		if wanted != nil && !wanted[ref.ItemID] {
			continue
		}
		li, ok := lines[ref.ItemID]
		if !ok {
			continue
		}
		updated.KOTItems[i].KOTGenerated = true
		selected = append(selected, TicketLine{
			ItemID:    li.ItemID,
			Name:      ref.ItemName,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
		})
	}
	if len(selected) == 0 {
		return lifecycle.Result{}, Ticket{}, ErrNothingToPrint
	}
	updated.UpdatedAt = now

	ticket := Ticket{
		OrderID:        o.ID,
		OrderNumber:    o.Number,
		RestaurantName: meta.RestaurantName,
		OutletName:     meta.OutletName,
		OrderType:      string(o.Type),
		TableNumber:    o.TableNumber,
		CustomerName:   o.Customer.DisplayName(),
		Items:          selected,
		GeneratedAt:    now,
	}

	return lifecycle.Result{
		Order: updated,
		Publish: lifecycle.PublishRequest{
			Topics: lifecycle.Topics(updated),
			Kind:   lifecycle.EventOrderUpdated,
			Order:  updated,
		},
		Changed: true,
	}, ticket, nil
}
