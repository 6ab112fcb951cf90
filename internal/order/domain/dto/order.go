package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"orderhub/internal/order/domain/kot"
	"orderhub/internal/order/domain/models"

	"github.com/shopspring/decimal"
)

// OutletRef accepts an outlet either as a bare id or as an embedded
// object ({"id": ...} or {"_id": ...}) and always holds the bare id.
type OutletRef string

func (r *OutletRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var obj struct {
			ID    string `json:"id"`
			MgoID string `json:"_id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return fmt.Errorf("outlet: %w", err)
		}
		if obj.ID != "" {
			*r = OutletRef(obj.ID)
		} else {
			*r = OutletRef(obj.MgoID)
		}
		return nil
	}
	var id string
	if err := json.Unmarshal(b, &id); err != nil {
		return fmt.Errorf("outlet: %w", err)
	}
	*r = OutletRef(id)
	return nil
}

type LineItemRequest struct {
	ItemID    string          `json:"itemId" binding:"required,max=64"`
	Name      string          `json:"name" binding:"required,max=100"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity" binding:"required,min=1,max=100"`
	PhotoRef  string          `json:"photoRef"`
}

type GuestRequest struct {
	Name  string `json:"name" binding:"required,max=100"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone" binding:"omitempty,max=32"`
}

type CreateOrderRequest struct {
	OutletID        OutletRef         `json:"outletId" binding:"required"`
	RestaurantID    string            `json:"restaurantId"`
	OrderType       string            `json:"orderType" binding:"required,oneof=dine_in takeaway delivery"`
	TableNumber     string            `json:"tableNumber"`
	DeliveryAddress string            `json:"deliveryAddress"`
	PaymentType     string            `json:"paymentType" binding:"required,oneof=pay_now pay_later"`
	Items           []LineItemRequest `json:"items" binding:"required,min=1,dive"`
	Guest           *GuestRequest     `json:"guest"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type AddItemsRequest struct {
	Items []LineItemRequest `json:"items" binding:"required,min=1,dive"`
}

type TicketRequest struct {
	ItemIDs []string `json:"itemIds"`
}

type PaymentConfirmation struct {
	OrderID string `json:"orderId" binding:"required"`
}

type TicketResponse struct {
	Order    models.Order `json:"order"`
	Ticket   kot.Ticket   `json:"ticket"`
	Document string       `json:"document"`
}

type NoticeResponse struct {
	Notice string `json:"notice"`
}

// OrderResponse adds the type dependent status label to the snapshot.
type OrderResponse struct {
	models.Order
	StatusLabel string `json:"statusLabel"`
}

func LineItems(reqs []LineItemRequest) []models.LineItem {
	items := make([]models.LineItem, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, models.LineItem{
			ItemID:    r.ItemID,
			Name:      r.Name,
			UnitPrice: r.UnitPrice,
			Quantity:  r.Quantity,
			PhotoRef:  r.PhotoRef,
		})
	}
	return items
}
