package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderType string

const (
	TypeDineIn   OrderType = "dine_in"
	TypeTakeaway OrderType = "takeaway"
	TypeDelivery OrderType = "delivery"
)

func (t OrderType) Valid() bool {
	switch t {
	case TypeDineIn, TypeTakeaway, TypeDelivery:
		return true
	}
	return false
}

type PaymentType string

const (
	PayNow   PaymentType = "pay_now"
	PayLater PaymentType = "pay_later"
)

func (p PaymentType) Valid() bool {
	return p == PayNow || p == PayLater
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further status change is legal.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type LineItem struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	PhotoRef  string          `json:"photoRef,omitempty"`
}

// Subtotal is UnitPrice * Quantity.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// KOTLineRef tracks whether a line item has been sent to the kitchen.
type KOTLineRef struct {
	ItemID       string `json:"itemId"`
	ItemName     string `json:"itemName"`
	KOTGenerated bool   `json:"kotGenerated"`
}

type GuestContact struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Customer is either an authenticated user or a guest, never both.
type Customer struct {
	UserID string        `json:"userId,omitempty"`
	Guest  *GuestContact `json:"guest,omitempty"`
}

func (c Customer) Authenticated() bool {
	return c.UserID != ""
}

// DisplayName is what kitchen tickets print.
func (c Customer) DisplayName() string {
	if c.Guest != nil && c.Guest.Name != "" {
		return c.Guest.Name
	}
	return c.UserID
}

type Order struct {
	ID              string          `json:"id"`
	Number          string          `json:"number"`
	Items           []LineItem      `json:"items"`
	OutletID        string          `json:"outletId"`
	RestaurantID    string          `json:"restaurantId"`
	Type            OrderType       `json:"orderType"`
	TableNumber     string          `json:"tableNumber,omitempty"`
	DeliveryAddress string          `json:"deliveryAddress,omitempty"`
	PaymentType     PaymentType     `json:"paymentType"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	Status          Status          `json:"status"`
	KOTItems        []KOTLineRef    `json:"kotItems"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	Customer        Customer        `json:"customer"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Revision        int64           `json:"revision"`
}

func (o Order) Paid() bool {
	return o.PaymentStatus == PaymentPaid
}

// Clone deep-copies the slices so callers can mutate the copy freely.
func (o Order) Clone() Order {
	c := o
	c.Items = append([]LineItem(nil), o.Items...)
	c.KOTItems = append([]KOTLineRef(nil), o.KOTItems...)
	if o.Customer.Guest != nil {
		g := *o.Customer.Guest
		c.Customer.Guest = &g
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	return c
}

// StatusLog is one row of an order's status history.
type StatusLog struct {
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
	ChangedBy string    `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
	Note      string    `json:"note,omitempty"`
}

// OutletInfo carries the display names printed on kitchen tickets.
type OutletInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	RestaurantID   string `json:"restaurantId"`
	RestaurantName string `json:"restaurantName"`
}
