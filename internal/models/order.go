package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateTimeLayout is the wire format of desired_datetime
const DateTimeLayout = "2006-01-02 15:04:05"

const (
	DeliveryPickup   = "pickup"
	DeliveryDelivery = "delivery"
)

// OrderRequest represents an incoming order request
type OrderRequest struct {
	CustomerName    string             `json:"customer_name" validate:"required"`
	Phone           string             `json:"phone" validate:"required"`
	DeliveryMethod  string             `json:"delivery_method" validate:"required"`
	DesiredDateTime string             `json:"desired_datetime" validate:"required"`
	Address         string             `json:"address,omitempty"`
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

// OrderItemRequest represents a single requested line
type OrderItemRequest struct {
	ProductID int64 `json:"id" validate:"required"`
	Quantity  int   `json:"qty"`
}

// OrderItem is a ledger line, priced from the catalog at decrement time
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Order represents an accepted order; it is never modified after it is recorded
type Order struct {
	ID              int64       `json:"id"`
	CustomerName    string      `json:"customer_name"`
	Phone           string      `json:"phone"`
	DeliveryMethod  string      `json:"delivery_method"`
	Address         string      `json:"address,omitempty"`
	DesiredDateTime string      `json:"desired_datetime"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"created_at"`
}

// IsDelivery reports whether the order is delivered rather than picked up
func (o Order) IsDelivery() bool {
	return o.DeliveryMethod == DeliveryDelivery
}

// OrderResponse is returned when an order has been accepted
type OrderResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}
