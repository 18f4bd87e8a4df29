package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a purchase placed by a (possibly unauthenticated) customer.
// Orders are removed with a hard delete.
type Order struct {
	ID                    int64           `json:"id"`
	CustomerEmail         string          `json:"customer_email"`
	Status                OrderStatus     `json:"status"`
	Total                 decimal.Decimal `json:"total"`
	ConfirmationTokenHash *string         `json:"-"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty"`
}

// OrderItem is a single line of an order. Product is nil in an expanded view
// when the referenced product has been soft-deleted.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`

	Order   *Order   `json:"order,omitempty"`
	Product *Product `json:"product,omitempty"`
}
