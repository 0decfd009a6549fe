package domain

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID                uuid.UUID   `db:"id"`
	CustomerID        int64       `db:"customer_id"`
	Status            OrderStatus `db:"status"`
	Items             []OrderItem `db:"items"`
	Subtotal          int64       `db:"subtotal"`
	ShippingCost      int64       `db:"shipping_cost"`
	Total             int64       `db:"total"`
	ShippingAddressID *int64      `db:"shipping_address_id"`
	PaymentMethod     string      `db:"payment_method"`
	Notes             string      `db:"notes"`
	StockReleased     bool        `db:"stock_released"`

	StatusLog []StatusLogEntry

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// OrderItem carries the unit price captured at order time, in minor units of
// the base currency. It is never refreshed from the live catalog price.
type OrderItem struct {
	ID        int64     `db:"id"`
	OrderID   uuid.UUID `db:"order_id"`
	ProductID int64     `db:"product_id"`
	Name      string    `db:"name"`
	UnitPrice int64     `db:"unit_price"`
	Quantity  int32     `db:"quantity"`
	LineTotal int64     `db:"line_total"`
}

type StatusLogEntry struct {
	ID        int64       `db:"id"`
	OrderID   uuid.UUID   `db:"order_id"`
	Status    OrderStatus `db:"status"`
	ActorID   int64       `db:"actor_id"`
	ActorRole Role        `db:"actor_role"`
	Note      string      `db:"note"`
	CreatedAt time.Time   `db:"created_at"`
}

// Recalculate derives line totals, the subtotal and the grand total from the
// items and shipping cost. Totals are never written independently.
func (o *Order) Recalculate() {
	var subtotal int64
	for i := range o.Items {
		o.Items[i].LineTotal = o.Items[i].UnitPrice * int64(o.Items[i].Quantity)
		subtotal += o.Items[i].LineTotal
	}
	o.Subtotal = subtotal
	o.Total = subtotal + o.ShippingCost
}

func (o *Order) Editable() bool {
	return o.Status.Editable()
}
