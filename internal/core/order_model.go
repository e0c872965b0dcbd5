package core

import "time"

// OrderStatus is the order lifecycle state. CANCELED and DELIVERED are
// terminal.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCanceled   OrderStatus = "CANCELED"
)

var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:    {OrderProcessing: true, OrderCanceled: true},
	OrderProcessing: {OrderShipped: true, OrderCanceled: true},
	OrderShipped:    {OrderDelivered: true, OrderCanceled: true},
	OrderDelivered:  {},
	OrderCanceled:   {},
}

// CanTransition reports whether the status change from s to next is allowed.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return orderTransitions[s][next]
}

// ValidOrderStatus reports whether s names a known order status.
func ValidOrderStatus(s OrderStatus) bool {
	_, ok := orderTransitions[s]
	return ok
}

type Order struct {
	ID           int         `json:"id"`
	OrderNumber  string      `json:"order_number"`
	CustomerID   int         `json:"customer_id"`
	CustomerName string      `json:"customer_name,omitempty"`
	ActorID      int         `json:"actor_id"`
	Status       OrderStatus `json:"status"`
	Subtotal     int64       `json:"subtotal"`
	Tax          int64       `json:"tax"`
	ShippingCost int64       `json:"shipping_cost"`
	Total        int64       `json:"total"`
	Notes        string      `json:"notes,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	ShippedAt    *time.Time  `json:"shipped_at,omitempty"`
	DeliveredAt  *time.Time  `json:"delivered_at,omitempty"`
	CanceledAt   *time.Time  `json:"canceled_at,omitempty"`
	Lines        []OrderLine `json:"lines"`
}

// OrderLine items are immutable after creation; status is the only order
// field the coordinator mutates.
type OrderLine struct {
	ID           int    `json:"id"`
	OrderID      int    `json:"order_id"`
	LineNumber   int    `json:"line_number"`
	ProductID    int    `json:"product_id"`
	SKU          string `json:"sku"`
	ProductName  string `json:"product_name"`
	Quantity     int64  `json:"quantity"`
	UnitPrice    int64  `json:"unit_price"`
	UnitCost     int64  `json:"unit_cost"`
	LineSubtotal int64  `json:"line_subtotal"`
}

// OrderLineInput is one requested line on order creation.
type OrderLineInput struct {
	ProductID int   `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// CreateOrderInput carries everything needed to create a PENDING order.
type CreateOrderInput struct {
	CustomerID   int              `json:"customer_id"`
	ActorID      int              `json:"-"`
	ShippingCost int64            `json:"shipping_cost"`
	Notes        string           `json:"notes"`
	Lines        []OrderLineInput `json:"lines"`
}

// ReservationStatus tracks one (order, product, location) stock claim.
type ReservationStatus string

const (
	ReservationReserved ReservationStatus = "RESERVED"
	ReservationConsumed ReservationStatus = "CONSUMED"
	ReservationReleased ReservationStatus = "RELEASED"
)

// Reservation records how an order line's quantity was split across
// locations, so shipping and cancellation touch exactly the stock this order
// claimed and nothing else.
type Reservation struct {
	ID         int               `json:"id"`
	OrderID    int               `json:"order_id"`
	ProductID  int               `json:"product_id"`
	LocationID int               `json:"location_id"`
	Quantity   int64             `json:"quantity"`
	Status     ReservationStatus `json:"status"`
}
