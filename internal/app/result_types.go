package app

import (
	"time"

	"stockroom/internal/core"
)

// UserSession is the authenticated identity handed to the web adapter, which
// turns it into a signed token.
type UserSession struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type ProductListResult struct {
	Products []core.Product `json:"products"`
}

type CategoryListResult struct {
	Categories []core.Category `json:"categories"`
}

type SupplierListResult struct {
	Suppliers []core.Supplier `json:"suppliers"`
}

type LocationListResult struct {
	Locations []core.Location `json:"locations"`
}

type CustomerListResult struct {
	Customers []core.Customer `json:"customers"`
}

type StockLevelsResult struct {
	Levels []core.StockLevel `json:"levels"`
}

type TransactionListResult struct {
	Transactions []core.StockTransaction `json:"transactions"`
}

type OrderListResult struct {
	Orders []core.Order `json:"orders"`
}

// OrderStatusResult answers the status poll. Cached reports whether the
// answer came from Redis rather than the database.
type OrderStatusResult struct {
	OrderID   int              `json:"order_id"`
	Status    core.OrderStatus `json:"status"`
	Cached    bool             `json:"cached"`
	FetchedAt time.Time        `json:"fetched_at"`
}

type POListResult struct {
	PurchaseOrders []core.PurchaseOrder `json:"purchase_orders"`
}
