package app

import "stockroom/internal/core"

// AdjustStockRequest is a signed manual correction to on-hand quantity.
type AdjustStockRequest struct {
	ProductID  int    `json:"product_id"`
	LocationID int    `json:"location_id"`
	Delta      int64  `json:"delta"`
	Reason     string `json:"reason"`
	ActorID    int    `json:"-"`
}

// TransferStockRequest moves quantity between two locations.
type TransferStockRequest struct {
	ProductID      int   `json:"product_id"`
	FromLocationID int   `json:"from_location_id"`
	ToLocationID   int   `json:"to_location_id"`
	Quantity       int64 `json:"quantity"`
	ActorID        int   `json:"-"`
}

// ReserveStockRequest places or releases a manual reservation outside the
// order flow, tagged with a free-form reference.
type ReserveStockRequest struct {
	ProductID     int    `json:"product_id"`
	LocationID    int    `json:"location_id"`
	Quantity      int64  `json:"quantity"`
	ReferenceID   string `json:"reference_id"`
	ReferenceType string `json:"reference_type"`
	ActorID       int    `json:"-"`
}

// CreateOrderRequest creates a new order. IdempotencyKey comes from the
// Idempotency-Key header and is optional.
type CreateOrderRequest struct {
	CustomerID     int                   `json:"customer_id"`
	ShippingCost   int64                 `json:"shipping_cost"`
	Notes          string                `json:"notes"`
	Lines          []core.OrderLineInput `json:"lines"`
	IdempotencyKey string                `json:"-"`
	ActorID        int                   `json:"-"`
}

// CreatePORequest creates a new DRAFT purchase order.
type CreatePORequest struct {
	SupplierID int                `json:"supplier_id"`
	Notes      string             `json:"notes"`
	Lines      []core.POLineInput `json:"lines"`
	ActorID    int                `json:"-"`
}

// ReceivePORequest books one delivery against a purchase order.
type ReceivePORequest struct {
	PurchaseOrderID int                 `json:"-"`
	Receipts        []core.ReceiptInput `json:"receipts"`
	ActorID         int                 `json:"-"`
}
