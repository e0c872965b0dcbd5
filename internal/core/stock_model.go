package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType tags a stock transaction. IN increases on-hand or releases
// a reservation, OUT decreases on-hand or places one, TRANSFER moves stock
// between locations without changing the product's total.
type TransactionType string

const (
	TransactionIn       TransactionType = "IN"
	TransactionOut      TransactionType = "OUT"
	TransactionTransfer TransactionType = "TRANSFER"
)

// Reference types recorded on stock transactions so a later deduction or
// release can be traced back to what caused it.
const (
	RefAdjustment    = "ADJUSTMENT"
	RefTransfer      = "TRANSFER"
	RefOrder         = "ORDER"
	RefPurchaseOrder = "PURCHASE_ORDER"
)

// StockRecord is the per-(product, location) row of the ledger. A missing
// record reads as zero quantity and is materialized on first write; it is
// never deleted while transactions reference it.
type StockRecord struct {
	ID               int             `json:"id"`
	ProductID        int             `json:"product_id"`
	LocationID       int             `json:"location_id"`
	Quantity         int64           `json:"quantity"`
	ReservedQuantity int64           `json:"reserved_quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"` // weighted average receipt cost
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Available is the only quantity new reservations may draw from.
func (r StockRecord) Available() int64 {
	return r.Quantity - r.ReservedQuantity
}

// StockTransaction is one immutable row of the append-only movement log.
// Every ledger mutation writes exactly one in the same database transaction.
type StockTransaction struct {
	ID             int             `json:"id"`
	Type           TransactionType `json:"type"`
	ProductID      int             `json:"product_id"`
	Quantity       int64           `json:"quantity"` // always positive
	FromLocationID *int            `json:"from_location_id,omitempty"`
	ToLocationID   *int            `json:"to_location_id,omitempty"`
	ReferenceID    string          `json:"reference_id,omitempty"`
	ReferenceType  string          `json:"reference_type,omitempty"`
	ActorID        int             `json:"actor_id"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// StockLevel is a read view of a stock record joined with product and
// location info.
type StockLevel struct {
	ProductID    int    `json:"product_id"`
	SKU          string `json:"sku"`
	ProductName  string `json:"product_name"`
	LocationID   int    `json:"location_id"`
	LocationCode string `json:"location_code"`
	OnHand       int64  `json:"on_hand"`
	Reserved     int64  `json:"reserved"`
	Available    int64  `json:"available"`
}

// TransactionFilter narrows GetTransactions. Zero values mean no filter.
type TransactionFilter struct {
	ProductID     int
	LocationID    int
	ReferenceID   string
	ReferenceType string
	Limit         int
}
