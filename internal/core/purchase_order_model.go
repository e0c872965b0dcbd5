package core

import "time"

// POStatus is the purchase order lifecycle state. RECEIVED and CANCELED are
// terminal; RECEIVED is reached automatically once every line is fully
// received.
type POStatus string

const (
	PODraft     POStatus = "DRAFT"
	POSubmitted POStatus = "SUBMITTED"
	POReceived  POStatus = "RECEIVED"
	POCanceled  POStatus = "CANCELED"
)

var poTransitions = map[POStatus]map[POStatus]bool{
	PODraft:     {POSubmitted: true, POCanceled: true},
	POSubmitted: {POReceived: true, POCanceled: true},
	POReceived:  {},
	POCanceled:  {},
}

// CanTransition reports whether the status change from s to next is allowed.
func (s POStatus) CanTransition(next POStatus) bool {
	return poTransitions[s][next]
}

// ValidPOStatus reports whether s names a known purchase order status.
func ValidPOStatus(s POStatus) bool {
	_, ok := poTransitions[s]
	return ok
}

type PurchaseOrder struct {
	ID           int                 `json:"id"`
	PONumber     string              `json:"po_number"`
	SupplierID   int                 `json:"supplier_id"`
	SupplierName string              `json:"supplier_name,omitempty"`
	ActorID      int                 `json:"actor_id"`
	Status       POStatus            `json:"status"`
	Subtotal     int64               `json:"subtotal"`
	Tax          int64               `json:"tax"`
	Total        int64               `json:"total"`
	Notes        string              `json:"notes,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	SubmittedAt  *time.Time          `json:"submitted_at,omitempty"`
	ReceivedAt   *time.Time          `json:"received_at,omitempty"`
	CanceledAt   *time.Time          `json:"canceled_at,omitempty"`
	Lines        []PurchaseOrderLine `json:"lines"`
}

// PurchaseOrderLine tracks how much of the ordered quantity has arrived.
// QuantityReceived only ever grows, and never past QuantityOrdered.
type PurchaseOrderLine struct {
	ID               int    `json:"id"`
	PurchaseOrderID  int    `json:"purchase_order_id"`
	LineNumber       int    `json:"line_number"`
	ProductID        int    `json:"product_id"`
	SKU              string `json:"sku"`
	ProductName      string `json:"product_name"`
	QuantityOrdered  int64  `json:"quantity_ordered"`
	QuantityReceived int64  `json:"quantity_received"`
	UnitCost         int64  `json:"unit_cost"`
	LineSubtotal     int64  `json:"line_subtotal"`
}

// POLineInput is one requested line on purchase order creation. UnitCost is
// the agreed per-unit purchase price in minor units.
type POLineInput struct {
	ProductID int   `json:"product_id"`
	Quantity  int64 `json:"quantity"`
	UnitCost  int64 `json:"unit_cost"`
}

// CreatePOInput carries everything needed to create a DRAFT purchase order.
type CreatePOInput struct {
	SupplierID int           `json:"supplier_id"`
	ActorID    int           `json:"-"`
	Notes      string        `json:"notes"`
	Lines      []POLineInput `json:"lines"`
}

// ReceiptInput records an arrival against one purchase order line, putting
// the stock away at the given location.
type ReceiptInput struct {
	LineID     int   `json:"line_id"`
	Quantity   int64 `json:"quantity"`
	LocationID int   `json:"location_id"`
}
