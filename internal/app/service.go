package app

import (
	"context"

	"stockroom/internal/core"
)

// ApplicationService is the single interface the web adapter calls. It
// decouples presentation from business logic; implementations contain no
// HTTP types and no display logic of any kind.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns the user's session
	// identity on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns a user profile by ID.
	GetUser(ctx context.Context, userID int) (*core.User, error)

	// ── Catalog ──

	ListProducts(ctx context.Context, activeOnly bool) (*ProductListResult, error)
	GetProduct(ctx context.Context, productID int) (*core.Product, error)
	CreateProduct(ctx context.Context, input core.ProductInput) (*core.Product, error)
	UpdateProduct(ctx context.Context, productID int, input core.ProductInput) (*core.Product, error)
	DeactivateProduct(ctx context.Context, productID int) error

	ListCategories(ctx context.Context) (*CategoryListResult, error)
	CreateCategory(ctx context.Context, name string, parentID *int) (*core.Category, error)

	ListSuppliers(ctx context.Context) (*SupplierListResult, error)
	CreateSupplier(ctx context.Context, input core.PartyInput) (*core.Supplier, error)

	ListLocations(ctx context.Context, activeOnly bool) (*LocationListResult, error)
	CreateLocation(ctx context.Context, code, name, address string) (*core.Location, error)
	DeactivateLocation(ctx context.Context, locationID int) error

	ListCustomers(ctx context.Context) (*CustomerListResult, error)
	CreateCustomer(ctx context.Context, input core.PartyInput) (*core.Customer, error)

	// ── Stock ledger ──

	// GetStock returns the stock record for one (product, location) pair.
	GetStock(ctx context.Context, productID, locationID int) (*core.StockRecord, error)

	// GetStockLevels returns on-hand, reserved and available quantities for
	// every stock record.
	GetStockLevels(ctx context.Context) (*StockLevelsResult, error)

	// ListTransactions returns movement-log rows, newest first, narrowed by
	// the filter.
	ListTransactions(ctx context.Context, filter core.TransactionFilter) (*TransactionListResult, error)

	// AdjustStock applies a signed manual correction to on-hand quantity.
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.StockTransaction, error)

	// TransferStock moves quantity between two locations atomically.
	TransferStock(ctx context.Context, req TransferStockRequest) (*core.StockTransaction, error)

	// ReserveStock places a manual reservation outside the order flow.
	ReserveStock(ctx context.Context, req ReserveStockRequest) (*core.StockTransaction, error)

	// ReleaseStock releases a manual reservation.
	ReleaseStock(ctx context.Context, req ReserveStockRequest) (*core.StockTransaction, error)

	// ── Orders ──

	// CreateOrder creates a PENDING order and reserves stock for every line.
	// When req.IdempotencyKey is set, a repeated call returns the order
	// created by the first one.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*core.Order, error)

	GetOrder(ctx context.Context, orderID int) (*core.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*core.Order, error)
	ListOrders(ctx context.Context, status *core.OrderStatus) (*OrderListResult, error)

	// GetOrderStatus answers the hot status poll, from cache when possible.
	GetOrderStatus(ctx context.Context, orderID int) (*OrderStatusResult, error)

	// UpdateOrderStatus applies one lifecycle transition with its stock side
	// effects.
	UpdateOrderStatus(ctx context.Context, orderID int, next core.OrderStatus, actorID int) (*core.Order, error)

	// ── Purchase orders ──

	CreatePurchaseOrder(ctx context.Context, req CreatePORequest) (*core.PurchaseOrder, error)
	SubmitPurchaseOrder(ctx context.Context, poID, actorID int) (*core.PurchaseOrder, error)
	CancelPurchaseOrder(ctx context.Context, poID, actorID int) (*core.PurchaseOrder, error)

	// ReceivePurchaseOrder books a delivery against a SUBMITTED PO and puts
	// the stock away.
	ReceivePurchaseOrder(ctx context.Context, req ReceivePORequest) (*core.PurchaseOrder, error)

	GetPurchaseOrder(ctx context.Context, poID int) (*core.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, status *core.POStatus) (*POListResult, error)
}
