package app

import (
	"context"
	"fmt"
	"time"

	"stockroom/internal/cache"
	"stockroom/internal/core"
	"stockroom/internal/events"
)

type appService struct {
	users     core.UserService
	catalog   core.CatalogService
	stock     core.StockService
	orders    core.OrderService
	purchases core.PurchaseOrderService
	cache     *cache.Cache
	publisher *events.Publisher
}

// NewAppService constructs an appService that satisfies ApplicationService.
// cache and publisher may be nil; the facade then runs database-only with no
// event emission.
func NewAppService(
	users core.UserService,
	catalog core.CatalogService,
	stock core.StockService,
	orders core.OrderService,
	purchases core.PurchaseOrderService,
	c *cache.Cache,
	publisher *events.Publisher,
) ApplicationService {
	return &appService{
		users:     users,
		catalog:   catalog,
		stock:     stock,
		orders:    orders,
		purchases: purchases,
		cache:     c,
		publisher: publisher,
	}
}

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	u, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return &UserSession{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int) (*core.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ── Catalog ──────────────────────────────────────────────────────────────────

func (s *appService) ListProducts(ctx context.Context, activeOnly bool) (*ProductListResult, error) {
	products, err := s.catalog.GetProducts(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Products: products}, nil
}

func (s *appService) GetProduct(ctx context.Context, productID int) (*core.Product, error) {
	return s.catalog.GetProduct(ctx, productID)
}

func (s *appService) CreateProduct(ctx context.Context, input core.ProductInput) (*core.Product, error) {
	return s.catalog.CreateProduct(ctx, input)
}

func (s *appService) UpdateProduct(ctx context.Context, productID int, input core.ProductInput) (*core.Product, error) {
	return s.catalog.UpdateProduct(ctx, productID, input)
}

func (s *appService) DeactivateProduct(ctx context.Context, productID int) error {
	return s.catalog.DeactivateProduct(ctx, productID)
}

func (s *appService) ListCategories(ctx context.Context) (*CategoryListResult, error) {
	categories, err := s.catalog.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	return &CategoryListResult{Categories: categories}, nil
}

func (s *appService) CreateCategory(ctx context.Context, name string, parentID *int) (*core.Category, error) {
	return s.catalog.CreateCategory(ctx, name, parentID)
}

func (s *appService) ListSuppliers(ctx context.Context) (*SupplierListResult, error) {
	suppliers, err := s.catalog.GetSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	return &SupplierListResult{Suppliers: suppliers}, nil
}

func (s *appService) CreateSupplier(ctx context.Context, input core.PartyInput) (*core.Supplier, error) {
	return s.catalog.CreateSupplier(ctx, input)
}

func (s *appService) ListLocations(ctx context.Context, activeOnly bool) (*LocationListResult, error) {
	locations, err := s.catalog.GetLocations(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	return &LocationListResult{Locations: locations}, nil
}

func (s *appService) CreateLocation(ctx context.Context, code, name, address string) (*core.Location, error) {
	return s.catalog.CreateLocation(ctx, code, name, address)
}

func (s *appService) DeactivateLocation(ctx context.Context, locationID int) error {
	return s.catalog.DeactivateLocation(ctx, locationID)
}

func (s *appService) ListCustomers(ctx context.Context) (*CustomerListResult, error) {
	customers, err := s.catalog.GetCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return &CustomerListResult{Customers: customers}, nil
}

func (s *appService) CreateCustomer(ctx context.Context, input core.PartyInput) (*core.Customer, error) {
	return s.catalog.CreateCustomer(ctx, input)
}

// ── Stock ledger ─────────────────────────────────────────────────────────────

func (s *appService) GetStock(ctx context.Context, productID, locationID int) (*core.StockRecord, error) {
	return s.stock.GetStock(ctx, productID, locationID)
}

func (s *appService) GetStockLevels(ctx context.Context) (*StockLevelsResult, error) {
	levels, err := s.stock.GetStockLevels(ctx)
	if err != nil {
		return nil, err
	}
	return &StockLevelsResult{Levels: levels}, nil
}

func (s *appService) ListTransactions(ctx context.Context, filter core.TransactionFilter) (*TransactionListResult, error) {
	txns, err := s.stock.GetTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &TransactionListResult{Transactions: txns}, nil
}

func (s *appService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*core.StockTransaction, error) {
	txn, err := s.stock.Adjust(ctx, req.ProductID, req.LocationID, req.Delta, req.Reason, req.ActorID)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(events.StockAdjusted, fmt.Sprintf("product:%d", txn.ProductID), txn)
	return txn, nil
}

func (s *appService) TransferStock(ctx context.Context, req TransferStockRequest) (*core.StockTransaction, error) {
	txn, err := s.stock.Transfer(ctx, req.ProductID, req.FromLocationID, req.ToLocationID, req.Quantity, req.ActorID)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(events.StockTransfered, fmt.Sprintf("product:%d", txn.ProductID), txn)
	return txn, nil
}

func (s *appService) ReserveStock(ctx context.Context, req ReserveStockRequest) (*core.StockTransaction, error) {
	return s.stock.Reserve(ctx, req.ProductID, req.LocationID, req.Quantity, req.ReferenceID, req.ReferenceType, req.ActorID)
}

func (s *appService) ReleaseStock(ctx context.Context, req ReserveStockRequest) (*core.StockTransaction, error) {
	return s.stock.Unreserve(ctx, req.ProductID, req.LocationID, req.Quantity, req.ReferenceID, req.ReferenceType, req.ActorID)
}

// ── Orders ───────────────────────────────────────────────────────────────────

func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*core.Order, error) {
	if existingID, claimed, _ := s.cache.ClaimOrderCreate(ctx, req.IdempotencyKey); !claimed {
		if existingID == 0 {
			// The original request holds the claim but has not confirmed an
			// order id yet.
			return nil, core.E(core.KindConflict, "order creation for this idempotency key is in progress, retry later")
		}
		return s.orders.GetOrder(ctx, existingID)
	}

	order, err := s.orders.CreateOrder(ctx, core.CreateOrderInput{
		CustomerID:   req.CustomerID,
		ActorID:      req.ActorID,
		ShippingCost: req.ShippingCost,
		Notes:        req.Notes,
		Lines:        req.Lines,
	})
	if err != nil {
		s.cache.ReleaseOrderCreate(ctx, req.IdempotencyKey)
		return nil, err
	}
	s.cache.ConfirmOrderCreate(ctx, req.IdempotencyKey, order.ID)
	s.cache.SetOrderStatus(ctx, order.ID, string(order.Status))
	s.publisher.Publish(events.OrderCreated, order.OrderNumber, order)
	return order, nil
}

func (s *appService) GetOrder(ctx context.Context, orderID int) (*core.Order, error) {
	return s.orders.GetOrder(ctx, orderID)
}

func (s *appService) GetOrderByNumber(ctx context.Context, orderNumber string) (*core.Order, error) {
	return s.orders.GetOrderByNumber(ctx, orderNumber)
}

func (s *appService) ListOrders(ctx context.Context, status *core.OrderStatus) (*OrderListResult, error) {
	orders, err := s.orders.GetOrders(ctx, status)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders}, nil
}

func (s *appService) GetOrderStatus(ctx context.Context, orderID int) (*OrderStatusResult, error) {
	if cached := s.cache.GetOrderStatus(ctx, orderID); cached != "" {
		return &OrderStatusResult{
			OrderID:   orderID,
			Status:    core.OrderStatus(cached),
			Cached:    true,
			FetchedAt: time.Now().UTC(),
		}, nil
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.cache.SetOrderStatus(ctx, orderID, string(order.Status))
	return &OrderStatusResult{
		OrderID:   orderID,
		Status:    order.Status,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (s *appService) UpdateOrderStatus(ctx context.Context, orderID int, next core.OrderStatus, actorID int) (*core.Order, error) {
	order, err := s.orders.UpdateStatus(ctx, orderID, next, actorID)
	if err != nil {
		return nil, err
	}
	s.cache.SetOrderStatus(ctx, order.ID, string(order.Status))
	s.publisher.Publish(events.OrderStatusSet, order.OrderNumber, map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       order.Status,
	})
	return order, nil
}

// ── Purchase orders ──────────────────────────────────────────────────────────

func (s *appService) CreatePurchaseOrder(ctx context.Context, req CreatePORequest) (*core.PurchaseOrder, error) {
	return s.purchases.CreatePO(ctx, core.CreatePOInput{
		SupplierID: req.SupplierID,
		ActorID:    req.ActorID,
		Notes:      req.Notes,
		Lines:      req.Lines,
	})
}

func (s *appService) SubmitPurchaseOrder(ctx context.Context, poID, actorID int) (*core.PurchaseOrder, error) {
	return s.purchases.SubmitPO(ctx, poID, actorID)
}

func (s *appService) CancelPurchaseOrder(ctx context.Context, poID, actorID int) (*core.PurchaseOrder, error) {
	return s.purchases.CancelPO(ctx, poID, actorID)
}

func (s *appService) ReceivePurchaseOrder(ctx context.Context, req ReceivePORequest) (*core.PurchaseOrder, error) {
	po, err := s.purchases.ReceiveItems(ctx, req.PurchaseOrderID, req.Receipts, req.ActorID)
	if err != nil {
		return nil, err
	}
	if po.Status == core.POReceived {
		s.publisher.Publish(events.POReceived, po.PONumber, map[string]any{
			"purchase_order_id": po.ID,
			"po_number":         po.PONumber,
		})
	}
	return po, nil
}

func (s *appService) GetPurchaseOrder(ctx context.Context, poID int) (*core.PurchaseOrder, error) {
	return s.purchases.GetPO(ctx, poID)
}

func (s *appService) ListPurchaseOrders(ctx context.Context, status *core.POStatus) (*POListResult, error) {
	pos, err := s.purchases.GetPOs(ctx, status)
	if err != nil {
		return nil, err
	}
	return &POListResult{PurchaseOrders: pos}, nil
}
