package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"stockroom/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
)

func setupOrderTest(t *testing.T) (*pgxpool.Pool, core.StockService, core.OrderService, context.Context) {
	t.Helper()
	pool := setupTestDB(t)
	ctx := context.Background()

	stockSvc := core.NewStockService(pool)
	seqSvc := core.NewSequenceService(pool)
	orderSvc := core.NewOrderService(pool, stockSvc, seqSvc)
	return pool, stockSvc, orderSvc, ctx
}

func TestOrder_CreateReservesStockAndComputesTotals(t *testing.T) {
	pool, stockSvc, orderSvc, ctx := setupOrderTest(t)
	defer pool.Close()

	seedStock(t, ctx, stockSvc, widgetA, mainLocation, 50)

	order, err := orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerID:   1,
		ActorID:      testActor,
		ShippingCost: 500,
		Lines:        []core.OrderLineInput{{ProductID: widgetA, Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if order.Status != core.OrderPending {
		t.Errorf("Expected PENDING, got %s", order.Status)
	}
	wantNumber := fmt.Sprintf("SO-%d-00001", time.Now().Year())
	if order.OrderNumber != wantNumber {
		t.Errorf("Expected order number %s, got %s", wantNumber, order.OrderNumber)
	}

	// 10 × 1000 = 10000 subtotal, 10% tax = 1000, shipping 500.
	if order.Subtotal != 10000 || order.Tax != 1000 || order.Total != 11500 {
		t.Errorf("Unexpected totals: subtotal=%d tax=%d total=%d", order.Subtotal, order.Tax, order.Total)
	}
	if len(order.Lines) != 1 || order.Lines[0].LineSubtotal != 10000 {
		t.Fatalf("Unexpected lines: %+v", order.Lines)
	}

	rec := getRecord(t, ctx, stockSvc, widgetA, mainLocation)
	if rec.Quantity != 50 || rec.ReservedQuantity != 10 {
		t.Errorf("Expected 50 on hand / 10 reserved, got %d/%d", rec.Quantity, rec.ReservedQuantity)
	}
}

func TestOrder_CreateInsufficientStockRollsBack(t *testing.T) {
	pool, stockSvc, orderSvc, ctx := setupOrderTest(t)
	defer pool.Close()

	seedStock(t, ctx, stockSvc, widgetA, mainLocation, 50)
	seedStock(t, ctx, stockSvc, widgetB, mainLocation, 3)

	// Second line cannot be satisfied, so nothing from the first line may
	// stick either.
	_, err := orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerID: 1,
		ActorID:    testActor,
		Lines: []core.OrderLineInput{
			{ProductID: widgetA, Quantity: 10},
			{ProductID: widgetB, Quantity: 4},
		},
	})
	if !core.IsKind(err, core.KindInsufficientStock) {
		t.Fatalf("Expected INSUFFICIENT_STOCK, got %v", err)
	}

	recA := getRecord(t, ctx, stockSvc, widgetA, mainLocation)
	if recA.ReservedQuantity != 0 {
		t.Errorf("Expected widget A reservation rolled back, got %d reserved", recA.ReservedQuantity)
	}

	var orderCount int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&orderCount); err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Errorf("Expected no order rows after rollback, got %d", orderCount)
	}
}

func TestOrder_CreateSplitsAcrossLocations(t *testing.T) {
	pool, stockSvc, orderSvc, ctx := setupOrderTest(t)
	defer pool.Close()

	// EAST has more available, so allocation starts there.
	seedStock(t, ctx, stockSvc, widgetA, mainLocation, 4)
	seedStock(t, ctx, stockSvc, widgetA, eastLocation, 8)

	_, err := orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerID: 1,
		ActorID:    testActor,
		Lines:      []core.OrderLineInput{{ProductID: widgetA, Quantity: 10}},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	east := getRecord(t, ctx, stockSvc, widgetA, eastLocation)
	main := getRecord(t, ctx, stockSvc, widgetA, mainLocation)
	if east.ReservedQuantity != 8 {
		t.Errorf("Expected 8 reserved at EAST, got %d", east.ReservedQuantity)
	}
	if main.ReservedQuantity != 2 {
		t.Errorf("Expected 2 reserved at MAIN, got %d", main.ReservedQuantity)
	}
}

func TestOrder_ShipDeductsReservedStock(t *testing.T) {
	pool, stockSvc, orderSvc, ctx := setupOrderTest(t)
	defer pool.Close()

	seedStock(t, ctx, stockSvc, widgetA, mainLocation, 20)

	order, err := orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerID: 1,
		ActorID:    testActor,
		Lines:      []core.OrderLineInput{{ProductID: widgetA, Quantity: 6}},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if _, err := orderSvc.UpdateStatus(ctx, order.ID, core.OrderProcessing, testActor); err != nil {
		t.Fatalf("PENDING -> PROCESSING failed: %v", err)
	}
	shipped, err := orderSvc.UpdateStatus(ctx, order.ID, core.OrderShipped, testActor)
	if err != nil {
		t.Fatalf("PROCESSING -> SHIPPED failed: %v", err)
	}
	if shipped.ShippedAt == nil {
		t.Error("SHIPPED order must have shipped_at timestamp")
	}

	rec := getRecord(t, ctx, stockSvc, widgetA, mainLocation)
	if rec.Quantity != 14 || rec.ReservedQuantity != 0 {
		t.Errorf("Expected 14 on hand / 0 reserved after ship, got %d/%d", rec.Quantity, rec.ReservedQuantity)
	}

	// The deduction is traceable to the order in the movement log.
	txns, err := stockSvc.GetTransactions(ctx, core.TransactionFilter{
		ReferenceID:   order.OrderNumber,
		ReferenceType: core.RefOrder,
	})
	if err != nil {
		t.Fatalf("GetTransactions failed: %v", err)
	}
	var sawOut bool
	for _, txn := range txns {
		if txn.Type == core.TransactionOut && txn.Quantity == 6 {
			sawOut = true
		}
	}
	if !sawOut {
		t.Error("Expected an OUT transaction of 6 referencing the order")
	}

	// Delivering after shipping must not deduct again.
	if _, err := orderSvc.UpdateStatus(ctx, order.ID, core.OrderDelivered, testActor); err != nil {
		t.Fatalf("SHIPPED -> DELIVERED failed: %v", err)
	}
	rec = getRecord(t, ctx, stockSvc, widgetA, mainLocation)
	if rec.Quantity != 14 || rec.ReservedQuantity != 0 {
		t.Errorf("DELIVERED must not deduct again, got %d/%d", rec.Quantity, rec.ReservedQuantity)
	}
}

func TestOrder_CancelPendingReleasesReservations(t *testing.T) {
	pool, stockSvc, orderSvc, ctx := setupOrderTest(t)
	defer pool.Close()

	seedStock(t, ctx, stockSvc, widgetA, mainLocation, 20)

	order, err := orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerID: 1,
		ActorID:    testActor,
		Lines:      []core.OrderLineInput{{ProductID: widgetA, Quantity: 6}},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	canceled, err := orderSvc.UpdateStatus(ctx, order.ID, core.OrderCanceled, testActor)
	if err != nil {
		t.Fatalf("PENDING -> CANCELED failed: %v", err)
	}
	if canceled.CanceledAt == nil {
		t.Error("CANCELED order must have canceled_at timestamp")
	}

	rec := getRecord(t, ctx, stockSvc, widgetA, mainLocation)
	if rec.Quantity != 20 || rec.ReservedQuantity != 0 {
		t.Errorf("Expected 20 on hand / 0 reserved after cancel, got %d/%d", rec.Quantity, rec.ReservedQuantity)
	}
}

func TestOrder_CancelAfterShipReleasesNothing(t *testing.T) {
	pool, stockSvc, orderSvc, ctx := setupOrderTest(t)
	defer pool.Close()

	seedStock(t, ctx, stockSvc, widgetA, mainLocation, 20)

	order, err := orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerID: 1,
		ActorID:    testActor,
		Lines:      []core.OrderLineInput{{ProductID: widgetA, Quantity: 6}},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	for _, next := range []core.OrderStatus{core.OrderProcessing, core.OrderShipped} {
		if _, err := orderSvc.UpdateStatus(ctx, order.ID, next, testActor); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}

	// Reservations were consumed at ship time. Cancel must not re-add stock.
	if _, err := orderSvc.UpdateStatus(ctx, order.ID, core.OrderCanceled, testActor); err != nil {
		t.Fatalf("SHIPPED -> CANCELED failed: %v", err)
	}

	rec := getRecord(t, ctx, stockSvc, widgetA, mainLocation)
	if rec.Quantity != 14 || rec.ReservedQuantity != 0 {
		t.Errorf("Cancel after ship must not restock, got %d/%d", rec.Quantity, rec.ReservedQuantity)
	}
}

func TestOrder_InvalidTransitions(t *testing.T) {
	pool, stockSvc, orderSvc, ctx := setupOrderTest(t)
	defer pool.Close()

	seedStock(t, ctx, stockSvc, widgetA, mainLocation, 20)

	order, err := orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerID: 1,
		ActorID:    testActor,
		Lines:      []core.OrderLineInput{{ProductID: widgetA, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// PENDING cannot jump straight to SHIPPED.
	_, err = orderSvc.UpdateStatus(ctx, order.ID, core.OrderShipped, testActor)
	if !core.IsKind(err, core.KindInvalidTransition) {
		t.Errorf("Expected INVALID_STATUS_TRANSITION, got %v", err)
	}

	// Terminal state rejects everything.
	if _, err := orderSvc.UpdateStatus(ctx, order.ID, core.OrderCanceled, testActor); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	_, err = orderSvc.UpdateStatus(ctx, order.ID, core.OrderProcessing, testActor)
	if !core.IsKind(err, core.KindInvalidTransition) {
		t.Errorf("Expected INVALID_STATUS_TRANSITION from CANCELED, got %v", err)
	}
}

func TestOrder_CreateValidation(t *testing.T) {
	pool, stockSvc, orderSvc, ctx := setupOrderTest(t)
	defer pool.Close()

	seedStock(t, ctx, stockSvc, widgetA, mainLocation, 20)

	// Unknown customer.
	_, err := orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerID: 999,
		ActorID:    testActor,
		Lines:      []core.OrderLineInput{{ProductID: widgetA, Quantity: 1}},
	})
	if !core.IsKind(err, core.KindNotFound) {
		t.Errorf("Expected NOT_FOUND for unknown customer, got %v", err)
	}

	// Duplicate product lines.
	_, err = orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerID: 1,
		ActorID:    testActor,
		Lines: []core.OrderLineInput{
			{ProductID: widgetA, Quantity: 1},
			{ProductID: widgetA, Quantity: 2},
		},
	})
	if !core.IsKind(err, core.KindInvalidInput) {
		t.Errorf("Expected INVALID_INPUT for duplicate lines, got %v", err)
	}

	// Inactive product.
	if _, err := pool.Exec(ctx, "UPDATE products SET is_active = false WHERE id = $1", widgetA); err != nil {
		t.Fatalf("deactivate product: %v", err)
	}
	_, err = orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerID: 1,
		ActorID:    testActor,
		Lines:      []core.OrderLineInput{{ProductID: widgetA, Quantity: 1}},
	})
	if !core.IsKind(err, core.KindInvalidState) {
		t.Errorf("Expected INVALID_STATE for inactive product, got %v", err)
	}
}

func TestOrder_SequentialNumbers(t *testing.T) {
	pool, stockSvc, orderSvc, ctx := setupOrderTest(t)
	defer pool.Close()

	seedStock(t, ctx, stockSvc, widgetA, mainLocation, 20)

	var numbers []string
	for i := 0; i < 3; i++ {
		order, err := orderSvc.CreateOrder(ctx, core.CreateOrderInput{
			CustomerID: 1,
			ActorID:    testActor,
			Lines:      []core.OrderLineInput{{ProductID: widgetA, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("CreateOrder %d failed: %v", i, err)
		}
		numbers = append(numbers, order.OrderNumber)
	}

	year := time.Now().Year()
	for i, n := range numbers {
		want := fmt.Sprintf("SO-%d-%05d", year, i+1)
		if n != want {
			t.Errorf("Order %d: expected %s, got %s", i, want, n)
		}
	}
}

func TestOrder_GetByNumber(t *testing.T) {
	pool, stockSvc, orderSvc, ctx := setupOrderTest(t)
	defer pool.Close()

	seedStock(t, ctx, stockSvc, widgetA, mainLocation, 20)

	created, err := orderSvc.CreateOrder(ctx, core.CreateOrderInput{
		CustomerID: 1,
		ActorID:    testActor,
		Lines:      []core.OrderLineInput{{ProductID: widgetA, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	fetched, err := orderSvc.GetOrderByNumber(ctx, created.OrderNumber)
	if err != nil {
		t.Fatalf("GetOrderByNumber failed: %v", err)
	}
	if fetched.ID != created.ID {
		t.Errorf("Expected order %d, got %d", created.ID, fetched.ID)
	}

	if _, err := orderSvc.GetOrderByNumber(ctx, "SO-1999-00001"); !core.IsKind(err, core.KindNotFound) {
		t.Errorf("Expected NOT_FOUND for unknown number, got %v", err)
	}
}
