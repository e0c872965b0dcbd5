package core_test

import (
	"context"
	"os"
	"testing"

	"stockroom/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// setupTestDB connects to the test database, truncates every table, and
// seeds a user, two locations, two products, one customer and one supplier.
// Identity restart makes the seeded ids deterministic:
// user=1, MAIN=1, EAST=2, WID-A=1, WID-B=2, customer=1, supplier=1.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE stock_transactions, reservations, order_lines, orders,
			purchase_order_lines, purchase_orders, stock_records, number_sequences,
			products, categories, customers, suppliers, locations, users
			RESTART IDENTITY CASCADE;

		INSERT INTO users (username, email, password_hash, role) VALUES
		('tester', 'tester@example.com', 'x', 'admin');

		INSERT INTO locations (code, name) VALUES
		('MAIN', 'Main Warehouse'),
		('EAST', 'East Warehouse');

		INSERT INTO suppliers (code, name) VALUES ('SUP1', 'Supply Co');
		INSERT INTO customers (code, name) VALUES ('C001', 'Acme Corp');

		INSERT INTO products (sku, name, unit_price, unit_cost, tax_rate) VALUES
		('WID-A', 'Widget A', 1000, 600, 10),
		('WID-B', 'Widget B', 2500, 1500, 7.5);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

const (
	testActor    = 1
	mainLocation = 1
	eastLocation = 2
	widgetA      = 1
	widgetB      = 2
)

// seedStock puts qty units of product at location through the service, so
// the transaction log stays consistent with the counters.
func seedStock(t *testing.T, ctx context.Context, svc core.StockService, productID, locationID int, qty int64) {
	t.Helper()
	if _, err := svc.Adjust(ctx, productID, locationID, qty, "seed", testActor); err != nil {
		t.Fatalf("seeding stock failed: %v", err)
	}
}

func getRecord(t *testing.T, ctx context.Context, svc core.StockService, productID, locationID int) *core.StockRecord {
	t.Helper()
	rec, err := svc.GetStock(ctx, productID, locationID)
	if err != nil {
		t.Fatalf("GetStock failed: %v", err)
	}
	return rec
}

func TestStock_AdjustCreatesRecordAndTransaction(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)
	ctx := context.Background()

	txn, err := svc.Adjust(ctx, widgetA, mainLocation, 50, "initial count", testActor)
	if err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	if txn.Type != core.TransactionIn {
		t.Errorf("Expected IN transaction, got %s", txn.Type)
	}
	if txn.Quantity != 50 {
		t.Errorf("Expected quantity 50, got %d", txn.Quantity)
	}

	rec := getRecord(t, ctx, svc, widgetA, mainLocation)
	if rec.Quantity != 50 || rec.ReservedQuantity != 0 {
		t.Errorf("Expected 50 on hand / 0 reserved, got %d/%d", rec.Quantity, rec.ReservedQuantity)
	}

	txns, err := svc.GetTransactions(ctx, core.TransactionFilter{ProductID: widgetA})
	if err != nil {
		t.Fatalf("GetTransactions failed: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("Expected 1 logged transaction, got %d", len(txns))
	}
}

func TestStock_AdjustRejectsZeroDelta(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, widgetA, mainLocation, 0, "noop", testActor)
	if !core.IsKind(err, core.KindInvalidAdjustment) {
		t.Errorf("Expected INVALID_ADJUSTMENT, got %v", err)
	}
}

func TestStock_AdjustCannotGoNegative(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)
	ctx := context.Background()

	seedStock(t, ctx, svc, widgetA, mainLocation, 10)

	_, err := svc.Adjust(ctx, widgetA, mainLocation, -11, "shrinkage", testActor)
	if !core.IsKind(err, core.KindInvalidAdjustment) {
		t.Errorf("Expected INVALID_ADJUSTMENT, got %v", err)
	}

	// Counter untouched after the failed adjustment.
	rec := getRecord(t, ctx, svc, widgetA, mainLocation)
	if rec.Quantity != 10 {
		t.Errorf("Expected quantity 10 after failed adjust, got %d", rec.Quantity)
	}
}

func TestStock_AdjustCannotDropBelowReserved(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)
	ctx := context.Background()

	seedStock(t, ctx, svc, widgetA, mainLocation, 10)
	if _, err := svc.Reserve(ctx, widgetA, mainLocation, 6, "HOLD-1", "MANUAL", testActor); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	_, err := svc.Adjust(ctx, widgetA, mainLocation, -5, "recount", testActor)
	if !core.IsKind(err, core.KindInvalidAdjustment) {
		t.Errorf("Expected INVALID_ADJUSTMENT when dropping below reserved, got %v", err)
	}
}

func TestStock_TransferMovesQuantity(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)
	ctx := context.Background()

	seedStock(t, ctx, svc, widgetA, mainLocation, 30)

	txn, err := svc.Transfer(ctx, widgetA, mainLocation, eastLocation, 12, testActor)
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if txn.Type != core.TransactionTransfer {
		t.Errorf("Expected TRANSFER transaction, got %s", txn.Type)
	}

	src := getRecord(t, ctx, svc, widgetA, mainLocation)
	dst := getRecord(t, ctx, svc, widgetA, eastLocation)
	if src.Quantity != 18 {
		t.Errorf("Expected 18 at source, got %d", src.Quantity)
	}
	if dst.Quantity != 12 {
		t.Errorf("Expected 12 at destination, got %d", dst.Quantity)
	}
}

func TestStock_TransferRejectsSameLocation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)
	ctx := context.Background()

	seedStock(t, ctx, svc, widgetA, mainLocation, 30)

	_, err := svc.Transfer(ctx, widgetA, mainLocation, mainLocation, 5, testActor)
	if !core.IsKind(err, core.KindInvalidTransfer) {
		t.Errorf("Expected INVALID_TRANSFER, got %v", err)
	}
}

func TestStock_TransferInsufficientStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)
	ctx := context.Background()

	seedStock(t, ctx, svc, widgetA, mainLocation, 5)

	_, err := svc.Transfer(ctx, widgetA, mainLocation, eastLocation, 6, testActor)
	if !core.IsKind(err, core.KindInsufficientStock) {
		t.Errorf("Expected INSUFFICIENT_STOCK, got %v", err)
	}

	// Reserved stock cannot be transferred away either.
	seedStock(t, ctx, svc, widgetA, mainLocation, 5) // now 10 on hand
	if _, err := svc.Reserve(ctx, widgetA, mainLocation, 8, "HOLD-1", "MANUAL", testActor); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	_, err = svc.Transfer(ctx, widgetA, mainLocation, eastLocation, 3, testActor)
	if !core.IsKind(err, core.KindInsufficientStock) {
		t.Errorf("Expected INSUFFICIENT_STOCK for reserved stock, got %v", err)
	}
}

func TestStock_ReserveAndRelease(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)
	ctx := context.Background()

	seedStock(t, ctx, svc, widgetA, mainLocation, 20)

	if _, err := svc.Reserve(ctx, widgetA, mainLocation, 15, "HOLD-1", "MANUAL", testActor); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	rec := getRecord(t, ctx, svc, widgetA, mainLocation)
	if rec.ReservedQuantity != 15 || rec.Available() != 5 {
		t.Errorf("Expected reserved=15 available=5, got %d/%d", rec.ReservedQuantity, rec.Available())
	}

	// Only 5 available: the next reservation must fail on available, not
	// on-hand.
	_, err := svc.Reserve(ctx, widgetA, mainLocation, 6, "HOLD-2", "MANUAL", testActor)
	if !core.IsKind(err, core.KindInsufficientAvailable) {
		t.Errorf("Expected INSUFFICIENT_AVAILABLE_STOCK, got %v", err)
	}

	if _, err := svc.Unreserve(ctx, widgetA, mainLocation, 15, "HOLD-1", "MANUAL", testActor); err != nil {
		t.Fatalf("Unreserve failed: %v", err)
	}
	rec = getRecord(t, ctx, svc, widgetA, mainLocation)
	if rec.ReservedQuantity != 0 || rec.Quantity != 20 {
		t.Errorf("Expected reserved=0 quantity=20 after release, got %d/%d", rec.ReservedQuantity, rec.Quantity)
	}
}

func TestStock_UnreserveMoreThanReserved(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)
	ctx := context.Background()

	seedStock(t, ctx, svc, widgetA, mainLocation, 20)
	if _, err := svc.Reserve(ctx, widgetA, mainLocation, 5, "HOLD-1", "MANUAL", testActor); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	_, err := svc.Unreserve(ctx, widgetA, mainLocation, 6, "HOLD-1", "MANUAL", testActor)
	if !core.IsKind(err, core.KindOverUnreserve) {
		t.Errorf("Expected OVER_UNRESERVE, got %v", err)
	}
}

func TestStock_ReserveMissingRecord(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)
	ctx := context.Background()

	// No stock record exists for widget B anywhere yet.
	_, err := svc.Reserve(ctx, widgetB, mainLocation, 1, "HOLD-1", "MANUAL", testActor)
	if !core.IsKind(err, core.KindNotFound) {
		t.Errorf("Expected NOT_FOUND for missing record, got %v", err)
	}
}

func TestStock_TransferBlendsUnitCost(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)
	ctx := context.Background()

	seedStock(t, ctx, svc, widgetA, mainLocation, 10)
	seedStock(t, ctx, svc, widgetA, eastLocation, 10)

	// Manually set distinct unit costs to observe blending.
	if _, err := pool.Exec(ctx,
		"UPDATE stock_records SET unit_cost = 200 WHERE product_id = $1 AND location_id = $2",
		widgetA, mainLocation); err != nil {
		t.Fatalf("cost seed failed: %v", err)
	}
	if _, err := pool.Exec(ctx,
		"UPDATE stock_records SET unit_cost = 100 WHERE product_id = $1 AND location_id = $2",
		widgetA, eastLocation); err != nil {
		t.Fatalf("cost seed failed: %v", err)
	}

	if _, err := svc.Transfer(ctx, widgetA, mainLocation, eastLocation, 10, testActor); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	// Destination: (10*100 + 10*200) / 20 = 150.
	dst := getRecord(t, ctx, svc, widgetA, eastLocation)
	if !dst.UnitCost.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected blended unit cost 150, got %s", dst.UnitCost)
	}
}

func TestStock_GetStockLevels(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	svc := core.NewStockService(pool)
	ctx := context.Background()

	seedStock(t, ctx, svc, widgetA, mainLocation, 40)
	if _, err := svc.Reserve(ctx, widgetA, mainLocation, 10, "HOLD-1", "MANUAL", testActor); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	levels, err := svc.GetStockLevels(ctx)
	if err != nil {
		t.Fatalf("GetStockLevels failed: %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("Expected 1 stock level row, got %d", len(levels))
	}
	sl := levels[0]
	if sl.OnHand != 40 || sl.Reserved != 10 || sl.Available != 30 {
		t.Errorf("Expected 40/10/30, got %d/%d/%d", sl.OnHand, sl.Reserved, sl.Available)
	}
	if sl.SKU != "WID-A" || sl.LocationCode != "MAIN" {
		t.Errorf("Unexpected join data: %s at %s", sl.SKU, sl.LocationCode)
	}
}
