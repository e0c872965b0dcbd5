package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StockService owns the stock ledger: per-(product, location) quantity and
// reservation counters plus the append-only transaction log. Every mutation
// locks the target record(s) with SELECT ... FOR UPDATE and appends exactly
// one StockTransaction inside the same database transaction.
//
// Invariants held at all times: quantity >= 0 and
// 0 <= reserved_quantity <= quantity.
type StockService interface {
	// Queries.
	GetStock(ctx context.Context, productID, locationID int) (*StockRecord, error)
	GetStockLevels(ctx context.Context) ([]StockLevel, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]StockTransaction, error)

	// Standalone mutations (manage their own transactions).
	Adjust(ctx context.Context, productID, locationID int, delta int64, reason string, actorID int) (*StockTransaction, error)
	Transfer(ctx context.Context, productID, fromLocationID, toLocationID int, quantity int64, actorID int) (*StockTransaction, error)
	Reserve(ctx context.Context, productID, locationID int, quantity int64, referenceID, referenceType string, actorID int) (*StockTransaction, error)
	Unreserve(ctx context.Context, productID, locationID int, quantity int64, referenceID, referenceType string, actorID int) (*StockTransaction, error)

	// TX-scoped operations: work within a caller-provided transaction.
	// Used by the order and purchase-order coordinators to keep ledger
	// changes atomic with their own state transitions.

	ReserveTx(ctx context.Context, tx pgx.Tx, productID, locationID int, quantity int64, referenceID, referenceType string, actorID int) (*StockTransaction, error)
	UnreserveTx(ctx context.Context, tx pgx.Tx, productID, locationID int, quantity int64, referenceID, referenceType string, actorID int) (*StockTransaction, error)
	// ReceiveTx increases on-hand quantity (creating the record if needed)
	// and folds unitCost into the weighted average receipt cost.
	ReceiveTx(ctx context.Context, tx pgx.Tx, productID, locationID int, quantity int64, unitCost decimal.Decimal, referenceID string, actorID int) (*StockTransaction, error)
	// DeductReservedTx converts a reservation into a real deduction:
	// quantity and reserved_quantity both decrease by the same amount.
	DeductReservedTx(ctx context.Context, tx pgx.Tx, productID, locationID int, quantity int64, referenceID string, actorID int) (*StockTransaction, error)
	// LockRecordsByProductTx locks and returns all stock records for a
	// product, highest available first (ties broken by location id) so
	// allocation order is deterministic.
	LockRecordsByProductTx(ctx context.Context, tx pgx.Tx, productID int) ([]StockRecord, error)
}

type stockService struct {
	pool *pgxpool.Pool
}

func NewStockService(pool *pgxpool.Pool) StockService {
	return &stockService{pool: pool}
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *stockService) GetStock(ctx context.Context, productID, locationID int) (*StockRecord, error) {
	var r StockRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, product_id, location_id, quantity, reserved_quantity, unit_cost, updated_at
		FROM stock_records
		WHERE product_id = $1 AND location_id = $2
	`, productID, locationID).Scan(
		&r.ID, &r.ProductID, &r.LocationID, &r.Quantity, &r.ReservedQuantity, &r.UnitCost, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(KindNotFound, "no stock record for product %d at location %d", productID, locationID)
		}
		return nil, fmt.Errorf("failed to fetch stock record: %w", err)
	}
	return &r, nil
}

func (s *stockService) GetStockLevels(ctx context.Context) ([]StockLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.sku, p.name, l.id, l.code,
		       sr.quantity, sr.reserved_quantity,
		       sr.quantity - sr.reserved_quantity AS available
		FROM stock_records sr
		JOIN products p  ON p.id = sr.product_id
		JOIN locations l ON l.id = sr.location_id
		ORDER BY p.sku, l.code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(
			&sl.ProductID, &sl.SKU, &sl.ProductName,
			&sl.LocationID, &sl.LocationCode,
			&sl.OnHand, &sl.Reserved, &sl.Available,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

func (s *stockService) GetTransactions(ctx context.Context, filter TransactionFilter) ([]StockTransaction, error) {
	query := `
		SELECT id, type, product_id, quantity, from_location_id, to_location_id,
		       reference_id, reference_type, actor_id, notes, created_at
		FROM stock_transactions
		WHERE 1 = 1`
	var args []any

	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	if filter.LocationID != 0 {
		args = append(args, filter.LocationID)
		query += fmt.Sprintf(" AND (from_location_id = $%d OR to_location_id = $%d)", len(args), len(args))
	}
	if filter.ReferenceID != "" {
		args = append(args, filter.ReferenceID)
		query += fmt.Sprintf(" AND reference_id = $%d", len(args))
	}
	if filter.ReferenceType != "" {
		args = append(args, filter.ReferenceType)
		query += fmt.Sprintf(" AND reference_type = $%d", len(args))
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock transactions: %w", err)
	}
	defer rows.Close()

	var txns []StockTransaction
	for rows.Next() {
		var t StockTransaction
		if err := rows.Scan(
			&t.ID, &t.Type, &t.ProductID, &t.Quantity, &t.FromLocationID, &t.ToLocationID,
			&t.ReferenceID, &t.ReferenceType, &t.ActorID, &t.Notes, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// ── Standalone mutations ─────────────────────────────────────────────────────

// Adjust applies a manual correction. delta may be positive or negative but
// not zero: a no-op adjustment would still append a ledger transaction, which
// makes the audit trail lie.
func (s *stockService) Adjust(ctx context.Context, productID, locationID int, delta int64, reason string, actorID int) (*StockTransaction, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, E(KindInvalidAdjustment, "adjustment delta must be non-zero")
	}

	var txn *StockTransaction
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := checkProductExists(ctx, tx, productID); err != nil {
			return err
		}
		if err := checkLocationExists(ctx, tx, locationID); err != nil {
			return err
		}

		rec, err := ensureAndLockRecord(ctx, tx, productID, locationID)
		if err != nil {
			return err
		}

		newQty := rec.Quantity + delta
		if newQty < 0 {
			return E(KindInvalidAdjustment,
				"adjustment of %d would drive product %d at location %d negative (on hand %d)",
				delta, productID, locationID, rec.Quantity)
		}
		if newQty < rec.ReservedQuantity {
			return E(KindInvalidAdjustment,
				"adjustment of %d would drop product %d at location %d below its reserved quantity %d",
				delta, productID, locationID, rec.ReservedQuantity)
		}

		if _, err := tx.Exec(ctx,
			"UPDATE stock_records SET quantity = $1, updated_at = NOW() WHERE id = $2",
			newQty, rec.ID,
		); err != nil {
			return fmt.Errorf("failed to update stock record: %w", err)
		}

		t := StockTransaction{
			Type:          TransactionIn,
			ProductID:     productID,
			Quantity:      delta,
			ToLocationID:  &locationID,
			ReferenceType: RefAdjustment,
			ActorID:       actorID,
			Notes:         reason,
		}
		if delta < 0 {
			t.Type = TransactionOut
			t.Quantity = -delta
			t.ToLocationID = nil
			t.FromLocationID = &locationID
		}
		txn, err = appendTransaction(ctx, tx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Transfer moves quantity between two locations of the same product. The
// product's total on-hand quantity across all locations is unchanged.
func (s *stockService) Transfer(ctx context.Context, productID, fromLocationID, toLocationID int, quantity int64, actorID int) (*StockTransaction, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, E(KindInvalidTransfer, "transfer quantity must be positive, got %d", quantity)
	}
	if fromLocationID == toLocationID {
		return nil, E(KindInvalidTransfer, "source and destination location are both %d", fromLocationID)
	}

	var txn *StockTransaction
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := checkProductExists(ctx, tx, productID); err != nil {
			return err
		}
		if err := checkLocationExists(ctx, tx, fromLocationID); err != nil {
			return err
		}
		if err := checkLocationExists(ctx, tx, toLocationID); err != nil {
			return err
		}

		// Lock both records in location-id order so concurrent opposite
		// transfers cannot deadlock.
		first, second := fromLocationID, toLocationID
		if second < first {
			first, second = second, first
		}
		if _, err := ensureAndLockRecord(ctx, tx, productID, first); err != nil {
			return err
		}
		if _, err := ensureAndLockRecord(ctx, tx, productID, second); err != nil {
			return err
		}

		src, err := lockRecord(ctx, tx, productID, fromLocationID)
		if err != nil {
			return err
		}
		dst, err := lockRecord(ctx, tx, productID, toLocationID)
		if err != nil {
			return err
		}

		if src.Quantity < quantity {
			return E(KindInsufficientStock,
				"insufficient stock for product %d at location %d: on hand %d, requested %d",
				productID, fromLocationID, src.Quantity, quantity)
		}
		if src.Available() < quantity {
			return E(KindInsufficientStock,
				"insufficient unreserved stock for product %d at location %d: available %d, requested %d",
				productID, fromLocationID, src.Available(), quantity)
		}

		if _, err := tx.Exec(ctx,
			"UPDATE stock_records SET quantity = quantity - $1, updated_at = NOW() WHERE id = $2",
			quantity, src.ID,
		); err != nil {
			return fmt.Errorf("failed to deduct source stock: %w", err)
		}

		newCost := weightedAverageCost(dst.Quantity, dst.UnitCost, quantity, src.UnitCost)
		if _, err := tx.Exec(ctx,
			"UPDATE stock_records SET quantity = quantity + $1, unit_cost = $2, updated_at = NOW() WHERE id = $3",
			quantity, newCost, dst.ID,
		); err != nil {
			return fmt.Errorf("failed to add destination stock: %w", err)
		}

		txn, err = appendTransaction(ctx, tx, StockTransaction{
			Type:           TransactionTransfer,
			ProductID:      productID,
			Quantity:       quantity,
			FromLocationID: &fromLocationID,
			ToLocationID:   &toLocationID,
			ReferenceType:  RefTransfer,
			ActorID:        actorID,
			Notes:          fmt.Sprintf("transfer %d units from location %d to %d", quantity, fromLocationID, toLocationID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *stockService) Reserve(ctx context.Context, productID, locationID int, quantity int64, referenceID, referenceType string, actorID int) (*StockTransaction, error) {
	var txn *StockTransaction
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		txn, err = s.ReserveTx(ctx, tx, productID, locationID, quantity, referenceID, referenceType, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *stockService) Unreserve(ctx context.Context, productID, locationID int, quantity int64, referenceID, referenceType string, actorID int) (*StockTransaction, error) {
	var txn *StockTransaction
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		txn, err = s.UnreserveTx(ctx, tx, productID, locationID, quantity, referenceID, referenceType, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ── TX-scoped operations ─────────────────────────────────────────────────────

// ReserveTx claims stock without physically moving it: reserved_quantity
// grows, on-hand is untouched. Fails if no stock record exists for the pair.
func (s *stockService) ReserveTx(ctx context.Context, tx pgx.Tx, productID, locationID int, quantity int64, referenceID, referenceType string, actorID int) (*StockTransaction, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, E(KindInvalidInput, "reserve quantity must be positive, got %d", quantity)
	}

	rec, err := lockRecord(ctx, tx, productID, locationID)
	if err != nil {
		return nil, err
	}
	if rec.Available() < quantity {
		return nil, E(KindInsufficientAvailable,
			"insufficient available stock for product %d at location %d: available %d, requested %d",
			productID, locationID, rec.Available(), quantity)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE stock_records SET reserved_quantity = reserved_quantity + $1, updated_at = NOW() WHERE id = $2",
		quantity, rec.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}

	return appendTransaction(ctx, tx, StockTransaction{
		Type:           TransactionOut,
		ProductID:      productID,
		Quantity:       quantity,
		FromLocationID: &locationID,
		ReferenceID:    referenceID,
		ReferenceType:  referenceType,
		ActorID:        actorID,
		Notes:          fmt.Sprintf("reserved %d units", quantity),
	})
}

// UnreserveTx releases previously reserved stock. It only guards against the
// aggregate counter going negative; matching releases to the reservations
// they undo is the caller's job.
func (s *stockService) UnreserveTx(ctx context.Context, tx pgx.Tx, productID, locationID int, quantity int64, referenceID, referenceType string, actorID int) (*StockTransaction, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, E(KindInvalidInput, "unreserve quantity must be positive, got %d", quantity)
	}

	rec, err := lockRecord(ctx, tx, productID, locationID)
	if err != nil {
		return nil, err
	}
	if rec.ReservedQuantity < quantity {
		return nil, E(KindOverUnreserve,
			"cannot release %d units for product %d at location %d: only %d reserved",
			quantity, productID, locationID, rec.ReservedQuantity)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE stock_records SET reserved_quantity = reserved_quantity - $1, updated_at = NOW() WHERE id = $2",
		quantity, rec.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to release reservation: %w", err)
	}

	return appendTransaction(ctx, tx, StockTransaction{
		Type:          TransactionIn,
		ProductID:     productID,
		Quantity:      quantity,
		ToLocationID:  &locationID,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		ActorID:       actorID,
		Notes:         fmt.Sprintf("released %d reserved units", quantity),
	})
}

func (s *stockService) ReceiveTx(ctx context.Context, tx pgx.Tx, productID, locationID int, quantity int64, unitCost decimal.Decimal, referenceID string, actorID int) (*StockTransaction, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, E(KindInvalidInput, "receive quantity must be positive, got %d", quantity)
	}

	rec, err := ensureAndLockRecord(ctx, tx, productID, locationID)
	if err != nil {
		return nil, err
	}

	newCost := weightedAverageCost(rec.Quantity, rec.UnitCost, quantity, unitCost)
	if _, err := tx.Exec(ctx,
		"UPDATE stock_records SET quantity = quantity + $1, unit_cost = $2, updated_at = NOW() WHERE id = $3",
		quantity, newCost, rec.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to add received stock: %w", err)
	}

	return appendTransaction(ctx, tx, StockTransaction{
		Type:          TransactionIn,
		ProductID:     productID,
		Quantity:      quantity,
		ToLocationID:  &locationID,
		ReferenceID:   referenceID,
		ReferenceType: RefPurchaseOrder,
		ActorID:       actorID,
		Notes:         fmt.Sprintf("received %d units", quantity),
	})
}

func (s *stockService) DeductReservedTx(ctx context.Context, tx pgx.Tx, productID, locationID int, quantity int64, referenceID string, actorID int) (*StockTransaction, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, E(KindInvalidInput, "deduct quantity must be positive, got %d", quantity)
	}

	rec, err := lockRecord(ctx, tx, productID, locationID)
	if err != nil {
		return nil, err
	}
	if rec.ReservedQuantity < quantity || rec.Quantity < quantity {
		return nil, E(KindInvalidState,
			"cannot deduct %d reserved units for product %d at location %d: on hand %d, reserved %d",
			quantity, productID, locationID, rec.Quantity, rec.ReservedQuantity)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE stock_records
		SET quantity = quantity - $1, reserved_quantity = reserved_quantity - $1, updated_at = NOW()
		WHERE id = $2
	`, quantity, rec.ID); err != nil {
		return nil, fmt.Errorf("failed to deduct reserved stock: %w", err)
	}

	return appendTransaction(ctx, tx, StockTransaction{
		Type:           TransactionOut,
		ProductID:      productID,
		Quantity:       quantity,
		FromLocationID: &locationID,
		ReferenceID:    referenceID,
		ReferenceType:  RefOrder,
		ActorID:        actorID,
		Notes:          fmt.Sprintf("shipped %d reserved units", quantity),
	})
}

func (s *stockService) LockRecordsByProductTx(ctx context.Context, tx pgx.Tx, productID int) ([]StockRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, product_id, location_id, quantity, reserved_quantity, unit_cost, updated_at
		FROM stock_records
		WHERE product_id = $1
		ORDER BY quantity - reserved_quantity DESC, location_id
		FOR UPDATE
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock records for product %d: %w", productID, err)
	}
	defer rows.Close()

	var recs []StockRecord
	for rows.Next() {
		var r StockRecord
		if err := rows.Scan(&r.ID, &r.ProductID, &r.LocationID, &r.Quantity, &r.ReservedQuantity, &r.UnitCost, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock record: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func requireActor(actorID int) error {
	if actorID <= 0 {
		return E(KindInvalidInput, "actor id is required for ledger mutations")
	}
	return nil
}

// ensureAndLockRecord materializes the stock record for a (product, location)
// pair if it does not exist yet, then locks it for update. The upsert itself
// already takes a row lock on conflict; the explicit FOR UPDATE read returns
// the current counters under that lock.
func ensureAndLockRecord(ctx context.Context, tx pgx.Tx, productID, locationID int) (*StockRecord, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_records (product_id, location_id, quantity, reserved_quantity, unit_cost)
		VALUES ($1, $2, 0, 0, 0)
		ON CONFLICT (product_id, location_id) DO NOTHING
	`, productID, locationID); err != nil {
		return nil, fmt.Errorf("failed to upsert stock record: %w", err)
	}
	return lockRecord(ctx, tx, productID, locationID)
}

func lockRecord(ctx context.Context, tx pgx.Tx, productID, locationID int) (*StockRecord, error) {
	var r StockRecord
	err := tx.QueryRow(ctx, `
		SELECT id, product_id, location_id, quantity, reserved_quantity, unit_cost, updated_at
		FROM stock_records
		WHERE product_id = $1 AND location_id = $2
		FOR UPDATE
	`, productID, locationID).Scan(
		&r.ID, &r.ProductID, &r.LocationID, &r.Quantity, &r.ReservedQuantity, &r.UnitCost, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(KindNotFound, "no stock record for product %d at location %d", productID, locationID)
		}
		return nil, fmt.Errorf("failed to lock stock record: %w", err)
	}
	return &r, nil
}

func appendTransaction(ctx context.Context, tx pgx.Tx, t StockTransaction) (*StockTransaction, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO stock_transactions
		            (type, product_id, quantity, from_location_id, to_location_id,
		             reference_id, reference_type, actor_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, t.Type, t.ProductID, t.Quantity, t.FromLocationID, t.ToLocationID,
		t.ReferenceID, t.ReferenceType, t.ActorID, t.Notes,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append stock transaction: %w", err)
	}
	return &t, nil
}

// weightedAverageCost folds a receipt of qty units at cost into an existing
// position of oldQty units at oldCost.
func weightedAverageCost(oldQty int64, oldCost decimal.Decimal, qty int64, cost decimal.Decimal) decimal.Decimal {
	newQty := oldQty + qty
	if newQty == 0 {
		return cost
	}
	return decimal.NewFromInt(oldQty).Mul(oldCost).
		Add(decimal.NewFromInt(qty).Mul(cost)).
		Div(decimal.NewFromInt(newQty))
}

func checkProductExists(ctx context.Context, q pgxQuerier, productID int) error {
	var exists bool
	if err := q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", productID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check product %d: %w", productID, err)
	}
	if !exists {
		return E(KindNotFound, "product %d not found", productID)
	}
	return nil
}

func checkLocationExists(ctx context.Context, q pgxQuerier, locationID int) error {
	var exists bool
	if err := q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM locations WHERE id = $1 AND is_active = true)", locationID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check location %d: %w", locationID, err)
	}
	if !exists {
		return E(KindNotFound, "location %d not found", locationID)
	}
	return nil
}
