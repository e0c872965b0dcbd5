package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PurchaseOrderService owns the inbound side: purchase orders move
// DRAFT → SUBMITTED → RECEIVED, with cancellation possible until receiving
// starts. Receiving puts stock away through the ledger line by line and
// closes the PO automatically once every line is complete.
type PurchaseOrderService interface {
	CreatePO(ctx context.Context, input CreatePOInput) (*PurchaseOrder, error)
	SubmitPO(ctx context.Context, poID, actorID int) (*PurchaseOrder, error)
	CancelPO(ctx context.Context, poID, actorID int) (*PurchaseOrder, error)
	// ReceiveItems books one delivery: each receipt bumps its line's received
	// quantity and increases on-hand stock at the receipt's location. All
	// receipts in the call succeed or none do.
	ReceiveItems(ctx context.Context, poID int, receipts []ReceiptInput, actorID int) (*PurchaseOrder, error)

	GetPO(ctx context.Context, poID int) (*PurchaseOrder, error)
	GetPOs(ctx context.Context, status *POStatus) ([]PurchaseOrder, error)
}

type purchaseOrderService struct {
	pool      *pgxpool.Pool
	stock     StockService
	sequences SequenceService
}

func NewPurchaseOrderService(pool *pgxpool.Pool, stock StockService, sequences SequenceService) PurchaseOrderService {
	return &purchaseOrderService{pool: pool, stock: stock, sequences: sequences}
}

func (s *purchaseOrderService) CreatePO(ctx context.Context, input CreatePOInput) (*PurchaseOrder, error) {
	if err := requireActor(input.ActorID); err != nil {
		return nil, err
	}
	if len(input.Lines) == 0 {
		return nil, E(KindInvalidInput, "purchase order must have at least one line")
	}
	for i, l := range input.Lines {
		if l.Quantity <= 0 {
			return nil, E(KindInvalidInput, "line %d: quantity must be positive, got %d", i+1, l.Quantity)
		}
		if l.UnitCost < 0 {
			return nil, E(KindInvalidInput, "line %d: unit cost cannot be negative", i+1)
		}
	}

	var poID int
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		var supplierName string
		err := tx.QueryRow(ctx, "SELECT name FROM suppliers WHERE id = $1", input.SupplierID).Scan(&supplierName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return E(KindNotFound, "supplier %d not found", input.SupplierID)
			}
			return fmt.Errorf("failed to resolve supplier: %w", err)
		}

		var subtotal, tax int64
		type resolvedLine struct {
			input        POLineInput
			taxRate      decimal.Decimal
			lineSubtotal int64
		}
		var resolved []resolvedLine

		for i, l := range input.Lines {
			var taxRate decimal.Decimal
			err := tx.QueryRow(ctx, "SELECT tax_rate FROM products WHERE id = $1", l.ProductID).Scan(&taxRate)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return E(KindNotFound, "line %d: product %d not found", i+1, l.ProductID)
				}
				return fmt.Errorf("line %d: failed to resolve product: %w", i+1, err)
			}
			lineSubtotal := l.Quantity * l.UnitCost
			subtotal += lineSubtotal
			tax += TaxOn(lineSubtotal, taxRate)
			resolved = append(resolved, resolvedLine{input: l, taxRate: taxRate, lineSubtotal: lineSubtotal})
		}

		poNumber, err := s.sequences.NextNumberTx(ctx, tx, "PO", time.Now().Year())
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO purchase_orders (po_number, supplier_id, actor_id, status, subtotal, tax, total, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, poNumber, input.SupplierID, input.ActorID, PODraft,
			subtotal, tax, subtotal+tax, input.Notes,
		).Scan(&poID)
		if err != nil {
			return fmt.Errorf("failed to insert purchase order: %w", err)
		}

		for i, rl := range resolved {
			if _, err := tx.Exec(ctx, `
				INSERT INTO purchase_order_lines
				            (purchase_order_id, line_number, product_id, quantity_ordered, quantity_received, unit_cost, line_subtotal)
				VALUES ($1, $2, $3, $4, 0, $5, $6)
			`, poID, i+1, rl.input.ProductID, rl.input.Quantity, rl.input.UnitCost, rl.lineSubtotal); err != nil {
				return fmt.Errorf("failed to insert purchase order line %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetPO(ctx, poID)
}

func (s *purchaseOrderService) SubmitPO(ctx context.Context, poID, actorID int) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, POSubmitted, actorID)
}

func (s *purchaseOrderService) CancelPO(ctx context.Context, poID, actorID int) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, POCanceled, actorID)
}

// transition applies SUBMITTED or CANCELED. RECEIVED is never reached this
// way; it is set by ReceiveItems when the last outstanding unit arrives.
func (s *purchaseOrderService) transition(ctx context.Context, poID int, next POStatus, actorID int) (*PurchaseOrder, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, poNumber, err := lockPO(ctx, tx, poID)
		if err != nil {
			return err
		}
		if !current.CanTransition(next) {
			return E(KindInvalidTransition, "purchase order %s cannot go from %s to %s", poNumber, current, next)
		}

		query := "UPDATE purchase_orders SET status = $1 WHERE id = $2"
		if next == POSubmitted {
			query = "UPDATE purchase_orders SET status = $1, submitted_at = NOW() WHERE id = $2"
		} else if next == POCanceled {
			query = "UPDATE purchase_orders SET status = $1, canceled_at = NOW() WHERE id = $2"
		}
		if _, err := tx.Exec(ctx, query, next, poID); err != nil {
			return fmt.Errorf("failed to update purchase order %d status: %w", poID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetPO(ctx, poID)
}

func (s *purchaseOrderService) ReceiveItems(ctx context.Context, poID int, receipts []ReceiptInput, actorID int) (*PurchaseOrder, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, E(KindInvalidInput, "at least one receipt is required")
	}
	for i, r := range receipts {
		if r.Quantity <= 0 {
			return nil, E(KindInvalidInput, "receipt %d: quantity must be positive, got %d", i+1, r.Quantity)
		}
	}

	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, poNumber, err := lockPO(ctx, tx, poID)
		if err != nil {
			return err
		}
		if current != POSubmitted {
			return E(KindInvalidState, "purchase order %s is %s, only SUBMITTED orders can receive items", poNumber, current)
		}

		// Lines are locked with the PO row held, so concurrent receipts for
		// the same PO serialize here.
		type lineState struct {
			productID int
			ordered   int64
			received  int64
			unitCost  int64
		}
		lines := make(map[int]*lineState)
		rows, err := tx.Query(ctx, `
			SELECT id, product_id, quantity_ordered, quantity_received, unit_cost
			FROM purchase_order_lines
			WHERE purchase_order_id = $1
			ORDER BY line_number
			FOR UPDATE
		`, poID)
		if err != nil {
			return fmt.Errorf("failed to lock purchase order lines: %w", err)
		}
		for rows.Next() {
			var id int
			ls := &lineState{}
			if err := rows.Scan(&id, &ls.productID, &ls.ordered, &ls.received, &ls.unitCost); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan purchase order line: %w", err)
			}
			lines[id] = ls
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for i, r := range receipts {
			ls, ok := lines[r.LineID]
			if !ok {
				return E(KindNotFound, "receipt %d: line %d does not belong to purchase order %s", i+1, r.LineID, poNumber)
			}
			if err := checkLocationExists(ctx, tx, r.LocationID); err != nil {
				return err
			}
			if ls.received+r.Quantity > ls.ordered {
				return E(KindOverReceipt,
					"receipt %d: line %d ordered %d, already received %d, cannot receive %d more",
					i+1, r.LineID, ls.ordered, ls.received, r.Quantity)
			}
			ls.received += r.Quantity

			if _, err := tx.Exec(ctx,
				"UPDATE purchase_order_lines SET quantity_received = $1 WHERE id = $2",
				ls.received, r.LineID,
			); err != nil {
				return fmt.Errorf("failed to update received quantity on line %d: %w", r.LineID, err)
			}

			if _, err := s.stock.ReceiveTx(ctx, tx,
				ls.productID, r.LocationID, r.Quantity,
				decimal.NewFromInt(ls.unitCost), poNumber, actorID,
			); err != nil {
				return err
			}
		}

		complete := true
		for _, ls := range lines {
			if ls.received < ls.ordered {
				complete = false
				break
			}
		}
		if complete {
			if _, err := tx.Exec(ctx,
				"UPDATE purchase_orders SET status = $1, received_at = NOW() WHERE id = $2",
				POReceived, poID,
			); err != nil {
				return fmt.Errorf("failed to close purchase order %d: %w", poID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetPO(ctx, poID)
}

func lockPO(ctx context.Context, tx pgx.Tx, poID int) (POStatus, string, error) {
	var status POStatus
	var poNumber string
	err := tx.QueryRow(ctx,
		"SELECT status, po_number FROM purchase_orders WHERE id = $1 FOR UPDATE",
		poID,
	).Scan(&status, &poNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", E(KindNotFound, "purchase order %d not found", poID)
		}
		return "", "", fmt.Errorf("failed to fetch purchase order %d: %w", poID, err)
	}
	return status, poNumber, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *purchaseOrderService) GetPO(ctx context.Context, poID int) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := s.pool.QueryRow(ctx, `
		SELECT po.id, po.po_number, po.supplier_id, sp.name, po.actor_id, po.status,
		       po.subtotal, po.tax, po.total, po.notes,
		       po.created_at, po.submitted_at, po.received_at, po.canceled_at
		FROM purchase_orders po
		JOIN suppliers sp ON sp.id = po.supplier_id
		WHERE po.id = $1
	`, poID).Scan(
		&po.ID, &po.PONumber, &po.SupplierID, &po.SupplierName, &po.ActorID, &po.Status,
		&po.Subtotal, &po.Tax, &po.Total, &po.Notes,
		&po.CreatedAt, &po.SubmittedAt, &po.ReceivedAt, &po.CanceledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(KindNotFound, "purchase order %d not found", poID)
		}
		return nil, fmt.Errorf("failed to fetch purchase order %d: %w", poID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT pol.id, pol.purchase_order_id, pol.line_number,
		       p.id, p.sku, p.name,
		       pol.quantity_ordered, pol.quantity_received, pol.unit_cost, pol.line_subtotal
		FROM purchase_order_lines pol
		JOIN products p ON p.id = pol.product_id
		WHERE pol.purchase_order_id = $1
		ORDER BY pol.line_number
	`, poID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l PurchaseOrderLine
		if err := rows.Scan(
			&l.ID, &l.PurchaseOrderID, &l.LineNumber,
			&l.ProductID, &l.SKU, &l.ProductName,
			&l.QuantityOrdered, &l.QuantityReceived, &l.UnitCost, &l.LineSubtotal,
		); err != nil {
			return nil, fmt.Errorf("failed to scan purchase order line: %w", err)
		}
		po.Lines = append(po.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &po, nil
}

func (s *purchaseOrderService) GetPOs(ctx context.Context, status *POStatus) ([]PurchaseOrder, error) {
	query := `
		SELECT po.id, po.po_number, po.supplier_id, sp.name, po.actor_id, po.status,
		       po.subtotal, po.tax, po.total, po.notes,
		       po.created_at, po.submitted_at, po.received_at, po.canceled_at
		FROM purchase_orders po
		JOIN suppliers sp ON sp.id = po.supplier_id`
	var args []any
	if status != nil {
		args = append(args, *status)
		query += " WHERE po.status = $1"
	}
	query += " ORDER BY po.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase orders: %w", err)
	}
	defer rows.Close()

	var pos []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := rows.Scan(
			&po.ID, &po.PONumber, &po.SupplierID, &po.SupplierName, &po.ActorID, &po.Status,
			&po.Subtotal, &po.Tax, &po.Total, &po.Notes,
			&po.CreatedAt, &po.SubmittedAt, &po.ReceivedAt, &po.CanceledAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		pos = append(pos, po)
	}
	return pos, rows.Err()
}
