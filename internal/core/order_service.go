package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderService owns the order lifecycle. Creation reserves stock across
// locations for every line; status transitions either commit those
// reservations to real deductions (ship/deliver) or release them (cancel),
// always atomically with the status write.
type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error)
	// UpdateStatus applies one transition from the allowed table and its
	// ledger side effects in a single transaction.
	UpdateStatus(ctx context.Context, orderID int, next OrderStatus, actorID int) (*Order, error)

	GetOrder(ctx context.Context, orderID int) (*Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error)
	GetOrders(ctx context.Context, status *OrderStatus) ([]Order, error)
}

type orderService struct {
	pool      *pgxpool.Pool
	stock     StockService
	sequences SequenceService
}

func NewOrderService(pool *pgxpool.Pool, stock StockService, sequences SequenceService) OrderService {
	return &orderService{pool: pool, stock: stock, sequences: sequences}
}

// CreateOrder persists a PENDING order and reserves stock for every line,
// splitting each line across locations highest-available-first. If any line
// cannot be fully reserved the whole creation rolls back: no partial orders,
// no partial reservations.
func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if err := requireActor(input.ActorID); err != nil {
		return nil, err
	}
	if len(input.Lines) == 0 {
		return nil, E(KindInvalidInput, "order must have at least one line")
	}
	if input.ShippingCost < 0 {
		return nil, E(KindInvalidInput, "shipping cost cannot be negative")
	}
	seen := make(map[int]bool, len(input.Lines))
	for i, l := range input.Lines {
		if l.Quantity <= 0 {
			return nil, E(KindInvalidInput, "line %d: quantity must be positive, got %d", i+1, l.Quantity)
		}
		if seen[l.ProductID] {
			return nil, E(KindInvalidInput, "line %d: product %d appears more than once", i+1, l.ProductID)
		}
		seen[l.ProductID] = true
	}

	var orderID int
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		var customerName string
		err := tx.QueryRow(ctx, "SELECT name FROM customers WHERE id = $1", input.CustomerID).Scan(&customerName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return E(KindNotFound, "customer %d not found", input.CustomerID)
			}
			return fmt.Errorf("failed to resolve customer: %w", err)
		}

		type resolvedLine struct {
			product      Product
			quantity     int64
			lineSubtotal int64
		}
		var resolved []resolvedLine
		var subtotal, tax int64

		for i, l := range input.Lines {
			var p Product
			err := tx.QueryRow(ctx,
				"SELECT id, sku, name, unit_price, unit_cost, tax_rate, is_active FROM products WHERE id = $1",
				l.ProductID,
			).Scan(&p.ID, &p.SKU, &p.Name, &p.UnitPrice, &p.UnitCost, &p.TaxRate, &p.IsActive)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return E(KindNotFound, "line %d: product %d not found", i+1, l.ProductID)
				}
				return fmt.Errorf("line %d: failed to resolve product: %w", i+1, err)
			}
			if !p.IsActive {
				return E(KindInvalidState, "line %d: product %s is inactive", i+1, p.SKU)
			}

			lineSubtotal := l.Quantity * p.UnitPrice
			subtotal += lineSubtotal
			tax += TaxOn(lineSubtotal, p.TaxRate)
			resolved = append(resolved, resolvedLine{product: p, quantity: l.Quantity, lineSubtotal: lineSubtotal})
		}

		total := subtotal + tax + input.ShippingCost

		orderNumber, err := s.sequences.NextNumberTx(ctx, tx, "SO", time.Now().Year())
		if err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO orders (order_number, customer_id, actor_id, status, subtotal, tax, shipping_cost, total, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`, orderNumber, input.CustomerID, input.ActorID, OrderPending,
			subtotal, tax, input.ShippingCost, total, input.Notes,
		).Scan(&orderID)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i, rl := range resolved {
			if _, err := tx.Exec(ctx, `
				INSERT INTO order_lines (order_id, line_number, product_id, quantity, unit_price, unit_cost, line_subtotal)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, orderID, i+1, rl.product.ID, rl.quantity, rl.product.UnitPrice, rl.product.UnitCost, rl.lineSubtotal); err != nil {
				return fmt.Errorf("failed to insert order line %d: %w", i+1, err)
			}
		}

		// Reserve stock per line, splitting across locations. Records are
		// locked up front so the availability check cannot go stale before
		// the reservations land.
		for _, rl := range resolved {
			if err := s.reserveLineTx(ctx, tx, orderID, orderNumber, rl.product, rl.quantity, input.ActorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetOrder(ctx, orderID)
}

// reserveLineTx allocates quantity units of product across locked stock
// records, highest available first, recording one reservation row and one
// ledger transaction per (location, line) split.
func (s *orderService) reserveLineTx(ctx context.Context, tx pgx.Tx, orderID int, orderNumber string, product Product, quantity int64, actorID int) error {
	recs, err := s.stock.LockRecordsByProductTx(ctx, tx, product.ID)
	if err != nil {
		return err
	}

	var available int64
	for _, r := range recs {
		available += r.Available()
	}
	if available < quantity {
		return E(KindInsufficientStock,
			"insufficient stock for product %s: available %d across all locations, requested %d",
			product.SKU, available, quantity)
	}

	remaining := quantity
	for _, rec := range recs {
		if remaining == 0 {
			break
		}
		take := rec.Available()
		if take == 0 {
			continue
		}
		if take > remaining {
			take = remaining
		}

		if _, err := s.stock.ReserveTx(ctx, tx, product.ID, rec.LocationID, take, orderNumber, RefOrder, actorID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO reservations (order_id, product_id, location_id, quantity, status)
			VALUES ($1, $2, $3, $4, $5)
		`, orderID, product.ID, rec.LocationID, take, ReservationReserved); err != nil {
			return fmt.Errorf("failed to record reservation split: %w", err)
		}
		remaining -= take
	}
	return nil
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID int, next OrderStatus, actorID int) (*Order, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if !ValidOrderStatus(next) {
		return nil, E(KindInvalidInput, "unknown order status %q", next)
	}

	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		var current OrderStatus
		var orderNumber string
		err := tx.QueryRow(ctx,
			"SELECT status, order_number FROM orders WHERE id = $1 FOR UPDATE",
			orderID,
		).Scan(&current, &orderNumber)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return E(KindNotFound, "order %d not found", orderID)
			}
			return fmt.Errorf("failed to fetch order %d: %w", orderID, err)
		}

		if !current.CanTransition(next) {
			return E(KindInvalidTransition, "order %s cannot go from %s to %s", orderNumber, current, next)
		}

		switch next {
		case OrderShipped, OrderDelivered:
			if err := s.consumeReservationsTx(ctx, tx, orderID, orderNumber, actorID); err != nil {
				return err
			}
		case OrderCanceled:
			if err := s.releaseReservationsTx(ctx, tx, orderID, orderNumber, actorID); err != nil {
				return err
			}
		}

		query := "UPDATE orders SET status = $1 WHERE id = $2"
		switch next {
		case OrderShipped:
			query = "UPDATE orders SET status = $1, shipped_at = NOW() WHERE id = $2"
		case OrderDelivered:
			query = "UPDATE orders SET status = $1, delivered_at = NOW() WHERE id = $2"
		case OrderCanceled:
			query = "UPDATE orders SET status = $1, canceled_at = NOW() WHERE id = $2"
		}
		if _, err := tx.Exec(ctx, query, next, orderID); err != nil {
			return fmt.Errorf("failed to update order %d status: %w", orderID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetOrder(ctx, orderID)
}

// consumeReservationsTx turns every remaining RESERVED split for the order
// into a real deduction: on-hand and reserved both drop, one OUT transaction
// per location touched. Splits already consumed or released are skipped, so
// a DELIVERED transition after SHIPPED deducts nothing twice.
func (s *orderService) consumeReservationsTx(ctx context.Context, tx pgx.Tx, orderID int, orderNumber string, actorID int) error {
	reservations, err := lockOrderReservations(ctx, tx, orderID)
	if err != nil {
		return err
	}
	for _, r := range reservations {
		if _, err := s.stock.DeductReservedTx(ctx, tx, r.ProductID, r.LocationID, r.Quantity, orderNumber, actorID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			"UPDATE reservations SET status = $1 WHERE id = $2",
			ReservationConsumed, r.ID,
		); err != nil {
			return fmt.Errorf("failed to mark reservation %d consumed: %w", r.ID, err)
		}
	}
	return nil
}

// releaseReservationsTx frees whatever is still reserved under this order.
// On-hand quantity is untouched; nothing was deducted while the order sat in
// PENDING or PROCESSING. A cancel after shipping finds no RESERVED splits
// and releases nothing.
func (s *orderService) releaseReservationsTx(ctx context.Context, tx pgx.Tx, orderID int, orderNumber string, actorID int) error {
	reservations, err := lockOrderReservations(ctx, tx, orderID)
	if err != nil {
		return err
	}
	for _, r := range reservations {
		if _, err := s.stock.UnreserveTx(ctx, tx, r.ProductID, r.LocationID, r.Quantity, orderNumber, RefOrder, actorID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			"UPDATE reservations SET status = $1 WHERE id = $2",
			ReservationReleased, r.ID,
		); err != nil {
			return fmt.Errorf("failed to mark reservation %d released: %w", r.ID, err)
		}
	}
	return nil
}

func lockOrderReservations(ctx context.Context, tx pgx.Tx, orderID int) ([]Reservation, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, order_id, product_id, location_id, quantity, status
		FROM reservations
		WHERE order_id = $1 AND status = $2
		ORDER BY id
		FOR UPDATE
	`, orderID, ReservationReserved)
	if err != nil {
		return nil, fmt.Errorf("failed to lock reservations for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.OrderID, &r.ProductID, &r.LocationID, &r.Quantity, &r.Status); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *orderService) GetOrder(ctx context.Context, orderID int) (*Order, error) {
	var o Order
	err := s.pool.QueryRow(ctx, `
		SELECT o.id, o.order_number, o.customer_id, c.name, o.actor_id, o.status,
		       o.subtotal, o.tax, o.shipping_cost, o.total, o.notes,
		       o.created_at, o.shipped_at, o.delivered_at, o.canceled_at
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		WHERE o.id = $1
	`, orderID).Scan(
		&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.ActorID, &o.Status,
		&o.Subtotal, &o.Tax, &o.ShippingCost, &o.Total, &o.Notes,
		&o.CreatedAt, &o.ShippedAt, &o.DeliveredAt, &o.CanceledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(KindNotFound, "order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	lines, err := fetchOrderLines(ctx, s.pool, orderID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

func (s *orderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	var orderID int
	err := s.pool.QueryRow(ctx, "SELECT id FROM orders WHERE order_number = $1", orderNumber).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(KindNotFound, "order %s not found", orderNumber)
		}
		return nil, fmt.Errorf("failed to look up order by number: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) GetOrders(ctx context.Context, status *OrderStatus) ([]Order, error) {
	query := `
		SELECT o.id, o.order_number, o.customer_id, c.name, o.actor_id, o.status,
		       o.subtotal, o.tax, o.shipping_cost, o.total, o.notes,
		       o.created_at, o.shipped_at, o.delivered_at, o.canceled_at
		FROM orders o
		JOIN customers c ON c.id = o.customer_id`
	var args []any
	if status != nil {
		args = append(args, *status)
		query += " WHERE o.status = $1"
	}
	query += " ORDER BY o.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.ActorID, &o.Status,
			&o.Subtotal, &o.Tax, &o.ShippingCost, &o.Total, &o.Notes,
			&o.CreatedAt, &o.ShippedAt, &o.DeliveredAt, &o.CanceledAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func fetchOrderLines(ctx context.Context, q pgxQuerier, orderID int) ([]OrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT ol.id, ol.order_id, ol.line_number,
		       p.id, p.sku, p.name,
		       ol.quantity, ol.unit_price, ol.unit_cost, ol.line_subtotal
		FROM order_lines ol
		JOIN products p ON p.id = ol.product_id
		WHERE ol.order_id = $1
		ORDER BY ol.line_number
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(
			&l.ID, &l.OrderID, &l.LineNumber,
			&l.ProductID, &l.SKU, &l.ProductName,
			&l.Quantity, &l.UnitPrice, &l.UnitCost, &l.LineSubtotal,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
