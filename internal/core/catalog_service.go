package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CatalogService manages the reference data the ledger and the order flows
// hang off: products, categories, suppliers, locations, customers. Products
// and locations are deactivated rather than deleted so historical orders and
// stock transactions keep resolving.
type CatalogService interface {
	CreateProduct(ctx context.Context, input ProductInput) (*Product, error)
	UpdateProduct(ctx context.Context, productID int, input ProductInput) (*Product, error)
	DeactivateProduct(ctx context.Context, productID int) error
	GetProduct(ctx context.Context, productID int) (*Product, error)
	GetProductBySKU(ctx context.Context, sku string) (*Product, error)
	GetProducts(ctx context.Context, activeOnly bool) ([]Product, error)

	CreateCategory(ctx context.Context, name string, parentID *int) (*Category, error)
	GetCategories(ctx context.Context) ([]Category, error)

	CreateSupplier(ctx context.Context, input PartyInput) (*Supplier, error)
	GetSuppliers(ctx context.Context) ([]Supplier, error)

	CreateLocation(ctx context.Context, code, name, address string) (*Location, error)
	DeactivateLocation(ctx context.Context, locationID int) error
	GetLocations(ctx context.Context, activeOnly bool) ([]Location, error)

	CreateCustomer(ctx context.Context, input PartyInput) (*Customer, error)
	GetCustomers(ctx context.Context) ([]Customer, error)
}

// ProductInput carries the writable product fields.
type ProductInput struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CategoryID  *int            `json:"category_id"`
	SupplierID  *int            `json:"supplier_id"`
	UnitPrice   int64           `json:"unit_price"`
	UnitCost    int64           `json:"unit_cost"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// PartyInput carries the shared writable fields of suppliers and customers.
type PartyInput struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type catalogService struct {
	pool *pgxpool.Pool
}

func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

// ── Products ─────────────────────────────────────────────────────────────────

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}
	var productID int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, description, category_id, supplier_id, unit_price, unit_cost, tax_rate, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true)
		RETURNING id`,
		input.SKU, input.Name, input.Description, input.CategoryID, input.SupplierID,
		input.UnitPrice, input.UnitCost, input.TaxRate,
	).Scan(&productID)
	if err != nil {
		return nil, fmt.Errorf("failed to create product %q: %w", input.SKU, err)
	}
	return s.GetProduct(ctx, productID)
}

func (s *catalogService) UpdateProduct(ctx context.Context, productID int, input ProductInput) (*Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE products
		SET sku = $1, name = $2, description = $3, category_id = $4, supplier_id = $5,
		    unit_price = $6, unit_cost = $7, tax_rate = $8
		WHERE id = $9`,
		input.SKU, input.Name, input.Description, input.CategoryID, input.SupplierID,
		input.UnitPrice, input.UnitCost, input.TaxRate, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, E(KindNotFound, "product %d not found", productID)
	}
	return s.GetProduct(ctx, productID)
}

// DeactivateProduct hides the product from new orders. Existing stock,
// reservations and transaction history are untouched.
func (s *catalogService) DeactivateProduct(ctx context.Context, productID int) error {
	tag, err := s.pool.Exec(ctx, "UPDATE products SET is_active = false WHERE id = $1", productID)
	if err != nil {
		return fmt.Errorf("failed to deactivate product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return E(KindNotFound, "product %d not found", productID)
	}
	return nil
}

const productColumns = "id, sku, name, description, category_id, supplier_id, unit_price, unit_cost, tax_rate, is_active, created_at"

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.SupplierID,
		&p.UnitPrice, &p.UnitCost, &p.TaxRate, &p.IsActive, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID int) (*Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1", productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(KindNotFound, "product %d not found", productID)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	return p, nil
}

func (s *catalogService) GetProductBySKU(ctx context.Context, sku string) (*Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		"SELECT "+productColumns+" FROM products WHERE sku = $1", sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, E(KindNotFound, "product %q not found", sku)
		}
		return nil, fmt.Errorf("failed to fetch product %q: %w", sku, err)
	}
	return p, nil
}

func (s *catalogService) GetProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	query := "SELECT " + productColumns + " FROM products"
	if activeOnly {
		query += " WHERE is_active = true"
	}
	query += " ORDER BY sku"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func validateProductInput(input ProductInput) error {
	if input.SKU == "" || input.Name == "" {
		return E(KindInvalidInput, "product sku and name are required")
	}
	if input.UnitPrice < 0 || input.UnitCost < 0 {
		return E(KindInvalidInput, "product prices cannot be negative")
	}
	if input.TaxRate.IsNegative() {
		return E(KindInvalidInput, "product tax rate cannot be negative")
	}
	return nil
}

// ── Categories ───────────────────────────────────────────────────────────────

func (s *catalogService) CreateCategory(ctx context.Context, name string, parentID *int) (*Category, error) {
	if name == "" {
		return nil, E(KindInvalidInput, "category name is required")
	}
	c := &Category{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO categories (name, parent_id)
		VALUES ($1, $2)
		RETURNING id, name, parent_id, created_at`,
		name, parentID,
	).Scan(&c.ID, &c.Name, &c.ParentID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", name, err)
	}
	return c, nil
}

func (s *catalogService) GetCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, name, parent_id, created_at FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ── Suppliers ────────────────────────────────────────────────────────────────

func (s *catalogService) CreateSupplier(ctx context.Context, input PartyInput) (*Supplier, error) {
	if input.Code == "" || input.Name == "" {
		return nil, E(KindInvalidInput, "supplier code and name are required")
	}
	sp := &Supplier{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (code, name, email, phone, address, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING id, code, name, email, phone, address, is_active, created_at`,
		input.Code, input.Name, input.Email, input.Phone, input.Address,
	).Scan(&sp.ID, &sp.Code, &sp.Name, &sp.Email, &sp.Phone, &sp.Address, &sp.IsActive, &sp.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create supplier %q: %w", input.Code, err)
	}
	return sp, nil
}

func (s *catalogService) GetSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, code, name, email, phone, address, is_active, created_at FROM suppliers ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sp Supplier
		if err := rows.Scan(&sp.ID, &sp.Code, &sp.Name, &sp.Email, &sp.Phone, &sp.Address, &sp.IsActive, &sp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, sp)
	}
	return suppliers, rows.Err()
}

// ── Locations ────────────────────────────────────────────────────────────────

func (s *catalogService) CreateLocation(ctx context.Context, code, name, address string) (*Location, error) {
	if code == "" || name == "" {
		return nil, E(KindInvalidInput, "location code and name are required")
	}
	l := &Location{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO locations (code, name, address, is_active)
		VALUES ($1, $2, $3, true)
		RETURNING id, code, name, address, is_active, created_at`,
		code, name, address,
	).Scan(&l.ID, &l.Code, &l.Name, &l.Address, &l.IsActive, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create location %q: %w", code, err)
	}
	return l, nil
}

// DeactivateLocation blocks new stock movements into the location. Stock
// already there stays visible and can still be transferred out.
func (s *catalogService) DeactivateLocation(ctx context.Context, locationID int) error {
	tag, err := s.pool.Exec(ctx, "UPDATE locations SET is_active = false WHERE id = $1", locationID)
	if err != nil {
		return fmt.Errorf("failed to deactivate location %d: %w", locationID, err)
	}
	if tag.RowsAffected() == 0 {
		return E(KindNotFound, "location %d not found", locationID)
	}
	return nil
}

func (s *catalogService) GetLocations(ctx context.Context, activeOnly bool) ([]Location, error) {
	query := "SELECT id, code, name, address, is_active, created_at FROM locations"
	if activeOnly {
		query += " WHERE is_active = true"
	}
	query += " ORDER BY code"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Code, &l.Name, &l.Address, &l.IsActive, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// ── Customers ────────────────────────────────────────────────────────────────

func (s *catalogService) CreateCustomer(ctx context.Context, input PartyInput) (*Customer, error) {
	if input.Code == "" || input.Name == "" {
		return nil, E(KindInvalidInput, "customer code and name are required")
	}
	c := &Customer{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customers (code, name, email, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, code, name, email, phone, address, created_at`,
		input.Code, input.Name, input.Email, input.Phone, input.Address,
	).Scan(&c.ID, &c.Code, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer %q: %w", input.Code, err)
	}
	return c, nil
}

func (s *catalogService) GetCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, code, name, email, phone, address, created_at FROM customers ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}
