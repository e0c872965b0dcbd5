package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money values are integer minor units (cents) throughout. Derived amounts
// (tax) are computed with decimal arithmetic and rounded half away from zero
// before being stored; see RoundMoney.

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Product struct {
	ID          int             `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CategoryID  *int            `json:"category_id,omitempty"`
	SupplierID  *int            `json:"supplier_id,omitempty"`
	UnitPrice   int64           `json:"unit_price"`
	UnitCost    int64           `json:"unit_cost"`
	TaxRate     decimal.Decimal `json:"tax_rate"` // percent, e.g. 10 or 7.5
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Category struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int      `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Supplier struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Location struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Customer struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// RoundMoney converts a decimal amount of minor units to int64, rounding half
// away from zero. This is the single rounding rule for every derived money
// amount (order tax, purchase order tax); keep it consistent process-wide.
func RoundMoney(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// TaxOn computes the tax on a subtotal (minor units) at a percent rate.
func TaxOn(subtotal int64, ratePercent decimal.Decimal) int64 {
	return RoundMoney(decimal.NewFromInt(subtotal).Mul(ratePercent).Div(decimal.NewFromInt(100)))
}
