package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

type CatalogRef struct {
	Kind LineKind `json:"kind"`
	ID   string   `json:"catalog_id"`
}

func (r CatalogRef) String() string {
	return r.Kind.String() + ":" + r.ID
}

type CatalogItem struct {
	Kind        LineKind        `json:"kind"`
	ID          string          `json:"catalog_id"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxCode     string          `json:"tax_code"`
	Active      bool            `json:"active"`
	TracksStock bool            `json:"tracks_stock"`
}

func (c CatalogItem) Ref() CatalogRef {
	return CatalogRef{Kind: c.Kind, ID: c.ID}
}

type StockItem struct {
	ProductID string    `json:"product_id"`
	QtyOnHand int64     `json:"qty_on_hand"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StockShortfall struct {
	ProductID string `json:"product_id"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
	Missing   int64  `json:"missing"`
}

type CartLine struct {
	ID        string          `json:"id"`
	Kind      LineKind        `json:"kind"`
	CatalogID string          `json:"catalog_id,omitempty"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  decimal.Decimal `json:"quantity"`
	TaxCode   string          `json:"tax_code"`
}

// Discount holds either a flat amount or a percentage; a positive amount wins.
type Discount struct {
	Amount  decimal.Decimal `json:"amount"`
	Percent decimal.Decimal `json:"percent"`
}

type Cart struct {
	Session    string          `json:"session"`
	Lines      []CartLine      `json:"lines"`
	Discount   Discount        `json:"discount"`
	Tip        decimal.Decimal `json:"tip"`
	CustomerID string          `json:"customer_id,omitempty"`
	EmployeeID string          `json:"employee_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type PricedLine struct {
	CartLine
	TaxRate            decimal.Decimal `json:"tax_rate"`
	LineGross          decimal.Decimal `json:"line_gross"`
	DiscountShare      decimal.Decimal `json:"discount_share"`
	GrossAfterDiscount decimal.Decimal `json:"gross_after_discount"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
}

type Totals struct {
	Lines           []PricedLine               `json:"lines"`
	Subtotal        decimal.Decimal            `json:"subtotal"`
	Discount        decimal.Decimal            `json:"discount"`
	TaxByCode       map[string]decimal.Decimal `json:"tax_by_code"`
	TaxTotal        decimal.Decimal            `json:"tax_total"`
	Tip             decimal.Decimal            `json:"tip"`
	Total           decimal.Decimal            `json:"total"`
	UnknownTaxCodes []string                   `json:"unknown_tax_codes,omitempty"`
}

type ReceiptNumber struct {
	Prefix string `json:"prefix"`
	Value  int64  `json:"value"`
}

func (n ReceiptNumber) String() string {
	return fmt.Sprintf("%s%d", n.Prefix, n.Value)
}

type ReceiptSequence struct {
	Scope     string    `json:"register_id"`
	Prefix    string    `json:"prefix"`
	Next      int64     `json:"next"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Sale struct {
	ID            string          `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	RegisterID    string          `json:"register_id"`
	CreatedAt     time.Time       `json:"created_at"`
	BusinessDate  string          `json:"business_date"`
	CustomerID    string          `json:"customer_id,omitempty"`
	EmployeeID    string          `json:"employee_id,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discount_total"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	Tip           decimal.Decimal `json:"tip"`
	Total         decimal.Decimal `json:"total"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	CreatedBy     string          `json:"created_by"`
	Lines         []SaleLine      `json:"lines"`
	Payments      []Payment       `json:"payments"`
}

type SaleLine struct {
	ID                 string          `json:"id"`
	Position           int             `json:"position"`
	Kind               LineKind        `json:"kind"`
	CatalogID          string          `json:"catalog_id,omitempty"`
	Name               string          `json:"name"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	TaxCode            string          `json:"tax_code"`
	TaxRate            decimal.Decimal `json:"tax_rate"`
	LineGross          decimal.Decimal `json:"line_gross"`
	DiscountShare      decimal.Decimal `json:"discount_share"`
	GrossAfterDiscount decimal.Decimal `json:"gross_after_discount"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
}

type Payment struct {
	ID     string          `json:"id"`
	Method PaymentMethod   `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

type CashLedgerEntry struct {
	Date         string              `json:"date"`
	OpeningFloat decimal.Decimal     `json:"opening_float"`
	CashIns      decimal.Decimal     `json:"cash_ins"`
	CashOuts     decimal.Decimal     `json:"cash_outs"`
	CountedCash  decimal.NullDecimal `json:"counted_cash"`
	UpdatedAt    time.Time           `json:"updated_at"`
	UpdatedBy    string              `json:"updated_by,omitempty"`
}

type CashMovement struct {
	ID        string          `json:"id"`
	Date      string          `json:"date"`
	Kind      MovementKind    `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	Actor     string          `json:"actor"`
	CreatedAt time.Time       `json:"created_at"`
}

type Expense struct {
	ID        string          `json:"id"`
	Date      string          `json:"date"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
	Receipted bool            `json:"receipted"`
	Note      string          `json:"note,omitempty"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// DaySnapshot is the raw aggregation read for one business date.
type DaySnapshot struct {
	Date             string
	PaymentsByMethod map[PaymentMethod]decimal.Decimal
	SaleCount        int
	Subtotal         decimal.Decimal
	DiscountTotal    decimal.Decimal
	TaxTotal         decimal.Decimal
	TipTotal         decimal.Decimal
	NetTotal         decimal.Decimal
	ExpensesByMethod map[PaymentMethod]decimal.Decimal
	Ledger           CashLedgerEntry
	Close            *DayClose
}

type DayCloseReport struct {
	Date             string                            `json:"date"`
	PaymentsByMethod map[PaymentMethod]decimal.Decimal `json:"payments_by_method"`
	SaleCount        int                               `json:"sale_count"`
	Subtotal         decimal.Decimal                   `json:"subtotal"`
	DiscountTotal    decimal.Decimal                   `json:"discount_total"`
	TaxTotal         decimal.Decimal                   `json:"tax_total"`
	TipTotal         decimal.Decimal                   `json:"tip_total"`
	NetTotal         decimal.Decimal                   `json:"net_total"`
	ExpensesByMethod map[PaymentMethod]decimal.Decimal `json:"expenses_by_method"`
	ExpenseTotal     decimal.Decimal                   `json:"expense_total"`
	OpeningFloat     decimal.Decimal                   `json:"opening_float"`
	CashIns          decimal.Decimal                   `json:"cash_ins"`
	CashOuts         decimal.Decimal                   `json:"cash_outs"`
	CashSales        decimal.Decimal                   `json:"cash_sales"`
	CashExpenses     decimal.Decimal                   `json:"cash_expenses"`
	ExpectedCash     decimal.Decimal                   `json:"expected_cash"`
	CountedCash      decimal.NullDecimal               `json:"counted_cash"`
	Difference       decimal.NullDecimal               `json:"difference"`
	Finalized        bool                              `json:"finalized"`
	FinalizedAt      *time.Time                        `json:"finalized_at,omitempty"`
	FinalizedBy      string                            `json:"finalized_by,omitempty"`
}

type DayClose struct {
	Date             string                            `json:"date"`
	PaymentsByMethod map[PaymentMethod]decimal.Decimal `json:"payments_by_method"`
	SaleCount        int                               `json:"sale_count"`
	NetTotal         decimal.Decimal                   `json:"net_total"`
	TipTotal         decimal.Decimal                   `json:"tip_total"`
	ExpenseTotal     decimal.Decimal                   `json:"expense_total"`
	ExpectedCash     decimal.Decimal                   `json:"expected_cash"`
	CountedCash      decimal.Decimal                   `json:"counted_cash"`
	Difference       decimal.Decimal                   `json:"difference"`
	FinalizedAt      time.Time                         `json:"finalized_at"`
	FinalizedBy      string                            `json:"finalized_by"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type UserAccount struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	Active       bool   `json:"active"`
}
