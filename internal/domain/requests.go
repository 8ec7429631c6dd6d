package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutLine struct {
	Kind      LineKind        `json:"kind"`
	CatalogID string          `json:"catalog_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type PaymentInput struct {
	Method PaymentMethod   `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

type CheckoutRequest struct {
	Lines      []CheckoutLine  `json:"lines"`
	Discount   Discount        `json:"discount"`
	Tip        decimal.Decimal `json:"tip"`
	Payments   []PaymentInput  `json:"payments"`
	CustomerID string          `json:"customer_id,omitempty"`
	EmployeeID string          `json:"employee_id,omitempty"`
	RegisterID string          `json:"register_id,omitempty"`
}

type CheckoutResponse struct {
	OK            bool                       `json:"ok"`
	ReceiptNumber string                     `json:"receipt_number"`
	SaleID        string                     `json:"sale_id"`
	Subtotal      decimal.Decimal            `json:"subtotal"`
	Discount      decimal.Decimal            `json:"discount"`
	TaxByCode     map[string]decimal.Decimal `json:"tax_by_code"`
	TaxTotal      decimal.Decimal            `json:"tax_total"`
	Tip           decimal.Decimal            `json:"tip"`
	Total         decimal.Decimal            `json:"total"`
	PaymentStatus PaymentStatus              `json:"payment_status"`
	Payments      []Payment                  `json:"payments"`
	CreatedAt     time.Time                  `json:"created_at"`
	Warnings      []string                   `json:"warnings,omitempty"`
}

type AddCartLineRequest struct {
	Kind      LineKind        `json:"kind"`
	CatalogID string          `json:"catalog_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type UpdateCartLineRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

type CartTipRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type CartPartiesRequest struct {
	CustomerID string `json:"customer_id"`
	EmployeeID string `json:"employee_id"`
}

type CartCheckoutRequest struct {
	Payments   []PaymentInput `json:"payments"`
	RegisterID string         `json:"register_id,omitempty"`
}

type CartView struct {
	Cart   Cart    `json:"cart"`
	Totals *Totals `json:"totals,omitempty"`
}

type OpeningFloatRequest struct {
	Date   string          `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

type CashMovementRequest struct {
	Date   string          `json:"date"`
	Kind   string          `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type CashLedgerView struct {
	Entry     CashLedgerEntry `json:"entry"`
	Movements []CashMovement  `json:"movements"`
	Finalized bool            `json:"finalized"`
}

type ExpenseRequest struct {
	Date      string          `json:"date"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
	Receipted bool            `json:"receipted"`
	Note      string          `json:"note"`
}

type ExpenseListResponse struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	Expenses []Expense       `json:"expenses"`
	Total    decimal.Decimal `json:"total"`
}

type FinalizeRequest struct {
	Date        string          `json:"date"`
	CountedCash decimal.Decimal `json:"counted_cash"`
}

type FinalizeResponse struct {
	OK         bool            `json:"ok"`
	Difference decimal.Decimal `json:"difference"`
	Report     DayCloseReport  `json:"report"`
}

type ReceiptSequenceUpdate struct {
	RegisterID string `json:"register_id"`
	Prefix     string `json:"prefix"`
	Next       int64  `json:"next"`
}

type StockUpdateRequest struct {
	Qty int64 `json:"qty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        Actor     `json:"user"`
}
