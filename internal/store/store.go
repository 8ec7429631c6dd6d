package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDayFinalized   = errors.New("day already finalized")
	ErrSequenceRewind = errors.New("receipt sequence cannot move backwards")
	ErrDuplicate      = errors.New("duplicate record")
)

// FinalizeFunc turns a coherent day snapshot into the DayClose to persist.
type FinalizeFunc func(snapshot domain.DaySnapshot) (domain.DayClose, error)

type Repository interface {
	LookupCatalog(ctx context.Context, refs []domain.CatalogRef) (map[domain.CatalogRef]domain.CatalogItem, error)
	ListCatalog(ctx context.Context) ([]domain.CatalogItem, error)

	// GetStockLevels returns quantities for tracked products only; an absent
	// id is an untracked product.
	GetStockLevels(ctx context.Context, productIDs []string) (map[string]int64, error)
	SetStock(ctx context.Context, productID string, qty int64) error

	NextReceiptNumber(ctx context.Context, scope string, initial domain.ReceiptSequence) (domain.ReceiptNumber, error)
	GetReceiptSequence(ctx context.Context, scope string) (*domain.ReceiptSequence, error)
	ConfigureReceiptSequence(ctx context.Context, seq domain.ReceiptSequence) (*domain.ReceiptSequence, error)

	// CommitSale persists the sale with its lines and payments and takes
	// demand off stock, all or nothing. Insufficient stock is reported as a
	// *domain.ConflictError.
	CommitSale(ctx context.Context, sale domain.Sale, demand map[string]int64) (*domain.Sale, error)
	GetSale(ctx context.Context, idOrReceipt string) (*domain.Sale, error)

	GetCashLedger(ctx context.Context, date string) (domain.CashLedgerEntry, []domain.CashMovement, error)
	SetOpeningFloat(ctx context.Context, date string, amount decimal.Decimal, actor string) (*domain.CashLedgerEntry, error)
	AppendCashMovement(ctx context.Context, movement domain.CashMovement) (*domain.CashLedgerEntry, error)

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, from string, to string) ([]domain.Expense, error)

	DaySnapshot(ctx context.Context, date string) (domain.DaySnapshot, error)
	// FinalizeDay reads the snapshot, applies fn and upserts its result
	// within one transaction.
	FinalizeDay(ctx context.Context, date string, fn FinalizeFunc) (domain.DaySnapshot, *domain.DayClose, error)
	GetDayClose(ctx context.Context, date string) (*domain.DayClose, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)

	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
