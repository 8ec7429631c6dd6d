package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const maxSerializationRetries = 3

type Store struct {
	db *sql.DB
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// inTx runs fn in a serializable transaction, retrying when postgres aborts
// it with a serialization failure.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.inTxLevel(ctx, sql.LevelSerializable, fn)
}

func (s *Store) inTxLevel(ctx context.Context, level sql.IsolationLevel, fn func(tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxSerializationRetries; attempt++ {
		err = s.runTx(ctx, level, fn)
		if !isSerializationFailure(err) {
			return err
		}
		log.Debug().Int("attempt", attempt).Msg("serialization failure, retrying transaction")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * 5 * time.Millisecond):
		}
	}
	return err
}

func (s *Store) runTx(ctx context.Context, level sql.IsolationLevel, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) LookupCatalog(ctx context.Context, refs []domain.CatalogRef) (map[domain.CatalogRef]domain.CatalogItem, error) {
	out := make(map[domain.CatalogRef]domain.CatalogItem, len(refs))
	if len(refs) == 0 {
		return out, nil
	}
	wanted := make(map[domain.CatalogRef]struct{}, len(refs))
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		wanted[ref] = struct{}{}
		ids = append(ids, ref.ID)
	}

	items, err := s.queryCatalog(ctx, `WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if _, ok := wanted[item.Ref()]; ok {
			out[item.Ref()] = item
		}
	}
	return out, nil
}

func (s *Store) ListCatalog(ctx context.Context) ([]domain.CatalogItem, error) {
	return s.queryCatalog(ctx, ``)
}

func (s *Store) queryCatalog(ctx context.Context, where string, args ...any) ([]domain.CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, id, name, unit_price, tax_code, active, tracks_stock
		FROM catalog_items
		`+where+`
		ORDER BY kind, name
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.CatalogItem, 0, 64)
	for rows.Next() {
		var item domain.CatalogItem
		if err := rows.Scan(&item.Kind, &item.ID, &item.Name, &item.UnitPrice, &item.TaxCode, &item.Active, &item.TracksStock); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// PutCatalogItem inserts or replaces a catalog entry. A product that already
// tracks stock keeps doing so.
func (s *Store) PutCatalogItem(ctx context.Context, item domain.CatalogItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_items (kind, id, name, unit_price, tax_code, active, tracks_stock, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
		ON CONFLICT (kind, id)
		DO UPDATE SET name = EXCLUDED.name, unit_price = EXCLUDED.unit_price, tax_code = EXCLUDED.tax_code,
			active = EXCLUDED.active, tracks_stock = catalog_items.tracks_stock OR EXCLUDED.tracks_stock, updated_at = now()
	`, item.Kind, item.ID, item.Name, item.UnitPrice, item.TaxCode, item.Active, item.TracksStock)
	return err
}

func (s *Store) GetStockLevels(ctx context.Context, productIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, qty
		FROM stock_items
		WHERE product_id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var qty int64
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		out[id] = qty
	}
	return out, rows.Err()
}

// SetStock sets the on-hand quantity and marks the product as tracked.
func (s *Store) SetStock(ctx context.Context, productID string, qty int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE catalog_items
			SET tracks_stock = true, updated_at = now()
			WHERE kind = 'product' AND id = $1
		`, productID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO stock_items (product_id, qty, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (product_id)
			DO UPDATE SET qty = EXCLUDED.qty, updated_at = now()
		`, productID, qty)
		return err
	})
}

// NextReceiptNumber increments the scope's counter under its row lock, so
// concurrent callers on the same scope always get distinct values.
func (s *Store) NextReceiptNumber(ctx context.Context, scope string, initial domain.ReceiptSequence) (domain.ReceiptNumber, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ReceiptNumber{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO receipt_sequences (scope, prefix, next_value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (scope) DO NOTHING
	`, scope, initial.Prefix, initial.Next); err != nil {
		return domain.ReceiptNumber{}, err
	}

	var issued domain.ReceiptNumber
	if err := tx.QueryRowContext(ctx, `
		UPDATE receipt_sequences
		SET next_value = next_value + 1, updated_at = now()
		WHERE scope = $1
		RETURNING prefix, next_value - 1
	`, scope).Scan(&issued.Prefix, &issued.Value); err != nil {
		return domain.ReceiptNumber{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.ReceiptNumber{}, err
	}
	return issued, nil
}

func (s *Store) GetReceiptSequence(ctx context.Context, scope string) (*domain.ReceiptSequence, error) {
	return getReceiptSequence(ctx, s.db, scope, false)
}

func getReceiptSequence(ctx context.Context, q queryer, scope string, forUpdate bool) (*domain.ReceiptSequence, error) {
	query := `
		SELECT scope, prefix, next_value, updated_at
		FROM receipt_sequences
		WHERE scope = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var seq domain.ReceiptSequence
	err := q.QueryRowContext(ctx, query, scope).Scan(&seq.Scope, &seq.Prefix, &seq.Next, &seq.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &seq, nil
}

func (s *Store) ConfigureReceiptSequence(ctx context.Context, seq domain.ReceiptSequence) (*domain.ReceiptSequence, error) {
	var out *domain.ReceiptSequence
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := getReceiptSequence(ctx, tx, seq.Scope, true)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		default:
			if seq.Next < existing.Next {
				return store.ErrSequenceRewind
			}
			if seq.Prefix == "" {
				seq.Prefix = existing.Prefix
			}
		}

		updated := seq
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO receipt_sequences (scope, prefix, next_value, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (scope)
			DO UPDATE SET prefix = EXCLUDED.prefix, next_value = EXCLUDED.next_value, updated_at = now()
			RETURNING updated_at
		`, seq.Scope, seq.Prefix, seq.Next).Scan(&updated.UpdatedAt); err != nil {
			return err
		}
		out = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CommitSale(ctx context.Context, sale domain.Sale, demand map[string]int64) (*domain.Sale, error) {
	productIDs := make([]string, 0, len(demand))
	for id := range demand {
		productIDs = append(productIDs, id)
	}
	slices.Sort(productIDs)

	// Stock rows are taken FOR UPDATE in id order. Under read committed a
	// waiting sale re-reads the quantity its predecessor committed, so
	// concurrent sales on one product queue instead of aborting.
	err := s.inTxLevel(ctx, sql.LevelReadCommitted, func(tx *sql.Tx) error {
		onHand := make(map[string]int64, len(productIDs))
		if len(productIDs) > 0 {
			rows, err := tx.QueryContext(ctx, `
				SELECT product_id, qty
				FROM stock_items
				WHERE product_id = ANY($1)
				ORDER BY product_id
				FOR UPDATE
			`, productIDs)
			if err != nil {
				return err
			}
			for rows.Next() {
				var id string
				var qty int64
				if err := rows.Scan(&id, &qty); err != nil {
					_ = rows.Close()
					return err
				}
				onHand[id] = qty
			}
			if err := rows.Err(); err != nil {
				_ = rows.Close()
				return err
			}
			_ = rows.Close()
		}

		var shortfalls []domain.StockShortfall
		for _, id := range productIDs {
			qty, tracked := onHand[id]
			if !tracked || demand[id] <= qty {
				continue
			}
			shortfalls = append(shortfalls, domain.StockShortfall{
				ProductID: id,
				Requested: demand[id],
				Available: qty,
				Missing:   demand[id] - qty,
			})
		}
		if len(shortfalls) > 0 {
			return domain.InsufficientStock(shortfalls)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sales (
				id, receipt_number, register_id, created_at, business_date, customer_id, employee_id,
				subtotal, discount_total, tax_total, tip, total, payment_status, created_by
			)
			VALUES ($1,$2,$3,$4,$5::date,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		`, sale.ID, sale.ReceiptNumber, sale.RegisterID, sale.CreatedAt, sale.BusinessDate,
			nullIfEmpty(sale.CustomerID), nullIfEmpty(sale.EmployeeID),
			sale.Subtotal, sale.DiscountTotal, sale.TaxTotal, sale.Tip, sale.Total,
			string(sale.PaymentStatus), sale.CreatedBy); err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicate
			}
			return err
		}

		for _, line := range sale.Lines {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sale_lines (
					id, sale_id, position, kind, catalog_id, name, quantity, unit_price, tax_code,
					tax_rate, line_gross, discount_share, gross_after_discount, tax_amount
				)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			`, line.ID, sale.ID, line.Position, line.Kind, line.CatalogID, line.Name, line.Quantity,
				line.UnitPrice, line.TaxCode, line.TaxRate, line.LineGross, line.DiscountShare,
				line.GrossAfterDiscount, line.TaxAmount); err != nil {
				return err
			}
		}

		for i, payment := range sale.Payments {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO sale_payments (id, sale_id, position, method, amount)
				VALUES ($1,$2,$3,$4,$5)
			`, payment.ID, sale.ID, i+1, string(payment.Method), payment.Amount); err != nil {
				return err
			}
		}

		for _, id := range productIDs {
			if _, tracked := onHand[id]; !tracked {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE stock_items
				SET qty = GREATEST(qty - $1, 0), updated_at = now()
				WHERE product_id = $2
			`, demand[id], id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	committed := sale
	return &committed, nil
}

func (s *Store) GetSale(ctx context.Context, idOrReceipt string) (*domain.Sale, error) {
	var sale domain.Sale
	var customerID, employeeID sql.NullString
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, receipt_number, register_id, created_at, business_date::text, customer_id, employee_id,
			subtotal, discount_total, tax_total, tip, total, payment_status, created_by
		FROM sales
		WHERE id = $1 OR receipt_number = $1
		LIMIT 1
	`, idOrReceipt).Scan(
		&sale.ID, &sale.ReceiptNumber, &sale.RegisterID, &sale.CreatedAt, &sale.BusinessDate, &customerID, &employeeID,
		&sale.Subtotal, &sale.DiscountTotal, &sale.TaxTotal, &sale.Tip, &sale.Total, &status, &sale.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	sale.CustomerID = customerID.String
	sale.EmployeeID = employeeID.String
	sale.PaymentStatus = domain.PaymentStatus(status)

	lineRows, err := s.db.QueryContext(ctx, `
		SELECT id, position, kind, catalog_id, name, quantity, unit_price, tax_code,
			tax_rate, line_gross, discount_share, gross_after_discount, tax_amount
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY position
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	sale.Lines = make([]domain.SaleLine, 0, 8)
	for lineRows.Next() {
		var line domain.SaleLine
		if err := lineRows.Scan(&line.ID, &line.Position, &line.Kind, &line.CatalogID, &line.Name, &line.Quantity,
			&line.UnitPrice, &line.TaxCode, &line.TaxRate, &line.LineGross, &line.DiscountShare,
			&line.GrossAfterDiscount, &line.TaxAmount); err != nil {
			return nil, err
		}
		sale.Lines = append(sale.Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	payRows, err := s.db.QueryContext(ctx, `
		SELECT id, method, amount
		FROM sale_payments
		WHERE sale_id = $1
		ORDER BY position
	`, sale.ID)
	if err != nil {
		return nil, err
	}
	defer payRows.Close()
	sale.Payments = make([]domain.Payment, 0, 2)
	for payRows.Next() {
		var payment domain.Payment
		var method string
		if err := payRows.Scan(&payment.ID, &method, &payment.Amount); err != nil {
			return nil, err
		}
		payment.Method = domain.PaymentMethod(method)
		sale.Payments = append(sale.Payments, payment)
	}
	if err := payRows.Err(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetCashLedger(ctx context.Context, date string) (domain.CashLedgerEntry, []domain.CashMovement, error) {
	entry, err := getLedger(ctx, s.db, date)
	if err != nil {
		return domain.CashLedgerEntry{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_date::text, kind, amount, note, actor, created_at
		FROM cash_movements
		WHERE business_date = $1::date
		ORDER BY created_at, id
	`, date)
	if err != nil {
		return domain.CashLedgerEntry{}, nil, err
	}
	defer rows.Close()

	movements := make([]domain.CashMovement, 0, 8)
	for rows.Next() {
		var m domain.CashMovement
		var kind string
		if err := rows.Scan(&m.ID, &m.Date, &kind, &m.Amount, &m.Note, &m.Actor, &m.CreatedAt); err != nil {
			return domain.CashLedgerEntry{}, nil, err
		}
		m.Kind = domain.MovementKind(kind)
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return domain.CashLedgerEntry{}, nil, err
	}
	return entry, movements, nil
}

const ledgerColumns = `business_date::text, opening_float, cash_ins, cash_outs, counted_cash, updated_at, updated_by`

func scanLedger(row *sql.Row) (domain.CashLedgerEntry, error) {
	var entry domain.CashLedgerEntry
	err := row.Scan(&entry.Date, &entry.OpeningFloat, &entry.CashIns, &entry.CashOuts, &entry.CountedCash, &entry.UpdatedAt, &entry.UpdatedBy)
	return entry, err
}

// getLedger returns an empty entry for a date nobody has touched yet.
func getLedger(ctx context.Context, q queryer, date string) (domain.CashLedgerEntry, error) {
	entry, err := scanLedger(q.QueryRowContext(ctx, `
		SELECT `+ledgerColumns+`
		FROM cash_ledger
		WHERE business_date = $1::date
	`, date))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CashLedgerEntry{Date: date}, nil
	}
	return entry, err
}

func ensureOpen(ctx context.Context, tx *sql.Tx, date string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM day_closes WHERE business_date = $1::date)
	`, date).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return store.ErrDayFinalized
	}
	return nil
}

func (s *Store) SetOpeningFloat(ctx context.Context, date string, amount decimal.Decimal, actor string) (*domain.CashLedgerEntry, error) {
	var entry domain.CashLedgerEntry
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureOpen(ctx, tx, date); err != nil {
			return err
		}
		var err error
		entry, err = scanLedger(tx.QueryRowContext(ctx, `
			INSERT INTO cash_ledger (business_date, opening_float, updated_at, updated_by)
			VALUES ($1::date, $2, now(), $3)
			ON CONFLICT (business_date)
			DO UPDATE SET opening_float = EXCLUDED.opening_float, updated_at = now(), updated_by = EXCLUDED.updated_by
			RETURNING `+ledgerColumns, date, amount, actor))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) AppendCashMovement(ctx context.Context, movement domain.CashMovement) (*domain.CashLedgerEntry, error) {
	ins, outs := decimal.Zero, decimal.Zero
	switch movement.Kind {
	case domain.MovementCashIn:
		ins = movement.Amount
	case domain.MovementCashOut:
		outs = movement.Amount
	default:
		return nil, domain.Invalid(domain.ReasonInvalidMovement, "unknown movement kind %q", movement.Kind)
	}

	var entry domain.CashLedgerEntry
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureOpen(ctx, tx, movement.Date); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cash_movements (id, business_date, kind, amount, note, actor, created_at)
			VALUES ($1, $2::date, $3, $4, $5, $6, $7)
		`, movement.ID, movement.Date, string(movement.Kind), movement.Amount, movement.Note, movement.Actor, movement.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicate
			}
			return err
		}
		var err error
		entry, err = scanLedger(tx.QueryRowContext(ctx, `
			INSERT INTO cash_ledger (business_date, cash_ins, cash_outs, updated_at, updated_by)
			VALUES ($1::date, $2, $3, $4, $5)
			ON CONFLICT (business_date)
			DO UPDATE SET cash_ins = cash_ledger.cash_ins + EXCLUDED.cash_ins,
				cash_outs = cash_ledger.cash_outs + EXCLUDED.cash_outs,
				updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by
			RETURNING `+ledgerColumns, movement.Date, ins, outs, movement.CreatedAt, movement.Actor))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, business_date, category, amount, method, receipted, note, created_by, created_at)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9)
	`, expense.ID, expense.Date, expense.Category, expense.Amount, string(expense.Method),
		expense.Receipted, expense.Note, expense.CreatedBy, expense.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, from string, to string) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, business_date::text, category, amount, method, receipted, note, created_by, created_at
		FROM expenses
		WHERE business_date BETWEEN $1::date AND $2::date
		ORDER BY business_date, created_at, id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 16)
	for rows.Next() {
		var e domain.Expense
		var method string
		if err := rows.Scan(&e.ID, &e.Date, &e.Category, &e.Amount, &method, &e.Receipted, &e.Note, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Method = domain.PaymentMethod(method)
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) DaySnapshot(ctx context.Context, date string) (domain.DaySnapshot, error) {
	return snapshot(ctx, s.db, date)
}

func snapshot(ctx context.Context, q queryer, date string) (domain.DaySnapshot, error) {
	snap := domain.DaySnapshot{Date: date}

	if err := q.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(subtotal), 0),
			COALESCE(SUM(discount_total), 0),
			COALESCE(SUM(tax_total), 0),
			COALESCE(SUM(tip), 0),
			COALESCE(SUM(total), 0)
		FROM sales
		WHERE business_date = $1::date
	`, date).Scan(&snap.SaleCount, &snap.Subtotal, &snap.DiscountTotal, &snap.TaxTotal, &snap.TipTotal, &snap.NetTotal); err != nil {
		return domain.DaySnapshot{}, err
	}

	var err error
	snap.PaymentsByMethod, err = sumByMethod(ctx, q, `
		SELECT p.method, SUM(p.amount)
		FROM sale_payments p
		JOIN sales s ON s.id = p.sale_id
		WHERE s.business_date = $1::date
		GROUP BY p.method
	`, date)
	if err != nil {
		return domain.DaySnapshot{}, err
	}
	snap.ExpensesByMethod, err = sumByMethod(ctx, q, `
		SELECT method, SUM(amount)
		FROM expenses
		WHERE business_date = $1::date
		GROUP BY method
	`, date)
	if err != nil {
		return domain.DaySnapshot{}, err
	}

	if snap.Ledger, err = getLedger(ctx, q, date); err != nil {
		return domain.DaySnapshot{}, err
	}

	closed, err := getDayClose(ctx, q, date)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return domain.DaySnapshot{}, err
	default:
		snap.Close = closed
	}
	return snap, nil
}

func sumByMethod(ctx context.Context, q queryer, query string, date string) (map[domain.PaymentMethod]decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.PaymentMethod]decimal.Decimal)
	for rows.Next() {
		var method string
		var amount decimal.Decimal
		if err := rows.Scan(&method, &amount); err != nil {
			return nil, err
		}
		out[domain.PaymentMethod(method)] = amount
	}
	return out, rows.Err()
}

func (s *Store) FinalizeDay(ctx context.Context, date string, fn store.FinalizeFunc) (domain.DaySnapshot, *domain.DayClose, error) {
	var snap domain.DaySnapshot
	var closed domain.DayClose
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if snap, err = snapshot(ctx, tx, date); err != nil {
			return err
		}
		if closed, err = fn(snap); err != nil {
			return err
		}
		closed.Date = date

		methods, err := json.Marshal(closed.PaymentsByMethod)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO day_closes (
				business_date, payments_by_method, sale_count, net_total, tip_total, expense_total,
				expected_cash, counted_cash, difference, finalized_at, finalized_by
			)
			VALUES ($1::date, $2::jsonb, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (business_date)
			DO UPDATE SET payments_by_method = EXCLUDED.payments_by_method, sale_count = EXCLUDED.sale_count,
				net_total = EXCLUDED.net_total, tip_total = EXCLUDED.tip_total, expense_total = EXCLUDED.expense_total,
				expected_cash = EXCLUDED.expected_cash, counted_cash = EXCLUDED.counted_cash,
				difference = EXCLUDED.difference, finalized_at = EXCLUDED.finalized_at, finalized_by = EXCLUDED.finalized_by
		`, date, string(methods), closed.SaleCount, closed.NetTotal, closed.TipTotal, closed.ExpenseTotal,
			closed.ExpectedCash, closed.CountedCash, closed.Difference, closed.FinalizedAt, closed.FinalizedBy); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO cash_ledger (business_date, counted_cash, updated_at, updated_by)
			VALUES ($1::date, $2, $3, $4)
			ON CONFLICT (business_date)
			DO UPDATE SET counted_cash = EXCLUDED.counted_cash, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by
		`, date, closed.CountedCash, closed.FinalizedAt, closed.FinalizedBy)
		return err
	})
	if err != nil {
		return domain.DaySnapshot{}, nil, err
	}
	return snap, &closed, nil
}

func (s *Store) GetDayClose(ctx context.Context, date string) (*domain.DayClose, error) {
	return getDayClose(ctx, s.db, date)
}

func getDayClose(ctx context.Context, q queryer, date string) (*domain.DayClose, error) {
	var closed domain.DayClose
	var methods []byte
	err := q.QueryRowContext(ctx, `
		SELECT business_date::text, payments_by_method, sale_count, net_total, tip_total, expense_total,
			expected_cash, counted_cash, difference, finalized_at, finalized_by
		FROM day_closes
		WHERE business_date = $1::date
	`, date).Scan(&closed.Date, &methods, &closed.SaleCount, &closed.NetTotal, &closed.TipTotal, &closed.ExpenseTotal,
		&closed.ExpectedCash, &closed.CountedCash, &closed.Difference, &closed.FinalizedAt, &closed.FinalizedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	closed.PaymentsByMethod = make(map[domain.PaymentMethod]decimal.Decimal)
	if err := json.Unmarshal(methods, &closed.PaymentsByMethod); err != nil {
		return nil, fmt.Errorf("decode payments_by_method for %s: %w", date, err)
	}
	return &closed, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limitArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, 32)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// PutUser inserts or replaces an account. PasswordHash must already be a
// bcrypt hash.
func (s *Store) PutUser(ctx context.Context, user domain.UserAccount) error {
	if strings.TrimSpace(user.Username) == "" || user.PasswordHash == "" {
		return errors.New("username and password hash are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_accounts (username, password_hash, role, active, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (username)
		DO UPDATE SET password_hash = EXCLUDED.password_hash, role = EXCLUDED.role, active = EXCLUDED.active
	`, user.Username, user.PasswordHash, user.Role, user.Active)
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active
		FROM user_accounts
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.PasswordHash, &user.Role, &user.Active); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

var _ store.Repository = (*Store)(nil)
