package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("POS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set POS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestCommitSaleDecrementsStockAtomically(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("it-shampoo-%d", stamp)
	saleID := fmt.Sprintf("sale-it-%d", stamp)
	receipt := fmt.Sprintf("IT-%d", stamp)
	date := "2026-03-02"

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_payments WHERE sale_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_lines WHERE sale_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_items WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM catalog_items WHERE id = $1`, productID)
	})

	item := domain.CatalogItem{
		Kind: domain.KindProduct, ID: productID, Name: "Shampoo IT",
		UnitPrice: decimal.RequireFromString("19.90"), TaxCode: "CH-7.7", Active: true,
	}
	if err := s.PutCatalogItem(ctx, item); err != nil {
		t.Fatalf("put catalog item: %v", err)
	}
	if err := s.SetStock(ctx, productID, 3); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	_, err := s.CommitSale(ctx, domain.Sale{ID: saleID, ReceiptNumber: receipt}, map[string]int64{productID: 4})
	var conflict *domain.ConflictError
	if !errors.As(err, &conflict) || conflict.Shortfalls[0].Missing != 1 {
		t.Fatalf("expected shortfall of 1, got %v", err)
	}

	sale := domain.Sale{
		ID:            saleID,
		ReceiptNumber: receipt,
		RegisterID:    "it",
		CreatedAt:     time.Now().UTC(),
		BusinessDate:  date,
		Subtotal:      decimal.RequireFromString("39.80"),
		Total:         decimal.RequireFromString("39.80"),
		TaxTotal:      decimal.RequireFromString("2.85"),
		PaymentStatus: domain.PaymentStatusPaid,
		CreatedBy:     "it",
		Lines: []domain.SaleLine{{
			ID: saleID + "-l1", Position: 1, Kind: domain.KindProduct, CatalogID: productID, Name: item.Name,
			Quantity: decimal.NewFromInt(2), UnitPrice: item.UnitPrice, TaxCode: "CH-7.7",
			TaxRate: decimal.RequireFromString("0.077"), LineGross: decimal.RequireFromString("39.80"),
			GrossAfterDiscount: decimal.RequireFromString("39.80"), TaxAmount: decimal.RequireFromString("2.85"),
		}},
		Payments: []domain.Payment{{ID: saleID + "-p1", Method: domain.PaymentCard, Amount: decimal.RequireFromString("39.80")}},
	}
	if _, err := s.CommitSale(ctx, sale, map[string]int64{productID: 2}); err != nil {
		t.Fatalf("commit sale: %v", err)
	}

	levels, err := s.GetStockLevels(ctx, []string{productID})
	if err != nil {
		t.Fatalf("stock levels: %v", err)
	}
	if levels[productID] != 1 {
		t.Fatalf("stock = %d, want 1", levels[productID])
	}

	stored, err := s.GetSale(ctx, receipt)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if stored.BusinessDate != date || len(stored.Lines) != 1 || !stored.Lines[0].TaxAmount.Equal(decimal.RequireFromString("2.85")) {
		t.Fatalf("unexpected stored sale %+v", stored)
	}

	if _, err := s.CommitSale(ctx, sale, nil); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestReceiptSequenceNeverRewinds(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	scope := fmt.Sprintf("it-register-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM receipt_sequences WHERE scope = $1`, scope)
	})

	initial := domain.ReceiptSequence{Prefix: "IT-", Next: 10001}
	first, err := s.NextReceiptNumber(ctx, scope, initial)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	second, err := s.NextReceiptNumber(ctx, scope, initial)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first.String() != "IT-10001" || second.String() != "IT-10002" {
		t.Fatalf("issued %s then %s", first, second)
	}

	if _, err := s.ConfigureReceiptSequence(ctx, domain.ReceiptSequence{Scope: scope, Next: 10000}); !errors.Is(err, store.ErrSequenceRewind) {
		t.Fatalf("expected rewind error, got %v", err)
	}
	seq, err := s.ConfigureReceiptSequence(ctx, domain.ReceiptSequence{Scope: scope, Next: 20000})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if seq.Prefix != "IT-" || seq.Next != 20000 {
		t.Fatalf("sequence = %+v", seq)
	}
}

func TestFinalizeDayFreezesLedger(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	date := "1999-01-02"
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cash_movements WHERE business_date = $1::date`, date)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cash_ledger WHERE business_date = $1::date`, date)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM day_closes WHERE business_date = $1::date`, date)
	})

	if _, err := s.SetOpeningFloat(ctx, date, decimal.NewFromInt(200), "it"); err != nil {
		t.Fatalf("opening float: %v", err)
	}
	entry, err := s.AppendCashMovement(ctx, domain.CashMovement{
		ID: fmt.Sprintf("cash-it-%d", time.Now().UnixNano()), Date: date, Kind: domain.MovementCashIn,
		Amount: decimal.NewFromInt(50), Actor: "it", CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("movement: %v", err)
	}
	if !entry.CashIns.Equal(decimal.NewFromInt(50)) || !entry.OpeningFloat.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("ledger = %+v", entry)
	}

	_, closed, err := s.FinalizeDay(ctx, date, func(snap domain.DaySnapshot) (domain.DayClose, error) {
		return domain.DayClose{
			PaymentsByMethod: snap.PaymentsByMethod,
			ExpectedCash:     snap.Ledger.OpeningFloat.Add(snap.Ledger.CashIns),
			CountedCash:      decimal.NewFromInt(250),
			FinalizedAt:      time.Now().UTC(),
			FinalizedBy:      "it",
		}, nil
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !closed.ExpectedCash.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected cash = %s", closed.ExpectedCash)
	}

	if _, err := s.SetOpeningFloat(ctx, date, decimal.NewFromInt(1), "it"); !errors.Is(err, store.ErrDayFinalized) {
		t.Fatalf("expected finalized error, got %v", err)
	}
	ledger, _, err := s.GetCashLedger(ctx, date)
	if err != nil || !ledger.CountedCash.Valid || !ledger.CountedCash.Decimal.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("ledger after finalize = %+v, %v", ledger, err)
	}
}

func TestConcurrentCommitSaleNeverOversells(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("it-race-%d", stamp)
	salePrefix := fmt.Sprintf("sale-race-%d-", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_payments WHERE sale_id LIKE $1`, salePrefix+"%")
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_lines WHERE sale_id LIKE $1`, salePrefix+"%")
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id LIKE $1`, salePrefix+"%")
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_items WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM catalog_items WHERE id = $1`, productID)
	})

	price := decimal.RequireFromString("19.90")
	if err := s.PutCatalogItem(ctx, domain.CatalogItem{
		Kind: domain.KindProduct, ID: productID, Name: "Shampoo race", UnitPrice: price, TaxCode: "CH-0", Active: true,
	}); err != nil {
		t.Fatalf("put catalog item: %v", err)
	}
	if err := s.SetStock(ctx, productID, 120); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	const workers = 30
	const qty = 7
	total := price.Mul(decimal.NewFromInt(qty))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
		conflicts int
		other     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			saleID := fmt.Sprintf("%s%d", salePrefix, i)
			sale := domain.Sale{
				ID:            saleID,
				ReceiptNumber: fmt.Sprintf("RACE-%d-%d", stamp, i),
				RegisterID:    "it",
				CreatedAt:     time.Now().UTC(),
				BusinessDate:  "2026-03-02",
				Subtotal:      total,
				Total:         total,
				TaxTotal:      decimal.Zero,
				PaymentStatus: domain.PaymentStatusPaid,
				CreatedBy:     "it",
				Lines: []domain.SaleLine{{
					ID: saleID + "-l1", Position: 1, Kind: domain.KindProduct, CatalogID: productID, Name: "Shampoo race",
					Quantity: decimal.NewFromInt(qty), UnitPrice: price, TaxCode: "CH-0", TaxRate: decimal.Zero,
					LineGross: total, GrossAfterDiscount: total, TaxAmount: decimal.Zero,
				}},
				Payments: []domain.Payment{{ID: saleID + "-p1", Method: domain.PaymentCash, Amount: total}},
			}
			_, err := s.CommitSale(ctx, sale, map[string]int64{productID: qty})

			mu.Lock()
			defer mu.Unlock()
			var conflict *domain.ConflictError
			switch {
			case err == nil:
				committed++
			case errors.As(err, &conflict):
				conflicts++
			default:
				other = append(other, err)
			}
		}(i)
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if committed != 120/qty || conflicts != workers-120/qty {
		t.Fatalf("committed=%d conflicts=%d", committed, conflicts)
	}
	levels, err := s.GetStockLevels(ctx, []string{productID})
	if err != nil {
		t.Fatalf("stock levels: %v", err)
	}
	if levels[productID] != 120%qty {
		t.Fatalf("stock = %d, want %d", levels[productID], 120%qty)
	}
}
