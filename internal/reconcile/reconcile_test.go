package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleSnapshot() domain.DaySnapshot {
	return domain.DaySnapshot{
		Date: "2026-03-02",
		PaymentsByMethod: map[domain.PaymentMethod]decimal.Decimal{
			domain.PaymentCash: dec("143.50"),
			domain.PaymentCard: dec("79.02"),
		},
		SaleCount: 3,
		NetTotal:  dec("222.52"),
		TipTotal:  dec("5.00"),
		ExpensesByMethod: map[domain.PaymentMethod]decimal.Decimal{
			domain.PaymentCash: dec("12.40"),
			domain.PaymentCard: dec("60.00"),
		},
		Ledger: domain.CashLedgerEntry{
			Date:         "2026-03-02",
			OpeningFloat: dec("200.00"),
			CashIns:      dec("50.00"),
			CashOuts:     dec("30.00"),
		},
	}
}

func TestExpectedCash(t *testing.T) {
	snap := sampleSnapshot()
	got := ExpectedCash(snap.Ledger, dec("143.50"), dec("12.40"))
	if !got.Equal(dec("351.10")) {
		t.Fatalf("expected cash = %s, want 351.10", got)
	}
}

func TestReportWithoutCountLeavesDifferenceNull(t *testing.T) {
	report := Report(sampleSnapshot(), decimal.NullDecimal{})

	if report.CountedCash.Valid || report.Difference.Valid {
		t.Fatalf("uncounted day should have null counted/difference: %+v / %+v", report.CountedCash, report.Difference)
	}
	if !report.ExpenseTotal.Equal(dec("72.40")) {
		t.Fatalf("expense total = %s", report.ExpenseTotal)
	}
	if !report.CashSales.Equal(dec("143.50")) || !report.CashExpenses.Equal(dec("12.40")) {
		t.Fatalf("cash sales/expenses = %s/%s", report.CashSales, report.CashExpenses)
	}
	if report.Finalized {
		t.Fatalf("report should not be finalized")
	}
}

func TestReportUsesRecordedCount(t *testing.T) {
	snap := sampleSnapshot()
	snap.Ledger.CountedCash = decimal.NewNullDecimal(dec("350.00"))

	report := Report(snap, decimal.NullDecimal{})
	if !report.Difference.Valid || !report.Difference.Decimal.Equal(dec("-1.10")) {
		t.Fatalf("difference = %+v, want -1.10", report.Difference)
	}
}

func TestCloseIsReproducible(t *testing.T) {
	snap := sampleSnapshot()
	at := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)

	first := Close(snap, dec("352.00"), "manager", at)
	second := Close(snap, dec("352.00"), "manager", at.Add(time.Hour))

	if !first.Difference.Equal(dec("0.90")) {
		t.Fatalf("difference = %s, want 0.90", first.Difference)
	}
	if !first.Difference.Equal(second.Difference) || !first.ExpectedCash.Equal(second.ExpectedCash) {
		t.Fatalf("repeat close diverged: %s/%s vs %s/%s", first.Difference, first.ExpectedCash, second.Difference, second.ExpectedCash)
	}
	for method, amount := range first.PaymentsByMethod {
		if !second.PaymentsByMethod[method].Equal(amount) {
			t.Fatalf("method %s diverged", method)
		}
	}
}

func TestCloseDoesNotAliasSnapshotMaps(t *testing.T) {
	snap := sampleSnapshot()
	closed := Close(snap, dec("0"), "manager", time.Now())
	closed.PaymentsByMethod[domain.PaymentCash] = dec("1")

	if !snap.PaymentsByMethod[domain.PaymentCash].Equal(dec("143.50")) {
		t.Fatalf("snapshot mutated through close result")
	}
}
