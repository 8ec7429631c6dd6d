// Package reconcile computes day-close figures from a day snapshot. It is
// shared by preview and finalize so both always agree.
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
)

// ExpectedCash is opening float + cash-ins - cash-outs + cash sales - cash expenses.
func ExpectedCash(ledger domain.CashLedgerEntry, cashSales decimal.Decimal, cashExpenses decimal.Decimal) decimal.Decimal {
	return ledger.OpeningFloat.
		Add(ledger.CashIns).
		Sub(ledger.CashOuts).
		Add(cashSales).
		Sub(cashExpenses).
		Round(2)
}

// Report builds the day-close view of snap. When counted is not valid the
// counted cash already recorded on the ledger is used, if any.
func Report(snap domain.DaySnapshot, counted decimal.NullDecimal) domain.DayCloseReport {
	cashSales := snap.PaymentsByMethod[domain.PaymentCash]
	cashExpenses := snap.ExpensesByMethod[domain.PaymentCash]

	report := domain.DayCloseReport{
		Date:             snap.Date,
		PaymentsByMethod: copyTotals(snap.PaymentsByMethod),
		SaleCount:        snap.SaleCount,
		Subtotal:         snap.Subtotal,
		DiscountTotal:    snap.DiscountTotal,
		TaxTotal:         snap.TaxTotal,
		TipTotal:         snap.TipTotal,
		NetTotal:         snap.NetTotal,
		ExpensesByMethod: copyTotals(snap.ExpensesByMethod),
		ExpenseTotal:     sumTotals(snap.ExpensesByMethod),
		OpeningFloat:     snap.Ledger.OpeningFloat,
		CashIns:          snap.Ledger.CashIns,
		CashOuts:         snap.Ledger.CashOuts,
		CashSales:        cashSales,
		CashExpenses:     cashExpenses,
		ExpectedCash:     ExpectedCash(snap.Ledger, cashSales, cashExpenses),
	}

	if !counted.Valid {
		counted = snap.Ledger.CountedCash
	}
	if counted.Valid {
		report.CountedCash = counted
		report.Difference = decimal.NewNullDecimal(counted.Decimal.Sub(report.ExpectedCash).Round(2))
	}

	if snap.Close != nil {
		finalizedAt := snap.Close.FinalizedAt
		report.Finalized = true
		report.FinalizedAt = &finalizedAt
		report.FinalizedBy = snap.Close.FinalizedBy
	}
	return report
}

// Close produces the DayClose to store for snap with the physically counted
// cash. The same snapshot and count always give the same totals.
func Close(snap domain.DaySnapshot, counted decimal.Decimal, actor string, at time.Time) domain.DayClose {
	report := Report(snap, decimal.NewNullDecimal(counted))
	return domain.DayClose{
		Date:             snap.Date,
		PaymentsByMethod: report.PaymentsByMethod,
		SaleCount:        report.SaleCount,
		NetTotal:         report.NetTotal,
		TipTotal:         report.TipTotal,
		ExpenseTotal:     report.ExpenseTotal,
		ExpectedCash:     report.ExpectedCash,
		CountedCash:      report.CountedCash.Decimal,
		Difference:       report.Difference.Decimal,
		FinalizedAt:      at,
		FinalizedBy:      actor,
	}
}

func copyTotals(in map[domain.PaymentMethod]decimal.Decimal) map[domain.PaymentMethod]decimal.Decimal {
	out := make(map[domain.PaymentMethod]decimal.Decimal, len(in))
	for method, amount := range in {
		out[method] = amount
	}
	return out
}

func sumTotals(in map[domain.PaymentMethod]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range in {
		total = total.Add(amount)
	}
	return total
}
