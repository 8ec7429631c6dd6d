package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/pricing"
	"salonpos/backend/internal/store"
	"salonpos/backend/internal/xid"
)

func (s *Service) CashLedger(ctx context.Context, rawDate string) (domain.CashLedgerView, error) {
	date, err := s.resolveDate(rawDate)
	if err != nil {
		return domain.CashLedgerView{}, err
	}
	entry, movements, err := s.repo.GetCashLedger(ctx, date)
	if err != nil {
		return domain.CashLedgerView{}, persistence("read cash ledger", err)
	}
	finalized, err := s.isFinalized(ctx, date)
	if err != nil {
		return domain.CashLedgerView{}, err
	}
	return domain.CashLedgerView{Entry: entry, Movements: movements, Finalized: finalized}, nil
}

// SetOpeningFloat overwrites the day's opening float.
func (s *Service) SetOpeningFloat(ctx context.Context, req domain.OpeningFloatRequest) (domain.CashLedgerEntry, error) {
	date, err := s.resolveDate(req.Date)
	if err != nil {
		return domain.CashLedgerEntry{}, err
	}
	if req.Amount.IsNegative() {
		return domain.CashLedgerEntry{}, domain.Invalid(domain.ReasonInvalidAmount, "opening float must not be negative")
	}

	amount := pricing.Round2(req.Amount)
	entry, err := s.repo.SetOpeningFloat(ctx, date, amount, actorOrSystem(ctx).Username)
	if err != nil {
		return domain.CashLedgerEntry{}, persistence("set opening float", err)
	}
	s.logAudit(ctx, "cash_opening_float", "cash_ledger", date, "amount="+amount.String())
	return *entry, nil
}

// RecordCashMovement appends a cash-in or cash-out; movements only ever add
// to the day's totals.
func (s *Service) RecordCashMovement(ctx context.Context, req domain.CashMovementRequest) (domain.CashLedgerEntry, error) {
	date, err := s.resolveDate(req.Date)
	if err != nil {
		return domain.CashLedgerEntry{}, err
	}
	kind, ok := domain.ParseMovementKind(req.Kind)
	if !ok {
		return domain.CashLedgerEntry{}, domain.Invalid(domain.ReasonInvalidMovement, "kind must be in or out")
	}
	if !req.Amount.IsPositive() {
		return domain.CashLedgerEntry{}, domain.Invalid(domain.ReasonInvalidAmount, "amount must be positive")
	}

	movement := domain.CashMovement{
		ID:        xid.New("cash"),
		Date:      date,
		Kind:      kind,
		Amount:    pricing.Round2(req.Amount),
		Note:      strings.TrimSpace(req.Note),
		Actor:     actorOrSystem(ctx).Username,
		CreatedAt: s.now().UTC(),
	}
	entry, err := s.repo.AppendCashMovement(ctx, movement)
	if err != nil {
		return domain.CashLedgerEntry{}, persistence("record cash movement", err)
	}
	s.logAudit(ctx, "cash_movement", "cash_ledger", date, fmt.Sprintf("kind=%s,amount=%s", kind, movement.Amount))
	return *entry, nil
}

func (s *Service) RecordExpense(ctx context.Context, req domain.ExpenseRequest) (domain.Expense, error) {
	date, err := s.resolveDate(req.Date)
	if err != nil {
		return domain.Expense{}, err
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		return domain.Expense{}, domain.Invalid(domain.ReasonInvalidRequest, "category is required")
	}
	if !req.Amount.IsPositive() {
		return domain.Expense{}, domain.Invalid(domain.ReasonInvalidAmount, "amount must be positive")
	}
	if !req.Method.ValidForExpense() {
		return domain.Expense{}, domain.Invalid(domain.ReasonInvalidMethod, "unsupported expense method %q", req.Method)
	}

	expense := domain.Expense{
		ID:        xid.New("exp"),
		Date:      date,
		Category:  category,
		Amount:    pricing.Round2(req.Amount),
		Method:    req.Method,
		Receipted: req.Receipted,
		Note:      strings.TrimSpace(req.Note),
		CreatedBy: actorOrSystem(ctx).Username,
		CreatedAt: s.now().UTC(),
	}
	created, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return domain.Expense{}, persistence("record expense", err)
	}
	s.logAudit(ctx, "expense_create", "expense", created.ID, fmt.Sprintf("date=%s,method=%s,amount=%s", date, created.Method, created.Amount))
	return *created, nil
}

func (s *Service) ListExpenses(ctx context.Context, rawFrom string, rawTo string) (domain.ExpenseListResponse, error) {
	from, err := s.resolveDate(rawFrom)
	if err != nil {
		return domain.ExpenseListResponse{}, err
	}
	to := from
	if strings.TrimSpace(rawTo) != "" {
		if to, err = s.resolveDate(rawTo); err != nil {
			return domain.ExpenseListResponse{}, err
		}
	}
	if to < from {
		return domain.ExpenseListResponse{}, domain.Invalid(domain.ReasonInvalidDate, "to must not be before from")
	}

	expenses, err := s.repo.ListExpenses(ctx, from, to)
	if err != nil {
		return domain.ExpenseListResponse{}, persistence("list expenses", err)
	}
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return domain.ExpenseListResponse{From: from, To: to, Expenses: expenses, Total: total}, nil
}

func (s *Service) isFinalized(ctx context.Context, date string) (bool, error) {
	_, err := s.repo.GetDayClose(ctx, date)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, persistence("read day close", err)
	}
	return true, nil
}
