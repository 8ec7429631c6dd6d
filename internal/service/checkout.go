package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/pricing"
	"salonpos/backend/internal/xid"
)

type CheckoutState string

const (
	StateValidating    CheckoutState = "validating"
	StateStockChecking CheckoutState = "stock_checking"
	StatePersisting    CheckoutState = "persisting"
	StateCommitted     CheckoutState = "committed"
	StateRejected      CheckoutState = "rejected"
	StateRolledBack    CheckoutState = "rolled_back"
)

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	StateValidating:    {StateStockChecking, StateRejected},
	StateStockChecking: {StatePersisting, StateRejected},
	StatePersisting:    {StateCommitted, StateRolledBack},
}

// checkoutAttempt carries one checkout through its states. It is not reused.
type checkoutAttempt struct {
	state      CheckoutState
	registerID string
	cart       domain.Cart
	totals     domain.Totals
	payments   []domain.Payment
	demand     map[string]int64
	receipt    domain.ReceiptNumber
	sale       *domain.Sale
}

func (a *checkoutAttempt) advance(to CheckoutState) {
	if !slices.Contains(checkoutTransitions[a.state], to) {
		panic(fmt.Sprintf("checkout: illegal transition %s -> %s", a.state, to))
	}
	a.state = to
}

// fail moves the attempt to its terminal failure state.
func (a *checkoutAttempt) fail(err error) error {
	if a.state == StatePersisting {
		a.advance(StateRolledBack)
	} else {
		a.advance(StateRejected)
	}
	log.Debug().Err(err).Str("state", string(a.state)).Str("reason", domain.ReasonOf(err)).Msg("checkout failed")
	return err
}

// Checkout prices and commits a sale from a request that names catalog items
// directly, without a stored cart.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	cart := domain.Cart{
		Lines:      make([]domain.CartLine, 0, len(req.Lines)),
		Discount:   req.Discount,
		Tip:        req.Tip,
		CustomerID: req.CustomerID,
		EmployeeID: req.EmployeeID,
	}
	for i, line := range req.Lines {
		if line.CatalogID == "" {
			return domain.CheckoutResponse{}, domain.Invalid(domain.ReasonCatalogItemMissing, "line %d has no catalog_id", i+1)
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			ID:        fmt.Sprintf("req-%d", i+1),
			Kind:      line.Kind,
			CatalogID: line.CatalogID,
			Quantity:  line.Quantity,
		})
	}

	attempt, err := s.runCheckout(ctx, cart, req.Payments, req.RegisterID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	return toCheckoutResponse(attempt), nil
}

func (s *Service) runCheckout(ctx context.Context, cart domain.Cart, payments []domain.PaymentInput, registerID string) (*checkoutAttempt, error) {
	attempt := &checkoutAttempt{
		state:      StateValidating,
		registerID: s.sequencer.Scope(registerID),
		cart:       cart,
	}

	if err := s.validate(ctx, attempt, payments); err != nil {
		return nil, attempt.fail(err)
	}
	attempt.advance(StateStockChecking)

	if err := s.checkStock(ctx, attempt); err != nil {
		return nil, attempt.fail(err)
	}
	attempt.advance(StatePersisting)

	if err := s.persist(ctx, attempt); err != nil {
		return nil, attempt.fail(err)
	}
	attempt.advance(StateCommitted)

	sale := attempt.sale
	log.Info().
		Str("receipt", sale.ReceiptNumber).
		Str("sale_id", sale.ID).
		Str("register", sale.RegisterID).
		Str("total", sale.Total.String()).
		Msg("sale committed")
	s.logAudit(ctx, "checkout", "sale", sale.ID, fmt.Sprintf(
		"receipt=%s,total=%s,discount=%s,tip=%s,payments=%d",
		sale.ReceiptNumber, sale.Total, sale.DiscountTotal, sale.Tip, len(sale.Payments),
	))
	return attempt, nil
}

func (s *Service) validate(ctx context.Context, attempt *checkoutAttempt, payments []domain.PaymentInput) error {
	catalog, err := s.refreshFromCatalog(ctx, &attempt.cart)
	if err != nil {
		return err
	}

	totals, err := pricing.Price(attempt.cart, s.rates, catalog, s.pricing)
	if err != nil {
		return err
	}
	if len(totals.UnknownTaxCodes) > 0 {
		log.Warn().Strs("tax_codes", totals.UnknownTaxCodes).Msg("unknown tax codes priced at 0%")
	}
	attempt.totals = totals

	settled, err := settlePayments(payments, totals.Total)
	if err != nil {
		return err
	}
	attempt.payments = settled
	return nil
}

// refreshFromCatalog snapshots the current price, tax code and name of every
// catalog-bound line into the cart.
func (s *Service) refreshFromCatalog(ctx context.Context, cart *domain.Cart) (pricing.CatalogMap, error) {
	refs := make([]domain.CatalogRef, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		if line.CatalogID != "" && line.Kind.Valid() {
			refs = append(refs, domain.CatalogRef{Kind: line.Kind, ID: line.CatalogID})
		}
	}
	if len(refs) == 0 {
		return pricing.CatalogMap{}, nil
	}

	items, err := s.repo.LookupCatalog(ctx, refs)
	if err != nil {
		return nil, persistence("lookup catalog", err)
	}
	catalog := pricing.CatalogMap(items)

	lines := make([]domain.CartLine, len(cart.Lines))
	copy(lines, cart.Lines)
	for i, line := range lines {
		item, ok := catalog.Lookup(domain.CatalogRef{Kind: line.Kind, ID: line.CatalogID})
		if !ok {
			continue
		}
		lines[i].Name = item.Name
		lines[i].UnitPrice = item.UnitPrice
		lines[i].TaxCode = item.TaxCode
	}
	cart.Lines = lines
	return catalog, nil
}

// settlePayments validates the declared payments against total. Overpayment
// is taken off the last payment; underpayment is rejected.
func settlePayments(inputs []domain.PaymentInput, total decimal.Decimal) ([]domain.Payment, error) {
	if len(inputs) == 0 {
		return nil, domain.Invalid(domain.ReasonNoPayments, "at least one payment is required")
	}

	payments := make([]domain.Payment, 0, len(inputs))
	paid := decimal.Zero
	for i, in := range inputs {
		if !in.Method.Valid() {
			return nil, domain.Invalid(domain.ReasonInvalidMethod, "payment %d has unsupported method %q", i+1, in.Method)
		}
		if in.Amount.IsNegative() {
			return nil, domain.Invalid(domain.ReasonInvalidPayment, "payment %d amount must not be negative", i+1)
		}
		amount := pricing.Round2(in.Amount)
		payments = append(payments, domain.Payment{Method: in.Method, Amount: amount})
		paid = paid.Add(amount)
	}

	switch paid.Cmp(total) {
	case -1:
		return nil, domain.Invalid(domain.ReasonPaymentShort, "payments %s are short of total %s", paid, total)
	case 1:
		over := paid.Sub(total)
		last := &payments[len(payments)-1]
		if last.Amount.LessThan(over) {
			return nil, domain.Invalid(domain.ReasonOverpaymentTooLarge,
				"overpayment %s exceeds the last payment %s", over, last.Amount)
		}
		last.Amount = last.Amount.Sub(over)
	}
	return payments, nil
}

func (s *Service) checkStock(ctx context.Context, attempt *checkoutAttempt) error {
	attempt.demand = productDemand(attempt.cart.Lines)
	if len(attempt.demand) == 0 {
		return nil
	}

	ids := make([]string, 0, len(attempt.demand))
	for id := range attempt.demand {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	levels, err := s.repo.GetStockLevels(ctx, ids)
	if err != nil {
		return persistence("read stock", err)
	}

	var shortfalls []domain.StockShortfall
	for _, id := range ids {
		onHand, tracked := levels[id]
		if !tracked || attempt.demand[id] <= onHand {
			continue
		}
		shortfalls = append(shortfalls, domain.StockShortfall{
			ProductID: id,
			Requested: attempt.demand[id],
			Available: onHand,
			Missing:   attempt.demand[id] - onHand,
		})
	}
	if len(shortfalls) > 0 {
		return domain.InsufficientStock(shortfalls)
	}
	return nil
}

// productDemand sums the quantity needed per product id.
func productDemand(lines []domain.CartLine) map[string]int64 {
	demand := make(map[string]int64)
	for _, line := range lines {
		switch line.Kind {
		case domain.KindProduct:
			if line.CatalogID != "" {
				demand[line.CatalogID] += line.Quantity.IntPart()
			}
		case domain.KindService:
		}
	}
	return demand
}

func (s *Service) persist(ctx context.Context, attempt *checkoutAttempt) error {
	receipt, err := s.sequencer.Issue(ctx, attempt.registerID)
	if err != nil {
		return persistence("issue receipt number", err)
	}
	attempt.receipt = receipt

	sale := s.buildSale(ctx, attempt)
	committed, err := s.repo.CommitSale(ctx, sale, attempt.demand)
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			log.Warn().Str("receipt", receipt.String()).Msg("stock changed between check and commit; receipt number abandoned")
			return conflict
		}
		return persistence("commit sale", err)
	}
	attempt.sale = committed
	return nil
}

func (s *Service) buildSale(ctx context.Context, attempt *checkoutAttempt) domain.Sale {
	now := s.now()
	totals := attempt.totals

	lines := make([]domain.SaleLine, 0, len(totals.Lines))
	for i, priced := range totals.Lines {
		lines = append(lines, domain.SaleLine{
			ID:                 xid.New("line"),
			Position:           i + 1,
			Kind:               priced.Kind,
			CatalogID:          priced.CatalogID,
			Name:               priced.Name,
			Quantity:           priced.Quantity,
			UnitPrice:          priced.UnitPrice,
			TaxCode:            priced.TaxCode,
			TaxRate:            priced.TaxRate,
			LineGross:          priced.LineGross,
			DiscountShare:      priced.DiscountShare,
			GrossAfterDiscount: priced.GrossAfterDiscount,
			TaxAmount:          priced.TaxAmount,
		})
	}

	payments := make([]domain.Payment, 0, len(attempt.payments))
	for _, p := range attempt.payments {
		p.ID = xid.New("pay")
		payments = append(payments, p)
	}

	return domain.Sale{
		ID:            xid.New("sale"),
		ReceiptNumber: attempt.receipt.String(),
		RegisterID:    attempt.registerID,
		CreatedAt:     now.UTC(),
		BusinessDate:  now.In(s.loc).Format(domain.DateLayout),
		CustomerID:    attempt.cart.CustomerID,
		EmployeeID:    attempt.cart.EmployeeID,
		Subtotal:      totals.Subtotal,
		DiscountTotal: totals.Discount,
		TaxTotal:      totals.TaxTotal,
		Tip:           totals.Tip,
		Total:         totals.Total,
		PaymentStatus: paymentStatus(payments),
		CreatedBy:     actorOrSystem(ctx).Username,
		Lines:         lines,
		Payments:      payments,
	}
}

func paymentStatus(payments []domain.Payment) domain.PaymentStatus {
	open, settled := false, false
	for _, p := range payments {
		if p.Amount.IsZero() {
			continue
		}
		if p.Method == domain.PaymentOpen {
			open = true
		} else {
			settled = true
		}
	}
	switch {
	case open && settled:
		return domain.PaymentStatusPartial
	case open:
		return domain.PaymentStatusOpen
	default:
		return domain.PaymentStatusPaid
	}
}

func toCheckoutResponse(attempt *checkoutAttempt) domain.CheckoutResponse {
	sale := attempt.sale
	resp := domain.CheckoutResponse{
		OK:            true,
		ReceiptNumber: sale.ReceiptNumber,
		SaleID:        sale.ID,
		Subtotal:      sale.Subtotal,
		Discount:      sale.DiscountTotal,
		TaxByCode:     attempt.totals.TaxByCode,
		TaxTotal:      sale.TaxTotal,
		Tip:           sale.Tip,
		Total:         sale.Total,
		PaymentStatus: sale.PaymentStatus,
		Payments:      sale.Payments,
		CreatedAt:     sale.CreatedAt,
	}
	for _, code := range attempt.totals.UnknownTaxCodes {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("unknown tax code %q priced at 0%%", code))
	}
	return resp
}
