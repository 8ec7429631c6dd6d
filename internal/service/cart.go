package service

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/pricing"
	"salonpos/backend/internal/xid"
)

// Cart returns the open cart for session with its priced summary. A session
// without a cart gets an empty view.
func (s *Service) Cart(ctx context.Context, session string) (domain.CartView, error) {
	cart, ok, err := s.carts.Get(ctx, session)
	if err != nil {
		return domain.CartView{}, persistence("load cart", err)
	}
	if !ok {
		return domain.CartView{Cart: domain.Cart{Session: session, Lines: []domain.CartLine{}}}, nil
	}
	return s.cartView(*cart)
}

func (s *Service) AddCartLine(ctx context.Context, session string, req domain.AddCartLineRequest) (domain.CartView, error) {
	unlock := s.cartLocks.lock(session)
	defer unlock()

	if !req.Kind.Valid() {
		return domain.CartView{}, domain.Invalid(domain.ReasonInvalidKind, "kind must be service or product")
	}
	if err := s.checkQuantity(req.Kind, req.Quantity); err != nil {
		return domain.CartView{}, err
	}

	ref := domain.CatalogRef{Kind: req.Kind, ID: strings.TrimSpace(req.CatalogID)}
	items, err := s.repo.LookupCatalog(ctx, []domain.CatalogRef{ref})
	if err != nil {
		return domain.CartView{}, persistence("lookup catalog", err)
	}
	item, ok := items[ref]
	if !ok {
		return domain.CartView{}, domain.Invalid(domain.ReasonCatalogItemMissing, "catalog item %s not found", ref)
	}
	if !item.Active {
		return domain.CartView{}, domain.Invalid(domain.ReasonCatalogItemInactive, "catalog item %s is inactive", ref)
	}

	cart, found, err := s.carts.Get(ctx, session)
	if err != nil {
		return domain.CartView{}, persistence("load cart", err)
	}
	if !found {
		now := s.now().UTC()
		cart = &domain.Cart{Session: session, CreatedAt: now}
	}

	merged := false
	for i, line := range cart.Lines {
		if line.Kind == ref.Kind && line.CatalogID == ref.ID {
			sum := line.Quantity.Add(req.Quantity)
			if err := s.checkQuantity(line.Kind, sum); err != nil {
				return domain.CartView{}, err
			}
			cart.Lines[i].Quantity = sum
			merged = true
			break
		}
	}
	if !merged {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ID:        xid.New("cl"),
			Kind:      item.Kind,
			CatalogID: item.ID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  req.Quantity,
			TaxCode:   item.TaxCode,
		})
	}
	return s.saveCart(ctx, cart)
}

// UpdateCartLine sets a line's quantity; zero or less removes the line.
func (s *Service) UpdateCartLine(ctx context.Context, session string, lineID string, qty decimal.Decimal) (domain.CartView, error) {
	unlock := s.cartLocks.lock(session)
	defer unlock()

	cart, err := s.openCart(ctx, session)
	if err != nil {
		return domain.CartView{}, err
	}

	idx := -1
	for i, line := range cart.Lines {
		if line.ID == lineID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.CartView{}, domain.Invalid(domain.ReasonCartLineMissing, "cart line %s not found", lineID)
	}

	if !qty.IsPositive() {
		cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
	} else {
		if err := s.checkQuantity(cart.Lines[idx].Kind, qty); err != nil {
			return domain.CartView{}, err
		}
		cart.Lines[idx].Quantity = qty
	}
	return s.saveCart(ctx, cart)
}

func (s *Service) SetCartDiscount(ctx context.Context, session string, discount domain.Discount) (domain.CartView, error) {
	unlock := s.cartLocks.lock(session)
	defer unlock()

	if discount.Amount.IsNegative() || discount.Percent.IsNegative() || discount.Percent.GreaterThan(decimal.NewFromInt(100)) {
		return domain.CartView{}, domain.Invalid(domain.ReasonInvalidDiscount, "discount amount must be >= 0 and percent within 0..100")
	}
	cart, err := s.openCart(ctx, session)
	if err != nil {
		return domain.CartView{}, err
	}
	cart.Discount = domain.Discount{Amount: pricing.Round2(discount.Amount), Percent: discount.Percent}
	return s.saveCart(ctx, cart)
}

func (s *Service) SetCartTip(ctx context.Context, session string, tip decimal.Decimal) (domain.CartView, error) {
	unlock := s.cartLocks.lock(session)
	defer unlock()

	if tip.IsNegative() {
		return domain.CartView{}, domain.Invalid(domain.ReasonInvalidTip, "tip must not be negative")
	}
	cart, err := s.openCart(ctx, session)
	if err != nil {
		return domain.CartView{}, err
	}
	cart.Tip = pricing.Round2(tip)
	return s.saveCart(ctx, cart)
}

func (s *Service) SetCartParties(ctx context.Context, session string, req domain.CartPartiesRequest) (domain.CartView, error) {
	unlock := s.cartLocks.lock(session)
	defer unlock()

	cart, err := s.openCart(ctx, session)
	if err != nil {
		return domain.CartView{}, err
	}
	cart.CustomerID = strings.TrimSpace(req.CustomerID)
	cart.EmployeeID = strings.TrimSpace(req.EmployeeID)
	return s.saveCart(ctx, cart)
}

func (s *Service) ResetCart(ctx context.Context, session string) error {
	unlock := s.cartLocks.lock(session)
	defer unlock()

	if err := s.carts.Delete(ctx, session); err != nil {
		return persistence("reset cart", err)
	}
	return nil
}

// CheckoutCart commits the session's cart. The cart is discarded only when
// the sale commits; on any failure it stays as it was.
func (s *Service) CheckoutCart(ctx context.Context, session string, req domain.CartCheckoutRequest) (domain.CheckoutResponse, error) {
	unlock := s.cartLocks.lock(session)
	defer unlock()

	cart, err := s.openCart(ctx, session)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	attempt, err := s.runCheckout(ctx, *cart, req.Payments, req.RegisterID)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	if err := s.carts.Delete(ctx, session); err != nil {
		log.Warn().Err(err).Str("session", session).Str("receipt", attempt.sale.ReceiptNumber).Msg("sale committed but cart not discarded")
	}
	return toCheckoutResponse(attempt), nil
}

func (s *Service) openCart(ctx context.Context, session string) (*domain.Cart, error) {
	cart, ok, err := s.carts.Get(ctx, session)
	if err != nil {
		return nil, persistence("load cart", err)
	}
	if !ok {
		return nil, domain.Invalid(domain.ReasonEmptyCart, "no open cart for this session")
	}
	return cart, nil
}

func (s *Service) saveCart(ctx context.Context, cart *domain.Cart) (domain.CartView, error) {
	cart.UpdatedAt = s.now().UTC()
	if err := s.carts.Save(ctx, *cart); err != nil {
		return domain.CartView{}, persistence("save cart", err)
	}
	return s.cartView(*cart)
}

func (s *Service) cartView(cart domain.Cart) (domain.CartView, error) {
	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	view := domain.CartView{Cart: cart}
	if len(cart.Lines) == 0 {
		return view, nil
	}
	totals, err := pricing.Price(cart, s.rates, nil, s.pricing)
	if err != nil {
		return domain.CartView{}, err
	}
	view.Totals = &totals
	return view, nil
}

func (s *Service) checkQuantity(kind domain.LineKind, qty decimal.Decimal) error {
	if err := pricing.CheckQuantity(kind, qty, s.pricing); err != nil {
		return err
	}
	return nil
}

// sessionLocks serialises read-modify-write cycles on one cart within this
// process. Carts are per user and register, so cross-process writers on the
// same session are not expected.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *sessionLocks) lock(session string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[session]
	if !ok {
		m = &sync.Mutex{}
		l.locks[session] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
