// Package pricing turns a cart into a tax-correct totals breakdown.
//
// Prices are gross (tax inclusive). Every intermediate amount is rounded to
// two decimals, half away from zero, before it is summed or compared.
package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Catalog resolves catalog-bound cart lines.
type Catalog interface {
	Lookup(ref domain.CatalogRef) (domain.CatalogItem, bool)
}

type CatalogMap map[domain.CatalogRef]domain.CatalogItem

func (m CatalogMap) Lookup(ref domain.CatalogRef) (domain.CatalogItem, bool) {
	item, ok := m[ref]
	return item, ok
}

type Options struct {
	AllowFractionalServices bool
}

func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Price computes the totals for cart. A nil catalog skips the catalog check.
// It has no side effects.
func Price(cart domain.Cart, rates TaxTable, catalog Catalog, opts Options) (domain.Totals, error) {
	if err := validateCart(cart, catalog, opts); err != nil {
		return domain.Totals{}, err
	}

	grosses := make([]decimal.Decimal, len(cart.Lines))
	subtotal := decimal.Zero
	for i, line := range cart.Lines {
		grosses[i] = Round2(line.UnitPrice.Mul(line.Quantity))
		subtotal = subtotal.Add(grosses[i])
	}

	discount := DiscountAmount(subtotal, cart.Discount)
	shares := AllocateDiscount(grosses, discount)

	totals := domain.Totals{
		Lines:     make([]domain.PricedLine, len(cart.Lines)),
		Subtotal:  subtotal,
		Discount:  discount,
		TaxByCode: make(map[string]decimal.Decimal),
		TaxTotal:  decimal.Zero,
		Tip:       Round2(cart.Tip),
	}

	unknown := make(map[string]struct{})
	net := decimal.Zero
	for i, line := range cart.Lines {
		rate, known := rates.Rate(line.TaxCode)
		if !known {
			unknown[line.TaxCode] = struct{}{}
		}
		after := grosses[i].Sub(shares[i])
		tax := LineTax(after, rate)

		totals.Lines[i] = domain.PricedLine{
			CartLine:           line,
			TaxRate:            rate,
			LineGross:          grosses[i],
			DiscountShare:      shares[i],
			GrossAfterDiscount: after,
			TaxAmount:          tax,
		}
		totals.TaxByCode[line.TaxCode] = totals.TaxByCode[line.TaxCode].Add(tax)
		totals.TaxTotal = totals.TaxTotal.Add(tax)
		net = net.Add(after)
	}
	totals.Total = Round2(net.Add(totals.Tip))

	if len(unknown) > 0 {
		totals.UnknownTaxCodes = make([]string, 0, len(unknown))
		for code := range unknown {
			totals.UnknownTaxCodes = append(totals.UnknownTaxCodes, code)
		}
		sort.Strings(totals.UnknownTaxCodes)
	}

	return totals, nil
}

// DiscountAmount resolves the cart discount against subtotal. A positive flat
// amount wins over a percentage. The result never exceeds subtotal.
func DiscountAmount(subtotal decimal.Decimal, discount domain.Discount) decimal.Decimal {
	amount := decimal.Zero
	switch {
	case discount.Amount.IsPositive():
		amount = Round2(discount.Amount)
	case discount.Percent.IsPositive():
		amount = Round2(subtotal.Mul(discount.Percent).Div(hundred))
	}
	if amount.GreaterThan(subtotal) {
		return subtotal
	}
	return amount
}

// AllocateDiscount splits discount across grosses in proportion to each
// gross. Every share is rounded to cents and the last share takes whatever
// is left, so the shares always sum to discount exactly.
func AllocateDiscount(grosses []decimal.Decimal, discount decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(grosses))
	if len(grosses) == 0 {
		return shares
	}

	subtotal := decimal.Zero
	for _, g := range grosses {
		subtotal = subtotal.Add(g)
	}
	if !subtotal.IsPositive() || !discount.IsPositive() {
		for i := range shares {
			shares[i] = decimal.Zero
		}
		return shares
	}

	allocated := decimal.Zero
	last := len(grosses) - 1
	for i := 0; i < last; i++ {
		shares[i] = Round2(discount.Mul(grosses[i]).Div(subtotal))
		allocated = allocated.Add(shares[i])
	}
	shares[last] = discount.Sub(allocated)
	return shares
}

// LineTax extracts the tax contained in a gross amount at rate.
func LineTax(gross decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	return Round2(gross.Sub(gross.Div(decimal.NewFromInt(1).Add(rate))))
}

// MaxQuantity bounds a single line. Stock demand is summed in int64, so
// anything larger could wrap.
var MaxQuantity = decimal.NewFromInt(1_000_000)

// QuantityPlaces is the precision a quantity is stored with.
const QuantityPlaces = 3

// CheckQuantity validates one line quantity of the given kind.
func CheckQuantity(kind domain.LineKind, qty decimal.Decimal, opts Options) *domain.ValidationError {
	if !qty.IsPositive() {
		return domain.Invalid(domain.ReasonInvalidQuantity, "quantity must be positive")
	}
	if qty.GreaterThan(MaxQuantity) {
		return domain.Invalid(domain.ReasonInvalidQuantity, "quantity must not exceed %s", MaxQuantity)
	}
	if qty.IsInteger() {
		return nil
	}
	if kind == domain.KindProduct || !opts.AllowFractionalServices {
		return domain.Invalid(domain.ReasonFractionalQuantity, "quantity must be a whole number")
	}
	if !qty.Equal(qty.Truncate(QuantityPlaces)) {
		return domain.Invalid(domain.ReasonInvalidQuantity, "quantity allows at most %d decimal places", QuantityPlaces)
	}
	return nil
}

func validateCart(cart domain.Cart, catalog Catalog, opts Options) error {
	if len(cart.Lines) == 0 {
		return domain.Invalid(domain.ReasonEmptyCart, "cart has no lines")
	}
	for i, line := range cart.Lines {
		if !line.Kind.Valid() {
			return domain.Invalid(domain.ReasonInvalidKind, "line %d has no valid kind", i+1)
		}
		if err := CheckQuantity(line.Kind, line.Quantity, opts); err != nil {
			err.Message = fmt.Sprintf("line %d %s", i+1, err.Message)
			return err
		}
		if line.CatalogID != "" && catalog != nil {
			ref := domain.CatalogRef{Kind: line.Kind, ID: line.CatalogID}
			item, ok := catalog.Lookup(ref)
			if !ok {
				return domain.Invalid(domain.ReasonCatalogItemMissing, "catalog item %s not found", ref)
			}
			if !item.Active {
				return domain.Invalid(domain.ReasonCatalogItemInactive, "catalog item %s is inactive", ref)
			}
		}
		if !line.UnitPrice.IsPositive() {
			return domain.Invalid(domain.ReasonInvalidPrice, "line %d unit price must be positive", i+1)
		}
	}
	if cart.Discount.Amount.IsNegative() || cart.Discount.Percent.IsNegative() {
		return domain.Invalid(domain.ReasonInvalidDiscount, "discount must not be negative")
	}
	if cart.Tip.IsNegative() {
		return domain.Invalid(domain.ReasonInvalidTip, "tip must not be negative")
	}
	return nil
}
