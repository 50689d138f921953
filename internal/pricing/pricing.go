// Package pricing folds cart line items, an optional coupon, and the shipping
// policy into a deterministic price breakdown.
//
// ComputeSummary is a pure function: no I/O, no clock, no mutation of its
// inputs. It is safe to call as often as the UI repaints, and the checkout
// machine calls it one final time at submission so a stale cached summary can
// never reach the order backend.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-checkout/internal/coupon"
)

// Item is the pricing view of a cart line: only what the math needs.
type Item struct {
	UnitPrice     decimal.Decimal
	SaleUnitPrice *decimal.Decimal
	Quantity      int
}

// EffectiveUnitPrice is the sale price when present, otherwise the regular
// unit price.
func (i Item) EffectiveUnitPrice() decimal.Decimal {
	if i.SaleUnitPrice != nil {
		return *i.SaleUnitPrice
	}
	return i.UnitPrice
}

// ShippingPolicy is supplied as configuration and never mutated at runtime.
type ShippingPolicy struct {
	BaseCost decimal.Decimal
	// FreeShippingThreshold waives shipping for subtotals at or above it.
	// Nil means shipping is always charged.
	FreeShippingThreshold *decimal.Decimal
}

// Summary is the derived price breakdown. It is never persisted; it is always
// recomputed from the cart, coupon, and policy.
//
// Invariant: Total = max(0, Subtotal + Tax + Shipping - Discount).
type Summary struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
	// ItemsCount is the total unit count across all lines.
	ItemsCount int
}

// Equal reports field-wise equality using decimal comparison, so summaries
// with different internal exponents still compare equal.
func (s Summary) Equal(o Summary) bool {
	return s.Subtotal.Equal(o.Subtotal) &&
		s.Tax.Equal(o.Tax) &&
		s.Shipping.Equal(o.Shipping) &&
		s.Discount.Equal(o.Discount) &&
		s.Total.Equal(o.Total) &&
		s.ItemsCount == o.ItemsCount
}

// ComputeSummary prices the cart.
//
// Out-of-stock lines are priced like any other: they block checkout at the
// state-machine guard, they are not silently dropped from the subtotal.
// A nil coupon means no discount. An empty cart yields the zero Summary with
// no shipping charge, since there is nothing to ship.
func ComputeSummary(items []Item, c *coupon.Descriptor, policy ShippingPolicy, taxRate decimal.Decimal) Summary {
	if len(items) == 0 {
		return Summary{}
	}

	subtotal := decimal.Zero
	count := 0
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		subtotal = subtotal.Add(it.EffectiveUnitPrice().Mul(qty))
		count += it.Quantity
	}
	subtotal = round2(subtotal)

	tax := round2(subtotal.Mul(taxRate))

	shipping := policy.BaseCost
	if policy.FreeShippingThreshold != nil && subtotal.GreaterThanOrEqual(*policy.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	discount := decimal.Zero
	if c != nil {
		switch c.DiscountType {
		case coupon.DiscountPercentage:
			discount = round2(subtotal.Mul(c.Magnitude).Div(decimal.NewFromInt(100)))
		case coupon.DiscountFixedAmount:
			// A fixed discount can offset at most the subtotal.
			discount = decimal.Min(round2(c.Magnitude), subtotal)
		case coupon.DiscountFreeShipping:
			// No monetary discount; the shipping charge itself is waived,
			// below the free-shipping threshold or not.
			shipping = decimal.Zero
		}
	}

	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Summary{
		Subtotal:   subtotal,
		Tax:        tax,
		Shipping:   shipping,
		Discount:   discount,
		Total:      round2(total),
		ItemsCount: count,
	}
}
