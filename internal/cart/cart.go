package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-checkout/internal/pricing"
)

// LineItem is one product entry in the cart.
//
// Quantity is clamped to [1, StockCeiling] whenever StockCeiling > 0.
// A StockCeiling of 0 marks the item out of stock: it stays visible in the
// cart and keeps contributing to the subtotal, but blocks checkout until it
// is removed or restocked.
type LineItem struct {
	ID            uuid.UUID
	ProductID     string
	ProductName   string
	UnitPrice     pricing.Money
	SaleUnitPrice *pricing.Money
	Quantity      int
	StockCeiling  int
}

// EffectiveUnitPrice is the sale price when present, otherwise the regular one.
func (i LineItem) EffectiveUnitPrice() decimal.Decimal {
	if i.SaleUnitPrice != nil {
		return i.SaleUnitPrice.Amount
	}
	return i.UnitPrice.Amount
}

// OutOfStock reports whether the line is unpurchasable.
func (i LineItem) OutOfStock() bool {
	return i.StockCeiling == 0
}

func (i LineItem) pricingItem() pricing.Item {
	it := pricing.Item{
		UnitPrice: i.UnitPrice.Amount,
		Quantity:  i.Quantity,
	}
	if i.SaleUnitPrice != nil {
		amount := i.SaleUnitPrice.Amount
		it.SaleUnitPrice = &amount
	}
	return it
}

// clampQuantity forces n into [1, ceiling]. A ceiling of 0 means out of
// stock; the quantity is left at 1 so the line remains displayable.
func clampQuantity(n, ceiling int) int {
	if n < 1 {
		n = 1
	}
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	return n
}

// PricingItems projects the lines into the pricing engine's input shape.
func PricingItems(items []LineItem) []pricing.Item {
	out := make([]pricing.Item, len(items))
	for i, it := range items {
		out[i] = it.pricingItem()
	}
	return out
}
