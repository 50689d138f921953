package cart

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/jcmexdev/storefront-checkout/internal/pricing"
)

// snapshotItem is the wire shape used when a cart is parked in the cache
// between requests. currency.Unit does not round-trip through JSON on its
// own, so the currency travels as its ISO code.
type snapshotItem struct {
	ID            uuid.UUID        `json:"id"`
	ProductID     string           `json:"product_id"`
	ProductName   string           `json:"product_name"`
	UnitPrice     decimal.Decimal  `json:"unit_price"`
	SaleUnitPrice *decimal.Decimal `json:"sale_unit_price,omitempty"`
	Currency      string           `json:"currency"`
	Quantity      int              `json:"quantity"`
	StockCeiling  int              `json:"stock_ceiling"`
}

// EncodeSnapshot serializes cart lines for cache storage.
func EncodeSnapshot(items []LineItem) ([]byte, error) {
	out := make([]snapshotItem, len(items))
	for i, it := range items {
		out[i] = snapshotItem{
			ID:           it.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			UnitPrice:    it.UnitPrice.Amount,
			Currency:     it.UnitPrice.Currency.String(),
			Quantity:     it.Quantity,
			StockCeiling: it.StockCeiling,
		}
		if it.SaleUnitPrice != nil {
			amount := it.SaleUnitPrice.Amount
			out[i].SaleUnitPrice = &amount
		}
	}
	return json.Marshal(out)
}

// DecodeSnapshot restores cart lines from cache storage.
func DecodeSnapshot(raw []byte) ([]LineItem, error) {
	var in []snapshotItem
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("cart snapshot decode: %w", err)
	}

	out := make([]LineItem, len(in))
	for i, it := range in {
		unit, err := currency.ParseISO(it.Currency)
		if err != nil {
			return nil, fmt.Errorf("cart snapshot item %s: currency %q: %w", it.ID, it.Currency, err)
		}
		out[i] = LineItem{
			ID:           it.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			UnitPrice:    pricing.Money{Amount: it.UnitPrice, Currency: unit},
			Quantity:     it.Quantity,
			StockCeiling: it.StockCeiling,
		}
		if it.SaleUnitPrice != nil {
			out[i].SaleUnitPrice = &pricing.Money{Amount: *it.SaleUnitPrice, Currency: unit}
		}
	}
	return out, nil
}

// ReplaceItems swaps the store's lines wholesale, used when restoring a
// snapshot from the cache.
func (s *Store) ReplaceItems(items []LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.invalidate()
}
