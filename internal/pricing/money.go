package pricing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money is a fixed-point monetary amount in a single currency.
// All arithmetic in the engine happens on the decimal amount; the currency
// unit travels alongside for display and wire encoding.
type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// round2 rounds to two minor-unit digits, half away from zero.
// Applied at every derived step so cent drift cannot accumulate.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
