package coupon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType identifies the discount mechanism a coupon applies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the cart subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixedAmount takes a fixed monetary amount off, capped at the subtotal.
	DiscountFixedAmount DiscountType = "fixed_amount"
	// DiscountFreeShipping waives the shipping cost regardless of threshold.
	DiscountFreeShipping DiscountType = "free_shipping"
)

// Descriptor is a coupon as administered in the registry.
//
// The pricing engine and resolver never mutate a Descriptor; UsedCount is
// incremented by the order backend inside the same transaction that creates
// the order, so repeated validation during cart editing cannot double-count.
type Descriptor struct {
	// Code is stored normalized: trimmed and upper-cased.
	Code         string
	DiscountType DiscountType

	// Magnitude is a percentage for DiscountPercentage, a monetary amount for
	// DiscountFixedAmount, and ignored for DiscountFreeShipping.
	Magnitude decimal.Decimal

	MinimumSubtotal *decimal.Decimal
	ExpiresAt       *time.Time
	UsageLimit      *int
	UsedCount       int
	Active          bool
}

// NormalizeCode canonicalizes user-entered coupon codes for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
