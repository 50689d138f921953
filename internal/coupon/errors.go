package coupon

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by Registry implementations when no coupon exists
// for the given normalized code.
var ErrNotFound = errors.New("coupon not found")

// Reason classifies why a coupon was rejected during resolution.
type Reason string

const (
	ReasonEmptyCode      Reason = "empty_code"
	ReasonNotFound       Reason = "not_found"
	ReasonInactive       Reason = "inactive"
	ReasonExpired        Reason = "expired"
	ReasonUsageExhausted Reason = "usage_exhausted"
	ReasonMinimumNotMet  Reason = "minimum_not_met"
)

// Error is a recoverable, user-facing coupon rejection. The checkout flow
// surfaces it and continues without a coupon applied; it never aborts checkout.
type Error struct {
	Reason Reason
	// Code is the normalized coupon code, empty for ReasonEmptyCode.
	Code string
	// Shortfall is how much more the subtotal needs for eligibility.
	// Set only for ReasonMinimumNotMet.
	Shortfall decimal.Decimal
}

func (e *Error) Error() string {
	switch e.Reason {
	case ReasonEmptyCode:
		return "coupon code is empty"
	case ReasonMinimumNotMet:
		return fmt.Sprintf("coupon %s: subtotal is %s short of the required minimum", e.Code, e.Shortfall)
	default:
		return fmt.Sprintf("coupon %s: %s", e.Code, e.Reason)
	}
}

// AsError unwraps err into a *Error using errors.As.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
