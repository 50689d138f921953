package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Resolver validates a user-entered coupon code against the current cart
// subtotal and returns the matching Descriptor.
//
// The checks run in a fixed order and short-circuit on the first failure:
// empty code, lookup, active flag, expiry, usage limit, minimum subtotal.
// All failures are returned as *Error and are recoverable; checkout proceeds
// without a coupon.
type Resolver struct {
	registry Registry

	// now is injectable for expiry tests.
	now func() time.Time
}

func NewResolver(registry Registry) *Resolver {
	return &Resolver{
		registry: registry,
		now:      time.Now,
	}
}

// WithClock replaces the resolver's time source. Intended for tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve validates code against subtotal. On success the Descriptor is
// returned unchanged; Resolve never mutates registry state, in particular it
// never touches UsedCount.
func (r *Resolver) Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (*Descriptor, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, &Error{Reason: ReasonEmptyCode}
	}

	d, err := r.registry.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &Error{Reason: ReasonNotFound, Code: normalized}
		}
		return nil, fmt.Errorf("coupon lookup %q: %w", normalized, err)
	}

	if !d.Active {
		return nil, &Error{Reason: ReasonInactive, Code: normalized}
	}

	if d.ExpiresAt != nil && d.ExpiresAt.Before(r.now()) {
		return nil, &Error{Reason: ReasonExpired, Code: normalized}
	}

	if d.UsageLimit != nil && d.UsedCount >= *d.UsageLimit {
		return nil, &Error{Reason: ReasonUsageExhausted, Code: normalized}
	}

	if d.MinimumSubtotal != nil && subtotal.LessThan(*d.MinimumSubtotal) {
		return nil, &Error{
			Reason:    ReasonMinimumNotMet,
			Code:      normalized,
			Shortfall: d.MinimumSubtotal.Sub(subtotal),
		}
	}

	return d, nil
}
