package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-checkout/internal/coupon"
)

// CouponClient implements coupon.Registry against POST /coupons/validate.
//
// The endpoint can validate against a subtotal, but the registry port is a
// pure lookup: the client omits the subtotal and the local resolver re-runs
// the full validation chain over the returned descriptor. That keeps the
// engine's invariants independent of backend behavior.
type CouponClient struct{ c *Client }

func NewCouponClient(c *Client) *CouponClient { return &CouponClient{c: c} }

var _ coupon.Registry = (*CouponClient)(nil)

type validateCouponDTO struct {
	Code string `json:"code"`
}

type couponResponseDTO struct {
	Valid    bool               `json:"valid"`
	Discount *couponDiscountDTO `json:"discount,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type couponDiscountDTO struct {
	Code            string           `json:"code"`
	DiscountType    string           `json:"discount_type"`
	Magnitude       decimal.Decimal  `json:"magnitude"`
	MinimumSubtotal *decimal.Decimal `json:"minimum_subtotal,omitempty"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty"`
	UsageLimit      *int             `json:"usage_limit,omitempty"`
	UsedCount       int              `json:"used_count"`
	Active          bool             `json:"is_active"`
}

func (cc *CouponClient) FindByCode(ctx context.Context, code string) (*coupon.Descriptor, error) {
	var res couponResponseDTO
	req := validateCouponDTO{Code: coupon.NormalizeCode(code)}
	if err := cc.c.do(ctx, http.MethodPost, "/coupons/validate", req, &res); err != nil {
		if se, ok := err.(*StatusError); ok && se.StatusCode == http.StatusNotFound {
			return nil, coupon.ErrNotFound
		}
		return nil, err
	}

	if res.Discount == nil {
		// Backends report unknown codes either as 404 or as {valid: false}
		// without a descriptor; both mean the same thing here.
		return nil, coupon.ErrNotFound
	}

	d := &coupon.Descriptor{
		Code:            coupon.NormalizeCode(res.Discount.Code),
		DiscountType:    coupon.DiscountType(res.Discount.DiscountType),
		Magnitude:       res.Discount.Magnitude,
		MinimumSubtotal: res.Discount.MinimumSubtotal,
		ExpiresAt:       res.Discount.ExpiresAt,
		UsageLimit:      res.Discount.UsageLimit,
		UsedCount:       res.Discount.UsedCount,
		Active:          res.Discount.Active,
	}
	return d, nil
}
