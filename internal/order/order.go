// Package order defines the order-submission contract between the checkout
// engine and the merchant backend.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-checkout/internal/pricing"
)

// Customer is the buyer information captured during checkout.
type Customer struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// Item is an order line as submitted to the backend.
type Item struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Request is the one order-creation call issued per confirmed checkout.
//
// IdempotencyKey is generated once per checkout session; a retry after a
// failed submission reuses the same key so the backend can deduplicate and
// no partial or duplicate order is ever created.
type Request struct {
	Customer       Customer
	PaymentMethod  string
	Items          []Item
	Summary        pricing.Summary
	CouponCode     string
	IdempotencyKey string
}

// Order is the backend's acknowledgement of a persisted order.
type Order struct {
	ID        string
	Number    string
	Total     decimal.Decimal
	CreatedAt time.Time
}

// Gateway is the port to the order backend. Submit must be treated as
// at-most-once per user confirmation; the checkout machine guards against
// concurrent submits and the idempotency key guards against retries.
type Gateway interface {
	Submit(ctx context.Context, req Request) (*Order, error)
}

// SubmissionError is a recoverable order-creation failure. The checkout
// session rolls back to the review step with cart and coupon intact, and the
// user may retry.
type SubmissionError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *SubmissionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("order submission failed (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("order submission failed with status %d", e.StatusCode)
}
