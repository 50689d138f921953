// Package checkout implements the three-step buyer flow: customer info,
// payment method, review/confirm. Forward transitions are guarded, backward
// transitions always succeed and lose no data, and confirmation issues
// exactly one order-submission request per user confirmation.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-checkout/internal/cart"
	"github.com/jcmexdev/storefront-checkout/internal/checkout/journal"
	"github.com/jcmexdev/storefront-checkout/internal/coupon"
	"github.com/jcmexdev/storefront-checkout/internal/order"
	"github.com/jcmexdev/storefront-checkout/internal/pricing"
)

// Machine drives a single checkout session over its cart.
//
// All methods are safe for concurrent use, but the session is single-writer
// in practice (one buyer); the mutex mainly backs the in-flight submission
// guard.
type Machine struct {
	cart     *cart.Store
	resolver *coupon.Resolver
	gateway  order.Gateway

	// journal may be nil, in which case transitions are not persisted.
	journal journal.Repository

	mu         sync.Mutex
	session    Session
	submitting bool
}

// NewMachine begins a checkout session. The cart must be non-empty.
func NewMachine(ctx context.Context, c *cart.Store, resolver *coupon.Resolver, gateway order.Gateway, jr journal.Repository) (*Machine, error) {
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	m := &Machine{
		cart:     c,
		resolver: resolver,
		gateway:  gateway,
		journal:  jr,
		session: Session{
			ID:             uuid.New(),
			Step:           StepCustomerInfo,
			IdempotencyKey: uuid.NewString(),
			CreatedAt:      time.Now().UTC(),
		},
	}

	m.record(ctx, journal.StatusStarted, StepCustomerInfo, "")
	return m, nil
}

// Session returns a copy of the current session state.
func (m *Machine) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Step returns the current checkout step.
func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Step
}

// Cart exposes the session's cart store.
func (m *Machine) Cart() *cart.Store { return m.cart }

// SetCustomerInfo records the buyer's details. Validation happens on the
// forward transition, so partial edits are fine at any point before
// submission.
func (m *Machine) SetCustomerInfo(info CustomerInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Step.IsTerminal() {
		return ErrAlreadySubmitted
	}
	m.session.Customer = info
	return nil
}

// SelectPayment records the chosen payment method.
func (m *Machine) SelectPayment(method PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Step.IsTerminal() {
		return ErrAlreadySubmitted
	}
	if !method.Valid() {
		return &ValidationError{Fields: []FieldError{
			{Field: "payment_method", Message: fmt.Sprintf("unknown payment method %q", method)},
		}}
	}
	m.session.PaymentMethod = method
	return nil
}

// ApplyCoupon resolves code against the current subtotal and attaches the
// coupon to the session. A rejection leaves the session untouched; checkout
// continues without a coupon.
func (m *Machine) ApplyCoupon(ctx context.Context, code string) (*coupon.Descriptor, error) {
	if m.Step().IsTerminal() {
		return nil, ErrAlreadySubmitted
	}

	d, err := m.resolver.Resolve(ctx, code, m.cart.Summary().Subtotal)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.session.Coupon = d
	m.mu.Unlock()
	return d, nil
}

// RemoveCoupon detaches any applied coupon. Pricing reverts to the exact
// pre-coupon breakdown since summaries are always recomputed.
func (m *Machine) RemoveCoupon() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.Coupon = nil
}

// Summary prices the cart with the session's coupon applied.
func (m *Machine) Summary() pricing.Summary {
	m.mu.Lock()
	c := m.session.Coupon
	m.mu.Unlock()
	return m.cart.SummaryWith(c)
}

// Next advances one step after validating the current one. On a guard
// failure the machine stays where it is and returns the validation errors.
func (m *Machine) Next(ctx context.Context) (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.session.Step {
	case StepCustomerInfo:
		if errs := m.session.Customer.validate(); len(errs) > 0 {
			return m.session.Step, &ValidationError{Fields: errs}
		}
		m.transition(ctx, StepPayment)
		return StepPayment, nil

	case StepPayment:
		if !m.session.PaymentMethod.Valid() {
			return m.session.Step, &ValidationError{Fields: []FieldError{
				{Field: "payment_method", Message: "a payment method must be selected"},
			}}
		}
		m.transition(ctx, StepReview)
		return StepReview, nil

	case StepReview:
		return m.session.Step, ErrAwaitingConfirmation

	default:
		return m.session.Step, ErrAlreadySubmitted
	}
}

// Back moves one step backward. Always permitted from payment and review;
// previously entered data is preserved. At the first step it is a no-op.
func (m *Machine) Back(ctx context.Context) (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.session.Step {
	case StepPayment:
		m.transition(ctx, StepCustomerInfo)
	case StepReview:
		m.transition(ctx, StepPayment)
	case StepSubmitted:
		return m.session.Step, ErrAlreadySubmitted
	}
	return m.session.Step, nil
}

// Confirm re-validates the whole session, recomputes the pricing summary
// (never trusting a cached one), and issues exactly one order-submission
// request. While the request is in flight further confirms are rejected.
// On backend failure the session stays at review with cart and coupon intact
// so the buyer can retry; the retry reuses the same idempotency key.
func (m *Machine) Confirm(ctx context.Context) (*order.Order, error) {
	m.mu.Lock()

	switch {
	case m.session.Step == StepSubmitted:
		m.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case m.session.Step != StepReview:
		m.mu.Unlock()
		return nil, ErrNotAtReview
	case m.submitting:
		m.mu.Unlock()
		return nil, ErrSubmitInFlight
	}

	// Time has passed since the earlier steps: stock, customer data, and
	// coupon eligibility are all re-checked before anything leaves the shop.
	if m.cart.IsEmpty() {
		m.mu.Unlock()
		return nil, ErrEmptyCart
	}
	if len(m.cart.BlockingItems()) > 0 {
		m.mu.Unlock()
		return nil, ErrOutOfStockItems
	}
	if errs := m.session.Customer.validate(); len(errs) > 0 {
		m.mu.Unlock()
		return nil, &ValidationError{Fields: errs}
	}
	if !m.session.PaymentMethod.Valid() {
		m.mu.Unlock()
		return nil, &ValidationError{Fields: []FieldError{
			{Field: "payment_method", Message: "a payment method must be selected"},
		}}
	}

	applied := m.session.Coupon
	m.mu.Unlock()

	if applied != nil {
		// Eligibility may have changed with the cart; an invalid coupon is
		// detached and surfaced rather than silently priced in.
		fresh, err := m.resolver.Resolve(ctx, applied.Code, m.cart.Summary().Subtotal)
		if err != nil {
			if _, ok := coupon.AsError(err); ok {
				m.mu.Lock()
				m.session.Coupon = nil
				m.mu.Unlock()
			}
			return nil, err
		}
		applied = fresh
	}

	m.mu.Lock()
	// The coupon re-resolve released the lock; the step could have moved in
	// the meantime, so both guards are asserted again.
	switch {
	case m.session.Step == StepSubmitted:
		m.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case m.session.Step != StepReview:
		m.mu.Unlock()
		return nil, ErrNotAtReview
	case m.submitting:
		m.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	m.submitting = true
	m.session.Coupon = applied
	req := m.buildRequest(applied)
	sessionID := m.session.ID.String()
	m.mu.Unlock()

	m.record(ctx, journal.StatusSubmitAttempted, StepReview, "")
	slog.InfoContext(ctx, "submitting order",
		"session_id", sessionID,
		"total", req.Summary.Total.String(),
		"payment_method", req.PaymentMethod,
	)

	ord, err := m.gateway.Submit(ctx, req)

	m.mu.Lock()
	m.submitting = false
	if err != nil {
		m.mu.Unlock()
		m.record(ctx, journal.StatusSubmitFailed, StepReview, err.Error())
		slog.ErrorContext(ctx, "order submission failed, staying at review",
			"session_id", sessionID, "error", err)
		return nil, err
	}

	m.session.Step = StepSubmitted
	m.session.Coupon = nil
	m.mu.Unlock()

	if err := m.cart.Clear(ctx); err != nil {
		// The order exists; a failed remote cart cleanup must not undo that.
		slog.WarnContext(ctx, "cart cleanup after submission failed",
			"session_id", sessionID, "error", err)
	}

	m.record(ctx, journal.StatusSubmitted, StepSubmitted, ord.ID)
	slog.InfoContext(ctx, "order submitted",
		"session_id", sessionID, "order_id", ord.ID, "order_number", ord.Number)

	return ord, nil
}

// Abandon marks the session abandoned in the journal. The manager calls it
// when the buyer navigates away or clears the cart mid-checkout.
func (m *Machine) Abandon(ctx context.Context) {
	m.mu.Lock()
	step := m.session.Step
	m.mu.Unlock()
	if step.IsTerminal() {
		return
	}
	m.record(ctx, journal.StatusAbandoned, step, "")
}

// buildRequest snapshots the cart into an order request. Callers hold m.mu.
func (m *Machine) buildRequest(applied *coupon.Descriptor) order.Request {
	items := m.cart.Items()
	reqItems := make([]order.Item, len(items))
	for i, it := range items {
		reqItems[i] = order.Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.EffectiveUnitPrice(),
		}
	}

	couponCode := ""
	if applied != nil {
		couponCode = applied.Code
	}

	return order.Request{
		Customer: order.Customer{
			Name:    m.session.Customer.Name,
			Phone:   m.session.Customer.Phone,
			Email:   m.session.Customer.Email,
			Address: m.session.Customer.Address,
		},
		PaymentMethod:  string(m.session.PaymentMethod),
		Items:          reqItems,
		Summary:        m.cart.SummaryWith(applied),
		CouponCode:     couponCode,
		IdempotencyKey: m.session.IdempotencyKey,
	}
}

// transition changes step and journals it. Callers hold m.mu.
func (m *Machine) transition(ctx context.Context, to Step) {
	m.session.Step = to
	sessionID := m.session.ID.String()
	if m.journal == nil {
		return
	}
	entry := journal.NewEntry(ctx, sessionID, journal.StatusStepEntered, to.String(), "")
	if err := m.journal.Save(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "journal write failed", "session_id", sessionID, "error", err)
	}
}

// record journals a non-step event. Nil-safe on the repository.
func (m *Machine) record(ctx context.Context, status journal.Status, step Step, detail string) {
	if m.journal == nil {
		return
	}
	m.mu.Lock()
	sessionID := m.session.ID.String()
	m.mu.Unlock()

	entry := journal.NewEntry(ctx, sessionID, status, step.String(), detail)
	if err := m.journal.Save(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "journal write failed", "session_id", sessionID, "error", err)
	}
}
