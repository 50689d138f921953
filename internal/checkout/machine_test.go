package checkout_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/jcmexdev/storefront-checkout/internal/backend"
	"github.com/jcmexdev/storefront-checkout/internal/cart"
	"github.com/jcmexdev/storefront-checkout/internal/checkout"
	"github.com/jcmexdev/storefront-checkout/internal/coupon"
	"github.com/jcmexdev/storefront-checkout/internal/order"
	"github.com/jcmexdev/storefront-checkout/internal/pricing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func money(s string) pricing.Money {
	return pricing.Money{Amount: dec(s), Currency: currency.MustParseISO("EGP")}
}

func validCustomer() checkout.CustomerInfo {
	return checkout.CustomerInfo{
		Name:    "Mona Hassan",
		Phone:   "+20 100 555 0101",
		Email:   "mona@example.com",
		Address: "14 Tahrir St, Cairo",
	}
}

func seededCart(t *testing.T) *cart.Store {
	t.Helper()

	threshold := dec("500")
	policy := pricing.ShippingPolicy{BaseCost: dec("50"), FreeShippingThreshold: &threshold}
	store := cart.NewStore(policy, dec("0.14"), nil)
	store.AddItem(cart.LineItem{
		ID:           uuid.New(),
		ProductID:    "p-100",
		ProductName:  "Ceramic Mug",
		UnitPrice:    money("100"),
		Quantity:     2,
		StockCeiling: 10,
	})
	return store
}

func newTestMachine(t *testing.T, store *cart.Store, gateway order.Gateway) *checkout.Machine {
	t.Helper()

	registry := coupon.NewMemoryRegistry()
	registry.Put(coupon.Descriptor{
		Code:         "SAVE20",
		DiscountType: coupon.DiscountPercentage,
		Magnitude:    dec("20"),
		Active:       true,
	})
	resolver := coupon.NewResolver(registry)

	m, err := checkout.NewMachine(context.Background(), store, resolver, gateway, nil)
	require.NoError(t, err)
	return m
}

// advanceToReview walks a fresh machine through the first two steps.
func advanceToReview(t *testing.T, m *checkout.Machine) {
	t.Helper()

	require.NoError(t, m.SetCustomerInfo(validCustomer()))
	step, err := m.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, checkout.StepPayment, step)

	require.NoError(t, m.SelectPayment(checkout.PaymentCashOnDelivery))
	step, err = m.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, checkout.StepReview, step)
}

func TestNewMachineRejectsEmptyCart(t *testing.T) {
	threshold := dec("500")
	policy := pricing.ShippingPolicy{BaseCost: dec("50"), FreeShippingThreshold: &threshold}
	empty := cart.NewStore(policy, dec("0.14"), nil)

	_, err := checkout.NewMachine(context.Background(), empty, coupon.NewResolver(coupon.NewMemoryRegistry()), backend.NewMemory(), nil)
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
}

func TestNextValidatesCustomerInfo(t *testing.T) {
	m := newTestMachine(t, seededCart(t), backend.NewMemory())

	info := validCustomer()
	info.Name = "   "
	require.NoError(t, m.SetCustomerInfo(info))

	step, err := m.Next(context.Background())
	ve, ok := checkout.AsValidationError(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Equal(t, "name", ve.Fields[0].Field)
	assert.Equal(t, checkout.StepCustomerInfo, step, "machine must stay put on a guard failure")
}

func TestNextRejectsInvalidEmail(t *testing.T) {
	m := newTestMachine(t, seededCart(t), backend.NewMemory())

	info := validCustomer()
	info.Email = "not-an-email"
	require.NoError(t, m.SetCustomerInfo(info))

	_, err := m.Next(context.Background())
	ve, ok := checkout.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "email", ve.Fields[0].Field)
}

func TestNextRequiresPaymentMethod(t *testing.T) {
	m := newTestMachine(t, seededCart(t), backend.NewMemory())

	require.NoError(t, m.SetCustomerInfo(validCustomer()))
	_, err := m.Next(context.Background())
	require.NoError(t, err)

	step, err := m.Next(context.Background())
	_, ok := checkout.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, checkout.StepPayment, step)
}

func TestSelectPaymentRejectsUnknownMethod(t *testing.T) {
	m := newTestMachine(t, seededCart(t), backend.NewMemory())

	err := m.SelectPayment(checkout.PaymentMethod("store_credit"))
	_, ok := checkout.AsValidationError(err)
	require.True(t, ok)
}

func TestBackPreservesEnteredData(t *testing.T) {
	m := newTestMachine(t, seededCart(t), backend.NewMemory())
	advanceToReview(t, m)

	step, err := m.Back(context.Background())
	require.NoError(t, err)
	require.Equal(t, checkout.StepPayment, step)

	step, err = m.Back(context.Background())
	require.NoError(t, err)
	require.Equal(t, checkout.StepCustomerInfo, step)

	// Back at the first step is a no-op.
	step, err = m.Back(context.Background())
	require.NoError(t, err)
	require.Equal(t, checkout.StepCustomerInfo, step)

	session := m.Session()
	assert.Equal(t, validCustomer(), session.Customer)
	assert.Equal(t, checkout.PaymentCashOnDelivery, session.PaymentMethod)
}

func TestConfirmHappyPath(t *testing.T) {
	store := seededCart(t)
	m := newTestMachine(t, store, backend.NewMemory())
	advanceToReview(t, m)

	ord, err := m.Confirm(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ord)

	// Subtotal 200, tax 28, shipping 50.
	assert.True(t, ord.Total.Equal(dec("278")), "total %s", ord.Total)
	assert.NotEmpty(t, ord.Number)

	assert.Equal(t, checkout.StepSubmitted, m.Step())
	assert.True(t, store.IsEmpty(), "cart clears after submission")
}

func TestConfirmRequiresReviewStep(t *testing.T) {
	m := newTestMachine(t, seededCart(t), backend.NewMemory())

	_, err := m.Confirm(context.Background())
	require.ErrorIs(t, err, checkout.ErrNotAtReview)
}

func TestConfirmAfterSubmissionIsRejected(t *testing.T) {
	m := newTestMachine(t, seededCart(t), backend.NewMemory())
	advanceToReview(t, m)

	_, err := m.Confirm(context.Background())
	require.NoError(t, err)

	_, err = m.Confirm(context.Background())
	require.ErrorIs(t, err, checkout.ErrAlreadySubmitted)

	// Every other mutation is rejected too.
	require.ErrorIs(t, m.SetCustomerInfo(validCustomer()), checkout.ErrAlreadySubmitted)
	_, err = m.Back(context.Background())
	require.ErrorIs(t, err, checkout.ErrAlreadySubmitted)
}

func TestConfirmBlocksOnOutOfStockItems(t *testing.T) {
	store := seededCart(t)
	m := newTestMachine(t, store, backend.NewMemory())
	advanceToReview(t, m)

	// The item sells out while the buyer reviews.
	store.AddItem(cart.LineItem{
		ID:          uuid.New(),
		ProductID:   "p-gone",
		ProductName: "Last Unit",
		UnitPrice:   money("30"),
		Quantity:    1,
	})

	_, err := m.Confirm(context.Background())
	require.ErrorIs(t, err, checkout.ErrOutOfStockItems)
	assert.Equal(t, checkout.StepReview, m.Step())
}

// failingGateway fails a configurable number of times before delegating.
type failingGateway struct {
	failures int
	inner    order.Gateway
	requests []order.Request
}

func (g *failingGateway) Submit(ctx context.Context, req order.Request) (*order.Order, error) {
	g.requests = append(g.requests, req)
	if len(g.requests) <= g.failures {
		return nil, &order.SubmissionError{StatusCode: 503, Code: "upstream_down", Message: "try again"}
	}
	return g.inner.Submit(ctx, req)
}

func TestConfirmFailureRollsBackToReview(t *testing.T) {
	store := seededCart(t)
	gateway := &failingGateway{failures: 1, inner: backend.NewMemory()}
	m := newTestMachine(t, store, gateway)
	advanceToReview(t, m)

	_, err := m.Confirm(context.Background())
	var se *order.SubmissionError
	require.ErrorAs(t, err, &se)

	// Session stays at review with the cart intact so the buyer can retry.
	assert.Equal(t, checkout.StepReview, m.Step())
	assert.False(t, store.IsEmpty())

	ord, err := m.Confirm(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ord)

	// The retry reuses the idempotency key minted at session start.
	require.Len(t, gateway.requests, 2)
	assert.Equal(t, gateway.requests[0].IdempotencyKey, gateway.requests[1].IdempotencyKey)
	assert.NotEmpty(t, gateway.requests[0].IdempotencyKey)
}

func TestApplyAndRemoveCoupon(t *testing.T) {
	store := seededCart(t)
	m := newTestMachine(t, store, backend.NewMemory())

	before := m.Summary()

	d, err := m.ApplyCoupon(context.Background(), "save20")
	require.NoError(t, err)
	assert.Equal(t, "SAVE20", d.Code)

	discounted := m.Summary()
	assert.True(t, discounted.Discount.Equal(dec("40")), "discount %s", discounted.Discount)
	assert.False(t, before.Equal(discounted))

	m.RemoveCoupon()
	assert.True(t, before.Equal(m.Summary()), "removing the coupon restores the breakdown")
}

func TestApplyCouponRejectionLeavesSessionUntouched(t *testing.T) {
	m := newTestMachine(t, seededCart(t), backend.NewMemory())

	before := m.Summary()

	_, err := m.ApplyCoupon(context.Background(), "BOGUS")
	ce, ok := coupon.AsError(err)
	require.True(t, ok)
	assert.Equal(t, coupon.ReasonNotFound, ce.Reason)

	assert.Nil(t, m.Session().Coupon)
	assert.True(t, before.Equal(m.Summary()))
}

func TestConfirmDetachesCouponThatTurnedInvalid(t *testing.T) {
	store := seededCart(t)
	registry := coupon.NewMemoryRegistry()
	registry.Put(coupon.Descriptor{
		Code:         "FLASH",
		DiscountType: coupon.DiscountPercentage,
		Magnitude:    dec("15"),
		Active:       true,
	})
	resolver := coupon.NewResolver(registry)

	m, err := checkout.NewMachine(context.Background(), store, resolver, backend.NewMemory(), nil)
	require.NoError(t, err)

	_, err = m.ApplyCoupon(context.Background(), "FLASH")
	require.NoError(t, err)
	advanceToReview(t, m)

	// The flash sale ends between review and confirm.
	registry.Put(coupon.Descriptor{
		Code:         "FLASH",
		DiscountType: coupon.DiscountPercentage,
		Magnitude:    dec("15"),
		Active:       false,
	})

	_, err = m.Confirm(context.Background())
	ce, ok := coupon.AsError(err)
	require.True(t, ok)
	assert.Equal(t, coupon.ReasonInactive, ce.Reason)

	// The invalid coupon is detached; a retry submits without it.
	assert.Nil(t, m.Session().Coupon)
	assert.Equal(t, checkout.StepReview, m.Step())

	ord, err := m.Confirm(context.Background())
	require.NoError(t, err)
	assert.True(t, ord.Total.Equal(dec("278")), "total %s", ord.Total)
}

// hookedRegistry runs a callback before delegating each lookup.
type hookedRegistry struct {
	inner    coupon.Registry
	onLookup func()
}

func (r *hookedRegistry) FindByCode(ctx context.Context, code string) (*coupon.Descriptor, error) {
	if r.onLookup != nil {
		r.onLookup()
	}
	return r.inner.FindByCode(ctx, code)
}

func TestConfirmReassertsStepAfterCouponRecheck(t *testing.T) {
	store := seededCart(t)

	registry := coupon.NewMemoryRegistry()
	registry.Put(coupon.Descriptor{
		Code:         "FLASH",
		DiscountType: coupon.DiscountPercentage,
		Magnitude:    dec("15"),
		Active:       true,
	})
	hooked := &hookedRegistry{inner: registry}

	gateway := &failingGateway{inner: backend.NewMemory()}
	m, err := checkout.NewMachine(context.Background(), store, coupon.NewResolver(hooked), gateway, nil)
	require.NoError(t, err)

	_, err = m.ApplyCoupon(context.Background(), "FLASH")
	require.NoError(t, err)
	advanceToReview(t, m)

	// The session steps backward while Confirm is re-checking the coupon.
	hooked.onLookup = func() {
		_, _ = m.Back(context.Background())
	}

	_, err = m.Confirm(context.Background())
	require.ErrorIs(t, err, checkout.ErrNotAtReview)

	assert.Empty(t, gateway.requests, "nothing may reach the gateway off the review step")
	assert.Equal(t, checkout.StepPayment, m.Step())
}

func TestManagerSessionLifecycle(t *testing.T) {
	registry := coupon.NewMemoryRegistry()
	mgr := checkout.NewManager(coupon.NewResolver(registry), backend.NewMemory(), nil)

	m, err := mgr.Begin(context.Background(), seededCart(t))
	require.NoError(t, err)

	got, err := mgr.Get(m.Session().ID)
	require.NoError(t, err)
	assert.Same(t, m, got)

	mgr.End(context.Background(), m.Session().ID)
	_, err = mgr.Get(m.Session().ID)
	require.ErrorIs(t, err, checkout.ErrSessionNotFound)
}
