package cart_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/jcmexdev/storefront-checkout/internal/cart"
	"github.com/jcmexdev/storefront-checkout/internal/pricing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func money(s string) pricing.Money {
	return pricing.Money{Amount: dec(s), Currency: currency.MustParseISO("EGP")}
}

func testPolicy() (pricing.ShippingPolicy, decimal.Decimal) {
	threshold := dec("500")
	return pricing.ShippingPolicy{
		BaseCost:              dec("50"),
		FreeShippingThreshold: &threshold,
	}, dec("0.14")
}

func newLocalStore() *cart.Store {
	policy, taxRate := testPolicy()
	return cart.NewStore(policy, taxRate, nil)
}

func lineItem(unitPrice string, quantity, ceiling int) cart.LineItem {
	return cart.LineItem{
		ID:           uuid.New(),
		ProductID:    gofakeit.UUID(),
		ProductName:  gofakeit.ProductName(),
		UnitPrice:    money(unitPrice),
		Quantity:     quantity,
		StockCeiling: ceiling,
	}
}

// fakeSyncClient implements cart.SyncClient with per-method hooks. Nil hooks
// echo the request back, mimicking a compliant backend.
type fakeSyncClient struct {
	fetchFn  func(ctx context.Context) ([]cart.LineItem, error)
	updateFn func(ctx context.Context, itemID uuid.UUID, quantity int) (cart.LineItem, error)
	deleteFn func(ctx context.Context, itemID uuid.UUID) error
}

func (c *fakeSyncClient) FetchCart(ctx context.Context) ([]cart.LineItem, error) {
	if c.fetchFn != nil {
		return c.fetchFn(ctx)
	}
	return nil, nil
}

func (c *fakeSyncClient) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (cart.LineItem, error) {
	if c.updateFn != nil {
		return c.updateFn(ctx, itemID, quantity)
	}
	return cart.LineItem{ID: itemID, Quantity: quantity}, nil
}

func (c *fakeSyncClient) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	if c.deleteFn != nil {
		return c.deleteFn(ctx, itemID)
	}
	return nil
}

func TestAddItemMergesByProduct(t *testing.T) {
	store := newLocalStore()

	first := lineItem("100", 2, 10)
	store.AddItem(first)

	// Same product, different line id: quantities merge into the existing line.
	second := first
	second.ID = uuid.New()
	second.Quantity = 3
	merged, clamped := store.AddItem(second)

	require.Len(t, store.Items(), 1)
	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, 5, merged.Quantity)
	assert.False(t, clamped)
}

func TestAddItemClampsToStockCeiling(t *testing.T) {
	store := newLocalStore()

	added, clamped := store.AddItem(lineItem("100", 1000, 5))
	assert.Equal(t, 5, added.Quantity)
	assert.True(t, clamped)

	// Merging past the ceiling clamps as well.
	again := added
	again.Quantity = 1000
	merged, clamped := store.AddItem(again)
	assert.Equal(t, 5, merged.Quantity)
	assert.True(t, clamped)
}

func TestAddItemMergeOnExactCeilingIsNotClamped(t *testing.T) {
	store := newLocalStore()

	first := lineItem("100", 2, 5)
	store.AddItem(first)

	// 2 + 3 lands exactly on the ceiling without any reduction.
	second := first
	second.ID = uuid.New()
	second.Quantity = 3
	merged, clamped := store.AddItem(second)

	assert.Equal(t, 5, merged.Quantity)
	assert.False(t, clamped, "reaching the ceiling is not the same as being clamped to it")
}

func TestUpdateQuantityClampsAndReports(t *testing.T) {
	store := newLocalStore()
	item, _ := store.AddItem(lineItem("100", 1, 5))

	res, err := store.UpdateQuantity(context.Background(), item.ID, 1000, false)
	require.NoError(t, err)

	assert.True(t, res.Clamped)
	assert.Equal(t, 5, res.Item.Quantity)

	res, err = store.UpdateQuantity(context.Background(), item.ID, 3, false)
	require.NoError(t, err)
	assert.False(t, res.Clamped)
	assert.Equal(t, 3, res.Item.Quantity)
}

func TestUpdateQuantityUnknownItem(t *testing.T) {
	store := newLocalStore()
	store.AddItem(lineItem("100", 1, 5))

	_, err := store.UpdateQuantity(context.Background(), uuid.New(), 2, false)
	require.ErrorIs(t, err, cart.ErrItemNotFound)
}

func TestUpdateQuantityZeroRequiresConfirmation(t *testing.T) {
	var deleted []uuid.UUID
	client := &fakeSyncClient{
		deleteFn: func(ctx context.Context, itemID uuid.UUID) error {
			deleted = append(deleted, itemID)
			return nil
		},
	}
	policy, taxRate := testPolicy()
	store := cart.NewStore(policy, taxRate, client)
	item, _ := store.AddItem(lineItem("100", 2, 5))

	_, err := store.UpdateQuantity(context.Background(), item.ID, 0, false)
	require.ErrorIs(t, err, cart.ErrRemovalNotConfirmed)
	require.Len(t, store.Items(), 1, "unconfirmed zero must not remove the line")

	res, err := store.UpdateQuantity(context.Background(), item.ID, 0, true)
	require.NoError(t, err)
	assert.True(t, res.Removed)
	assert.Empty(t, store.Items())
	assert.Equal(t, []uuid.UUID{item.ID}, deleted)
}

func TestUpdateQuantitySyncFailureKeepsLocalState(t *testing.T) {
	client := &fakeSyncClient{
		updateFn: func(ctx context.Context, itemID uuid.UUID, quantity int) (cart.LineItem, error) {
			return cart.LineItem{}, errors.New("backend unavailable")
		},
	}
	policy, taxRate := testPolicy()
	store := cart.NewStore(policy, taxRate, client)
	item, _ := store.AddItem(lineItem("100", 1, 5))

	res, err := store.UpdateQuantity(context.Background(), item.ID, 4, false)

	var syncErr *cart.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, "update", syncErr.Op)

	// The local cart keeps the buyer's choice; only the push failed.
	assert.Equal(t, 4, res.Item.Quantity)
	got, ok := store.Get(item.ID)
	require.True(t, ok)
	assert.Equal(t, 4, got.Quantity)
}

func TestUpdateQuantityDropsStaleResponse(t *testing.T) {
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	client := &fakeSyncClient{}
	client.updateFn = func(ctx context.Context, itemID uuid.UUID, quantity int) (cart.LineItem, error) {
		if calls.Add(1) == 1 {
			close(firstStarted)
			<-release
			// Stale response with a ceiling that would clamp the newer
			// quantity if it were applied.
			return cart.LineItem{ID: itemID, Quantity: quantity, StockCeiling: 1}, nil
		}
		return cart.LineItem{ID: itemID, Quantity: quantity, StockCeiling: 10}, nil
	}

	policy, taxRate := testPolicy()
	store := cart.NewStore(policy, taxRate, client)
	item, _ := store.AddItem(lineItem("100", 1, 10))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = store.UpdateQuantity(context.Background(), item.ID, 2, false)
	}()

	<-firstStarted

	// A newer update lands while the first PATCH is still in flight.
	res, err := store.UpdateQuantity(context.Background(), item.ID, 3, false)
	require.NoError(t, err)
	require.Equal(t, 3, res.Item.Quantity)

	close(release)
	<-done

	got, ok := store.Get(item.ID)
	require.True(t, ok)
	assert.Equal(t, 3, got.Quantity, "stale response must not win")
	assert.Equal(t, 10, got.StockCeiling)
}

func TestBlockingItems(t *testing.T) {
	store := newLocalStore()
	store.AddItem(lineItem("100", 1, 5))
	blocked, _ := store.AddItem(lineItem("40", 1, 0))

	blocking := store.BlockingItems()
	require.Len(t, blocking, 1)
	assert.Equal(t, blocked.ID, blocking[0].ID)
	assert.True(t, blocking[0].OutOfStock())
}

func TestSummaryTracksMutations(t *testing.T) {
	store := newLocalStore()

	assert.True(t, store.Summary().Equal(pricing.Summary{}))

	item, _ := store.AddItem(lineItem("100", 2, 10))
	withItem := store.Summary()
	assert.True(t, withItem.Subtotal.Equal(dec("200")), "subtotal %s", withItem.Subtotal)
	assert.Equal(t, 2, withItem.ItemsCount)

	// Repeated reads return the same breakdown.
	assert.True(t, withItem.Equal(store.Summary()))

	_, err := store.UpdateQuantity(context.Background(), item.ID, 3, false)
	require.NoError(t, err)
	assert.True(t, store.Summary().Subtotal.Equal(dec("300")))
}

func TestClearRemovesEverything(t *testing.T) {
	var deleted []uuid.UUID
	client := &fakeSyncClient{
		deleteFn: func(ctx context.Context, itemID uuid.UUID) error {
			deleted = append(deleted, itemID)
			return nil
		},
	}
	policy, taxRate := testPolicy()
	store := cart.NewStore(policy, taxRate, client)

	a, _ := store.AddItem(lineItem("100", 1, 5))
	b, _ := store.AddItem(lineItem("60", 2, 5))

	require.NoError(t, store.Clear(context.Background()))
	assert.True(t, store.IsEmpty())
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, deleted)
}

func TestLoadReplacesLocalItems(t *testing.T) {
	remote := []cart.LineItem{lineItem("75", 2, 8)}
	client := &fakeSyncClient{
		fetchFn: func(ctx context.Context) ([]cart.LineItem, error) {
			return remote, nil
		},
	}
	policy, taxRate := testPolicy()
	store := cart.NewStore(policy, taxRate, client)
	store.AddItem(lineItem("999", 1, 1))

	require.NoError(t, store.Load(context.Background()))

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, remote[0].ID, items[0].ID)
}

func TestSnapshotRoundTrip(t *testing.T) {
	sale := money("79.99")
	items := []cart.LineItem{
		lineItem("100", 2, 10),
		{
			ID:            uuid.New(),
			ProductID:     gofakeit.UUID(),
			ProductName:   gofakeit.ProductName(),
			UnitPrice:     money("99.99"),
			SaleUnitPrice: &sale,
			Quantity:      1,
			StockCeiling:  3,
		},
	}

	raw, err := cart.EncodeSnapshot(items)
	require.NoError(t, err)

	restored, err := cart.DecodeSnapshot(raw)
	require.NoError(t, err)
	require.Len(t, restored, 2)

	for i := range items {
		assert.Equal(t, items[i].ID, restored[i].ID)
		assert.Equal(t, items[i].ProductID, restored[i].ProductID)
		assert.Equal(t, items[i].Quantity, restored[i].Quantity)
		assert.Equal(t, items[i].StockCeiling, restored[i].StockCeiling)
		assert.True(t, items[i].UnitPrice.Amount.Equal(restored[i].UnitPrice.Amount))
		assert.Equal(t, items[i].UnitPrice.Currency.String(), restored[i].UnitPrice.Currency.String())
	}
	require.NotNil(t, restored[1].SaleUnitPrice)
	assert.True(t, sale.Amount.Equal(restored[1].SaleUnitPrice.Amount))
}
