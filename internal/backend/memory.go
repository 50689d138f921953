package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-checkout/internal/cart"
	"github.com/jcmexdev/storefront-checkout/internal/order"
)

// Memory is an in-memory stand-in for the merchant backend, used in dev mode
// and tests so the service runs without a real backend. Do NOT use in
// production.
//
// It implements cart.SyncClient and order.Gateway; the coupon side is served
// by coupon.MemoryRegistry.
type Memory struct {
	mu     sync.Mutex
	items  map[uuid.UUID]cart.LineItem
	orders map[string]*order.Order // keyed by idempotency key
	seq    int
}

func NewMemory() *Memory {
	return &Memory{
		items:  make(map[uuid.UUID]cart.LineItem),
		orders: make(map[string]*order.Order),
	}
}

var (
	_ cart.SyncClient = (*Memory)(nil)
	_ order.Gateway   = (*Memory)(nil)
)

// SeedItem preloads a cart line, for demos and tests.
func (m *Memory) SeedItem(item cart.LineItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	m.items[item.ID] = item
}

func (m *Memory) FetchCart(ctx context.Context) ([]cart.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]cart.LineItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	return out, nil
}

func (m *Memory) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (cart.LineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[itemID]
	if !ok {
		// The storefront may hold items the backend never saw (created
		// locally); adopt them instead of failing the sync.
		it = cart.LineItem{ID: itemID, Quantity: quantity}
	}
	it.Quantity = quantity
	m.items[itemID] = it
	return it, nil
}

func (m *Memory) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, itemID)
	return nil
}

// Submit creates an order, deduplicating by idempotency key: a retry with
// the same key returns the already-created order instead of a duplicate.
func (m *Memory) Submit(ctx context.Context, req order.Request) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.orders[req.IdempotencyKey]; ok {
		slog.InfoContext(ctx, "duplicate order submission deduplicated",
			"idempotency_key", req.IdempotencyKey, "order_id", existing.ID)
		return existing, nil
	}

	m.seq++
	ord := &order.Order{
		ID:        uuid.NewString(),
		Number:    fmt.Sprintf("SO-%06d", m.seq),
		Total:     req.Summary.Total,
		CreatedAt: time.Now().UTC(),
	}
	m.orders[req.IdempotencyKey] = ord
	return ord, nil
}
