package httpx

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-checkout/internal/cart"
	"github.com/jcmexdev/storefront-checkout/internal/pkg/cache"
	"github.com/jcmexdev/storefront-checkout/internal/pricing"
)

// CartHub hands out one cart store per storefront session. Carts are kept in
// memory for the life of the process and, when a cache is configured, parked
// as TTL-bounded snapshots so a restarted instance can pick a session back up.
type CartHub struct {
	policy  pricing.ShippingPolicy
	taxRate decimal.Decimal
	client  cart.SyncClient

	// cache may be nil; snapshot persistence is then disabled.
	cache cache.Cache
	ttl   time.Duration

	mu    sync.Mutex
	carts map[string]*cart.Store
}

func NewCartHub(policy pricing.ShippingPolicy, taxRate decimal.Decimal, client cart.SyncClient, c cache.Cache, ttl time.Duration) *CartHub {
	return &CartHub{
		policy:  policy,
		taxRate: taxRate,
		client:  client,
		cache:   c,
		ttl:     ttl,
		carts:   make(map[string]*cart.Store),
	}
}

// ForSession returns the session's cart, creating it on first use. A new
// cart is restored from the snapshot cache when possible, otherwise loaded
// from the backend cart resource; both are best effort and an empty cart is
// the fallback.
func (h *CartHub) ForSession(ctx context.Context, sessionID string) *cart.Store {
	h.mu.Lock()
	if s, ok := h.carts[sessionID]; ok {
		h.mu.Unlock()
		return s
	}
	s := cart.NewStore(h.policy, h.taxRate, h.client)
	h.carts[sessionID] = s
	h.mu.Unlock()

	if h.restore(ctx, sessionID, s) {
		return s
	}
	if err := s.Load(ctx); err != nil {
		slog.WarnContext(ctx, "initial cart load failed, starting empty",
			"session_id", sessionID, "error", err)
	}
	return s
}

// Persist parks the session's cart in the snapshot cache.
func (h *CartHub) Persist(ctx context.Context, sessionID string) {
	if h.cache == nil {
		return
	}

	h.mu.Lock()
	s, ok := h.carts[sessionID]
	h.mu.Unlock()
	if !ok {
		return
	}

	raw, err := cart.EncodeSnapshot(s.Items())
	if err != nil {
		slog.WarnContext(ctx, "cart snapshot encode failed", "session_id", sessionID, "error", err)
		return
	}
	key := h.cache.GenerateKey("cart", sessionID)
	if err := h.cache.Set(ctx, key, raw, h.ttl); err != nil {
		slog.WarnContext(ctx, "cart snapshot write failed", "session_id", sessionID, "error", err)
	}
}

func (h *CartHub) restore(ctx context.Context, sessionID string, s *cart.Store) bool {
	if h.cache == nil {
		return false
	}

	key := h.cache.GenerateKey("cart", sessionID)
	raw, err := h.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "cart snapshot read failed", "session_id", sessionID, "error", err)
		return false
	}
	if raw == "" {
		return false
	}

	items, err := cart.DecodeSnapshot([]byte(raw))
	if err != nil {
		slog.WarnContext(ctx, "cart snapshot corrupt, ignoring", "session_id", sessionID, "error", err)
		return false
	}
	s.ReplaceItems(items)
	return true
}
