package cart

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-checkout/internal/coupon"
	"github.com/jcmexdev/storefront-checkout/internal/pricing"
)

// SyncClient is the port to the backend cart resource. A nil client leaves
// the store purely local, which is what unit tests use.
type SyncClient interface {
	FetchCart(ctx context.Context) ([]LineItem, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) (LineItem, error)
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
}

// UpdateResult reports what a quantity update actually did.
type UpdateResult struct {
	Item LineItem
	// Clamped is set when the requested quantity exceeded the stock ceiling
	// and was reduced; the caller must tell the user.
	Clamped bool
	// Removed is set when a confirmed zero-quantity update deleted the line.
	Removed bool
}

// Store holds the session's cart. Local state is the source of truth for
// display; the backend cart resource is synchronized through the SyncClient
// and its responses are reconciled, never applied blindly.
//
// Store has a single writer in practice (one active user session), but
// methods are still mutex-guarded because HTTP handlers may overlap.
type Store struct {
	mu      sync.Mutex
	items   []LineItem
	summary *pricing.Summary

	policy  pricing.ShippingPolicy
	taxRate decimal.Decimal

	// seq tracks the latest quantity-update request issued per item so a
	// slow response cannot overwrite the effect of a newer request.
	seq map[uuid.UUID]uint64

	client SyncClient
}

func NewStore(policy pricing.ShippingPolicy, taxRate decimal.Decimal, client SyncClient) *Store {
	return &Store{
		policy:  policy,
		taxRate: taxRate,
		seq:     make(map[uuid.UUID]uint64),
		client:  client,
	}
}

// Load replaces local state with the backend cart. Meant for session start,
// before any local edits exist.
func (s *Store) Load(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	items, err := s.client.FetchCart(ctx)
	if err != nil {
		return &SyncError{Op: "fetch", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.invalidate()
	return nil
}

// AddItem puts a product into the cart. If the product is already present the
// quantities merge into the existing line; product identity, not line-item
// identity, is the merge key. The stored quantity is clamped to the stock
// ceiling either way, and the second return value reports whether clamping
// actually reduced it.
func (s *Store) AddItem(item LineItem) (LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx := range s.items {
		if s.items[idx].ProductID == item.ProductID {
			merged := s.items[idx].Quantity + item.Quantity
			s.items[idx].Quantity = clampQuantity(merged, s.items[idx].StockCeiling)
			s.invalidate()
			return s.items[idx], s.items[idx].Quantity != merged
		}
	}

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	requested := item.Quantity
	item.Quantity = clampQuantity(item.Quantity, item.StockCeiling)
	s.items = append(s.items, item)
	s.invalidate()
	return item, item.Quantity != requested
}

// UpdateQuantity changes a line's quantity, clamping into [1, StockCeiling].
//
// A requested quantity of zero or less is an implicit removal and is refused
// with ErrRemovalNotConfirmed unless confirmRemoval is set. Requests above
// the ceiling are clamped, not rejected, and the result says so.
//
// The local mutation is applied first, then pushed to the backend. If a newer
// update for the same item was issued while the push was in flight, the stale
// response is ignored so it cannot roll the quantity back.
func (s *Store) UpdateQuantity(ctx context.Context, itemID uuid.UUID, quantity int, confirmRemoval bool) (UpdateResult, error) {
	s.mu.Lock()

	idx := s.indexOf(itemID)
	if idx < 0 {
		s.mu.Unlock()
		return UpdateResult{}, ErrItemNotFound
	}

	if quantity <= 0 {
		if !confirmRemoval {
			s.mu.Unlock()
			return UpdateResult{}, ErrRemovalNotConfirmed
		}
		removed := s.items[idx]
		s.removeAt(idx)
		s.mu.Unlock()

		if err := s.deleteRemote(ctx, itemID); err != nil {
			return UpdateResult{Item: removed, Removed: true}, err
		}
		return UpdateResult{Item: removed, Removed: true}, nil
	}

	clamped := clampQuantity(quantity, s.items[idx].StockCeiling)
	s.items[idx].Quantity = clamped
	s.invalidate()
	result := UpdateResult{
		Item:    s.items[idx],
		Clamped: clamped != quantity,
	}

	seq := s.seq[itemID] + 1
	s.seq[itemID] = seq
	s.mu.Unlock()

	if s.client == nil {
		return result, nil
	}

	remote, err := s.client.UpdateItemQuantity(ctx, itemID, clamped)
	if err != nil {
		// Local state stays authoritative; the caller surfaces the failure.
		return result, &SyncError{Op: "update", ItemID: itemID, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A newer request for this item superseded us while the PATCH was in
	// flight: drop this response.
	if s.seq[itemID] != seq {
		return result, nil
	}

	if idx := s.indexOf(itemID); idx >= 0 {
		s.reconcileAt(idx, remote)
		result.Item = s.items[idx]
	}
	return result, nil
}

// RemoveItem deletes a line locally and from the backend.
func (s *Store) RemoveItem(ctx context.Context, itemID uuid.UUID) error {
	s.mu.Lock()
	idx := s.indexOf(itemID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrItemNotFound
	}
	s.removeAt(idx)
	s.mu.Unlock()

	return s.deleteRemote(ctx, itemID)
}

// Clear empties the cart. Remote deletes are best effort; the local cart is
// emptied regardless.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	cleared := s.items
	s.items = nil
	s.seq = make(map[uuid.UUID]uint64)
	s.invalidate()
	s.mu.Unlock()

	var firstErr error
	for _, it := range cleared {
		if err := s.deleteRemote(ctx, it.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns a single line by id.
func (s *Store) Get(itemID uuid.UUID) (LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOf(itemID); idx >= 0 {
		return s.items[idx], true
	}
	return LineItem{}, false
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}

// BlockingItems returns the out-of-stock lines that block checkout.
func (s *Store) BlockingItems() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []LineItem
	for _, it := range s.items {
		if it.OutOfStock() {
			out = append(out, it)
		}
	}
	return out
}

// Summary returns the cart's price breakdown without a coupon. The value is
// memoized and recomputed only after a mutation.
func (s *Store) Summary() pricing.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.summary == nil {
		sum := pricing.ComputeSummary(PricingItems(s.items), nil, s.policy, s.taxRate)
		s.summary = &sum
	}
	return *s.summary
}

// SummaryWith prices the cart with a coupon applied. Not memoized: coupon
// state belongs to the checkout session, not the cart.
func (s *Store) SummaryWith(c *coupon.Descriptor) pricing.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.ComputeSummary(PricingItems(s.items), c, s.policy, s.taxRate)
}

// invalidate drops the memoized summary. Callers hold s.mu.
func (s *Store) invalidate() {
	s.summary = nil
}

func (s *Store) indexOf(itemID uuid.UUID) int {
	for idx := range s.items {
		if s.items[idx].ID == itemID {
			return idx
		}
	}
	return -1
}

// removeAt deletes the line and bumps its sequence so any in-flight update
// response for it is discarded. Callers hold s.mu.
func (s *Store) removeAt(idx int) {
	itemID := s.items[idx].ID
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.seq[itemID]++
	s.invalidate()
}

// reconcileAt merges a backend response into the local line: stock ceiling
// and prices are adopted from the backend, the locally chosen quantity is
// kept and re-clamped against the fresh ceiling.
func (s *Store) reconcileAt(idx int, remote LineItem) {
	local := &s.items[idx]
	local.StockCeiling = remote.StockCeiling
	local.UnitPrice = remote.UnitPrice
	local.SaleUnitPrice = remote.SaleUnitPrice
	local.Quantity = clampQuantity(local.Quantity, remote.StockCeiling)
	s.invalidate()
}

func (s *Store) deleteRemote(ctx context.Context, itemID uuid.UUID) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.DeleteItem(ctx, itemID); err != nil {
		return &SyncError{Op: "delete", ItemID: itemID, Err: err}
	}
	return nil
}
