package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-checkout/internal/cart"
	"github.com/jcmexdev/storefront-checkout/internal/checkout/journal"
	"github.com/jcmexdev/storefront-checkout/internal/coupon"
	"github.com/jcmexdev/storefront-checkout/internal/order"
)

// ErrSessionNotFound is returned for unknown or already-ended session ids.
var ErrSessionNotFound = errors.New("checkout session not found")

// Manager tracks live checkout sessions by id.
type Manager struct {
	resolver *coupon.Resolver
	gateway  order.Gateway
	journal  journal.Repository

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Machine
}

func NewManager(resolver *coupon.Resolver, gateway order.Gateway, jr journal.Repository) *Manager {
	return &Manager{
		resolver: resolver,
		gateway:  gateway,
		journal:  jr,
		sessions: make(map[uuid.UUID]*Machine),
	}
}

// Begin starts a checkout over the given cart. Fails on an empty cart.
func (mgr *Manager) Begin(ctx context.Context, c *cart.Store) (*Machine, error) {
	m, err := NewMachine(ctx, c, mgr.resolver, mgr.gateway, mgr.journal)
	if err != nil {
		return nil, err
	}

	mgr.mu.Lock()
	mgr.sessions[m.Session().ID] = m
	mgr.mu.Unlock()
	return m, nil
}

// Get returns the machine for a live session.
func (mgr *Manager) Get(id uuid.UUID) (*Machine, error) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	m, ok := mgr.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m, nil
}

// End drops a session. Non-terminal sessions are journaled as abandoned.
func (mgr *Manager) End(ctx context.Context, id uuid.UUID) {
	mgr.mu.Lock()
	m, ok := mgr.sessions[id]
	delete(mgr.sessions, id)
	mgr.mu.Unlock()

	if ok {
		m.Abandon(ctx)
	}
}
