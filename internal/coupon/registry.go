package coupon

import (
	"context"
	"sync"
)

// Registry is the port for coupon lookup. The production implementation talks
// to the merchant backend; MemoryRegistry backs dev mode and tests.
type Registry interface {
	// FindByCode looks up a coupon by its normalized code.
	// Returns ErrNotFound when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Descriptor, error)
}

// MemoryRegistry is a mutex-guarded in-memory Registry for local development
// and tests.
type MemoryRegistry struct {
	mu      sync.RWMutex
	coupons map[string]Descriptor
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{coupons: make(map[string]Descriptor)}
}

// Put stores a coupon under its normalized code, replacing any previous entry.
func (r *MemoryRegistry) Put(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d.Code = NormalizeCode(d.Code)
	r.coupons[d.Code] = d
}

func (r *MemoryRegistry) FindByCode(ctx context.Context, code string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.coupons[NormalizeCode(code)]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

// MarkUsed increments the usage counter for a coupon. The checkout engine
// never calls this during validation; the order backend does it once per
// confirmed order.
func (r *MemoryRegistry) MarkUsed(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.coupons[NormalizeCode(code)]; ok {
		d.UsedCount++
		r.coupons[d.Code] = d
	}
}
