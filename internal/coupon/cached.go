package coupon

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jcmexdev/storefront-checkout/internal/pkg/cache"
)

// CachedRegistry decorates a Registry with a short-lived cache so repeated
// validation during cart editing does not hammer the backend registry.
//
// Negative results are not cached: a coupon created in the back office must
// become usable without waiting for a TTL to lapse.
type CachedRegistry struct {
	inner Registry
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedRegistry(inner Registry, c cache.Cache, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{inner: inner, cache: c, ttl: ttl}
}

func (r *CachedRegistry) FindByCode(ctx context.Context, code string) (*Descriptor, error) {
	key := r.cache.GenerateKey("coupon", NormalizeCode(code))

	if raw, err := r.cache.Get(ctx, key); err != nil {
		// Cache trouble is not a lookup failure, fall through to the registry.
		slog.WarnContext(ctx, "coupon cache read failed", "key", key, "error", err)
	} else if raw != "" {
		var d Descriptor
		if err := json.Unmarshal([]byte(raw), &d); err == nil {
			return &d, nil
		}
		slog.WarnContext(ctx, "coupon cache entry corrupt, ignoring", "key", key)
	}

	d, err := r.inner.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(d); err == nil {
		if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
			slog.WarnContext(ctx, "coupon cache write failed", "key", key, "error", err)
		}
	}

	return d, nil
}
