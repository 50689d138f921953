// Package requestmeta carries per-request identifiers (request id,
// idempotency key) through context so handlers and outbound collaborator
// calls can propagate them as headers.
package requestmeta

import "context"

// contextKey is an unexported type for context keys in this package.
// Using a custom type prevents collisions with keys from other packages
// that might use the same underlying string value.
type contextKey string

const (
	HeaderRequestID      = "x-request-id"
	HeaderIdempotencyKey = "x-idempotency-key"

	ctxKeyRequestID      contextKey = HeaderRequestID
	ctxKeyIdempotencyKey contextKey = HeaderIdempotencyKey
)

// WithRequestID stores the request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// WithIdempotencyKey stores the idempotency key in ctx.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKeyIdempotencyKey, key)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// IdempotencyKey returns the idempotency key stored in ctx, or "".
func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(ctxKeyIdempotencyKey).(string)
	return key
}
