package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/storefront-checkout/internal/pkg/requestmeta"
)

// AttachRequestMetadata copies the chi request id and the caller's
// x-idempotency-key header into the context so logs and outbound backend
// calls can carry them.
func AttachRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestmeta.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		if key := r.Header.Get(requestmeta.HeaderIdempotencyKey); key != "" {
			ctx = requestmeta.WithIdempotencyKey(ctx, key)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
