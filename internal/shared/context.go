package shared

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

type contextKey string

const ownerIDKey contextKey = "owner_id"

// OwnerHeader carries the authenticated owner identity. Authentication itself
// happens upstream; this service only scopes every read and write by it.
const OwnerHeader = "X-Owner-ID"

// ContextWithOwner returns a context carrying the owner identity.
func ContextWithOwner(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// OwnerFromContext extracts the owner identity from the context.
func OwnerFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ownerIDKey).(uuid.UUID)
	return id, ok
}

// OwnerMiddleware rejects requests without a parseable owner identity and
// installs the identity into the request context.
func OwnerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(OwnerHeader)
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid owner identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithOwner(r.Context(), ownerID)))
	})
}
