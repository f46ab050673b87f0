package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
	"github.com/lorrc/support-chat-gateway/internal/infrastructure/logging"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// IdentityKey is the key used to store the caller's identity in the request context.
const IdentityKey contextKey = "identity"

// Authenticate validates the bearer token from the Authorization header and
// stores the resulting identity on the request context.
func Authenticate(verifier ports.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "Authorization header is required")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeUnauthorized(w, "Authorization header format must be Bearer {token}")
				return
			}

			identity, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			// Add the identity to the context for downstream handlers to use.
			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			ctx = logging.WithUserID(ctx, identity.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff rejects callers whose identity is not staff. It must run after
// Authenticate.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := GetIdentity(r.Context())
		if !ok {
			writeUnauthorized(w, "Authentication required")
			return
		}
		if !identity.IsStaff() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"You do not have permission to perform this action","code":"FORBIDDEN"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetIdentity retrieves the authenticated identity from the context.
func GetIdentity(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(domain.Identity)
	return identity, ok
}

// WithIdentity stores an identity on the context. Used by tests and by
// handlers that authenticate outside this middleware.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"UNAUTHORIZED"}`))
}
