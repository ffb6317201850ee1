package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

type contextKey struct{}

var identityKey contextKey

// IdentityFrom returns the snapshot the middleware resolved for this request.
func IdentityFrom(ctx context.Context) (Snapshot, bool) {
	snapshot, ok := ctx.Value(identityKey).(Snapshot)
	return snapshot, ok
}

// Middleware authenticates the bearer token through the resolver and puts
// the identity snapshot on the request context.
func Middleware(resolver *Resolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "invalid authorization format")
			return
		}

		snapshot, err := resolver.Resolve(r.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			switch {
			case errors.Is(err, ErrStaleCredential):
				writeError(w, http.StatusUnauthorized, "token is no longer valid, please log in again")
			case errors.Is(err, ErrInvalidCredential), errors.Is(err, ErrUnknownIdentity):
				// Unknown identities get the generic message on purpose.
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
			default:
				sentry.CaptureException(err)
				writeError(w, http.StatusInternalServerError, "failed to authenticate request")
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, snapshot)))
	})
}

// RequireRole gates a handler on the resolved identity's role. It must run
// inside Middleware.
func RequireRole(role Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snapshot, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}
		if snapshot.Role != role {
			writeError(w, http.StatusForbidden, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
