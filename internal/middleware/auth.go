package middleware

import (
	"net/http"

	"github.com/vectorlabs/vector/internal/handler"
	"github.com/vectorlabs/vector/internal/store"
)

// authIDHeader carries the identity provider's stable user identifier. The
// identity proxy in front of this service verifies the session and sets it;
// this service only maps it to a local row.
const authIDHeader = "X-Auth-Id"

// RequireIdentity resolves the verified identity header to a local user and
// stores the user ID in the request context. No header means no identity;
// a header with no matching row means the sign-in sync has not run.
func RequireIdentity(users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authID := r.Header.Get(authIDHeader)
			if authID == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := users.GetByAuthID(authID)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if user == nil {
				http.Error(w, "user not found", http.StatusNotFound)
				return
			}

			ctx := handler.WithUserID(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
