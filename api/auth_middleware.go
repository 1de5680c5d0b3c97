package api

import (
	"context"
	"net/http"

	"objectstore/models"
)

// authContextKey is the unexported context-value key for AuthContext.
type authContextKey struct{}

// AuthContext holds the authenticated client_id for the current request.
type AuthContext struct {
	ClientID string
}

// GetAuthContext retrieves the AuthContext a prior AuthMiddleware call
// attached to r.
func GetAuthContext(r *http.Request) (*AuthContext, bool) {
	ctx, ok := r.Context().Value(authContextKey{}).(*AuthContext)
	return ctx, ok
}

// AuthMiddleware authenticates every request against auth using the
// x-client-id / x-client-token headers, falling back to the client_id /
// client_token query parameters (spec.md §6: "headers ... or equivalent
// query parameters"). On success it attaches an AuthContext to the
// request; on failure it writes a 401 and does not call next.
func AuthMiddleware(auth *Authenticator) MiddlewareFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			clientID := r.Header.Get("x-client-id")
			token := r.Header.Get("x-client-token")
			if clientID == "" {
				clientID = r.URL.Query().Get("client_id")
			}
			if token == "" {
				token = r.URL.Query().Get("client_token")
			}

			if clientID == "" || token == "" || !auth.Verify(clientID, token) {
				RespondError(w, models.ErrUnauthenticated)
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, &AuthContext{ClientID: clientID})
			next(w, r.WithContext(ctx))
		}
	}
}
