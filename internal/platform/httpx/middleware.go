package httpx

import (
	"net/http"

	"github.com/odyssey-erp/stockflow/internal/shared"
)

// ActorMiddleware resolves the acting user from identity headers and stores
// it in the request context. Requests without an identity are rejected.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := shared.ActorFromRequest(r)
		if err != nil {
			RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// RequireAdmin lets only administrators through.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.ActorFromContext(r.Context())
		if !ok {
			RespondError(w, shared.ErrUnauthorized)
			return
		}
		if !actor.IsAdmin() {
			RespondError(w, shared.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
