package auth

import (
	"net/http"

	"github.com/farmapos/farmapos/internal/platform/httpx"
	"github.com/farmapos/farmapos/internal/shared"
)

// RequireAuth resolves the bearer token and stores the session on the request
// context. Requests without a valid session get 401.
func RequireAuth(sessions *shared.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r.Context(), r)
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or expired session")
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
		})
	}
}
