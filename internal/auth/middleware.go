package auth

import (
	"net/http"
	"strings"

	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// Middleware extracts a bearer token from the Authorization header,
// verifies it, and attaches the resulting *schema.User to the request
// context. Requests without a token proceed unauthenticated; it is up to
// downstream handlers (and ultimately internal/jobsetrouter) to reject
// with AuthorizationDenied where access requires an identity.
func Middleware(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := issuer.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			user := &schema.User{
				ID:            claims.UserID,
				Name:          claims.Name,
				IsAdmin:       claims.IsAdmin,
				RestrictedJob: claims.RestrictedJob,
			}
			r = r.WithContext(WithUser(r.Context(), user))
			next.ServeHTTP(w, r)
		})
	}
}
