package api

import (
	"net/http"

	"github.com/go-chi/jwtauth"
)

const adminRole = "admin"

// NewJWTAuth returns an HS256 token authority for the given secret
func NewJWTAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// RequireAdmin verifies the bearer token and rejects callers whose "role"
// claim is not admin. A nil authority disables the check.
func RequireAdmin(ta *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if ta == nil {
			return next
		}
		check := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				writeMessage(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			if role, _ := claims["role"].(string); role != adminRole {
				writeMessage(w, r, http.StatusForbidden, "admin role required")
				return
			}
			next.ServeHTTP(w, r)
		})
		return jwtauth.Verifier(ta)(jwtauth.Authenticator(check))
	}
}
