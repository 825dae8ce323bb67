package httpx

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// parseBearer returns the token from an "Authorization: Bearer <token>" header,
// or "" when the header is missing or malformed.
func parseBearer(header string) string {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

// BearerAuth requires every request to carry the given static bearer token.
func BearerAuth(token string) Middleware {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := parseBearer(r.Header.Get("Authorization"))
			if got == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="filelinks"`)
				WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
				return
			}
			if len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
