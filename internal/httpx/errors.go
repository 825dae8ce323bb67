package httpx

import (
	"net/http"

	"github.com/sundayezeilo/filelinks/internal/errx"
)

// KindStatus returns the HTTP status and JSON error code the admin API
// answers with for an error of the given kind.
func KindStatus(kind errx.Kind) (status int, code string) {
	switch kind {
	case errx.NotFound:
		return http.StatusNotFound, "not_found"
	case errx.Invalid:
		return http.StatusBadRequest, "invalid_input"
	case errx.NotEnabled:
		return http.StatusServiceUnavailable, "not_enabled"
	case errx.Unavailable:
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
