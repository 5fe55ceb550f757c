// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/delifood/delifood/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Authentication and authorization failures never carry a detail, and
// unanticipated errors never expose their message.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", detail(err, shared.ErrNotFound))
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", "")
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", detail(err, shared.ErrValidation))
	case errors.Is(err, shared.ErrUnprocessable):
		Problem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", detail(err, shared.ErrUnprocessable))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// StatusFor returns the status code RespondError would write for err.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, shared.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUnprocessable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// detail strips the sentinel prefix so only the caller-facing message remains.
func detail(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error()
	if msg == prefix {
		return ""
	}
	if idx := strings.LastIndex(msg, prefix+": "); idx >= 0 {
		return msg[idx+len(prefix)+2:]
	}
	return ""
}
