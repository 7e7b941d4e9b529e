package httpx

import (
	"errors"
	"net/http"

	"github.com/kitarena/kitarena/internal/shared"
)

// Stable error codes shared by every endpoint.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeInternal        = "INTERNAL"
	CodeProductMismatch = "PRODUCT_MISMATCH"
	CodeOutOfStock      = "OUT_OF_STOCK"
)

// RespondError maps taxonomy errors to HTTP responses. Handlers map
// domain-specific codes (PRODUCT_MISMATCH, OUT_OF_STOCK) before falling
// back here.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Error(w, http.StatusBadRequest, CodeBadRequest, err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, shared.ErrConflict):
		Error(w, http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
	case errors.Is(err, shared.ErrForbidden):
		Error(w, http.StatusForbidden, CodeForbidden, "insufficient role")
	default:
		Error(w, http.StatusInternalServerError, CodeInternal, "")
	}
}
