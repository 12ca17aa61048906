// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/tessera-pm/tessera/internal/shared"
)

// Sentinel errors for the HTTP layer.
var (
	// ErrValidation indicates a malformed or invalid request payload.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized indicates a request without an authenticated actor.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates an authenticated actor lacking the required permission.
	ErrForbidden = errors.New("forbidden")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicatePermission), errors.Is(err, shared.ErrDuplicateRole), errors.Is(err, shared.ErrRoleInUse):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrUnknownPermission),
		errors.Is(err, shared.ErrImmutableScope),
		errors.Is(err, shared.ErrRoleScopeMismatch),
		errors.Is(err, shared.ErrTenantMismatch):
		Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, shared.ErrUnauthorizedBypass), errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
