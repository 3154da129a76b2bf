package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the billing domain layer.
var (
	// ErrNotFound covers absent records and records owned by another user;
	// cross-owner access must not be distinguishable from absence.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation covers malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrStateConflict covers operations illegal in the document's current
	// status: editing a closed invoice, double-converting a quotation,
	// paying a cancelled invoice, overpaying.
	ErrStateConflict = errors.New("state conflict")
	// ErrDuplicate covers unique constraint violations.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrUnauthorized covers requests without an owner identity.
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrStateConflict):
		Problem(w, http.StatusConflict, "State Conflict", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
