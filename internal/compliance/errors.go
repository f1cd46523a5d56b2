package compliance

import (
	"errors"
	"net/http"
)

// Domain errors for compliance operations.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrInconsistentState = errors.New("inconsistent state")
	ErrValidation        = errors.New("validation failed")
	ErrBusy              = errors.New("transaction busy")
	ErrInvalidID         = errors.New("invalid transaction id")
)

// MapHTTPStatus maps compliance domain errors to HTTP status codes.
// ErrInconsistentState falls through to 500: it signals a defect, not bad input.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidID):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
