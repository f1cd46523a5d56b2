package transactions

import (
	"errors"
	"net/http"
)

// Domain errors for transaction operations.
var (
	ErrNotFound       = errors.New("transaction not found")
	ErrDuplicate      = errors.New("transaction reference already exists")
	ErrInvalidID      = errors.New("invalid transaction id")
	ErrInvalidCommand = errors.New("invalid transaction")
	ErrInvalidStatus  = errors.New("invalid status")
)

// MapHTTPStatus maps transaction domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidCommand),
		errors.Is(err, ErrInvalidStatus):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
