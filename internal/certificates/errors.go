package certificates

import (
	"errors"
	"net/http"
)

// Domain errors for certificate operations.
var (
	ErrNotFound      = errors.New("certificate not found")
	ErrDuplicate     = errors.New("certificate number already exists")
	ErrInvalidID     = errors.New("invalid transaction id")
	ErrInvalidFilter = errors.New("invalid certificate type")
)

// MapHTTPStatus maps certificate domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidFilter):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
