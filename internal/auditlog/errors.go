package auditlog

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound        = errors.New("log entry not found")
	ErrInvalidSeverity = errors.New("severity must be INFO, WARNING, ERROR, or CRITICAL")
)

// MapHTTPStatus maps audit log errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidSeverity) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
