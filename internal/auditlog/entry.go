// Package auditlog is the append-only structured log of transaction events.
// Entries are written inside the same database transaction as the change they
// describe and are never updated or deleted.
package auditlog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Severity classifies an entry.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Event types written by the service.
const (
	EventTransactionCreated = "TRANSACTION_CREATED"
	EventStatusUpdated      = "STATUS_UPDATED"
	EventViolationResolved  = "VIOLATION_RESOLVED"
)

// Entry is a single immutable log record. TransactionID is nil for system-wide events.
type Entry struct {
	ID            uuid.UUID       `json:"id"`
	TransactionID *uuid.UUID      `json:"transactionId"`
	EventType     string          `json:"eventType"`
	Message       string          `json:"message"`
	Severity      Severity        `json:"severity"`
	Timestamp     time.Time       `json:"timestamp"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// NewEntry creates an entry for a transaction event.
func NewEntry(transactionID uuid.UUID, eventType, message string, severity Severity, at time.Time) Entry {
	return Entry{
		ID:            uuid.New(),
		TransactionID: &transactionID,
		EventType:     eventType,
		Message:       message,
		Severity:      severity,
		Timestamp:     at.UTC(),
	}
}

// WithMetadata returns a copy of e carrying v encoded as JSON.
// Values that fail to encode leave Metadata unset.
func (e Entry) WithMetadata(v any) Entry {
	if data, err := json.Marshal(v); err == nil {
		e.Metadata = data
	}
	return e
}
