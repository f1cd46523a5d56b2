package auditlog

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/pkg/query"
	"github.com/JaimeStill/tawarruq/pkg/repository"
)

var projection = query.
	NewProjectionMap("", "audit_logs", "l").
	Project("id", "id").
	Project("transaction_id", "transactionId").
	Project("event_type", "eventType").
	Project("message", "message").
	Project("severity", "severity").
	Project("logged_at", "timestamp").
	Project("metadata", "metadata")

var defaultSort = query.SortField{
	Field:      "timestamp",
	Descending: true,
}

// Filters narrows log queries. Nil fields are ignored.
type Filters struct {
	TransactionID *uuid.UUID `json:"transactionId,omitempty"`
	Severity      *Severity  `json:"severity,omitempty"`
	EventType     *string    `json:"eventType,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("transactionId", f.TransactionID).
		WhereEquals("severity", f.Severity).
		WhereEquals("eventType", f.EventType)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// An unparseable transactionId is ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("transactionId"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			f.TransactionID = &id
		}
	}

	if v := values.Get("severity"); v != "" {
		s := Severity(v)
		f.Severity = &s
	}

	if v := values.Get("eventType"); v != "" {
		f.EventType = &v
	}

	return f
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var (
		e        Entry
		txID     uuid.NullUUID
		metadata []byte
	)

	err := s.Scan(
		&e.ID,
		&txID,
		&e.EventType,
		&e.Message,
		&e.Severity,
		&e.Timestamp,
		&metadata,
	)
	if err != nil {
		return e, err
	}

	if txID.Valid {
		e.TransactionID = &txID.UUID
	}
	if len(metadata) > 0 {
		e.Metadata = metadata
	}
	return e, nil
}
