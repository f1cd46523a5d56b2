package certificates

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/pkg/query"
	"github.com/JaimeStill/tawarruq/pkg/repository"
)

// projection joins every certificate to the stage record that produced it.
var projection = newProjection("s.id = c.stage_record_id")

// heldProjection keeps only certificates their stage record still links to.
var heldProjection = newProjection("s.id = c.stage_record_id AND s.certificate_id = c.id")

func newProjection(stageJoin string) *query.ProjectionMap {
	return query.
		NewProjectionMap("", "certificates", "c").
		Project("id", "id").
		Project("number", "number").
		Project("type", "type").
		Project("stage_record_id", "stageRecordId").
		Project("transaction_id", "transactionId").
		Project("issuer", "issuer").
		Project("issued_at", "issuedAt").
		Project("data", "data").
		Join("", "stage_records", "s", "JOIN", stageJoin).
		Project("stage", "stage").
		Join("", "transactions", "t", "JOIN", "t.id = c.transaction_id").
		Project("reference", "transactionRef")
}

var defaultSort = query.SortField{
	Field:      "issuedAt",
	Descending: true,
}

var stageSort = query.SortField{Field: "stage"}

// Filters narrows certificate queries. Nil fields are ignored.
type Filters struct {
	Type          *Type      `json:"type,omitempty"`
	TransactionID *uuid.UUID `json:"transactionId,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("type", f.Type).
		WhereEquals("transactionId", f.TransactionID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// An unparseable transactionId is ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("type"); v != "" {
		t := Type(v)
		f.Type = &t
	}

	if v := values.Get("transactionId"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			f.TransactionID = &id
		}
	}

	return f
}

func scanView(s repository.Scanner) (View, error) {
	var (
		v    View
		data []byte
		code string
	)

	err := s.Scan(
		&v.ID,
		&v.Number,
		&v.Type,
		&v.StageRecordID,
		&v.TransactionID,
		&v.Issuer,
		&v.IssuedAt,
		&data,
		&code,
		&v.TransactionRef,
	)
	if err != nil {
		return v, err
	}

	stage, err := stages.ParseStage(code)
	if err != nil {
		return v, err
	}

	v.Stage = stage
	v.Data = data
	v.decorate()
	return v, nil
}

func scanCertificate(s repository.Scanner) (Certificate, error) {
	var (
		c    Certificate
		data []byte
	)

	err := s.Scan(
		&c.ID,
		&c.Number,
		&c.Type,
		&c.StageRecordID,
		&c.TransactionID,
		&c.Issuer,
		&c.IssuedAt,
		&data,
	)
	c.Data = data
	return c, err
}
