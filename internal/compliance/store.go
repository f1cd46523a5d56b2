package compliance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/internal/auditlog"
	"github.com/JaimeStill/tawarruq/internal/certificates"
	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/internal/transactions"
)

// Store is the persistence the compliance core reads and mutates.
// Lookups of a missing transaction, stage record, or certificate return an
// error wrapping ErrNotFound.
type Store interface {
	// Atomic runs fn against a Store whose writes commit together or not at all.
	// Nested calls join the enclosing unit.
	Atomic(ctx context.Context, fn func(Store) error) error

	Transaction(ctx context.Context, id uuid.UUID) (transactions.Transaction, error)
	SetAggregate(ctx context.Context, id uuid.UUID, agg stages.Aggregate, now time.Time) error
	IncrementViolations(ctx context.Context, id uuid.UUID, now time.Time) error

	// Records returns the transaction's stage records ordered T0..T2.
	Records(ctx context.Context, transactionID uuid.UUID) ([]stages.Record, error)
	SaveRecord(ctx context.Context, r stages.Record) error

	CreateCertificate(ctx context.Context, c certificates.Certificate) error
	Certificate(ctx context.Context, id uuid.UUID) (certificates.Certificate, error)

	CreateResolution(ctx context.Context, r Resolution) error
	MarkReprocessed(ctx context.Context, id uuid.UUID) error
	// Resolutions returns the transaction's resolutions, newest first.
	Resolutions(ctx context.Context, transactionID uuid.UUID) ([]Resolution, error)

	AppendLog(ctx context.Context, e auditlog.Entry) error
	// Logs returns up to limit entries for the transaction, newest first.
	Logs(ctx context.Context, transactionID uuid.UUID, limit int) ([]auditlog.Entry, error)
}
