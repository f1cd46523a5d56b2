package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/internal/auditlog"
	"github.com/JaimeStill/tawarruq/internal/certificates"
	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/internal/transactions"
	"github.com/JaimeStill/tawarruq/pkg/query"
	"github.com/JaimeStill/tawarruq/pkg/repository"
)

var resolutionProjection = query.
	NewProjectionMap("", "violation_resolutions", "v").
	Project("id", "id").
	Project("transaction_id", "transactionId").
	Project("original_stage", "originalStage").
	Project("resolution_notes", "resolutionNotes").
	Project("resolved_by", "resolvedBy").
	Project("resolved_at", "resolvedAt").
	Project("reprocessed", "reprocessed").
	Project("ai_reanalysis", "aiReanalysis")

var resolutionSort = query.SortField{Field: "resolvedAt", Descending: true}

type conn interface {
	repository.Querier
	repository.Executor
}

type sqlStore struct {
	db   *sql.DB
	conn conn
	inTx bool
}

// NewSQLStore creates a Store over the tawarruq schema.
func NewSQLStore(db *sql.DB) Store {
	return &sqlStore{db: db, conn: db}
}

func (s *sqlStore) Atomic(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}

	_, err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, fn(&sqlStore{db: s.db, conn: tx, inTx: true})
	})
	return err
}

func (s *sqlStore) Transaction(ctx context.Context, id uuid.UUID) (transactions.Transaction, error) {
	t, err := transactions.Get(ctx, s.conn, id)
	return t, notFound(err, transactions.ErrNotFound, "transaction", id)
}

func (s *sqlStore) SetAggregate(ctx context.Context, id uuid.UUID, agg stages.Aggregate, now time.Time) error {
	err := transactions.SetAggregate(ctx, s.conn, id, agg, now)
	return notFound(err, transactions.ErrNotFound, "transaction", id)
}

func (s *sqlStore) IncrementViolations(ctx context.Context, id uuid.UUID, now time.Time) error {
	err := transactions.IncrementViolations(ctx, s.conn, id, now)
	return notFound(err, transactions.ErrNotFound, "transaction", id)
}

func (s *sqlStore) Records(ctx context.Context, transactionID uuid.UUID) ([]stages.Record, error) {
	return stages.ListByTransaction(ctx, s.conn, transactionID)
}

func (s *sqlStore) SaveRecord(ctx context.Context, r stages.Record) error {
	err := stages.Update(ctx, s.conn, r)
	return notFound(err, stages.ErrRecordNotFound, "stage record", r.ID)
}

func (s *sqlStore) CreateCertificate(ctx context.Context, c certificates.Certificate) error {
	return certificates.Insert(ctx, s.conn, c)
}

func (s *sqlStore) Certificate(ctx context.Context, id uuid.UUID) (certificates.Certificate, error) {
	c, err := certificates.Get(ctx, s.conn, id)
	return c, notFound(err, certificates.ErrNotFound, "certificate", id)
}

func (s *sqlStore) CreateResolution(ctx context.Context, r Resolution) error {
	analysis, err := json.Marshal(r.AIReanalysis)
	if err != nil {
		return fmt.Errorf("encode reanalysis: %w", err)
	}

	_, err = s.conn.ExecContext(
		ctx,
		`INSERT INTO violation_resolutions(id, transaction_id, original_stage, resolution_notes, resolved_by, resolved_at, reprocessed, ai_reanalysis)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.TransactionID, r.OriginalStage.String(), r.ResolutionNotes,
		r.ResolvedBy, r.ResolvedAt.UTC(), r.Reprocessed, string(analysis),
	)
	if err != nil {
		return fmt.Errorf("insert resolution: %w", err)
	}
	return nil
}

func (s *sqlStore) MarkReprocessed(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(
		ctx, s.conn,
		"UPDATE violation_resolutions SET reprocessed = $1 WHERE id = $2",
		true, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: resolution %s", ErrNotFound, id)
	}
	return err
}

func (s *sqlStore) Resolutions(ctx context.Context, transactionID uuid.UUID) ([]Resolution, error) {
	q, args := query.
		NewBuilder(resolutionProjection, resolutionSort).
		WhereEquals("transactionId", transactionID).
		Build()

	resolutions, err := repository.QueryMany(ctx, s.conn, q, args, scanResolution)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	return resolutions, nil
}

func (s *sqlStore) AppendLog(ctx context.Context, e auditlog.Entry) error {
	return auditlog.Append(ctx, s.conn, e)
}

func (s *sqlStore) Logs(ctx context.Context, transactionID uuid.UUID, limit int) ([]auditlog.Entry, error) {
	return auditlog.ForTransaction(ctx, s.conn, transactionID, limit)
}

func scanResolution(sc repository.Scanner) (Resolution, error) {
	var (
		r        Resolution
		stage    string
		analysis []byte
	)

	if err := sc.Scan(
		&r.ID,
		&r.TransactionID,
		&stage,
		&r.ResolutionNotes,
		&r.ResolvedBy,
		&r.ResolvedAt,
		&r.Reprocessed,
		&analysis,
	); err != nil {
		return r, err
	}

	parsed, err := stages.ParseStage(stage)
	if err != nil {
		return r, err
	}
	r.OriginalStage = parsed

	if err := json.Unmarshal(analysis, &r.AIReanalysis); err != nil {
		return r, fmt.Errorf("decode reanalysis: %w", err)
	}
	return r, nil
}

// notFound rewraps a package-level not-found sentinel as ErrNotFound.
func notFound(err, sentinel error, what string, id uuid.UUID) error {
	if errors.Is(err, sentinel) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return err
}
