package stages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/pkg/query"
	"github.com/JaimeStill/tawarruq/pkg/repository"
)

// ErrRecordNotFound indicates no stage record exists for a transaction and stage.
var ErrRecordNotFound = errors.New("stage record not found")

var projection = query.
	NewProjectionMap("", "stage_records", "s").
	Project("id", "id").
	Project("transaction_id", "transactionId").
	Project("stage", "stage").
	Project("stage_name", "stageName").
	Project("status", "status").
	Project("started_at", "startedAt").
	Project("completed_at", "completedAt").
	Project("certificate_id", "certificateId")

var stageOrder = query.SortField{Field: "stage"}

// Scan reads a Record from a row of the stage_records projection.
func Scan(s repository.Scanner) (Record, error) {
	var (
		r         Record
		code      string
		completed *time.Time
		certID    uuid.NullUUID
	)

	if err := s.Scan(
		&r.ID,
		&r.TransactionID,
		&code,
		&r.StageName,
		&r.Status,
		&r.StartedAt,
		&completed,
		&certID,
	); err != nil {
		return r, err
	}

	stage, err := ParseStage(code)
	if err != nil {
		return r, err
	}
	r.Stage = stage
	r.CompletedAt = completed

	if certID.Valid {
		r.CertificateID = &certID.UUID
	}
	return r, nil
}

// Insert writes records, normally the three created with a transaction.
func Insert(ctx context.Context, exec repository.Executor, records []Record) error {
	for _, r := range records {
		_, err := exec.ExecContext(
			ctx,
			`INSERT INTO stage_records(id, transaction_id, stage, stage_name, status, started_at, completed_at, certificate_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.ID, r.TransactionID, r.Stage.String(), r.StageName, string(r.Status),
			r.StartedAt.UTC(), nullTime(r.CompletedAt), nullUUID(r.CertificateID),
		)
		if err != nil {
			return fmt.Errorf("insert stage record %s: %w", r.Stage, err)
		}
	}
	return nil
}

// ListByTransaction returns the stage records of a transaction ordered T0, T1, T2.
func ListByTransaction(ctx context.Context, q repository.Querier, transactionID uuid.UUID) ([]Record, error) {
	sql, args := query.
		NewBuilder(projection, stageOrder).
		WhereEquals("transactionId", transactionID).
		Build()

	records, err := repository.QueryMany(ctx, q, sql, args, Scan)
	if err != nil {
		return nil, fmt.Errorf("query stage records: %w", err)
	}
	return records, nil
}

// Update persists the mutable fields of r: status, timestamps, and certificate link.
// Returns ErrRecordNotFound if no row matches r's transaction and stage.
func Update(ctx context.Context, exec repository.Executor, r Record) error {
	err := repository.ExecExpectOne(
		ctx, exec,
		`UPDATE stage_records
		SET status = $1, started_at = $2, completed_at = $3, certificate_id = $4
		WHERE transaction_id = $5 AND stage = $6`,
		string(r.Status), r.StartedAt.UTC(), nullTime(r.CompletedAt), nullUUID(r.CertificateID),
		r.TransactionID, r.Stage.String(),
	)
	if err != nil {
		return repository.MapError(err, ErrRecordNotFound, ErrRecordNotFound)
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}
