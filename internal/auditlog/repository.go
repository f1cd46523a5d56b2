package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/pkg/pagination"
	"github.com/JaimeStill/tawarruq/pkg/query"
	"github.com/JaimeStill/tawarruq/pkg/repository"
)

const (
	defaultRecent = 20
	maxRecent     = 100
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an audit log repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "auditlog"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Entry], error) {
	page.Normalize(r.pagination)

	if filters.Severity != nil && !filters.Severity.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSeverity, *filters.Severity)
	}

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "message", "eventType")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count log entries: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	entries, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}

	result := pagination.NewPageResult(entries, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = defaultRecent
	}
	limit = min(limit, maxRecent)

	q, args := query.NewBuilder(projection, defaultSort).BuildPage(1, limit)
	entries, err := repository.QueryMany(ctx, r.db, q, args, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query recent log entries: %w", err)
	}
	return entries, nil
}

// Append writes e using exec, which is normally the *sql.Tx of the change being logged.
func Append(ctx context.Context, exec repository.Executor, e Entry) error {
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = string(e.Metadata)
	}

	var txID any
	if e.TransactionID != nil {
		txID = *e.TransactionID
	}

	_, err := exec.ExecContext(
		ctx,
		`INSERT INTO audit_logs(id, transaction_id, event_type, message, severity, logged_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, txID, e.EventType, e.Message, string(e.Severity), e.Timestamp.UTC(), metadata,
	)
	if err != nil {
		return fmt.Errorf("append log entry %s: %w", e.EventType, err)
	}
	return nil
}

// ForTransaction returns up to limit entries for a transaction, newest first.
func ForTransaction(ctx context.Context, q repository.Querier, transactionID uuid.UUID, limit int) ([]Entry, error) {
	sql, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("transactionId", transactionID).
		BuildPage(1, limit)

	entries, err := repository.QueryMany(ctx, q, sql, args, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query transaction log entries: %w", err)
	}
	return entries, nil
}
