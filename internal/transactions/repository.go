package transactions

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/tawarruq/internal/auditlog"
	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/pkg/formatting"
	"github.com/JaimeStill/tawarruq/pkg/pagination"
	"github.com/JaimeStill/tawarruq/pkg/query"
	"github.com/JaimeStill/tawarruq/pkg/repository"
)

const (
	referencePrefix = "TXN"
	detailLogLimit  = 50
	recentLimit     = 5
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a transaction repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "transactions"),
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
) (*pagination.PageResult[Transaction], error) {
	page.Normalize(r.pagination)

	if err := filters.validate(); err != nil {
		return nil, err
	}

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "customerName", "customerId", "reference")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	txs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	result := pagination.NewPageResult(txs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	t, err := Get(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) Detail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	t, err := Get(ctx, r.db, id)
	if err != nil {
		return nil, err
	}

	d := Detail{Transaction: t}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := stages.ListByTransaction(gctx, r.db, id)
		d.Stages = records
		return err
	})
	g.Go(func() error {
		logs, err := auditlog.ForTransaction(gctx, r.db, id, detailLogLimit)
		d.Logs = logs
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Detail, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := Transaction{
		ID:            uuid.New(),
		Reference:     formatting.Reference(referencePrefix, now),
		CustomerName:  cmd.CustomerName,
		CustomerID:    cmd.CustomerID,
		CommodityType: cmd.CommodityType,
		Amount:        cmd.Amount,
		Currency:      cmd.Currency,
		Status:        stages.TransactionPending,
		ShariahStatus: stages.ShariahPendingReview,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	records := stages.NewRecords(t.ID, now)

	entry := auditlog.NewEntry(
		t.ID,
		auditlog.EventTransactionCreated,
		fmt.Sprintf("Transaction %s created for %s", t.Reference, t.CustomerName),
		auditlog.SeverityInfo,
		now,
	).WithMetadata(map[string]any{
		"customerId": t.CustomerID,
		"amount":     t.Amount,
	})

	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := insert(ctx, tx, t); err != nil {
			return struct{}{}, err
		}
		if err := stages.Insert(ctx, tx, records); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, auditlog.Append(ctx, tx, entry)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("transaction created", "id", t.ID, "reference", t.Reference, "customer_id", t.CustomerID)
	return &Detail{Transaction: t, Stages: records}, nil
}

func (r *repo) UpdateStatus(ctx context.Context, id uuid.UUID, cmd StatusCommand) (*Transaction, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Transaction, error) {
		current, err := Get(ctx, tx, id)
		if err != nil {
			return current, err
		}

		agg := stages.Aggregate{Status: cmd.Status, ShariahStatus: current.ShariahStatus}
		if cmd.ShariahStatus != nil {
			agg.ShariahStatus = *cmd.ShariahStatus
		}

		if err := SetAggregate(ctx, tx, id, agg, now); err != nil {
			return current, err
		}

		severity := auditlog.SeverityInfo
		if agg.Status == stages.TransactionViolation {
			severity = auditlog.SeverityError
		}

		entry := auditlog.NewEntry(
			id,
			auditlog.EventStatusUpdated,
			fmt.Sprintf("Transaction status updated to %s", agg.Status),
			severity,
			now,
		).WithMetadata(map[string]any{
			"previousStatus": current.Status,
			"shariahStatus":  agg.ShariahStatus,
		})

		if err := auditlog.Append(ctx, tx, entry); err != nil {
			return current, err
		}

		current.Status = agg.Status
		current.ShariahStatus = agg.ShariahStatus
		current.UpdatedAt = now
		return current, nil
	})

	if err != nil {
		return nil, err
	}

	r.logger.Info("transaction status updated", "id", id, "status", t.Status, "shariah_status", t.ShariahStatus)
	return &t, nil
}

func (r *repo) Stats(ctx context.Context) (*Stats, error) {
	var s Stats

	counts := []struct {
		dst    *int
		status stages.TransactionStatus
	}{
		{&s.Total, ""},
		{&s.Pending, stages.TransactionPending},
		{&s.Processing, stages.TransactionProcessing},
		{&s.Completed, stages.TransactionCompleted},
		{&s.Violations, stages.TransactionViolation},
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, c := range counts {
		g.Go(func() error {
			qb := query.NewBuilder(projection)
			if c.status != "" {
				qb.WhereEquals("status", c.status)
			}
			q, args := qb.BuildCount()

			if err := r.db.QueryRowContext(gctx, q, args...).Scan(c.dst); err != nil {
				return fmt.Errorf("count transactions: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		recent, err := r.recent(gctx)
		s.Recent = recent
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) recent(ctx context.Context) ([]Detail, error) {
	q, args := query.NewBuilder(projection, defaultSort).BuildPage(1, recentLimit)

	txs, err := repository.QueryMany(ctx, r.db, q, args, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("query recent transactions: %w", err)
	}

	recent := make([]Detail, len(txs))
	for i, t := range txs {
		records, err := stages.ListByTransaction(ctx, r.db, t.ID)
		if err != nil {
			return nil, err
		}
		recent[i] = Detail{Transaction: t, Stages: records}
	}
	return recent, nil
}

// Get reads a transaction using q, which may be the *sql.Tx of an enclosing change.
func Get(ctx context.Context, q repository.Querier, id uuid.UUID) (Transaction, error) {
	sql, args := query.NewBuilder(projection).BuildSingle("id", id)

	t, err := repository.QueryOne(ctx, q, sql, args, scanTransaction)
	if err != nil {
		return t, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return t, nil
}

// SetAggregate writes the status pair of a transaction and bumps updated_at.
func SetAggregate(ctx context.Context, exec repository.Executor, id uuid.UUID, agg stages.Aggregate, now time.Time) error {
	err := repository.ExecExpectOne(
		ctx, exec,
		"UPDATE transactions SET status = $1, shariah_status = $2, updated_at = $3 WHERE id = $4",
		string(agg.Status), string(agg.ShariahStatus), now.UTC(), id,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

// IncrementViolations adds one to a transaction's violation count.
func IncrementViolations(ctx context.Context, exec repository.Executor, id uuid.UUID, now time.Time) error {
	err := repository.ExecExpectOne(
		ctx, exec,
		"UPDATE transactions SET violation_count = violation_count + 1, updated_at = $1 WHERE id = $2",
		now.UTC(), id,
	)
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func insert(ctx context.Context, exec repository.Executor, t Transaction) error {
	_, err := exec.ExecContext(
		ctx,
		`INSERT INTO transactions(id, reference, customer_name, customer_id, commodity_type, amount, currency, status, shariah_status, violation_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.Reference, t.CustomerName, t.CustomerID, string(t.CommodityType),
		t.Amount, t.Currency, string(t.Status), string(t.ShariahStatus),
		t.ViolationCount, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}
