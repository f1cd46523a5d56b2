package certificates

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/pkg/formatting"
	"github.com/JaimeStill/tawarruq/pkg/pagination"
	"github.com/JaimeStill/tawarruq/pkg/query"
	"github.com/JaimeStill/tawarruq/pkg/repository"
	"github.com/JaimeStill/tawarruq/pkg/storage"
)

const documentContentType = "application/json"

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a certificate repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "certificates"),
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
) (*pagination.PageResult[View], error) {
	page.Normalize(r.pagination)

	if filters.Type != nil && !filters.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFilter, *filters.Type)
	}

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "number", "transactionRef")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count certificates: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	views, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanView)
	if err != nil {
		return nil, fmt.Errorf("query certificates: %w", err)
	}

	result := pagination.NewPageResult(views, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, ref string) (*View, error) {
	var (
		q    string
		args []any
	)

	if id, err := uuid.Parse(ref); err == nil {
		q, args = query.NewBuilder(projection).BuildSingle("id", id)
	} else {
		q, args = query.NewBuilder(projection).BuildSingle("number", ref)
	}

	v, err := repository.QueryOne(ctx, r.db, q, args, scanView)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &v, nil
}

func (r *repo) ForTransaction(ctx context.Context, transactionID uuid.UUID) ([]View, error) {
	q, args := query.
		NewBuilder(heldProjection, stageSort).
		WhereEquals("transactionId", transactionID).
		Build()

	views, err := repository.QueryMany(ctx, r.db, q, args, scanView)
	if err != nil {
		return nil, fmt.Errorf("query transaction certificates: %w", err)
	}
	return views, nil
}

func (r *repo) Download(ctx context.Context, ref string) (*View, io.ReadCloser, error) {
	v, err := r.Find(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	rc, err := r.storage.Open(ctx, Key(v.Number))
	switch {
	case err == nil:
		return v, rc, nil
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrDisabled):
		data, err := json.Marshal(v)
		if err != nil {
			return nil, nil, fmt.Errorf("encode certificate document: %w", err)
		}
		return v, io.NopCloser(bytes.NewReader(data)), nil
	default:
		return nil, nil, fmt.Errorf("download certificate %s: %w", v.Number, err)
	}
}

func (r *repo) Archive(ctx context.Context, id uuid.UUID) error {
	v, err := r.Find(ctx, id.String())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode certificate document: %w", err)
	}

	key := Key(v.Number)
	switch err := r.storage.Put(ctx, key, data, documentContentType); {
	case errors.Is(err, storage.ErrDisabled):
		return nil
	case errors.Is(err, storage.ErrExists):
		r.logger.Debug("certificate already archived", "number", v.Number)
		return nil
	case err != nil:
		return fmt.Errorf("archive certificate %s: %w", v.Number, err)
	}

	r.logger.Info("certificate archived", "number", v.Number, "key", key, "size", formatting.FormatBytes(int64(len(data)), 1))
	return nil
}

// Key returns the blob storage key of a certificate document.
func Key(number string) string {
	return "certificates/" + number + ".json"
}

// Insert writes c using exec, normally the *sql.Tx of the completing stage transition.
func Insert(ctx context.Context, exec repository.Executor, c Certificate) error {
	_, err := exec.ExecContext(
		ctx,
		`INSERT INTO certificates(id, number, type, stage_record_id, transaction_id, issuer, issued_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Number, string(c.Type), c.StageRecordID, c.TransactionID,
		c.Issuer, c.IssuedAt.UTC(), string(c.Data),
	)
	if err != nil {
		return repository.MapError(fmt.Errorf("insert certificate %s: %w", c.Number, err), ErrNotFound, ErrDuplicate)
	}
	return nil
}

// Get reads a single certificate row by id, whether or not a stage record still links to it.
func Get(ctx context.Context, q repository.Querier, id uuid.UUID) (Certificate, error) {
	c, err := repository.QueryOne(
		ctx, q,
		`SELECT id, number, type, stage_record_id, transaction_id, issuer, issued_at, data
		FROM certificates WHERE id = $1`,
		[]any{id},
		scanCertificate,
	)
	if err != nil {
		return c, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return c, nil
}
