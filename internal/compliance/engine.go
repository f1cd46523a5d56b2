package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/tawarruq/internal/auditlog"
	"github.com/JaimeStill/tawarruq/internal/certificates"
	"github.com/JaimeStill/tawarruq/internal/scoring"
	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/pkg/locking"
)

const timelineLogLimit = 50

var tracer = otel.Tracer("github.com/JaimeStill/tawarruq/internal/compliance")

// Locker serializes mutations of a single transaction.
type Locker interface {
	Obtain(ctx context.Context, key string) (locking.Lock, error)
}

// Archiver copies an issued certificate to durable storage.
type Archiver interface {
	Archive(ctx context.Context, id uuid.UUID) error
}

type engine struct {
	store    Store
	locker   Locker
	advisor  scoring.Advisor
	archiver Archiver
	logger   *slog.Logger
	now      func() time.Time
}

// New creates the compliance System. A nil archiver skips certificate
// archiving; a nil advisor scores with rules only.
func New(
	store Store,
	locker Locker,
	advisor scoring.Advisor,
	archiver Archiver,
	logger *slog.Logger,
) System {
	if advisor == nil {
		advisor = scoring.Rules{}
	}
	return &engine{
		store:    store,
		locker:   locker,
		advisor:  advisor,
		archiver: archiver,
		logger:   logger.With("system", "compliance"),
		now:      time.Now,
	}
}

func (e *engine) Handler() *Handler {
	return NewHandler(e, e.logger)
}

func (e *engine) AdvanceStage(ctx context.Context, id uuid.UUID, cmd AdvanceCommand) (*stages.Record, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "compliance.AdvanceStage", trace.WithAttributes(
		attribute.String("transaction.id", id.String()),
		attribute.String("stage", cmd.Stage.String()),
		attribute.String("status", string(cmd.Status)),
	))
	defer span.End()

	release, err := e.lock(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	defer release()

	var (
		result stages.Record
		issued *certificates.Certificate
		ref    string
	)

	err = e.store.Atomic(ctx, func(s Store) error {
		tx, err := s.Transaction(ctx, id)
		if err != nil {
			return err
		}
		ref = tx.Reference

		records, err := s.Records(ctx, id)
		if err != nil {
			return err
		}

		current := stages.Index(records)[cmd.Stage]
		if current == nil {
			return fmt.Errorf("%w: stage %s of transaction %s", ErrNotFound, cmd.Stage, id)
		}
		if err := checkTransition(current.Status); err != nil {
			return fmt.Errorf("%w: stage %s %v", ErrInvalidState, cmd.Stage, err)
		}

		now := e.now().UTC()
		next := *current
		next.Status = cmd.Status

		// A stage starts when it leaves PENDING, or when it is explicitly put in progress.
		if current.Status == stages.StatusPending || cmd.Status == stages.StatusInProgress {
			next.StartedAt = now
		}

		if cmd.Status == stages.StatusCompleted {
			cert, err := certificates.Synthesize(tx, next, now)
			if err != nil {
				return err
			}
			if err := s.CreateCertificate(ctx, cert); err != nil {
				return err
			}
			next.CompletedAt = &now
			next.CertificateID = &cert.ID
			issued = &cert
		}

		if err := s.SaveRecord(ctx, next); err != nil {
			return err
		}

		if err := s.AppendLog(ctx, stageEntry(next, current.Status, now)); err != nil {
			return err
		}

		for i := range records {
			if records[i].Stage == next.Stage {
				records[i] = next
			}
		}

		agg, ok := stages.Derive(records, cmd.Status)
		if ok && (agg.Status != tx.Status || agg.ShariahStatus != tx.ShariahStatus) {
			if err := s.SetAggregate(ctx, id, agg, now); err != nil {
				return err
			}
			if err := s.AppendLog(ctx, statusEntry(id, tx.Status, agg, now)); err != nil {
				return err
			}
		}

		result = next
		return nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	e.logger.Info("stage advanced",
		"transaction", ref,
		"stage", cmd.Stage.String(),
		"status", string(cmd.Status),
	)

	if issued != nil {
		e.archive(ctx, *issued)
	}

	return &result, nil
}

func (e *engine) OrderValidity(ctx context.Context, id uuid.UUID) (*stages.OrderResult, error) {
	records, err := e.records(ctx, id)
	if err != nil {
		return nil, err
	}

	order := stages.ValidateOrder(records)
	return &order, nil
}

func (e *engine) Resolutions(ctx context.Context, id uuid.UUID) ([]Resolution, error) {
	if _, err := e.store.Transaction(ctx, id); err != nil {
		return nil, err
	}
	return e.store.Resolutions(ctx, id)
}

func (e *engine) Score(ctx context.Context, id uuid.UUID, useAdvisor bool) (*scoring.Report, error) {
	tx, err := e.store.Transaction(ctx, id)
	if err != nil {
		return nil, err
	}

	records, err := e.store.Records(ctx, id)
	if err != nil {
		return nil, err
	}

	var report scoring.Report
	if useAdvisor {
		report = e.advisor.Advise(ctx, tx, records)
	} else {
		report = scoring.Score(tx, records)
	}
	return &report, nil
}

func (e *engine) Timeline(ctx context.Context, id uuid.UUID) (*Timeline, error) {
	tx, err := e.store.Transaction(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		records []stages.Record
		logs    []auditlog.Entry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = e.store.Records(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		logs, err = e.store.Logs(gctx, id, timelineLogLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	timeline := &Timeline{
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		Stages:        make([]TimelineStage, 0, len(records)),
		Order:         stages.ValidateOrder(records),
		Logs:          logs,
	}

	for _, r := range records {
		ts := TimelineStage{Record: r}
		if r.CertificateID != nil {
			c, err := e.store.Certificate(ctx, *r.CertificateID)
			if err != nil {
				return nil, err
			}
			ts.CertificateNumber = c.Number
		}
		timeline.Stages = append(timeline.Stages, ts)
	}

	return timeline, nil
}

func (e *engine) records(ctx context.Context, id uuid.UUID) ([]stages.Record, error) {
	if _, err := e.store.Transaction(ctx, id); err != nil {
		return nil, err
	}
	return e.store.Records(ctx, id)
}

// lock obtains the transaction's lock and returns its release function.
func (e *engine) lock(ctx context.Context, id uuid.UUID) (func(), error) {
	key := "transaction:" + id.String()

	lock, err := e.locker.Obtain(ctx, key)
	if err != nil {
		if errors.Is(err, locking.ErrNotObtained) {
			return nil, fmt.Errorf("%w: %s", ErrBusy, id)
		}
		return nil, fmt.Errorf("obtain %s: %w", key, err)
	}

	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			e.logger.Warn("lock release failed", "key", key, "error", err)
		}
	}, nil
}

func (e *engine) archive(ctx context.Context, c certificates.Certificate) {
	if e.archiver == nil {
		return
	}
	if err := e.archiver.Archive(ctx, c.ID); err != nil {
		e.logger.Warn("certificate archive failed", "number", c.Number, "error", err)
	}
}

// checkTransition rejects moves out of FAILED; only a resolution resets a
// failed stage. Any other stage may be re-run, and each completion issues a
// new certificate.
func checkTransition(from stages.Status) error {
	if from == stages.StatusFailed {
		return errors.New("has failed; resolve the violation first")
	}
	return nil
}

func stageEntry(r stages.Record, previous stages.Status, now time.Time) auditlog.Entry {
	severity := auditlog.SeverityInfo
	if r.Status == stages.StatusFailed {
		severity = auditlog.SeverityError
	}

	metadata := map[string]any{
		"stage":          r.Stage.String(),
		"stageName":      r.StageName,
		"previousStatus": previous,
	}
	if r.CertificateID != nil {
		metadata["certificateId"] = r.CertificateID.String()
	}

	return auditlog.NewEntry(
		r.TransactionID,
		fmt.Sprintf("%s_%s", r.Stage, r.Status),
		fmt.Sprintf("Audit stage %s %s", r.Stage, strings.ToLower(string(r.Status))),
		severity,
		now,
	).WithMetadata(metadata)
}

func statusEntry(id uuid.UUID, previous stages.TransactionStatus, agg stages.Aggregate, now time.Time) auditlog.Entry {
	severity := auditlog.SeverityInfo
	if agg.Status == stages.TransactionViolation {
		severity = auditlog.SeverityError
	}

	return auditlog.NewEntry(
		id,
		"STATUS_UPDATED",
		fmt.Sprintf("Transaction status updated to %s", agg.Status),
		severity,
		now,
	).WithMetadata(map[string]any{
		"previousStatus": previous,
		"shariahStatus":  agg.ShariahStatus,
	})
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
