package compliance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/tawarruq/internal/auditlog"
	"github.com/JaimeStill/tawarruq/internal/scoring"
	"github.com/JaimeStill/tawarruq/internal/stages"
)

// Resolve runs in two atomic units. The first records the resolution and
// counts the violation; the second resets stages, re-queues the transaction,
// and marks the resolution reprocessed. A failure in the second unit leaves
// reprocessed false and the transaction in VIOLATION. The next call resumes
// that resolution instead of recording and counting a new one.
func (e *engine) Resolve(ctx context.Context, id uuid.UUID, cmd ResolveCommand) (*ResolveResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "compliance.Resolve", trace.WithAttributes(
		attribute.String("transaction.id", id.String()),
		attribute.String("resolved_by", cmd.ResolvedBy),
	))
	defer span.End()

	release, err := e.lock(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	defer release()

	var (
		res  Resolution
		plan []stages.Stage
		ref  string
	)

	err = e.store.Atomic(ctx, func(s Store) error {
		tx, err := s.Transaction(ctx, id)
		if err != nil {
			return err
		}
		ref = tx.Reference

		if tx.Status != stages.TransactionViolation {
			return fmt.Errorf("%w: transaction %s is %s, not %s", ErrInvalidState, tx.Reference, tx.Status, stages.TransactionViolation)
		}

		records, err := s.Records(ctx, id)
		if err != nil {
			return err
		}

		failed, ok := stages.Index(records).EarliestFailed()
		if !ok {
			return fmt.Errorf("%w: transaction %s is in violation without a failed stage", ErrInconsistentState, tx.Reference)
		}

		order := stages.ValidateOrder(records)
		plan, _ = stages.PlanReset(records, order)

		pending, err := unfinished(ctx, s, id)
		if err != nil {
			return err
		}
		if pending != nil {
			res = *pending
			e.logger.Info("resuming resolution", "transaction", ref, "resolution", res.ID)
			return nil
		}

		report := scoring.Score(tx, records)
		now := e.now().UTC()
		res = Resolution{
			ID:              uuid.New(),
			TransactionID:   id,
			OriginalStage:   failed,
			ResolutionNotes: cmd.Notes,
			ResolvedBy:      cmd.ResolvedBy,
			ResolvedAt:      now,
			AIReanalysis:    reanalyze(failed, cmd.Notes, order, report),
		}

		if err := s.CreateResolution(ctx, res); err != nil {
			return err
		}
		return s.IncrementViolations(ctx, id, now)
	})
	if err != nil {
		return nil, fail(span, err)
	}

	err = e.store.Atomic(ctx, func(s Store) error {
		records, err := s.Records(ctx, id)
		if err != nil {
			return err
		}
		current := stages.Index(records)
		now := e.now().UTC()

		for _, stage := range plan {
			r := current[stage]
			if r == nil {
				return fmt.Errorf("%w: stage %s of transaction %s is missing", ErrInconsistentState, stage, id)
			}
			reset := *r
			reset.Status = stages.StatusPending
			reset.StartedAt = now
			reset.CompletedAt = nil
			reset.CertificateID = nil
			if err := s.SaveRecord(ctx, reset); err != nil {
				return err
			}
		}

		if err := s.SetAggregate(ctx, id, stages.Requeued(), now); err != nil {
			return err
		}
		if err := s.MarkReprocessed(ctx, res.ID); err != nil {
			return err
		}
		return s.AppendLog(ctx, resolvedEntry(res, plan, now))
	})
	if err != nil {
		return nil, fail(span, fmt.Errorf("apply resolution %s: %w", res.ID, err))
	}

	res.Reprocessed = true

	e.logger.Info("violation resolved",
		"transaction", ref,
		"resolution", res.ID,
		"stages_reset", joinStages(plan),
		"resolved_by", res.ResolvedBy,
	)

	return &ResolveResult{
		Resolution:   res,
		StagesReset:  plan,
		AIReanalysis: res.AIReanalysis,
	}, nil
}

// unfinished returns the newest resolution when its reset was never applied.
func unfinished(ctx context.Context, s Store, id uuid.UUID) (*Resolution, error) {
	history, err := s.Resolutions(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 || history[0].Reprocessed {
		return nil, nil
	}
	return &history[0], nil
}

func reanalyze(failed stages.Stage, notes string, order stages.OrderResult, report scoring.Report) Reanalysis {
	recommendation := recommendReprocess
	if !order.Valid {
		recommendation = recommendResequence
	}

	return Reanalysis{
		OriginalIssue:    fmt.Sprintf("stage %s failed", failed),
		ResolutionNotes:  notes,
		StageOrderValid:  order.Valid,
		OutOfOrderStages: order.OutOfOrder,
		Recommendation:   recommendation,
		ComplianceScore:  report.ComplianceScore,
		GeneratedBy:      report.GeneratedBy,
	}
}

func resolvedEntry(res Resolution, plan []stages.Stage, now time.Time) auditlog.Entry {
	return auditlog.NewEntry(
		res.TransactionID,
		"VIOLATION_RESOLVED",
		fmt.Sprintf("Violation resolved by %s; stages reset: %s", res.ResolvedBy, joinStages(plan)),
		auditlog.SeverityInfo,
		now,
	).WithMetadata(map[string]any{
		"resolutionId":  res.ID.String(),
		"originalStage": res.OriginalStage.String(),
		"stagesReset":   plan,
		"resolvedBy":    res.ResolvedBy,
	})
}

func joinStages(plan []stages.Stage) string {
	codes := make([]string, len(plan))
	for i, s := range plan {
		codes[i] = s.String()
	}
	return strings.Join(codes, ", ")
}
