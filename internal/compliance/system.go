package compliance

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/internal/scoring"
	"github.com/JaimeStill/tawarruq/internal/stages"
)

// System defines the compliance operations over a transaction's stage records.
type System interface {
	Handler() *Handler

	// AdvanceStage moves one stage to IN_PROGRESS, COMPLETED, or FAILED and
	// recomputes the transaction aggregate. Completion issues a certificate.
	AdvanceStage(ctx context.Context, transactionID uuid.UUID, cmd AdvanceCommand) (*stages.Record, error)

	// OrderValidity reports whether completion timestamps follow T0, T1, T2.
	OrderValidity(ctx context.Context, transactionID uuid.UUID) (*stages.OrderResult, error)

	// Resolve resets the stages a violation requires and re-queues the transaction.
	Resolve(ctx context.Context, transactionID uuid.UUID, cmd ResolveCommand) (*ResolveResult, error)

	Resolutions(ctx context.Context, transactionID uuid.UUID) ([]Resolution, error)

	// Score returns the rule-based report, or the configured advisor's report
	// when useAdvisor is set.
	Score(ctx context.Context, transactionID uuid.UUID, useAdvisor bool) (*scoring.Report, error)

	Timeline(ctx context.Context, transactionID uuid.UUID) (*Timeline, error)
}
