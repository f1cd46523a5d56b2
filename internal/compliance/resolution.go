// Package compliance advances stage records, validates their order, and
// resolves violated transactions. Every mutation runs inside Store.Atomic
// while holding the transaction's lock.
package compliance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/internal/auditlog"
	"github.com/JaimeStill/tawarruq/internal/stages"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultActor resolves violations when the caller names no one.
const DefaultActor = "system"

const (
	recommendReprocess  = "re-process from failed stage"
	recommendResequence = "reset out-of-order stages and re-process in sequence"
)

// Reanalysis is the structured review attached to a resolution.
type Reanalysis struct {
	OriginalIssue    string         `json:"originalIssue"`
	ResolutionNotes  string         `json:"resolutionNotes"`
	StageOrderValid  bool           `json:"stageOrderValid"`
	OutOfOrderStages []stages.Stage `json:"outOfOrderStages"`
	Recommendation   string         `json:"recommendation"`
	ComplianceScore  int            `json:"complianceScore"`
	GeneratedBy      string         `json:"generatedBy"`
}

// Resolution records one attempt to recover a violated transaction.
// Reprocessed flips to true once the stage reset has been applied.
type Resolution struct {
	ID              uuid.UUID    `json:"id"`
	TransactionID   uuid.UUID    `json:"transactionId"`
	OriginalStage   stages.Stage `json:"originalStage"`
	ResolutionNotes string       `json:"resolutionNotes"`
	ResolvedBy      string       `json:"resolvedBy"`
	ResolvedAt      time.Time    `json:"resolvedAt"`
	Reprocessed     bool         `json:"reprocessed"`
	AIReanalysis    Reanalysis   `json:"aiReanalysis"`
}

// ResolveResult is returned by Resolve.
type ResolveResult struct {
	Resolution   Resolution     `json:"resolution"`
	StagesReset  []stages.Stage `json:"stagesReset"`
	AIReanalysis Reanalysis     `json:"aiReanalysis"`
}

// AdvanceCommand requests a stage transition.
type AdvanceCommand struct {
	Stage  stages.Stage  `json:"stage"`
	Status stages.Status `json:"status" validate:"required,oneof=IN_PROGRESS COMPLETED FAILED"`
}

// Validate reports an ErrValidation when the stage or status is not accepted.
func (c AdvanceCommand) Validate() error {
	if !c.Stage.Valid() {
		return fmt.Errorf("%w: invalid stage %s", ErrValidation, c.Stage)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: status %q must be one of IN_PROGRESS, COMPLETED, FAILED", ErrValidation, c.Status)
	}
	return nil
}

// ResolveCommand carries the reviewer's notes for a violation resolution.
type ResolveCommand struct {
	Notes      string `json:"notes" validate:"required,max=2000"`
	ResolvedBy string `json:"resolvedBy" validate:"omitempty,max=100"`
}

// Validate trims the command, defaults ResolvedBy, and rejects blank notes.
func (c *ResolveCommand) Validate() error {
	c.Notes = strings.TrimSpace(c.Notes)
	c.ResolvedBy = strings.TrimSpace(c.ResolvedBy)
	if c.ResolvedBy == "" {
		c.ResolvedBy = DefaultActor
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", ErrValidation, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// TimelineStage is a stage record with the number of the certificate it holds.
type TimelineStage struct {
	stages.Record
	CertificateNumber string `json:"certificateNumber,omitempty"`
}

// Timeline is the audit view of a transaction.
type Timeline struct {
	TransactionID uuid.UUID          `json:"transactionId"`
	Reference     string             `json:"reference"`
	Stages        []TimelineStage    `json:"stages"`
	Order         stages.OrderResult `json:"order"`
	Logs          []auditlog.Entry   `json:"logs"`
}
