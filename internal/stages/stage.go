// Package stages models the fixed T0, T1, T2 compliance sequence. Derive,
// ValidateOrder, and PlanReset are pure functions over a transaction's stage
// records; store.go holds the SQL helpers for the stage_records table.
package stages

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage is one of the three ordered checkpoints. Its integer value is its ordinal.
type Stage int

const (
	T0 Stage = iota
	T1
	T2
)

// All lists the stages in required order.
var All = [3]Stage{T0, T1, T2}

var stageCodes = [3]string{"T0", "T1", "T2"}

var stageNames = [3]string{"WAKALAH_AGREEMENT", "QABD", "LIQUIDATE"}

// ParseStage converts "T0", "T1" or "T2" to a Stage.
func ParseStage(s string) (Stage, error) {
	for i, code := range stageCodes {
		if s == code {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("invalid stage %q", s)
}

// Valid reports whether s is T0, T1 or T2.
func (s Stage) Valid() bool {
	return s >= T0 && s <= T2
}

// String returns the stage code.
func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageCodes[s]
}

// Name returns the stage's business name.
func (s Stage) Name() string {
	if !s.Valid() {
		return ""
	}
	return stageNames[s]
}

// Ordinal returns the stage's position in the sequence.
func (s Stage) Ordinal() int {
	return int(s)
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	parsed, err := ParseStage(code)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Status is the progress of a single stage record.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Valid reports whether s is a known stage status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Advanceable reports whether s may be requested through a stage transition.
func (s Status) Advanceable() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Record is the per-transaction, per-stage status entity.
type Record struct {
	ID            uuid.UUID  `json:"id"`
	TransactionID uuid.UUID  `json:"transactionId"`
	Stage         Stage      `json:"stage"`
	StageName     string     `json:"stageName"`
	Status        Status     `json:"status"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt"`
	CertificateID *uuid.UUID `json:"certificateId"`
}

// NewRecords returns the three PENDING records a transaction is created with.
func NewRecords(transactionID uuid.UUID, now time.Time) []Record {
	records := make([]Record, 0, len(All))
	for _, s := range All {
		records = append(records, Record{
			ID:            uuid.New(),
			TransactionID: transactionID,
			Stage:         s,
			StageName:     s.Name(),
			Status:        StatusPending,
			StartedAt:     now,
		})
	}
	return records
}

// Triple indexes records by stage. Missing stages are nil.
type Triple [3]*Record

// Index arranges records by stage ordinal. Later duplicates overwrite earlier ones.
func Index(records []Record) Triple {
	var t Triple
	for i := range records {
		if records[i].Stage.Valid() {
			t[records[i].Stage] = &records[i]
		}
	}
	return t
}

// Complete reports whether all three stages are present.
func (t Triple) Complete() bool {
	return t[T0] != nil && t[T1] != nil && t[T2] != nil
}

// CompletedCount returns the number of COMPLETED stages.
func (t Triple) CompletedCount() int {
	n := 0
	for _, r := range t {
		if r != nil && r.Status == StatusCompleted {
			n++
		}
	}
	return n
}

// EarliestFailed returns the lowest FAILED stage, if any.
func (t Triple) EarliestFailed() (Stage, bool) {
	for _, s := range All {
		if t[s] != nil && t[s].Status == StatusFailed {
			return s, true
		}
	}
	return 0, false
}
