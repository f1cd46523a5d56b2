package stages

import (
	"slices"
	"time"
)

// OrderResult reports whether completion timestamps respect T0, T1, T2 order.
type OrderResult struct {
	Valid      bool    `json:"isValid"`
	OutOfOrder []Stage `json:"outOfOrder"`
}

// ValidateOrder runs two checks over records and unions their findings:
//   - monotonic: a completedAt earlier than the last seen completedAt
//   - pairwise: a COMPLETED stage whose predecessor is not COMPLETED or completed later
//
// OutOfOrder is sorted by ordinal and never nil.
func ValidateOrder(records []Record) OrderResult {
	t := Index(records)
	marked := [3]bool{}

	var last *time.Time
	for _, s := range All {
		r := t[s]
		if r == nil || r.CompletedAt == nil {
			continue
		}
		if last != nil && r.CompletedAt.Before(*last) {
			marked[s] = true
		}
		last = r.CompletedAt
	}

	for i := T0; i < T2; i++ {
		for j := i + 1; j <= T2; j++ {
			later := t[j]
			if later == nil || later.Status != StatusCompleted {
				continue
			}
			earlier := t[i]
			if earlier == nil || earlier.Status != StatusCompleted {
				marked[j] = true
				continue
			}
			if later.CompletedAt != nil && earlier.CompletedAt != nil && later.CompletedAt.Before(*earlier.CompletedAt) {
				marked[j] = true
			}
		}
	}

	out := make([]Stage, 0, len(All))
	for _, s := range All {
		if marked[s] {
			out = append(out, s)
		}
	}

	return OrderResult{
		Valid:      len(out) == 0,
		OutOfOrder: out,
	}
}

// PlanReset returns the stages a violation resolution must reset: from the
// earlier of the first out-of-order stage and the first FAILED stage, through
// T2. It returns false when neither exists.
func PlanReset(records []Record, order OrderResult) ([]Stage, bool) {
	var (
		from  Stage
		found bool
	)

	if len(order.OutOfOrder) > 0 {
		from, found = slices.Min(order.OutOfOrder), true
	}

	if failed, ok := Index(records).EarliestFailed(); ok && (!found || failed < from) {
		from, found = failed, true
	}

	if !found {
		return nil, false
	}

	plan := make([]Stage, 0, len(All))
	for s := from; s <= T2; s++ {
		plan = append(plan, s)
	}
	return plan, true
}
