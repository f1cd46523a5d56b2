package stages

// TransactionStatus is a transaction's lifecycle status.
type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "PENDING"
	TransactionProcessing TransactionStatus = "PROCESSING"
	TransactionCompleted  TransactionStatus = "COMPLETED"
	TransactionViolation  TransactionStatus = "VIOLATION"
	TransactionCancelled  TransactionStatus = "CANCELLED"
)

// Valid reports whether s is a known transaction status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionProcessing, TransactionCompleted, TransactionViolation, TransactionCancelled:
		return true
	}
	return false
}

// ShariahStatus is a transaction's compliance verdict.
type ShariahStatus string

const (
	ShariahCompliant          ShariahStatus = "COMPLIANT"
	ShariahNonCompliant       ShariahStatus = "NON_COMPLIANT"
	ShariahPendingReview      ShariahStatus = "PENDING_REVIEW"
	ShariahUnderInvestigation ShariahStatus = "UNDER_INVESTIGATION"
)

// Valid reports whether s is a known shariah status.
func (s ShariahStatus) Valid() bool {
	switch s {
	case ShariahCompliant, ShariahNonCompliant, ShariahPendingReview, ShariahUnderInvestigation:
		return true
	}
	return false
}

// Aggregate is the transaction-level status pair derived from its stage records.
type Aggregate struct {
	Status        TransactionStatus `json:"status"`
	ShariahStatus ShariahStatus     `json:"shariahStatus"`
}

var (
	aggregateCompleted  = Aggregate{TransactionCompleted, ShariahCompliant}
	aggregateViolation  = Aggregate{TransactionViolation, ShariahNonCompliant}
	aggregateProcessing = Aggregate{TransactionProcessing, ShariahPendingReview}
)

// Requeued is the aggregate a transaction returns to after a violation reset.
func Requeued() Aggregate {
	return aggregateProcessing
}

// Derive computes the transaction aggregate after applied was written to one
// of records. It returns false when the aggregate should be left unchanged.
//
// All three stages COMPLETED wins; otherwise any FAILED stage forces a
// violation; otherwise an IN_PROGRESS transition marks the transaction as
// processing.
func Derive(records []Record, applied Status) (Aggregate, bool) {
	t := Index(records)

	if t.Complete() && t.CompletedCount() == len(All) {
		return aggregateCompleted, true
	}

	if _, failed := t.EarliestFailed(); failed {
		return aggregateViolation, true
	}

	if applied == StatusInProgress {
		return aggregateProcessing, true
	}

	return Aggregate{}, false
}
