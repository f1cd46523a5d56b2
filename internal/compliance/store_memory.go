package compliance

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/internal/auditlog"
	"github.com/JaimeStill/tawarruq/internal/certificates"
	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/internal/transactions"
)

// MemoryStore is an in-process Store. Atomic works on a copy of the state
// and publishes it only when fn succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// Seed adds a transaction with its stage records.
func (m *MemoryStore) Seed(t transactions.Transaction, records []stages.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.transactions[t.ID] = t
	m.state.records[t.ID] = slices.Clone(records)
}

// Certificates returns every certificate issued for the transaction, linked or not.
func (m *MemoryStore) Certificates(transactionID uuid.UUID) []certificates.Certificate {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []certificates.Certificate
	for _, c := range m.state.certificates {
		if c.TransactionID == transactionID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b certificates.Certificate) int {
		return cmp.Or(a.IssuedAt.Compare(b.IssuedAt), cmp.Compare(a.Number, b.Number))
	})
	return out
}

func (m *MemoryStore) Atomic(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryStore) Transaction(ctx context.Context, id uuid.UUID) (transactions.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Transaction(ctx, id)
}

func (m *MemoryStore) SetAggregate(ctx context.Context, id uuid.UUID, agg stages.Aggregate, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SetAggregate(ctx, id, agg, now)
}

func (m *MemoryStore) IncrementViolations(ctx context.Context, id uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IncrementViolations(ctx, id, now)
}

func (m *MemoryStore) Records(ctx context.Context, transactionID uuid.UUID) ([]stages.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Records(ctx, transactionID)
}

func (m *MemoryStore) SaveRecord(ctx context.Context, r stages.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SaveRecord(ctx, r)
}

func (m *MemoryStore) CreateCertificate(ctx context.Context, c certificates.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateCertificate(ctx, c)
}

func (m *MemoryStore) Certificate(ctx context.Context, id uuid.UUID) (certificates.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Certificate(ctx, id)
}

func (m *MemoryStore) CreateResolution(ctx context.Context, r Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateResolution(ctx, r)
}

func (m *MemoryStore) MarkReprocessed(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.MarkReprocessed(ctx, id)
}

func (m *MemoryStore) Resolutions(ctx context.Context, transactionID uuid.UUID) ([]Resolution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Resolutions(ctx, transactionID)
}

func (m *MemoryStore) AppendLog(ctx context.Context, e auditlog.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AppendLog(ctx, e)
}

func (m *MemoryStore) Logs(ctx context.Context, transactionID uuid.UUID, limit int) ([]auditlog.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Logs(ctx, transactionID, limit)
}

// memState is the unlocked state behind MemoryStore. Inside Atomic it is
// handed to fn directly as the Store.
type memState struct {
	transactions map[uuid.UUID]transactions.Transaction
	records      map[uuid.UUID][]stages.Record
	certificates map[uuid.UUID]certificates.Certificate
	resolutions  []Resolution
	logs         []auditlog.Entry
}

func newMemState() *memState {
	return &memState{
		transactions: make(map[uuid.UUID]transactions.Transaction),
		records:      make(map[uuid.UUID][]stages.Record),
		certificates: make(map[uuid.UUID]certificates.Certificate),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		transactions: maps.Clone(s.transactions),
		records:      make(map[uuid.UUID][]stages.Record, len(s.records)),
		certificates: maps.Clone(s.certificates),
		resolutions:  slices.Clone(s.resolutions),
		logs:         slices.Clone(s.logs),
	}
	for id, records := range s.records {
		c.records[id] = slices.Clone(records)
	}
	return c
}

func (s *memState) Atomic(_ context.Context, fn func(Store) error) error {
	return fn(s)
}

func (s *memState) Transaction(_ context.Context, id uuid.UUID) (transactions.Transaction, error) {
	t, ok := s.transactions[id]
	if !ok {
		return t, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	return t, nil
}

func (s *memState) SetAggregate(_ context.Context, id uuid.UUID, agg stages.Aggregate, now time.Time) error {
	t, ok := s.transactions[id]
	if !ok {
		return fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	t.Status = agg.Status
	t.ShariahStatus = agg.ShariahStatus
	t.UpdatedAt = now
	s.transactions[id] = t
	return nil
}

func (s *memState) IncrementViolations(_ context.Context, id uuid.UUID, now time.Time) error {
	t, ok := s.transactions[id]
	if !ok {
		return fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	t.ViolationCount++
	t.UpdatedAt = now
	s.transactions[id] = t
	return nil
}

func (s *memState) Records(_ context.Context, transactionID uuid.UUID) ([]stages.Record, error) {
	records := slices.Clone(s.records[transactionID])
	slices.SortFunc(records, func(a, b stages.Record) int {
		return cmp.Compare(a.Stage, b.Stage)
	})
	if records == nil {
		records = []stages.Record{}
	}
	return records, nil
}

func (s *memState) SaveRecord(_ context.Context, r stages.Record) error {
	records := s.records[r.TransactionID]
	for i := range records {
		if records[i].Stage == r.Stage {
			records[i] = r
			return nil
		}
	}
	return fmt.Errorf("%w: stage %s of transaction %s", ErrNotFound, r.Stage, r.TransactionID)
}

func (s *memState) CreateCertificate(_ context.Context, c certificates.Certificate) error {
	if _, ok := s.certificates[c.ID]; ok {
		return fmt.Errorf("%w: %s", certificates.ErrDuplicate, c.ID)
	}
	for _, existing := range s.certificates {
		if existing.Number == c.Number {
			return fmt.Errorf("%w: %s", certificates.ErrDuplicate, c.Number)
		}
	}
	s.certificates[c.ID] = c
	return nil
}

func (s *memState) Certificate(_ context.Context, id uuid.UUID) (certificates.Certificate, error) {
	c, ok := s.certificates[id]
	if !ok {
		return c, fmt.Errorf("%w: certificate %s", ErrNotFound, id)
	}
	return c, nil
}

func (s *memState) CreateResolution(_ context.Context, r Resolution) error {
	s.resolutions = append(s.resolutions, r)
	return nil
}

func (s *memState) MarkReprocessed(_ context.Context, id uuid.UUID) error {
	for i := range s.resolutions {
		if s.resolutions[i].ID == id {
			s.resolutions[i].Reprocessed = true
			return nil
		}
	}
	return fmt.Errorf("%w: resolution %s", ErrNotFound, id)
}

func (s *memState) Resolutions(_ context.Context, transactionID uuid.UUID) ([]Resolution, error) {
	out := make([]Resolution, 0)
	for i := len(s.resolutions) - 1; i >= 0; i-- {
		if s.resolutions[i].TransactionID == transactionID {
			out = append(out, s.resolutions[i])
		}
	}
	return out, nil
}

func (s *memState) AppendLog(_ context.Context, e auditlog.Entry) error {
	s.logs = append(s.logs, e)
	return nil
}

func (s *memState) Logs(_ context.Context, transactionID uuid.UUID, limit int) ([]auditlog.Entry, error) {
	out := make([]auditlog.Entry, 0)
	for i := len(s.logs) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.logs[i]
		if e.TransactionID != nil && *e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}
