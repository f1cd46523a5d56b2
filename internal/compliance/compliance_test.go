package compliance_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/tawarruq/internal/compliance"
	"github.com/JaimeStill/tawarruq/internal/scoring"
	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/internal/transactions"
	"github.com/JaimeStill/tawarruq/pkg/locking"
)

var created = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingArchiver struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (a *recordingArchiver) Archive(_ context.Context, id uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, id)
	return a.err
}

type stubAdvisor struct{}

func (stubAdvisor) Name() string { return scoring.ProviderGemini }

func (stubAdvisor) Advise(context.Context, transactions.Transaction, []stages.Record) scoring.Report {
	return scoring.Report{Summary: "model says fine", ComplianceScore: 77, GeneratedBy: scoring.GeneratedByGemini}
}

type fixture struct {
	store    *compliance.MemoryStore
	locker   *locking.Local
	archiver *recordingArchiver
	sys      compliance.System
	tx       transactions.Transaction
}

func seed(store *compliance.MemoryStore, status stages.TransactionStatus, records func(uuid.UUID) []stages.Record) transactions.Transaction {
	tx := transactions.Transaction{
		ID:            uuid.New(),
		Reference:     "TXN-20250115-COMPL1",
		CustomerName:  "Aminah Binti Yusof",
		CustomerID:    "CUST-1001",
		CommodityType: transactions.CommodityCPO,
		Amount:        decimal.NewFromInt(150000),
		Currency:      "MYR",
		Status:        status,
		ShariahStatus: stages.ShariahPendingReview,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	if status == stages.TransactionViolation {
		tx.ShariahStatus = stages.ShariahNonCompliant
	}
	store.Seed(tx, records(tx.ID))
	return tx
}

func fresh(id uuid.UUID) []stages.Record {
	return stages.NewRecords(id, created)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, stages.TransactionPending, fresh)
}

func newFixtureWith(t *testing.T, status stages.TransactionStatus, records func(uuid.UUID) []stages.Record) *fixture {
	t.Helper()
	store := compliance.NewMemoryStore()
	f := &fixture{
		store:    store,
		locker:   locking.NewLocal(0),
		archiver: &recordingArchiver{},
		tx:       seed(store, status, records),
	}
	f.sys = compliance.New(store, f.locker, stubAdvisor{}, f.archiver, discard())
	return f
}

func (f *fixture) advance(t *testing.T, stage stages.Stage, status stages.Status) *stages.Record {
	t.Helper()
	r, err := f.sys.AdvanceStage(context.Background(), f.tx.ID, compliance.AdvanceCommand{Stage: stage, Status: status})
	if err != nil {
		t.Fatalf("AdvanceStage(%s, %s) error = %v", stage, status, err)
	}
	return r
}

func (f *fixture) transaction(t *testing.T) transactions.Transaction {
	t.Helper()
	tx, err := f.store.Transaction(context.Background(), f.tx.ID)
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
	return tx
}

func (f *fixture) records(t *testing.T) stages.Triple {
	t.Helper()
	records, err := f.store.Records(context.Background(), f.tx.ID)
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	return stages.Index(records)
}

func (f *fixture) resolve(t *testing.T, notes string) *compliance.ResolveResult {
	t.Helper()
	res, err := f.sys.Resolve(context.Background(), f.tx.ID, compliance.ResolveCommand{Notes: notes, ResolvedBy: "auditor@bank.example"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return res
}

func TestAdvanceStageLifecycle(t *testing.T) {
	f := newFixture(t)

	f.advance(t, stages.T0, stages.StatusInProgress)
	if tx := f.transaction(t); tx.Status != stages.TransactionProcessing || tx.ShariahStatus != stages.ShariahPendingReview {
		t.Errorf("after IN_PROGRESS aggregate = %s/%s, want PROCESSING/PENDING_REVIEW", tx.Status, tx.ShariahStatus)
	}

	r := f.advance(t, stages.T0, stages.StatusCompleted)
	if r.CompletedAt == nil || r.CertificateID == nil {
		t.Fatalf("completed record = %+v, want completedAt and certificateId", r)
	}
	if tx := f.transaction(t); tx.Status != stages.TransactionProcessing {
		t.Errorf("status after T0 completed = %s, want unchanged PROCESSING", tx.Status)
	}

	f.advance(t, stages.T1, stages.StatusCompleted)
	f.advance(t, stages.T2, stages.StatusCompleted)

	tx := f.transaction(t)
	if tx.Status != stages.TransactionCompleted || tx.ShariahStatus != stages.ShariahCompliant {
		t.Errorf("final aggregate = %s/%s, want COMPLETED/COMPLIANT", tx.Status, tx.ShariahStatus)
	}

	certs := f.store.Certificates(f.tx.ID)
	if len(certs) != 3 {
		t.Fatalf("certificates = %d, want 3", len(certs))
	}
	if len(f.archiver.ids) != 3 {
		t.Errorf("archived = %d, want 3", len(f.archiver.ids))
	}

	triple := f.records(t)
	for _, s := range stages.All {
		rec := triple[s]
		if rec.Status != stages.StatusCompleted || rec.CertificateID == nil {
			t.Errorf("%s = %+v, want COMPLETED with certificate", s, rec)
		}
	}

	order, err := f.sys.OrderValidity(context.Background(), f.tx.ID)
	if err != nil {
		t.Fatalf("OrderValidity() error = %v", err)
	}
	if !order.Valid || len(order.OutOfOrder) != 0 {
		t.Errorf("order = %+v, want valid", order)
	}

	report, err := f.sys.Score(context.Background(), f.tx.ID, false)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if report.ComplianceScore != 100 || len(report.Findings) != 0 {
		t.Errorf("report = %+v, want 100 with no findings", report)
	}
}

func TestAdvanceStageFailedForcesViolation(t *testing.T) {
	f := newFixture(t)

	r := f.advance(t, stages.T1, stages.StatusFailed)
	if r.CompletedAt != nil || r.CertificateID != nil {
		t.Errorf("failed record = %+v, want no completedAt or certificate", r)
	}

	tx := f.transaction(t)
	if tx.Status != stages.TransactionViolation || tx.ShariahStatus != stages.ShariahNonCompliant {
		t.Errorf("aggregate = %s/%s, want VIOLATION/NON_COMPLIANT", tx.Status, tx.ShariahStatus)
	}
	if certs := f.store.Certificates(f.tx.ID); len(certs) != 0 {
		t.Errorf("certificates = %d, want 0", len(certs))
	}

	logs, err := f.store.Logs(context.Background(), f.tx.ID, 10)
	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	var stageLog, statusLog bool
	for _, e := range logs {
		switch e.EventType {
		case "T1_FAILED":
			stageLog = true
			if e.Severity != "ERROR" || e.Message != "Audit stage T1 failed" {
				t.Errorf("stage log = %+v", e)
			}
		case "STATUS_UPDATED":
			statusLog = true
			if e.Severity != "ERROR" {
				t.Errorf("status log severity = %s, want ERROR", e.Severity)
			}
		}
	}
	if !stageLog || !statusLog {
		t.Errorf("logs = %+v, want T1_FAILED and STATUS_UPDATED", logs)
	}
}

func TestAdvanceStageRejects(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*testing.T, *fixture)
		id      func(*fixture) uuid.UUID
		cmd     compliance.AdvanceCommand
		wantErr error
	}{
		{
			name:    "unknown stage",
			cmd:     compliance.AdvanceCommand{Stage: stages.Stage(7), Status: stages.StatusCompleted},
			wantErr: compliance.ErrValidation,
		},
		{
			name:    "pending is not a transition",
			cmd:     compliance.AdvanceCommand{Stage: stages.T0, Status: stages.StatusPending},
			wantErr: compliance.ErrValidation,
		},
		{
			name:    "unknown transaction",
			id:      func(*fixture) uuid.UUID { return uuid.New() },
			cmd:     compliance.AdvanceCommand{Stage: stages.T0, Status: stages.StatusCompleted},
			wantErr: compliance.ErrNotFound,
		},
		{
			name:    "failed stage is frozen",
			prepare: func(t *testing.T, f *fixture) { f.advance(t, stages.T0, stages.StatusFailed) },
			cmd:     compliance.AdvanceCommand{Stage: stages.T0, Status: stages.StatusCompleted},
			wantErr: compliance.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.prepare != nil {
				tt.prepare(t, f)
			}
			id := f.tx.ID
			if tt.id != nil {
				id = tt.id(f)
			}
			before := len(f.store.Certificates(f.tx.ID))

			_, err := f.sys.AdvanceStage(context.Background(), id, tt.cmd)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AdvanceStage() error = %v, want %v", err, tt.wantErr)
			}
			if after := len(f.store.Certificates(f.tx.ID)); after != before {
				t.Errorf("certificates changed from %d to %d", before, after)
			}
		})
	}
}

func TestAdvanceStageRevokesCompleted(t *testing.T) {
	f := newFixture(t)

	done := f.advance(t, stages.T0, stages.StatusCompleted)
	revoked := f.advance(t, stages.T0, stages.StatusFailed)

	if revoked.CertificateID == nil || *revoked.CertificateID != *done.CertificateID {
		t.Errorf("revoked certificate = %v, want kept %v", revoked.CertificateID, done.CertificateID)
	}
	if tx := f.transaction(t); tx.Status != stages.TransactionViolation {
		t.Errorf("status = %s, want VIOLATION", tx.Status)
	}
}

func TestAdvanceStageRecompletes(t *testing.T) {
	f := newFixture(t)

	first := f.advance(t, stages.T0, stages.StatusCompleted)
	second := f.advance(t, stages.T0, stages.StatusCompleted)

	if second.CertificateID == nil || *second.CertificateID == *first.CertificateID {
		t.Fatalf("certificate = %v, want a new one after %v", second.CertificateID, first.CertificateID)
	}
	if n := len(f.store.Certificates(f.tx.ID)); n != 2 {
		t.Errorf("certificates = %d, want 2", n)
	}

	rerun := f.advance(t, stages.T0, stages.StatusInProgress)
	if rerun.Status != stages.StatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", rerun.Status)
	}
	if rerun.CertificateID == nil || *rerun.CertificateID != *second.CertificateID {
		t.Errorf("certificate = %v, want kept %v", rerun.CertificateID, second.CertificateID)
	}
	if tx := f.transaction(t); tx.Status != stages.TransactionProcessing {
		t.Errorf("status = %s, want PROCESSING", tx.Status)
	}
}

func TestAdvanceStageArchiveFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.archiver.err = errors.New("storage unavailable")

	r := f.advance(t, stages.T0, stages.StatusCompleted)
	if r.CertificateID == nil {
		t.Fatal("certificate not linked")
	}
	if len(f.archiver.ids) != 1 || f.archiver.ids[0] != *r.CertificateID {
		t.Errorf("archived = %v, want %v", f.archiver.ids, *r.CertificateID)
	}
}

func TestAdvanceStageBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	held, err := f.locker.Obtain(ctx, "transaction:"+f.tx.ID.String())
	if err != nil {
		t.Fatalf("Obtain() error = %v", err)
	}

	_, err = f.sys.AdvanceStage(ctx, f.tx.ID, compliance.AdvanceCommand{Stage: stages.T0, Status: stages.StatusCompleted})
	if !errors.Is(err, compliance.ErrBusy) {
		t.Errorf("AdvanceStage() error = %v, want ErrBusy", err)
	}
	if _, err := f.sys.Resolve(ctx, f.tx.ID, compliance.ResolveCommand{Notes: "retry"}); !errors.Is(err, compliance.ErrBusy) {
		t.Errorf("Resolve() error = %v, want ErrBusy", err)
	}

	if err := held.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	f.advance(t, stages.T0, stages.StatusCompleted)

	if f.locker.Len() != 0 {
		t.Errorf("locker.Len() = %d, want 0 after release", f.locker.Len())
	}
}

func TestResolveFailedLiquidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.advance(t, stages.T0, stages.StatusCompleted)
	f.advance(t, stages.T1, stages.StatusCompleted)
	f.advance(t, stages.T2, stages.StatusFailed)

	report, err := f.sys.Score(ctx, f.tx.ID, false)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if report.ComplianceScore > 80 {
		t.Errorf("score = %d, want <= 80", report.ComplianceScore)
	}
	if !slices.ContainsFunc(report.Findings, func(fd scoring.Finding) bool {
		return fd.Stage == stages.T2 && fd.Severity == scoring.SeverityHigh
	}) {
		t.Errorf("findings = %+v, want high T2 finding", report.Findings)
	}

	res := f.resolve(t, "  Buyer withdrew; re-run liquidation.  ")

	if !slices.Equal(res.StagesReset, []stages.Stage{stages.T2}) {
		t.Errorf("StagesReset = %v, want [T2]", res.StagesReset)
	}
	if !res.Resolution.Reprocessed {
		t.Error("Reprocessed = false, want true")
	}
	if res.Resolution.OriginalStage != stages.T2 || res.Resolution.ResolutionNotes != "Buyer withdrew; re-run liquidation." {
		t.Errorf("resolution = %+v", res.Resolution)
	}

	ai := res.AIReanalysis
	if ai.OriginalIssue != "stage T2 failed" || !ai.StageOrderValid || ai.Recommendation != "re-process from failed stage" {
		t.Errorf("reanalysis = %+v", ai)
	}
	if ai.ComplianceScore != report.ComplianceScore || ai.GeneratedBy != scoring.GeneratedByRules {
		t.Errorf("reanalysis score = %d/%s, want %d/rules", ai.ComplianceScore, ai.GeneratedBy, report.ComplianceScore)
	}

	tx := f.transaction(t)
	if tx.Status != stages.TransactionProcessing || tx.ShariahStatus != stages.ShariahPendingReview {
		t.Errorf("aggregate = %s/%s, want PROCESSING/PENDING_REVIEW", tx.Status, tx.ShariahStatus)
	}
	if tx.ViolationCount != 1 {
		t.Errorf("ViolationCount = %d, want 1", tx.ViolationCount)
	}

	triple := f.records(t)
	if t2 := triple[stages.T2]; t2.Status != stages.StatusPending || t2.CompletedAt != nil || t2.CertificateID != nil {
		t.Errorf("T2 = %+v, want reset", t2)
	}
	if triple[stages.T1].Status != stages.StatusCompleted {
		t.Errorf("T1 = %s, want untouched COMPLETED", triple[stages.T1].Status)
	}

	history, err := f.sys.Resolutions(ctx, f.tx.ID)
	if err != nil {
		t.Fatalf("Resolutions() error = %v", err)
	}
	if len(history) != 1 || !history[0].Reprocessed {
		t.Errorf("history = %+v, want one reprocessed resolution", history)
	}
}

func TestResolveOutOfOrder(t *testing.T) {
	f := newFixtureWith(t, stages.TransactionViolation, func(id uuid.UUID) []stages.Record {
		records := fresh(id)
		t10 := created.Add(10 * time.Minute)
		t5 := created.Add(5 * time.Minute)
		records[0].Status, records[0].CompletedAt = stages.StatusCompleted, &t10
		records[1].Status, records[1].CompletedAt = stages.StatusFailed, &t5
		return records
	})

	order, err := f.sys.OrderValidity(context.Background(), f.tx.ID)
	if err != nil {
		t.Fatalf("OrderValidity() error = %v", err)
	}
	if order.Valid || !slices.Equal(order.OutOfOrder, []stages.Stage{stages.T1}) {
		t.Errorf("order = %+v, want invalid [T1]", order)
	}

	res := f.resolve(t, "T1 recorded before the Wakalah was signed")

	if !slices.Equal(res.StagesReset, []stages.Stage{stages.T1, stages.T2}) {
		t.Errorf("StagesReset = %v, want [T1 T2]", res.StagesReset)
	}
	if res.AIReanalysis.StageOrderValid || res.AIReanalysis.Recommendation != "reset out-of-order stages and re-process in sequence" {
		t.Errorf("reanalysis = %+v", res.AIReanalysis)
	}
	if !slices.Equal(res.AIReanalysis.OutOfOrderStages, []stages.Stage{stages.T1}) {
		t.Errorf("OutOfOrderStages = %v, want [T1]", res.AIReanalysis.OutOfOrderStages)
	}

	triple := f.records(t)
	if triple[stages.T0].Status != stages.StatusCompleted {
		t.Errorf("T0 = %s, want untouched COMPLETED", triple[stages.T0].Status)
	}
	if triple[stages.T1].Status != stages.StatusPending || triple[stages.T1].CompletedAt != nil {
		t.Errorf("T1 = %+v, want reset", triple[stages.T1])
	}
}

func TestResolveRejects(t *testing.T) {
	tests := []struct {
		name    string
		status  stages.TransactionStatus
		prepare func(*testing.T, *fixture)
		id      func(*fixture) uuid.UUID
		notes   string
		wantErr error
	}{
		{name: "not in violation", status: stages.TransactionProcessing, notes: "n/a", wantErr: compliance.ErrInvalidState},
		{
			name:    "blank notes",
			prepare: func(t *testing.T, f *fixture) { f.advance(t, stages.T0, stages.StatusFailed) },
			notes:   "   ",
			wantErr: compliance.ErrValidation,
		},
		{name: "violation without failed stage", status: stages.TransactionViolation, notes: "check", wantErr: compliance.ErrInconsistentState},
		{name: "unknown transaction", id: func(*fixture) uuid.UUID { return uuid.New() }, notes: "check", wantErr: compliance.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := tt.status
			if status == "" {
				status = stages.TransactionPending
			}
			f := newFixtureWith(t, status, fresh)
			if tt.prepare != nil {
				tt.prepare(t, f)
			}
			id := f.tx.ID
			if tt.id != nil {
				id = tt.id(f)
			}

			_, err := f.sys.Resolve(context.Background(), id, compliance.ResolveCommand{Notes: tt.notes})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}

			if tx := f.transaction(t); tx.ViolationCount != 0 {
				t.Errorf("ViolationCount = %d, want 0", tx.ViolationCount)
			}
			history, _ := f.store.Resolutions(context.Background(), f.tx.ID)
			if len(history) != 0 {
				t.Errorf("resolutions = %d, want 0", len(history))
			}
		})
	}
}

// faultyStore fails every stage reset so the second resolution unit aborts.
type faultyStore struct {
	compliance.Store
}

func (s faultyStore) Atomic(ctx context.Context, fn func(compliance.Store) error) error {
	return s.Store.Atomic(ctx, func(inner compliance.Store) error {
		return fn(faultyStore{inner})
	})
}

func (s faultyStore) SaveRecord(ctx context.Context, r stages.Record) error {
	if r.Status == stages.StatusPending {
		return errors.New("disk full")
	}
	return s.Store.SaveRecord(ctx, r)
}

func TestResolvePartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.advance(t, stages.T0, stages.StatusCompleted)
	f.advance(t, stages.T1, stages.StatusFailed)

	broken := compliance.New(faultyStore{f.store}, f.locker, nil, nil, discard())
	if _, err := broken.Resolve(ctx, f.tx.ID, compliance.ResolveCommand{Notes: "first attempt"}); err == nil {
		t.Fatal("Resolve() error = nil, want reset failure")
	}

	history, err := f.sys.Resolutions(ctx, f.tx.ID)
	if err != nil {
		t.Fatalf("Resolutions() error = %v", err)
	}
	if len(history) != 1 || history[0].Reprocessed {
		t.Fatalf("history = %+v, want one unreprocessed resolution", history)
	}
	tx := f.transaction(t)
	if tx.Status != stages.TransactionViolation || tx.ViolationCount != 1 {
		t.Errorf("after failure = %s/%d, want VIOLATION/1", tx.Status, tx.ViolationCount)
	}
	if f.records(t)[stages.T1].Status != stages.StatusFailed {
		t.Error("T1 reset despite failure")
	}

	pending := history[0]

	res := f.resolve(t, "second attempt")
	if !slices.Equal(res.StagesReset, []stages.Stage{stages.T1, stages.T2}) {
		t.Errorf("StagesReset = %v, want [T1 T2]", res.StagesReset)
	}
	if res.Resolution.ID != pending.ID || res.Resolution.ResolutionNotes != "first attempt" {
		t.Errorf("resolution = %s %q, want resumed %s", res.Resolution.ID, res.Resolution.ResolutionNotes, pending.ID)
	}

	history, _ = f.sys.Resolutions(ctx, f.tx.ID)
	if len(history) != 1 || !history[0].Reprocessed {
		t.Errorf("history = %+v, want the one resolution reprocessed", history)
	}
	if tx := f.transaction(t); tx.Status != stages.TransactionProcessing || tx.ViolationCount != 1 {
		t.Errorf("after retry = %s/%d, want PROCESSING/1", tx.Status, tx.ViolationCount)
	}
}

func TestResetAndRecompleteIssuesNewCertificate(t *testing.T) {
	f := newFixture(t)

	first := f.advance(t, stages.T0, stages.StatusCompleted)
	f.advance(t, stages.T0, stages.StatusFailed)

	res := f.resolve(t, "Wakalah signed with the wrong principal")
	if !slices.Equal(res.StagesReset, []stages.Stage{stages.T0, stages.T1, stages.T2}) {
		t.Fatalf("StagesReset = %v, want [T0 T1 T2]", res.StagesReset)
	}
	if f.records(t)[stages.T0].CertificateID != nil {
		t.Fatal("T0 certificate not cleared by reset")
	}

	second := f.advance(t, stages.T0, stages.StatusCompleted)
	if *second.CertificateID == *first.CertificateID {
		t.Error("re-completion reused the old certificate")
	}

	certs := f.store.Certificates(f.tx.ID)
	if len(certs) != 2 {
		t.Errorf("certificates = %d, want 2 (old one kept as history)", len(certs))
	}
}

func TestTimeline(t *testing.T) {
	f := newFixture(t)

	r := f.advance(t, stages.T0, stages.StatusCompleted)

	timeline, err := f.sys.Timeline(context.Background(), f.tx.ID)
	if err != nil {
		t.Fatalf("Timeline() error = %v", err)
	}

	if len(timeline.Stages) != 3 || timeline.Reference != f.tx.Reference {
		t.Fatalf("timeline = %+v", timeline)
	}

	cert, err := f.store.Certificate(context.Background(), *r.CertificateID)
	if err != nil {
		t.Fatalf("Certificate() error = %v", err)
	}
	if timeline.Stages[0].CertificateNumber != cert.Number {
		t.Errorf("T0 certificate number = %q, want %q", timeline.Stages[0].CertificateNumber, cert.Number)
	}
	if !strings.HasPrefix(cert.Number, "CERT-WAK-") {
		t.Errorf("certificate number = %q, want CERT-WAK- prefix", cert.Number)
	}
	if timeline.Stages[1].CertificateNumber != "" {
		t.Errorf("T1 certificate number = %q, want empty", timeline.Stages[1].CertificateNumber)
	}
	if len(timeline.Logs) == 0 || timeline.Logs[0].EventType != "T0_COMPLETED" {
		t.Errorf("logs = %+v, want T0_COMPLETED first", timeline.Logs)
	}

	if _, err := f.sys.Timeline(context.Background(), uuid.New()); !errors.Is(err, compliance.ErrNotFound) {
		t.Errorf("Timeline(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestScoreAdvisor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rules, err := f.sys.Score(ctx, f.tx.ID, false)
	if err != nil {
		t.Fatalf("Score(rules) error = %v", err)
	}
	if rules.GeneratedBy != scoring.GeneratedByRules || rules.ComplianceScore != 90 {
		t.Errorf("rules report = %+v, want rules/90", rules)
	}

	advised, err := f.sys.Score(ctx, f.tx.ID, true)
	if err != nil {
		t.Fatalf("Score(advisor) error = %v", err)
	}
	if advised.GeneratedBy != scoring.GeneratedByGemini || advised.ComplianceScore != 77 {
		t.Errorf("advisor report = %+v", advised)
	}

	if _, err := f.sys.Score(ctx, uuid.New(), false); !errors.Is(err, compliance.ErrNotFound) {
		t.Errorf("Score(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestInvariantsUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	statuses := []stages.Status{stages.StatusInProgress, stages.StatusCompleted, stages.StatusFailed}
	ctx := context.Background()

	for run := 0; run < 20; run++ {
		f := newFixture(t)

		for step := 0; step < 30; step++ {
			if f.transaction(t).Status == stages.TransactionViolation && rng.IntN(2) == 0 {
				f.resolve(t, "automated review")
			} else {
				cmd := compliance.AdvanceCommand{
					Stage:  stages.All[rng.IntN(3)],
					Status: statuses[rng.IntN(len(statuses))],
				}
				if _, err := f.sys.AdvanceStage(ctx, f.tx.ID, cmd); err != nil && !errors.Is(err, compliance.ErrInvalidState) {
					t.Fatalf("run %d step %d: AdvanceStage(%+v) error = %v", run, step, cmd, err)
				}
			}

			tx := f.transaction(t)
			triple := f.records(t)

			if triple.CompletedCount() == 3 && (tx.Status != stages.TransactionCompleted || tx.ShariahStatus != stages.ShariahCompliant) {
				t.Fatalf("run %d step %d: all completed but aggregate %s/%s", run, step, tx.Status, tx.ShariahStatus)
			}
			if _, failed := triple.EarliestFailed(); failed && tx.Status != stages.TransactionViolation {
				t.Fatalf("run %d step %d: failed stage but status %s", run, step, tx.Status)
			}
			for _, s := range stages.All {
				r := triple[s]
				if r.Status == stages.StatusCompleted && (r.CompletedAt == nil || r.CertificateID == nil) {
					t.Fatalf("run %d step %d: %s completed without completedAt or certificate", run, step, s)
				}
				if r.Status == stages.StatusPending && r.CertificateID != nil {
					t.Fatalf("run %d step %d: %s pending with certificate", run, step, s)
				}
			}
		}
	}
}
