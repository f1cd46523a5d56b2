package compliance_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/internal/compliance"
	"github.com/JaimeStill/tawarruq/internal/scoring"
	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/pkg/routes"
)

type mockSystem struct {
	advanceFn     func(ctx context.Context, id uuid.UUID, cmd compliance.AdvanceCommand) (*stages.Record, error)
	orderFn       func(ctx context.Context, id uuid.UUID) (*stages.OrderResult, error)
	resolveFn     func(ctx context.Context, id uuid.UUID, cmd compliance.ResolveCommand) (*compliance.ResolveResult, error)
	resolutionsFn func(ctx context.Context, id uuid.UUID) ([]compliance.Resolution, error)
	scoreFn       func(ctx context.Context, id uuid.UUID, useAdvisor bool) (*scoring.Report, error)
	timelineFn    func(ctx context.Context, id uuid.UUID) (*compliance.Timeline, error)
}

func (m *mockSystem) Handler() *compliance.Handler {
	return compliance.NewHandler(m, discard())
}

func (m *mockSystem) AdvanceStage(ctx context.Context, id uuid.UUID, cmd compliance.AdvanceCommand) (*stages.Record, error) {
	return m.advanceFn(ctx, id, cmd)
}

func (m *mockSystem) OrderValidity(ctx context.Context, id uuid.UUID) (*stages.OrderResult, error) {
	return m.orderFn(ctx, id)
}

func (m *mockSystem) Resolve(ctx context.Context, id uuid.UUID, cmd compliance.ResolveCommand) (*compliance.ResolveResult, error) {
	return m.resolveFn(ctx, id, cmd)
}

func (m *mockSystem) Resolutions(ctx context.Context, id uuid.UUID) ([]compliance.Resolution, error) {
	return m.resolutionsFn(ctx, id)
}

func (m *mockSystem) Score(ctx context.Context, id uuid.UUID, useAdvisor bool) (*scoring.Report, error) {
	return m.scoreFn(ctx, id, useAdvisor)
}

func (m *mockSystem) Timeline(ctx context.Context, id uuid.UUID) (*compliance.Timeline, error) {
	return m.timelineFn(ctx, id)
}

func setupMux(sys *mockSystem) *http.ServeMux {
	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler().Routes())
	return mux
}

func serve(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandlerAdvanceStage(t *testing.T) {
	id := uuid.New()

	var got compliance.AdvanceCommand
	sys := &mockSystem{
		advanceFn: func(_ context.Context, txID uuid.UUID, cmd compliance.AdvanceCommand) (*stages.Record, error) {
			if txID != id {
				t.Errorf("id = %s, want %s", txID, id)
			}
			got = cmd
			return &stages.Record{TransactionID: txID, Stage: cmd.Stage, Status: cmd.Status}, nil
		},
	}
	mux := setupMux(sys)

	rec := serve(mux, "POST", "/transactions/"+id.String()+"/stages", `{"stage":"T1","status":"COMPLETED"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if got.Stage != stages.T1 || got.Status != stages.StatusCompleted {
		t.Errorf("command = %+v", got)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["stage"] != "T1" {
		t.Errorf("stage = %v, want T1", body["stage"])
	}
}

func TestHandlerAdvanceStageErrors(t *testing.T) {
	id := uuid.New().String()

	tests := []struct {
		name   string
		path   string
		body   string
		err    error
		status int
	}{
		{"invalid id", "/transactions/not-a-uuid/stages", `{"stage":"T0","status":"COMPLETED"}`, nil, http.StatusBadRequest},
		{"unknown stage", "/transactions/" + id + "/stages", `{"stage":"T7","status":"COMPLETED"}`, nil, http.StatusBadRequest},
		{"malformed body", "/transactions/" + id + "/stages", `{`, nil, http.StatusBadRequest},
		{"validation", "/transactions/" + id + "/stages", `{"stage":"T0","status":"PENDING"}`, compliance.ErrValidation, http.StatusBadRequest},
		{"not found", "/transactions/" + id + "/stages", `{"stage":"T0","status":"COMPLETED"}`, compliance.ErrNotFound, http.StatusNotFound},
		{"invalid state", "/transactions/" + id + "/stages", `{"stage":"T0","status":"COMPLETED"}`, compliance.ErrInvalidState, http.StatusConflict},
		{"busy", "/transactions/" + id + "/stages", `{"stage":"T0","status":"COMPLETED"}`, compliance.ErrBusy, http.StatusConflict},
		{"internal", "/transactions/" + id + "/stages", `{"stage":"T0","status":"COMPLETED"}`, errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				advanceFn: func(context.Context, uuid.UUID, compliance.AdvanceCommand) (*stages.Record, error) {
					return nil, tt.err
				},
			}

			rec := serve(setupMux(sys), "POST", tt.path, tt.body)
			if rec.Code != tt.status {
				t.Errorf("status: got %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestHandlerResolve(t *testing.T) {
	id := uuid.New()

	var got compliance.ResolveCommand
	sys := &mockSystem{
		resolveFn: func(_ context.Context, _ uuid.UUID, cmd compliance.ResolveCommand) (*compliance.ResolveResult, error) {
			got = cmd
			if cmd.Notes == "" {
				return nil, compliance.ErrValidation
			}
			return &compliance.ResolveResult{StagesReset: []stages.Stage{stages.T2}}, nil
		},
	}
	mux := setupMux(sys)

	rec := serve(mux, "POST", "/transactions/"+id.String()+"/resolve", `{"notes":"Buyer re-confirmed","resolvedBy":"ops.reviewer"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if got.Notes != "Buyer re-confirmed" || got.ResolvedBy != "ops.reviewer" {
		t.Errorf("command = %+v", got)
	}
	if !strings.Contains(rec.Body.String(), `"stagesReset":["T2"]`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = serve(mux, "POST", "/transactions/"+id.String()+"/resolve", `{"notes":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty notes status: got %d, want 400", rec.Code)
	}
}

func TestHandlerScoreAdvisorFlag(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"", false},
		{"?advisor=true", true},
		{"?advisor=1", true},
		{"?advisor=false", false},
		{"?advisor=maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got bool
			sys := &mockSystem{
				scoreFn: func(_ context.Context, _ uuid.UUID, useAdvisor bool) (*scoring.Report, error) {
					got = useAdvisor
					return &scoring.Report{ComplianceScore: 90, GeneratedBy: scoring.GeneratedByRules}, nil
				},
			}

			rec := serve(setupMux(sys), "GET", "/transactions/"+uuid.NewString()+"/score"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200", rec.Code)
			}
			if got != tt.want {
				t.Errorf("useAdvisor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandlerReads(t *testing.T) {
	id := uuid.New()
	sys := &mockSystem{
		orderFn: func(context.Context, uuid.UUID) (*stages.OrderResult, error) {
			return &stages.OrderResult{Valid: false, OutOfOrder: []stages.Stage{stages.T1}}, nil
		},
		resolutionsFn: func(context.Context, uuid.UUID) ([]compliance.Resolution, error) {
			return []compliance.Resolution{{OriginalStage: stages.T1, ResolvedBy: compliance.DefaultActor}}, nil
		},
		timelineFn: func(_ context.Context, txID uuid.UUID) (*compliance.Timeline, error) {
			return nil, compliance.ErrNotFound
		},
	}
	mux := setupMux(sys)

	rec := serve(mux, "GET", "/transactions/"+id.String()+"/order", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"T1"`) {
		t.Errorf("order: %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(mux, "GET", "/transactions/"+id.String()+"/resolutions", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"originalStage":"T1"`) {
		t.Errorf("resolutions: %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(mux, "GET", "/transactions/"+id.String()+"/audit", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("audit: got %d, want 404", rec.Code)
	}
}
