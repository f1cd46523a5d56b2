package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/tawarruq/internal/api"
	"github.com/JaimeStill/tawarruq/internal/config"
	"github.com/JaimeStill/tawarruq/internal/infrastructure"
	"github.com/JaimeStill/tawarruq/internal/scoring"
	"github.com/JaimeStill/tawarruq/pkg/database"
	"github.com/JaimeStill/tawarruq/pkg/locking"
	"github.com/JaimeStill/tawarruq/pkg/middleware"
	"github.com/JaimeStill/tawarruq/pkg/module"
	"github.com/JaimeStill/tawarruq/pkg/openapi"
	"github.com/JaimeStill/tawarruq/pkg/pagination"
	"github.com/JaimeStill/tawarruq/pkg/storage"
)

func validConfig() *config.Config {
	return &config.Config{
		Database: database.Config{
			Driver:      database.DriverSQLite,
			Path:        ":memory:",
			ConnTimeout: "5s",
			AutoMigrate: true,
		},
		Storage: storage.Config{ContainerName: "certificates"},
		API: config.APIConfig{
			BasePath:    "/api",
			MaxBodySize: "64KB",
			CORS:        middleware.CORSConfig{Enabled: false},
			Pagination: pagination.Config{
				DefaultPageSize: 20,
				MaxPageSize:     100,
			},
			OpenAPI: openapi.Config{Title: "Tawarruq API", Description: "test"},
		},
		Locking: locking.Config{
			Backend:       locking.BackendLocal,
			TTL:           "30s",
			RetryInterval: "10ms",
			RetryLimit:    3,
		},
		Advisor: scoring.Config{
			Provider: scoring.ProviderRules,
			Model:    "gemini-1.5-flash",
			Timeout:  "30s",
		},
		LogLevel:        "error",
		LogFormat:       config.LogFormatText,
		ShutdownTimeout: "30s",
		Version:         "0.1.0",
	}
}

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := validConfig()

	infra, err := infrastructure.New(cfg)
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}
	t.Cleanup(func() { infra.Lifecycle.Shutdown(5 * time.Second) })

	if err := infra.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	infra.Lifecycle.WaitForStartup()

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	router := module.NewRouter()
	router.Mount(m)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, out any) int {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestNewModule(t *testing.T) {
	cfg := validConfig()

	infra, err := infrastructure.New(cfg)
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	if m.Prefix() != "/api" {
		t.Errorf("prefix = %s, want /api", m.Prefix())
	}
}

func TestComplianceFlow(t *testing.T) {
	srv := setupServer(t)

	var created struct {
		ID        string `json:"id"`
		Reference string `json:"reference"`
		Stages    []struct {
			Stage  string `json:"stage"`
			Status string `json:"status"`
		} `json:"stages"`
	}
	status := do(t, srv, "POST", "/api/transactions",
		`{"customerName":"Aisyah Rahman","customerId":"CUST-1001","commodityType":"CPO","amount":150000}`, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", status)
	}
	if len(created.Stages) != 3 || !strings.HasPrefix(created.Reference, "TXN-") {
		t.Fatalf("created = %+v", created)
	}

	base := "/api/transactions/" + created.ID

	for _, stage := range []string{"T0", "T1"} {
		if status := do(t, srv, "POST", base+"/stages", `{"stage":"`+stage+`","status":"COMPLETED"}`, nil); status != http.StatusOK {
			t.Fatalf("complete %s status = %d", stage, status)
		}
	}
	if status := do(t, srv, "POST", base+"/stages", `{"stage":"T2","status":"FAILED"}`, nil); status != http.StatusOK {
		t.Fatalf("fail T2 status = %d", status)
	}

	var tx struct {
		Status string `json:"status"`
	}
	do(t, srv, "GET", base, "", &tx)
	if tx.Status != "VIOLATION" {
		t.Errorf("status = %s, want VIOLATION", tx.Status)
	}

	var certs []map[string]any
	if status := do(t, srv, "GET", base+"/certificates", "", &certs); status != http.StatusOK {
		t.Fatalf("certificates status = %d", status)
	}
	if len(certs) != 2 {
		t.Errorf("len(certificates) = %d, want 2", len(certs))
	}

	var resolved struct {
		StagesReset []string `json:"stagesReset"`
	}
	if status := do(t, srv, "POST", base+"/resolve", `{"notes":"Buyer confirmed replacement settlement"}`, &resolved); status != http.StatusOK {
		t.Fatalf("resolve status = %d", status)
	}
	if len(resolved.StagesReset) != 1 || resolved.StagesReset[0] != "T2" {
		t.Errorf("stagesReset = %v, want [T2]", resolved.StagesReset)
	}

	if status := do(t, srv, "POST", base+"/resolve", `{"notes":"again"}`, nil); status != http.StatusConflict {
		t.Errorf("second resolve status = %d, want 409", status)
	}

	var report struct {
		ComplianceScore int    `json:"complianceScore"`
		GeneratedBy     string `json:"generatedBy"`
	}
	do(t, srv, "GET", base+"/score?advisor=true", "", &report)
	if report.GeneratedBy != scoring.GeneratedByRules {
		t.Errorf("generatedBy = %s, want rules", report.GeneratedBy)
	}

	var logs struct {
		Total int `json:"total"`
	}
	if status := do(t, srv, "GET", "/api/logs?transactionId="+created.ID, "", &logs); status != http.StatusOK {
		t.Fatalf("logs status = %d", status)
	}
	if logs.Total < 5 {
		t.Errorf("log total = %d, want at least 5", logs.Total)
	}
}

func TestRequestErrors(t *testing.T) {
	srv := setupServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown transaction", "GET", "/api/transactions/00000000-0000-0000-0000-000000000001/order", "", http.StatusNotFound},
		{"bad id", "POST", "/api/transactions/abc/stages", `{"stage":"T0","status":"COMPLETED"}`, http.StatusBadRequest},
		{"body too large", "POST", "/api/transactions", `{"customerName":"` + strings.Repeat("x", 70*1024) + `"}`, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := do(t, srv, tt.method, tt.path, tt.body, nil); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOpenAPIDocument(t *testing.T) {
	srv := setupServer(t)

	var doc struct {
		Info struct {
			Title   string `json:"title"`
			Version string `json:"version"`
		} `json:"info"`
		Paths map[string]any `json:"paths"`
	}
	if status := do(t, srv, "GET", "/api/openapi.json", "", &doc); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	if doc.Info.Title != "Tawarruq API" || doc.Info.Version != "0.1.0" {
		t.Errorf("info = %+v", doc.Info)
	}
	for _, path := range []string{
		"/transactions",
		"/transactions/{id}/stages",
		"/transactions/{id}/resolve",
		"/transactions/{id}/certificates",
		"/certificates/{id}/download",
		"/logs/recent",
	} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("missing path %s", path)
		}
	}
}
