package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/tawarruq/internal/config"
	"github.com/JaimeStill/tawarruq/internal/scoring"
	"github.com/JaimeStill/tawarruq/pkg/database"
	"github.com/JaimeStill/tawarruq/pkg/locking"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"
log_level = "debug"

[server]
host = "0.0.0.0"
port = 8080

[database]
host = "localhost"
port = 5432
name = "tawarruq"
user = "tawarruq"
password = "tawarruq"

[storage]
container_name = "certificates"

[api]
base_path = "/api"

[api.pagination]
default_page_size = 25
max_page_size = 50

[locking]
backend = "local"
retry_limit = 5

[advisor]
provider = "rules"
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[locking]
backend = "redis"
addr = "redis:6379"
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != database.DriverPostgres {
		t.Errorf("db driver: got %s, want %s", cfg.Database.Driver, database.DriverPostgres)
	}
	if cfg.Storage.ContainerName != "certificates" {
		t.Errorf("storage container: got %s, want certificates", cfg.Storage.ContainerName)
	}
	if cfg.Storage.Enabled() {
		t.Error("storage should be disabled without a connection string")
	}
	if cfg.API.Pagination.DefaultPageSize != 25 || cfg.API.Pagination.MaxPageSize != 50 {
		t.Errorf("pagination: got %+v", cfg.API.Pagination)
	}
	if cfg.API.MaxBodySizeBytes() != 1<<20 {
		t.Errorf("max body size: got %d, want 1MB", cfg.API.MaxBodySizeBytes())
	}
	if cfg.Locking.RetryLimit != 5 {
		t.Errorf("locking retry_limit: got %d, want 5", cfg.Locking.RetryLimit)
	}
	if cfg.Advisor.Model != "gemini-1.5-flash" {
		t.Errorf("advisor model: got %s, want default", cfg.Advisor.Model)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("log level: got %s, want DEBUG", cfg.Level())
	}
	if cfg.LogFormat != config.LogFormatText {
		t.Errorf("log format: got %s, want text", cfg.LogFormat)
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	chdir(t, dir)

	t.Setenv("TAWARRUQ_ENV", "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Database.Name != "tawarruq" {
		t.Errorf("db name: got %s, want tawarruq (from base)", cfg.Database.Name)
	}
	if cfg.Locking.Backend != locking.BackendRedis || cfg.Locking.Addr != "redis:6379" {
		t.Errorf("locking: got %s@%s, want redis@redis:6379", cfg.Locking.Backend, cfg.Locking.Addr)
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("TAWARRUQ_VERSION", "2.0.0")
	t.Setenv("TAWARRUQ_SERVER_PORT", "3000")
	t.Setenv("TAWARRUQ_LOG_FORMAT", "JSON")
	t.Setenv("TAWARRUQ_ADVISOR_PROVIDER", "gemini")
	t.Setenv("TAWARRUQ_TELEMETRY_ENABLED", "true")
	t.Setenv("TAWARRUQ_TELEMETRY_ENDPOINT", "http://collector:4318")
	t.Setenv("TAWARRUQ_API_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TAWARRUQ_API_PAGINATION_MAX_PAGE_SIZE", "80")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if cfg.LogFormat != config.LogFormatJSON {
		t.Errorf("log format: got %s, want json", cfg.LogFormat)
	}
	if cfg.Advisor.Provider != scoring.ProviderGemini {
		t.Errorf("advisor provider: got %s, want gemini", cfg.Advisor.Provider)
	}
	if !cfg.Telemetry.Active() {
		t.Error("telemetry should be active")
	}
	if got := cfg.API.CORS.Origins; len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("cors origins: got %q", got)
	}
	if cfg.API.Pagination.MaxPageSize != 80 || cfg.API.Pagination.DefaultPageSize != 25 {
		t.Errorf("pagination: got %+v, want max 80 with base default 25", cfg.API.Pagination)
	}
}

func TestLoadMalformedEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("TAWARRUQ_SERVER_PORT", "eighty")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	writeConfig(t, dir, ".env", "TAWARRUQ_DB_DRIVER=sqlite\nTAWARRUQ_DB_PATH=ledger.db\nTAWARRUQ_SERVER_PORT=7000\n")
	chdir(t, dir)

	t.Setenv("TAWARRUQ_SERVER_PORT", "7100")
	t.Cleanup(func() {
		os.Unsetenv("TAWARRUQ_DB_DRIVER")
		os.Unsetenv("TAWARRUQ_DB_PATH")
	})

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Database.Driver != database.DriverSQLite || cfg.Database.Path != "ledger.db" {
		t.Errorf("database: got %s %s, want sqlite ledger.db", cfg.Database.Driver, cfg.Database.Path)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("server port: got %d, want 7100 (real env wins)", cfg.Server.Port)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	t.Setenv("TAWARRUQ_DB_NAME", "testdb")
	t.Setenv("TAWARRUQ_DB_USER", "testuser")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080 (default)", cfg.Server.Port)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("db name: got %s, want testdb", cfg.Database.Name)
	}
	if cfg.Locking.Backend != locking.BackendLocal {
		t.Errorf("locking backend: got %s, want local (default)", cfg.Locking.Backend)
	}
	if cfg.Advisor.Provider != scoring.ProviderRules {
		t.Errorf("advisor provider: got %s, want rules (default)", cfg.Advisor.Provider)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"malformed", "server = [", "parse config"},
		{"log level", "log_level = \"loud\"\n[database]\nname = \"x\"\nuser = \"x\"\n", "log_level"},
		{"log format", "log_format = \"xml\"\n[database]\nname = \"x\"\nuser = \"x\"\n", "log_format"},
		{"driver", "[database]\ndriver = \"oracle\"\n", "database"},
		{"port", "[server]\nport = 70000\n[database]\nname = \"x\"\nuser = \"x\"\n", "server"},
		{"body size", "[api]\nmax_body_size = \"lots\"\n[database]\nname = \"x\"\nuser = \"x\"\n", "api"},
		{"advisor", "[advisor]\nprovider = \"oracle\"\n[database]\nname = \"x\"\nuser = \"x\"\n", "advisor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, "config.toml", tt.content)
			chdir(t, dir)

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestEnv(t *testing.T) {
	cfg := &config.Config{}
	if got := cfg.Env(); got != "local" {
		t.Errorf("env: got %s, want local", got)
	}

	t.Setenv("TAWARRUQ_ENV", "production")
	if got := cfg.Env(); got != "production" {
		t.Errorf("env: got %s, want production", got)
	}
}

func TestShutdownTimeoutDuration(t *testing.T) {
	cfg := &config.Config{ShutdownTimeout: "45s"}
	if got := cfg.ShutdownTimeoutDuration(); got != 45*time.Second {
		t.Errorf("shutdown timeout: got %v, want 45s", got)
	}
}

func TestServerAddr(t *testing.T) {
	cfg := &config.ServerConfig{Host: "127.0.0.1", Port: 8443}
	if got := cfg.Addr(); got != "127.0.0.1:8443" {
		t.Errorf("addr: got %s, want 127.0.0.1:8443", got)
	}
}
