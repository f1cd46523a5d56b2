package telemetry_test

import (
	"context"
	"testing"

	"github.com/JaimeStill/tawarruq/pkg/telemetry"
)

func TestActive(t *testing.T) {
	tests := []struct {
		name string
		cfg  telemetry.Config
		want bool
	}{
		{"disabled", telemetry.Config{Endpoint: "http://collector:4318"}, false},
		{"no endpoint", telemetry.Config{Enabled: true}, false},
		{"enabled", telemetry.Config{Enabled: true, Endpoint: "http://collector:4318"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Active(); got != tt.want {
				t.Errorf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFinalize(t *testing.T) {
	cfg := telemetry.Config{Enabled: true, Endpoint: "http://collector:4318"}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if cfg.ServiceName != "tawarruq" {
		t.Errorf("service name = %q, want tawarruq", cfg.ServiceName)
	}
	if !cfg.Active() {
		t.Error("expected active config")
	}
}

func TestSetupInactiveIsNoop(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), &telemetry.Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown: %v", err)
	}
}
