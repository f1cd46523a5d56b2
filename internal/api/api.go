// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/tawarruq/internal/config"
	"github.com/JaimeStill/tawarruq/internal/infrastructure"
	"github.com/JaimeStill/tawarruq/pkg/middleware"
	"github.com/JaimeStill/tawarruq/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(runtime)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg); err != nil {
		return nil, err
	}

	m, err := module.New(cfg.API.BasePath, mux)
	if err != nil {
		return nil, err
	}
	m.Use(
		middleware.Recover(runtime.Logger),
		middleware.Tracing("github.com/JaimeStill/tawarruq/internal/api"),
		middleware.CORS(&cfg.API.CORS),
		middleware.BodyLimit(cfg.API.MaxBodySizeBytes()),
		middleware.Logger(runtime.Logger),
	)

	return m, nil
}
