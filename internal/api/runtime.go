package api

import (
	"github.com/JaimeStill/tawarruq/internal/config"
	"github.com/JaimeStill/tawarruq/internal/infrastructure"
	"github.com/JaimeStill/tawarruq/internal/scoring"
	"github.com/JaimeStill/tawarruq/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Advisor    *scoring.Config
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	scoped := *infra
	scoped.Logger = infra.Logger.With("module", "api")

	return &Runtime{
		Infrastructure: &scoped,
		Pagination:     cfg.API.Pagination,
		Advisor:        &cfg.Advisor,
	}
}
