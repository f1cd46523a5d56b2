package scoring

import (
	"context"
	"log/slog"

	"google.golang.org/api/option"

	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/internal/transactions"
)

// Advisor produces a compliance report. Advise never fails: implementations
// backed by a remote model fall back to Score.
type Advisor interface {
	Name() string
	Advise(ctx context.Context, tx transactions.Transaction, records []stages.Record) Report
}

// Rules is the Advisor backed by Score alone.
type Rules struct{}

func (Rules) Name() string { return ProviderRules }

func (Rules) Advise(_ context.Context, tx transactions.Transaction, records []stages.Record) Report {
	return Score(tx, records)
}

// New creates the Advisor selected by cfg.Provider. A gemini provider without
// an API key degrades to Rules. opts are appended to the Gemini client options.
func New(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...option.ClientOption) (Advisor, error) {
	logger = logger.With("system", "scoring", "provider", cfg.Provider)

	if cfg.Provider != ProviderGemini {
		return Rules{}, nil
	}

	if cfg.APIKey == "" {
		logger.Warn("gemini api key not configured, using rule-based scoring")
		return Rules{}, nil
	}

	return newGemini(ctx, cfg, logger, opts...)
}
