package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	generativelanguage "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	"cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/proto"

	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/internal/transactions"
	"github.com/JaimeStill/tawarruq/pkg/formatting"
)

const (
	geminiTopK = 40
	geminiTopP = 0.95

	// defaultModelScore stands in for a response that omits complianceScore.
	defaultModelScore = 50
)

var errEmptyResponse = errors.New("no content in gemini response")

// Gemini asks a Gemini model for the report and falls back to Score when the
// call or the response parse fails.
type Gemini struct {
	client  *generativelanguage.GenerativeClient
	model   string
	timeout time.Duration
	config  *generativelanguagepb.GenerationConfig
	logger  *slog.Logger
}

func newGemini(ctx context.Context, cfg *Config, logger *slog.Logger, opts ...option.ClientOption) (*Gemini, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)

	client, err := generativelanguage.NewGenerativeRESTClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   "models/" + cfg.Model,
		timeout: cfg.TimeoutDuration(),
		config: &generativelanguagepb.GenerationConfig{
			Temperature:      proto.Float32(float32(cfg.Temperature)),
			TopK:             proto.Int32(geminiTopK),
			TopP:             proto.Float32(geminiTopP),
			MaxOutputTokens:  proto.Int32(int32(cfg.MaxOutputTokens)),
			ResponseMimeType: "application/json",
		},
		logger: logger,
	}, nil
}

func (g *Gemini) Name() string { return ProviderGemini }

// Close releases the client's connections.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Advise(ctx context.Context, tx transactions.Transaction, records []stages.Record) Report {
	report, err := g.generate(ctx, tx, records)
	if err != nil {
		g.logger.Warn("gemini analysis failed, using rule-based scoring",
			"transaction", tx.Reference,
			"error", err,
		)
		return Score(tx, records)
	}
	return report
}

func (g *Gemini) generate(ctx context.Context, tx transactions.Transaction, records []stages.Record) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := &generativelanguagepb.GenerateContentRequest{
		Model: g.model,
		Contents: []*generativelanguagepb.Content{{
			Role: "user",
			Parts: []*generativelanguagepb.Part{{
				Data: &generativelanguagepb.Part_Text{Text: buildPrompt(tx, records)},
			}},
		}},
		GenerationConfig: g.config,
	}

	start := time.Now()
	resp, err := g.client.GenerateContent(ctx, req)
	if err != nil {
		return Report{}, fmt.Errorf("generate content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return Report{}, errEmptyResponse
	}

	parsed, err := formatting.DecodeJSON[modelReport](text)
	if err != nil {
		return Report{}, err
	}

	g.logger.Info("gemini analysis completed",
		"transaction", tx.Reference,
		"duration", time.Since(start),
	)

	return parsed.report(), nil
}

func responseText(resp *generativelanguagepb.GenerateContentResponse) string {
	candidates := resp.GetCandidates()
	if len(candidates) == 0 {
		return ""
	}
	parts := candidates[0].GetContent().GetParts()
	if len(parts) == 0 {
		return ""
	}
	return parts[0].GetText()
}

type modelFinding struct {
	Stage          string `json:"stage"`
	Issue          string `json:"issue"`
	Severity       string `json:"severity"`
	Recommendation string `json:"recommendation"`
}

type modelReport struct {
	Summary         string         `json:"summary"`
	ComplianceScore *int           `json:"complianceScore"`
	Findings        []modelFinding `json:"findings"`
	Recommendations []string       `json:"recommendations"`
}

// report normalizes the model's answer. Findings naming an unknown stage are
// dropped and unknown severities become medium.
func (m modelReport) report() Report {
	r := Report{
		Summary:         m.Summary,
		ComplianceScore: defaultModelScore,
		Findings:        make([]Finding, 0, len(m.Findings)),
		Recommendations: m.Recommendations,
		GeneratedBy:     GeneratedByGemini,
	}

	if r.Summary == "" {
		r.Summary = "Unable to generate summary"
	}
	if m.ComplianceScore != nil {
		r.ComplianceScore = max(0, min(maxScore, *m.ComplianceScore))
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}

	for _, f := range m.Findings {
		stage, err := stages.ParseStage(strings.TrimSpace(f.Stage))
		if err != nil {
			continue
		}
		sev := Severity(strings.ToLower(f.Severity))
		switch sev {
		case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		default:
			sev = SeverityMedium
		}
		r.Findings = append(r.Findings, Finding{
			Stage:          stage,
			Issue:          f.Issue,
			Severity:       sev,
			Recommendation: f.Recommendation,
		})
	}

	return r
}

func buildPrompt(tx transactions.Transaction, records []stages.Record) string {
	var b strings.Builder

	b.WriteString("You are an expert Islamic finance Shariah auditor. ")
	b.WriteString("Analyze the following Tawarruq commodity trading transaction and provide a compliance audit.\n\n")

	b.WriteString("TRANSACTION DETAILS:\n")
	fmt.Fprintf(&b, "- Transaction ID: %s\n", tx.Reference)
	fmt.Fprintf(&b, "- Customer: %s (ID: %s)\n", tx.CustomerName, tx.CustomerID)
	fmt.Fprintf(&b, "- Commodity: %s\n", tx.CommodityType)
	fmt.Fprintf(&b, "- Amount: %s %s\n", tx.Currency, tx.Amount.StringFixed(2))
	fmt.Fprintf(&b, "- Status: %s\n", tx.Status)
	fmt.Fprintf(&b, "- Shariah Status: %s\n\n", tx.ShariahStatus)

	b.WriteString("AUDIT EVENTS:\n")
	for _, r := range records {
		cert := "No"
		if r.CertificateID != nil {
			cert = "Yes"
		}
		fmt.Fprintf(&b, "- %s (%s): Status=%s, Time=%s, Certificate=%s\n",
			r.Stage, r.StageName, r.Status, r.StartedAt.UTC().Format(time.RFC3339), cert)
	}

	b.WriteString(`
TAWARRUQ REQUIREMENTS:
1. T0 (Wakalah Agreement): Principal appoints agent - must be signed FIRST
2. T1 (Qabd): Agent purchases commodity - must happen AFTER T0
3. T2 (Liquidation): Murabahah sale - must happen AFTER T1, asset must be possessed

Respond in the following JSON format ONLY (no other text):
{
  "summary": "Brief summary of audit findings",
  "complianceScore": <number 0-100>,
  "findings": [
    {
      "stage": "T0|T1|T2",
      "issue": "Description of issue",
      "severity": "low|medium|high|critical",
      "recommendation": "How to resolve"
    }
  ],
  "recommendations": ["General recommendation 1", "General recommendation 2"]
}`)

	return b.String()
}
