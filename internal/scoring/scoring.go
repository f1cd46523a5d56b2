// Package scoring produces compliance reports for a transaction from its
// stage records. Score is the rule-based scorer; an Advisor may substitute a
// model-generated report and falls back to Score whenever the model fails.
package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/JaimeStill/tawarruq/internal/stages"
	"github.com/JaimeStill/tawarruq/internal/transactions"
	"github.com/JaimeStill/tawarruq/pkg/formatting"
)

// Severity ranks a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Report sources.
const (
	GeneratedByRules  = "rules"
	GeneratedByGemini = "gemini"
)

const maxScore = 100

// Finding is a single compliance issue attributed to a stage.
type Finding struct {
	Stage          stages.Stage `json:"stage"`
	Issue          string       `json:"issue"`
	Severity       Severity     `json:"severity"`
	Recommendation string       `json:"recommendation"`
}

// Report is the outcome of scoring a transaction.
type Report struct {
	Summary         string    `json:"summary"`
	ComplianceScore int       `json:"complianceScore"`
	Findings        []Finding `json:"findings"`
	Recommendations []string  `json:"recommendations"`
	GeneratedBy     string    `json:"generatedBy"`
}

type rule struct {
	penalty int
	finding Finding
}

// Score applies the penalty rules to the stage records of tx. It is a pure
// function of its inputs; missing records are penalized as absent stages.
func Score(tx transactions.Transaction, records []stages.Record) Report {
	t := stages.Index(records)
	t0, t1, t2 := t[stages.T0], t[stages.T1], t[stages.T2]

	var applied []rule

	switch {
	case t0 == nil:
		applied = append(applied, rule{30, Finding{stages.T0, "Wakalah Agreement not found", SeverityCritical,
			"Ensure Wakalah agreement is executed before commodity purchase"}})
	case t0.Status == stages.StatusFailed:
		applied = append(applied, rule{20, Finding{stages.T0, "Wakalah Agreement execution failed", SeverityHigh,
			"Review and re-execute Wakalah agreement"}})
	case t0.Status == stages.StatusPending, t0.Status == stages.StatusInProgress:
		applied = append(applied, rule{10, Finding{stages.T0, "Wakalah Agreement pending completion", SeverityMedium,
			"Complete Wakalah agreement before proceeding"}})
	}

	switch {
	case t1 == nil:
		applied = append(applied, rule{30, Finding{stages.T1, "Qabd confirmation not found", SeverityCritical,
			"Ensure commodity is purchased and Qabd is established"}})
	case t1.Status == stages.StatusFailed:
		applied = append(applied, rule{20, Finding{stages.T1, "Asset purchase failed", SeverityHigh,
			"Verify commodity availability and retry purchase"}})
	case t1.Status == stages.StatusCompleted && t0 != nil && t1.StartedAt.Before(settled(t0)):
		applied = append(applied, rule{15, Finding{stages.T1, "Asset purchased before Wakalah was signed", SeverityHigh,
			"Ensure proper sequence: Wakalah must precede asset purchase"}})
	}

	switch {
	case t2 == nil:
		if t1 != nil && t1.Status == stages.StatusCompleted {
			applied = append(applied, rule{5, Finding{stages.T2, "Liquidation pending - asset held", SeverityLow,
				"Proceed with Murabahah execution when ready"}})
		}
	case t2.Status == stages.StatusFailed:
		applied = append(applied, rule{20, Finding{stages.T2, "Murabahah execution failed", SeverityHigh,
			"Review sale terms and retry liquidation"}})
	case t2.Status == stages.StatusCompleted && t1 != nil && t2.StartedAt.Before(settled(t1)):
		applied = append(applied, rule{25, Finding{stages.T2, "Liquidation occurred before Qabd was established", SeverityCritical,
			"This violates Shariah principle - asset must be possessed before sale"}})
	}

	score := maxScore
	findings := make([]Finding, 0, len(applied))
	for _, r := range applied {
		score -= r.penalty
		findings = append(findings, r.finding)
	}
	score = max(0, min(maxScore, score))

	return Report{
		Summary:         summarize(tx, t.CompletedCount(), findings, score),
		ComplianceScore: score,
		Findings:        findings,
		Recommendations: recommend(tx.Status, findings),
		GeneratedBy:     GeneratedByRules,
	}
}

// settled is the moment a stage is considered done: its completion time, or
// its start time while it has not completed.
func settled(r *stages.Record) time.Time {
	if r.CompletedAt != nil {
		return *r.CompletedAt
	}
	return r.StartedAt
}

func recommend(status stages.TransactionStatus, findings []Finding) []string {
	var recs []string

	if status == stages.TransactionViolation {
		recs = append(recs,
			"Transaction flagged for violation - immediate review required",
			"Engage Shariah committee for resolution",
		)
	}

	if len(findings) == 0 {
		return append(recs,
			"Transaction follows proper Tawarruq sequence",
			"All certificates are in order",
			"Continue monitoring for any anomalies",
		)
	}

	recs = append(recs, "Address identified issues before proceeding")
	if count(findings, SeverityCritical) > 0 {
		recs = append(recs, "Critical issues detected - escalate to Shariah board")
	}
	return recs
}

func summarize(tx transactions.Transaction, completed int, findings []Finding, score int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Tawarruq transaction %s for %s involving %s commodity worth %s. ",
		tx.Reference, tx.CustomerName, tx.CommodityType, formatting.FormatMoney(tx.Currency, tx.Amount))

	switch {
	case score >= 90:
		b.WriteString("The transaction demonstrates excellent Shariah compliance with all stages properly executed. ")
	case score >= 70:
		b.WriteString("The transaction shows good compliance with minor issues to address. ")
	case score >= 50:
		b.WriteString("The transaction has moderate compliance concerns that require attention. ")
	default:
		b.WriteString("The transaction has significant compliance issues that must be resolved immediately. ")
	}

	fmt.Fprintf(&b, "Progress: %d/%d stages completed.", completed, len(stages.All))

	if n := count(findings, SeverityCritical); n > 0 {
		fmt.Fprintf(&b, " %d critical issue(s) detected.", n)
	}
	if n := count(findings, SeverityHigh); n > 0 {
		fmt.Fprintf(&b, " %d high-priority issue(s) found.", n)
	}

	return b.String()
}

func count(findings []Finding, severity Severity) int {
	n := 0
	for _, f := range findings {
		if f.Severity == severity {
			n++
		}
	}
	return n
}
