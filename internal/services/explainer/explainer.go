// Package explainer renders human-readable reports for scored evaluations.
//
// Output is a pure function of its inputs: no timestamps, no map iteration,
// and numbers always go through the same English printer.
package explainer

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"mihac/internal/models"
	"mihac/internal/services/rules"
)

const (
	barCells    = 15
	strongScore = 70.0
	weakScore   = 40.0

	// Above this DTI a rejected applicant is told to wait a full year.
	longWaitDTI     = 0.80
	longWaitMonths  = 12
	shortWaitMonths = 6

	rule = "--------------------------------------------------------------"
)

var bandMeaning = map[models.DTIBand]string{
	models.DTIBandLow:      "debt is comfortably covered by income",
	models.DTIBandModerate: "debt load is manageable but noticeable",
	models.DTIBandHigh:     "debt absorbs a large share of income",
	models.DTIBandCritical: "debt exceeds the acceptable share of income",
}

// Explainer renders explanations against one rule configuration.
type Explainer struct {
	cfg *rules.RuleConfig
	p   *message.Printer
}

// New creates a new explainer.
func New(cfg *rules.RuleConfig) *Explainer {
	return &Explainer{
		cfg: cfg,
		p:   message.NewPrinter(language.English),
	}
}

// dimension is one row of the score breakdown.
type dimension struct {
	name   string
	score  float64
	weight float64
	contr  float64
}

func (e *Explainer) dimensions(b *models.ScoreBreakdown) []dimension {
	w := e.cfg.Weights
	return []dimension{
		{"Solvency", b.SubScores.Solvency, w.Solvency, b.Contributions.Solvency},
		{"Stability", b.SubScores.Stability, w.Stability, b.Contributions.Stability},
		{"Credit history", b.SubScores.History, w.History, b.Contributions.History},
		{"Purpose", b.SubScores.Purpose, w.Purpose, b.Contributions.Purpose},
		{"Demographic", b.SubScores.Demographic, w.Demographic, b.Contributions.Demographic},
	}
}

// Explain returns the full report and the one-line summary for a scored
// evaluation.
func (e *Explainer) Explain(b *models.ScoreBreakdown, dc models.DecisionContext, p *models.ApplicantProfile) (string, string) {
	var sb strings.Builder

	e.header(&sb, b, dc)
	e.solvency(&sb, b, p)
	e.breakdown(&sb, b)
	e.activatedRules(&sb, b)
	e.factors(&sb, b)
	e.conclusion(&sb, b, dc)

	return sb.String(), e.Summary(b, dc, p)
}

// Summary returns the single-line summary.
func (e *Explainer) Summary(b *models.ScoreBreakdown, dc models.DecisionContext, p *models.ApplicantProfile) string {
	return e.p.Sprintf("%s | Score: %d | DTI: %s (%s) | History: %s | Purpose: %s | Key: %s",
		dc.Decision, b.FinalScore, e.percent(b.DTI), b.DTIBand,
		p.CreditHistory, p.CreditPurpose, keyRules(b.Rules))
}

// ExplainInvalid returns the report and summary for a profile that failed
// validation.
func ExplainInvalid(outcome models.ValidationOutcome) (string, string) {
	return "validation failed", fmt.Sprintf("%s | Validation errors: %d", models.DecisionInvalid, len(outcome.Errors))
}

func (e *Explainer) header(sb *strings.Builder, b *models.ScoreBreakdown, dc models.DecisionContext) {
	sb.WriteString("CREDIT EVALUATION REPORT\n")
	sb.WriteString(rule + "\n")
	e.line(sb, "Decision: %s", dc.Decision)
	e.line(sb, "Final score: %d/100", b.FinalScore)
	e.line(sb, "Thresholds: approve >= %d, reject < %d, critical DTI > %s",
		dc.ApproveThreshold, dc.RejectThreshold, e.percent(dc.CriticalDTI))
	switch dc.Basis {
	case models.BasisCriticalDTI:
		sb.WriteString("Basis: critical debt-to-income override\n")
	default:
		sb.WriteString("Basis: score thresholds\n")
	}
	sb.WriteString("\n")
}

func (e *Explainer) solvency(sb *strings.Builder, b *models.ScoreBreakdown, p *models.ApplicantProfile) {
	sb.WriteString("SOLVENCY ANALYSIS\n")
	sb.WriteString(rule + "\n")
	e.line(sb, "Monthly income:    %s", e.money(p.MonthlyIncome.InexactFloat64()))
	e.line(sb, "Current debt:      %s", e.money(p.CurrentTotalDebt.InexactFloat64()))
	e.line(sb, "Requested amount:  %s", e.money(p.RequestedAmount.InexactFloat64()))
	e.line(sb, "Debt-to-income:    %s (%s)", e.percent(b.DTI), b.DTIBand)
	e.line(sb, "Interpretation:    %s", bandMeaning[b.DTIBand])
	sb.WriteString("\n")
}

func (e *Explainer) breakdown(sb *strings.Builder, b *models.ScoreBreakdown) {
	sb.WriteString("SCORE BREAKDOWN\n")
	sb.WriteString(rule + "\n")
	for _, d := range e.dimensions(b) {
		e.line(sb, "%-15s %s %6.1f x %.2f = %5.2f", d.name, bar(d.score), d.score, d.weight, d.contr)
	}
	e.line(sb, "%-15s %s %6.2f", "Weighted sum", strings.Repeat(" ", barCells), b.RawSum)
	e.line(sb, "%-15s %s %+6d", "Rule adjustment", strings.Repeat(" ", barCells), b.Adjustment)
	sb.WriteString("\n")
}

func (e *Explainer) activatedRules(sb *strings.Builder, b *models.ScoreBreakdown) {
	sb.WriteString("ACTIVATED RULES\n")
	sb.WriteString(rule + "\n")
	if len(b.Rules) == 0 {
		sb.WriteString("No rules activated.\n\n")
		return
	}
	for _, r := range b.Rules {
		e.line(sb, "%s [%s] %+d  %s", r.ID, r.Category, r.Impact, r.Description)
	}
	sb.WriteString("\n")
}

func (e *Explainer) factors(sb *strings.Builder, b *models.ScoreBreakdown) {
	positive, negative := e.splitFactors(b)

	sb.WriteString("DETERMINING FACTORS\n")
	sb.WriteString(rule + "\n")
	writeList(sb, "Positive", positive)
	writeList(sb, "Negative", negative)
	if len(positive) > 0 && len(negative) > 0 {
		sb.WriteString("Compensating: strengths partially offset the weaknesses above.\n")
	}
	sb.WriteString("\n")
}

// splitFactors lists strong and weak dimensions followed by the rules that
// pushed the score up or down.
func (e *Explainer) splitFactors(b *models.ScoreBreakdown) (positive, negative []string) {
	for _, d := range e.dimensions(b) {
		switch {
		case d.score >= strongScore:
			positive = append(positive, e.p.Sprintf("%s score %.1f", strings.ToLower(d.name), d.score))
		case d.score < weakScore:
			negative = append(negative, e.p.Sprintf("%s score %.1f", strings.ToLower(d.name), d.score))
		}
	}
	for _, r := range b.Rules {
		item := e.p.Sprintf("%s %s (%+d)", r.ID, r.Description, r.Impact)
		if r.Impact > 0 {
			positive = append(positive, item)
		} else if r.Impact < 0 {
			negative = append(negative, item)
		}
	}
	return positive, negative
}

func (e *Explainer) conclusion(sb *strings.Builder, b *models.ScoreBreakdown, dc models.DecisionContext) {
	sb.WriteString("CONCLUSION\n")
	sb.WriteString(rule + "\n")

	switch dc.Decision {
	case models.DecisionApproved:
		e.line(sb, "The application is approved: the score of %d meets the approval threshold of %d.",
			b.FinalScore, dc.ApproveThreshold)

	case models.DecisionManualReview:
		e.line(sb, "The application requires manual review: the score of %d is between %d and %d.",
			b.FinalScore, dc.RejectThreshold, dc.ApproveThreshold)
		uncertain := e.uncertainty(b)
		if len(uncertain) > 0 {
			sb.WriteString("Points for the reviewer:\n")
			for _, u := range uncertain {
				sb.WriteString("  - " + u + "\n")
			}
		}

	case models.DecisionRejected:
		if dc.Basis == models.BasisCriticalDTI {
			months := shortWaitMonths
			if b.DTI > longWaitDTI {
				months = longWaitMonths
			}
			e.line(sb, "The application is rejected: a debt-to-income ratio of %s exceeds the critical limit of %s.",
				e.percent(b.DTI), e.percent(dc.CriticalDTI))
			e.line(sb, "Reduce outstanding debt and re-apply in %d months.", months)
		} else {
			e.line(sb, "The application is rejected: the score of %d is below the minimum of %d.",
				b.FinalScore, dc.RejectThreshold)
		}
		advice := adviceFor(b.Rules)
		if len(advice) > 0 {
			sb.WriteString("Recommendations:\n")
			for _, a := range advice {
				sb.WriteString("  - " + a + "\n")
			}
		}
	}
}

// uncertainty names the signals that kept the score out of both clear bands.
func (e *Explainer) uncertainty(b *models.ScoreBreakdown) []string {
	var out []string
	for _, d := range e.dimensions(b) {
		if d.score >= weakScore && d.score < strongScore {
			out = append(out, e.p.Sprintf("%s is middling (%.1f)", strings.ToLower(d.name), d.score))
		} else if d.score < weakScore {
			out = append(out, e.p.Sprintf("%s is weak (%.1f)", strings.ToLower(d.name), d.score))
		}
	}
	if b.DTIBand == models.DTIBandModerate || b.DTIBand == models.DTIBandHigh {
		out = append(out, e.p.Sprintf("debt-to-income is %s", strings.ToLower(string(b.DTIBand))))
	}
	for _, r := range b.Rules {
		if r.Impact < 0 {
			out = append(out, e.p.Sprintf("%s applied (%+d)", r.ID, r.Impact))
		}
	}
	return out
}

func adviceFor(activated []models.ActivatedRule) []string {
	var out []string
	for _, r := range activated {
		if r.Impact < 0 && r.Advice != "" {
			out = append(out, r.ID+": "+r.Advice)
		}
	}
	return out
}

// keyRules formats the two rules with the largest absolute impact.
func keyRules(activated []models.ActivatedRule) string {
	if len(activated) == 0 {
		return "none"
	}
	sorted := make([]models.ActivatedRule, len(activated))
	copy(sorted, activated)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai, aj := abs(sorted[i].Impact), abs(sorted[j].Impact)
		if ai != aj {
			return ai > aj
		}
		return sorted[i].ID < sorted[j].ID
	})
	if len(sorted) > 2 {
		sorted = sorted[:2]
	}
	parts := make([]string, 0, len(sorted))
	for _, r := range sorted {
		parts = append(parts, fmt.Sprintf("%s (%+d)", r.ID, r.Impact))
	}
	return strings.Join(parts, ", ")
}

func bar(score float64) string {
	filled := int(score/100*barCells + 0.5)
	if filled < 0 {
		filled = 0
	}
	if filled > barCells {
		filled = barCells
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barCells-filled)
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		sb.WriteString(label + ": none\n")
		return
	}
	sb.WriteString(label + ":\n")
	for _, it := range items {
		sb.WriteString("  - " + it + "\n")
	}
}

func (e *Explainer) line(sb *strings.Builder, format string, args ...any) {
	sb.WriteString(e.p.Sprintf(format, args...))
	sb.WriteString("\n")
}

func (e *Explainer) money(v float64) string {
	return e.p.Sprintf("$%.2f", v)
}

func (e *Explainer) percent(ratio float64) string {
	return e.p.Sprintf("%.2f%%", ratio*100)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
