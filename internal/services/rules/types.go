// Package rules loads and validates the rule configuration that drives scoring.
package rules

import (
	"github.com/shopspring/decimal"

	"mihac/internal/models"
)

// Category groups rules for reporting.
type Category string

const (
	CategoryPenalty      Category = "penalty"
	CategoryCompensation Category = "compensation"
	CategoryPurpose      Category = "purpose"
)

// IsValid checks if the category is known.
func (c Category) IsValid() bool {
	switch c {
	case CategoryPenalty, CategoryCompensation, CategoryPurpose:
		return true
	}
	return false
}

// Operator is a comparison used in a rule condition.
type Operator string

const (
	OpEq  Operator = "=="
	OpNeq Operator = "!="
	OpGt  Operator = ">"
	OpGte Operator = ">="
	OpLt  Operator = "<"
	OpLte Operator = "<="
)

// Condition compares one fact against a literal or against another fact times a factor.
type Condition struct {
	Field    string   `yaml:"field"`
	Op       Operator `yaml:"op"`
	Value    any      `yaml:"value,omitempty"`
	RefField string   `yaml:"ref_field,omitempty"`
	Factor   float64  `yaml:"factor,omitempty"`
}

// Predicate matches when all of its conditions hold.
type Predicate struct {
	All []Condition `yaml:"all"`
}

// Rule is one heuristic adjustment. Rules are read-only after load.
type Rule struct {
	ID          string    `yaml:"id"`
	Description string    `yaml:"description"`
	Category    Category  `yaml:"category"`
	Impact      int       `yaml:"impact"`
	Flag        string    `yaml:"flag,omitempty"`
	Advice      string    `yaml:"advice,omitempty"`
	When        Predicate `yaml:"when"`

	conditions []condition
}

// Activation describes the rule as it appears in a score breakdown.
func (r *Rule) Activation() models.ActivatedRule {
	return models.ActivatedRule{
		ID:          r.ID,
		Category:    string(r.Category),
		Impact:      r.Impact,
		Description: r.Description,
		Flag:        r.Flag,
		Advice:      r.Advice,
	}
}

// WeightTable holds the sub-score weights. They must sum to 1.0.
type WeightTable struct {
	Solvency    float64 `yaml:"solvency" json:"solvency"`
	Stability   float64 `yaml:"stability" json:"stability"`
	History     float64 `yaml:"history" json:"history"`
	Purpose     float64 `yaml:"purpose" json:"purpose"`
	Demographic float64 `yaml:"demographic" json:"demographic"`
}

// Sum returns the total of all weights.
func (w WeightTable) Sum() float64 {
	return w.Solvency + w.Stability + w.History + w.Purpose + w.Demographic
}

// ThresholdTable holds decision cutoffs and DTI band boundaries.
type ThresholdTable struct {
	Approve            int     `yaml:"approve" json:"approve"`
	Reject             int     `yaml:"reject" json:"reject"`
	HighAmountBoundary float64 `yaml:"high_amount_boundary" json:"high_amount_boundary"`
	HighAmountApprove  int     `yaml:"high_amount_approve" json:"high_amount_approve"`
	CriticalDTI        float64 `yaml:"critical_dti" json:"critical_dti"`
	DTILow             float64 `yaml:"dti_low" json:"dti_low"`
	DTIModerate        float64 `yaml:"dti_moderate" json:"dti_moderate"`
}

// ApproveFor returns the approve cutoff for a single evaluation. Amounts above
// the high-amount boundary raise the bar; the table itself is never changed.
func (t ThresholdTable) ApproveFor(amount decimal.Decimal) int {
	if amount.GreaterThan(decimal.NewFromFloat(t.HighAmountBoundary)) {
		return t.HighAmountApprove
	}
	return t.Approve
}

// BandFor classifies a DTI ratio.
func (t ThresholdTable) BandFor(dti float64) models.DTIBand {
	switch {
	case dti < t.DTILow:
		return models.DTIBandLow
	case dti < t.DTIModerate:
		return models.DTIBandModerate
	case dti <= t.CriticalDTI:
		return models.DTIBandHigh
	default:
		return models.DTIBandCritical
	}
}

// IsCriticalDTI reports whether a DTI forces rejection.
func (t ThresholdTable) IsCriticalDTI(dti float64) bool {
	return dti > t.CriticalDTI
}

// ScoringTable holds the base values used by the sub-score functions.
type ScoringTable struct {
	CoverageTarget float64            `yaml:"coverage_target"`
	YoungAge       int                `yaml:"young_age"`
	YoungScore     float64            `yaml:"young_score"`
	History        map[string]float64 `yaml:"history"`
	Purpose        map[string]float64 `yaml:"purpose"`
}

// HistoryScore returns the base score for a credit history.
func (s ScoringTable) HistoryScore(h models.CreditHistory) float64 {
	return s.History[string(h)]
}

// PurposeScore returns the base score for a credit purpose.
func (s ScoringTable) PurposeScore(p models.CreditPurpose) float64 {
	return s.Purpose[string(p)]
}

// RuleConfig is the complete, validated configuration. Treat it as read-only:
// one instance is shared by every evaluation of an engine.
type RuleConfig struct {
	Version    string         `yaml:"version"`
	Weights    WeightTable    `yaml:"weights"`
	Thresholds ThresholdTable `yaml:"thresholds"`
	Scoring    ScoringTable   `yaml:"scoring"`
	Rules      []Rule         `yaml:"rules"`

	// Source and Hash identify where the config came from.
	Source string `yaml:"-"`
	Hash   string `yaml:"-"`
}

// RuleByID looks up a rule.
func (c *RuleConfig) RuleByID(id string) (*Rule, bool) {
	for i := range c.Rules {
		if c.Rules[i].ID == id {
			return &c.Rules[i], true
		}
	}
	return nil, false
}
