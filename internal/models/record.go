// Package models defines the data structures for the credit inference engine.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EvaluationRecord is the persisted form of an EvaluationResult.
type EvaluationRecord struct {
	ID               string          `json:"id" db:"id"`
	ApplicantID      string          `json:"applicant_id,omitempty" db:"applicant_id"`
	BatchID          string          `json:"batch_id,omitempty" db:"batch_id"`
	Decision         Decision        `json:"decision" db:"decision"`
	FinalScore       *int            `json:"final_score,omitempty" db:"final_score"`
	DTI              *float64        `json:"dti,omitempty" db:"dti"`
	RequestedAmount  string          `json:"requested_amount,omitempty" db:"requested_amount"`
	CreditPurpose    string          `json:"credit_purpose,omitempty" db:"credit_purpose"`
	ActivatedRules   []string        `json:"activated_rules" db:"activated_rules"`
	ProfileJSON      json.RawMessage `json:"profile,omitempty" db:"profile"`
	ValidationErrors json.RawMessage `json:"validation_errors,omitempty" db:"validation_errors"`
	Explanation      string          `json:"explanation" db:"explanation"`
	Summary          string          `json:"summary" db:"summary"`
	DurationMs       float64         `json:"duration_ms" db:"duration_ms"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// NewEvaluationRecord flattens a result into a storable row.
func NewEvaluationRecord(r *EvaluationResult, batchID string) (*EvaluationRecord, error) {
	rec := &EvaluationRecord{
		ID:             r.ID,
		ApplicantID:    r.ApplicantID,
		BatchID:        batchID,
		Decision:       r.Decision,
		ActivatedRules: r.ActivatedRuleIDs(),
		Explanation:    r.Explanation,
		Summary:        r.Summary,
		DurationMs:     float64(r.Duration.Microseconds()) / 1000,
		CreatedAt:      r.EvaluatedAt.UTC(),
	}
	if rec.ActivatedRules == nil {
		rec.ActivatedRules = []string{}
	}

	if r.Breakdown != nil {
		score, dti := r.Breakdown.FinalScore, r.Breakdown.DTI
		rec.FinalScore = &score
		rec.DTI = &dti
	}

	if r.Profile != nil {
		rec.RequestedAmount = r.Profile.RequestedAmount.String()
		rec.CreditPurpose = string(r.Profile.CreditPurpose)
		data, err := json.Marshal(r.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to encode profile: %w", err)
		}
		rec.ProfileJSON = data
	}

	if len(r.Validation.Errors) > 0 {
		data, err := json.Marshal(r.Validation.Errors)
		if err != nil {
			return nil, fmt.Errorf("failed to encode validation errors: %w", err)
		}
		rec.ValidationErrors = data
	}

	return rec, nil
}

// RulesColumn encodes the activated rule ids for a text column.
func (r *EvaluationRecord) RulesColumn() string {
	return strings.Join(r.ActivatedRules, ",")
}

// ParseRulesColumn is the inverse of RulesColumn.
func ParseRulesColumn(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// HistogramBucket counts scores in [Lower, Upper].
type HistogramBucket struct {
	Lower int `json:"lower"`
	Upper int `json:"upper"`
	Count int `json:"count"`
}

// NewScoreHistogram builds ten buckets (0-9 ... 90-100) from bucket index counts.
func NewScoreHistogram(counts map[int]int) []HistogramBucket {
	buckets := make([]HistogramBucket, 10)
	for i := range buckets {
		upper := i*10 + 9
		if i == 9 {
			upper = 100
		}
		buckets[i] = HistogramBucket{Lower: i * 10, Upper: upper, Count: counts[i]}
	}
	return buckets
}

// DashboardSummary aggregates stored evaluations for reporting.
type DashboardSummary struct {
	Total          int               `json:"total"`
	ByDecision     map[Decision]int  `json:"by_decision"`
	ApprovalRate   float64           `json:"approval_rate"`
	AverageScore   float64           `json:"average_score"`
	AverageDTI     float64           `json:"average_dti"`
	ScoreHistogram []HistogramBucket `json:"score_histogram"`
}

// Finalize derives the approval rate from the decision counts.
func (d *DashboardSummary) Finalize() {
	d.Total = 0
	for _, n := range d.ByDecision {
		d.Total += n
	}
	if d.Total > 0 {
		d.ApprovalRate = float64(d.ByDecision[DecisionApproved]) / float64(d.Total)
	}
}
