// Package models defines the data structures for the credit inference engine.
package models

import (
	"encoding/json"
	"time"
)

// Decision is the final classification of an evaluation.
type Decision string

const (
	DecisionApproved     Decision = "APROBADO"
	DecisionManualReview Decision = "REVISION_MANUAL"
	DecisionRejected     Decision = "RECHAZADO"
	DecisionInvalid      Decision = "INVALIDO"
)

// Decisions returns all decision values in reporting order.
func Decisions() []Decision {
	return []Decision{DecisionApproved, DecisionManualReview, DecisionRejected, DecisionInvalid}
}

// DecisionBasis records what determined a decision.
type DecisionBasis string

const (
	BasisThreshold   DecisionBasis = "threshold"
	BasisCriticalDTI DecisionBasis = "critical_dti"
	BasisValidation  DecisionBasis = "validation"
)

// DTIBand classifies a debt-to-income ratio.
type DTIBand string

const (
	DTIBandLow      DTIBand = "LOW"
	DTIBandModerate DTIBand = "MODERATE"
	DTIBandHigh     DTIBand = "HIGH"
	DTIBandCritical DTIBand = "CRITICAL"
)

// Severity distinguishes blocking errors from warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// FieldError is a single validation finding.
type FieldError struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationOutcome is the result of validating one profile.
// Errors is empty iff Valid is true.
type ValidationOutcome struct {
	Valid    bool         `json:"valid"`
	Errors   []FieldError `json:"errors,omitempty"`
	Warnings []FieldError `json:"warnings,omitempty"`
}

// SubScores holds the five scoring dimensions, each in [0,100].
type SubScores struct {
	Solvency    float64 `json:"solvency"`
	Stability   float64 `json:"stability"`
	History     float64 `json:"history"`
	Purpose     float64 `json:"purpose"`
	Demographic float64 `json:"demographic"`
}

// ActivatedRule is a rule whose predicate matched and whose impact was applied.
type ActivatedRule struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Impact      int    `json:"impact"`
	Description string `json:"description"`
	Flag        string `json:"flag,omitempty"`
	Advice      string `json:"advice,omitempty"`
}

// ScoreBreakdown is everything the scorer computed for one profile.
type ScoreBreakdown struct {
	DTI           float64         `json:"dti"`
	DTIBand       DTIBand         `json:"dti_band"`
	SubScores     SubScores       `json:"sub_scores"`
	Contributions SubScores       `json:"contributions"`
	Rules         []ActivatedRule `json:"activated_rules"`
	RawSum        float64         `json:"raw_sum"`
	Adjustment    int             `json:"adjustment"`
	FinalScore    int             `json:"final_score"`
}

// RuleIDs returns the activated rule ids in evaluation order.
func (b *ScoreBreakdown) RuleIDs() []string {
	ids := make([]string, 0, len(b.Rules))
	for _, r := range b.Rules {
		ids = append(ids, r.ID)
	}
	return ids
}

// DecisionContext carries the thresholds that produced a decision.
type DecisionContext struct {
	Decision         Decision      `json:"decision"`
	Basis            DecisionBasis `json:"basis"`
	ApproveThreshold int           `json:"approve_threshold"`
	RejectThreshold  int           `json:"reject_threshold"`
	CriticalDTI      float64       `json:"critical_dti"`
}

// EvaluationResult is the immutable output of one evaluation.
type EvaluationResult struct {
	ID          string
	ApplicantID string
	Index       int
	Profile     *ApplicantProfile
	Validation  ValidationOutcome
	Breakdown   *ScoreBreakdown
	Decision    Decision
	Context     DecisionContext
	Explanation string
	Summary     string
	Duration    time.Duration
	EvaluatedAt time.Time
}

// ActivatedRuleIDs returns the ids of the rules that fired, or nil when not scored.
func (r *EvaluationResult) ActivatedRuleIDs() []string {
	if r.Breakdown == nil {
		return nil
	}
	return r.Breakdown.RuleIDs()
}

// Scored reports whether the result carries a score.
func (r *EvaluationResult) Scored() bool {
	return r.Breakdown != nil
}

// evaluationResultJSON is the wire shape of an EvaluationResult.
type evaluationResultJSON struct {
	ID                   string            `json:"id"`
	ApplicantID          string            `json:"applicant_id,omitempty"`
	Index                int               `json:"index"`
	Decision             Decision          `json:"decision"`
	FinalScore           *int              `json:"final_score,omitempty"`
	DTI                  *float64          `json:"dti,omitempty"`
	DTIBand              DTIBand           `json:"dti_band,omitempty"`
	SubScores            *SubScores        `json:"sub_scores,omitempty"`
	RawSum               *float64          `json:"raw_sum,omitempty"`
	ActivatedRules       []string          `json:"activated_rules"`
	ApproveThreshold     int               `json:"approve_threshold,omitempty"`
	RejectThreshold      int               `json:"reject_threshold,omitempty"`
	DecisionBasis        DecisionBasis     `json:"decision_basis"`
	Explanation          string            `json:"explanation"`
	Summary              string            `json:"summary"`
	ProcessingDurationMs float64           `json:"processing_duration_ms"`
	ValidationErrors     []FieldError      `json:"validation_errors,omitempty"`
	ValidationWarnings   []FieldError      `json:"validation_warnings,omitempty"`
	Profile              *ApplicantProfile `json:"profile,omitempty"`
	EvaluatedAt          time.Time         `json:"evaluated_at"`
}

// MarshalJSON renders the result in its published output schema.
func (r *EvaluationResult) MarshalJSON() ([]byte, error) {
	out := evaluationResultJSON{
		ID:                   r.ID,
		ApplicantID:          r.ApplicantID,
		Index:                r.Index,
		Decision:             r.Decision,
		ActivatedRules:       r.ActivatedRuleIDs(),
		DecisionBasis:        r.Context.Basis,
		Explanation:          r.Explanation,
		Summary:              r.Summary,
		ProcessingDurationMs: float64(r.Duration.Microseconds()) / 1000,
		ValidationErrors:     r.Validation.Errors,
		ValidationWarnings:   r.Validation.Warnings,
		Profile:              r.Profile,
		EvaluatedAt:          r.EvaluatedAt,
	}
	if out.ActivatedRules == nil {
		out.ActivatedRules = []string{}
	}
	if b := r.Breakdown; b != nil {
		score, dti, raw, subs := b.FinalScore, b.DTI, b.RawSum, b.SubScores
		out.FinalScore = &score
		out.DTI = &dti
		out.RawSum = &raw
		out.SubScores = &subs
		out.DTIBand = b.DTIBand
		out.ApproveThreshold = r.Context.ApproveThreshold
		out.RejectThreshold = r.Context.RejectThreshold
	}
	return json.Marshal(out)
}

// EngineStats is a snapshot of the counters kept by one engine.
type EngineStats struct {
	TotalEvaluations int       `json:"total_evaluations"`
	Approved         int       `json:"approved"`
	ManualReview     int       `json:"manual_review"`
	Rejected         int       `json:"rejected"`
	Invalid          int       `json:"invalid"`
	ApprovalRate     float64   `json:"approval_rate"`
	AverageScore     float64   `json:"average_score"`
	AverageDTI       float64   `json:"average_dti"`
	Since            time.Time `json:"since"`
}

// BatchSummary aggregates the decisions of one batch.
type BatchSummary struct {
	BatchID      string  `json:"batch_id"`
	Total        int     `json:"total"`
	Approved     int     `json:"approved"`
	ManualReview int     `json:"manual_review"`
	Rejected     int     `json:"rejected"`
	Invalid      int     `json:"invalid"`
	ApprovalRate float64 `json:"approval_rate"`
}
