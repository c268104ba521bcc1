// Package engine implements the evaluation pipeline: sanitize, validate,
// score, decide and explain.
package engine

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mihac/internal/models"
	"mihac/internal/services/explainer"
	"mihac/internal/services/rules"
	"mihac/internal/services/scorer"
	"mihac/internal/services/validator"
	"mihac/internal/utils"
)

// Stage names used in debug logs.
const (
	StageReceived  = "RECEIVED"
	StageSanitized = "SANITIZED"
	StageValidated = "VALIDATED"
	StageInvalid   = "INVALID"
	StageScored    = "SCORED"
	StageDecided   = "DECIDED"
	StageExplained = "EXPLAINED"
)

// Engine runs evaluations against one rule configuration. It is safe for
// concurrent use; its counters are private to the instance.
type Engine struct {
	cfg       *rules.RuleConfig
	validator *validator.Validator
	scorer    *scorer.Scorer
	explainer *explainer.Explainer
	stats     *statsTracker
	workers   int
	strict    bool
	now       func() time.Time

	// evaluate is what EvaluateBatch calls per element.
	evaluate func(models.RawProfile) *models.EvaluationResult
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrictWarnings makes validation warnings block the evaluation.
func WithStrictWarnings(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithWorkers limits how many batch elements are evaluated at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New creates a new engine.
func New(cfg *rules.RuleConfig, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, &rules.ConfigError{Source: "engine", Err: rules.ErrNilConfig}
	}

	e := &Engine{
		cfg:     cfg,
		workers: runtime.GOMAXPROCS(0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.validator = validator.New(validator.Options{TreatWarningsAsErrors: e.strict})
	e.scorer = scorer.New(cfg)
	e.explainer = explainer.New(cfg)
	e.stats = newStatsTracker(e.now())
	e.evaluate = e.Evaluate

	utils.GetLogger().Info("Engine initialized",
		zap.String("rules_version", cfg.Version),
		zap.String("rules_hash", cfg.Hash),
		zap.Int("rules", len(cfg.Rules)),
		zap.Int("workers", e.workers),
		zap.Bool("strict_warnings", e.strict),
	)

	return e, nil
}

// Config returns the rule configuration the engine runs with.
func (e *Engine) Config() *rules.RuleConfig {
	return e.cfg
}

// Evaluate runs one raw profile through the pipeline. It never returns nil and
// never fails: invalid input yields an INVALIDO result.
func (e *Engine) Evaluate(raw models.RawProfile) *models.EvaluationResult {
	start := time.Now()
	result := &models.EvaluationResult{
		ID:          uuid.New().String(),
		EvaluatedAt: e.now().UTC(),
	}
	log := utils.GetLogger().With(zap.String("evaluation_id", result.ID))
	log.Debug("Stage", zap.String("stage", StageReceived), zap.Int("fields", len(raw)))

	profile, in, outcome := e.validator.Check(raw)
	result.ApplicantID = in.ApplicantID
	result.Validation = outcome
	log.Debug("Stage", zap.String("stage", StageSanitized), zap.String("applicant_id", in.ApplicantID))

	if !outcome.Valid {
		result.Decision = models.DecisionInvalid
		result.Context = models.DecisionContext{Decision: models.DecisionInvalid, Basis: models.BasisValidation}
		result.Explanation, result.Summary = explainer.ExplainInvalid(outcome)
		result.Duration = time.Since(start)
		log.Debug("Stage", zap.String("stage", StageInvalid), zap.Int("errors", len(outcome.Errors)))
		e.stats.record(result)
		return result
	}
	log.Debug("Stage", zap.String("stage", StageValidated), zap.Int("warnings", len(outcome.Warnings)))

	result.Profile = profile
	breakdown := e.scorer.Score(profile)
	result.Breakdown = &breakdown
	log.Debug("Stage", zap.String("stage", StageScored),
		zap.Int("score", breakdown.FinalScore), zap.Float64("dti", breakdown.DTI))

	result.Context = decide(breakdown.FinalScore, breakdown.DTI, e.cfg.Thresholds.ApproveFor(profile.RequestedAmount), e.cfg.Thresholds)
	result.Decision = result.Context.Decision
	log.Debug("Stage", zap.String("stage", StageDecided),
		zap.String("decision", string(result.Decision)), zap.String("basis", string(result.Context.Basis)))

	result.Explanation, result.Summary = e.explainer.Explain(&breakdown, result.Context, profile)
	result.Duration = time.Since(start)
	log.Debug("Stage", zap.String("stage", StageExplained), zap.Duration("duration", result.Duration))

	e.stats.record(result)
	return result
}

// decide maps a final score and DTI to a decision. A critical DTI rejects
// regardless of score.
func decide(score int, dti float64, approve int, th rules.ThresholdTable) models.DecisionContext {
	dc := models.DecisionContext{
		Basis:            models.BasisThreshold,
		ApproveThreshold: approve,
		RejectThreshold:  th.Reject,
		CriticalDTI:      th.CriticalDTI,
	}

	switch {
	case th.IsCriticalDTI(dti):
		dc.Decision = models.DecisionRejected
		dc.Basis = models.BasisCriticalDTI
	case score >= approve:
		dc.Decision = models.DecisionApproved
	case score < th.Reject:
		dc.Decision = models.DecisionRejected
	default:
		dc.Decision = models.DecisionManualReview
	}
	return dc
}

// EvaluateBatch evaluates every profile concurrently. The output has the same
// length and order as the input. A panic while evaluating one element leaves
// its slot nil and is reported in the joined error; the others still complete.
func (e *Engine) EvaluateBatch(raws []models.RawProfile) ([]*models.EvaluationResult, error) {
	start := time.Now()
	results := make([]*models.EvaluationResult, len(raws))
	errs := make([]error, len(raws))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, raw := range raws {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("profile %d: %v", i, r)
				}
			}()
			res := e.evaluate(raw)
			res.Index = i
			results[i] = res
			return nil
		})
	}
	// Workers never return an error; defects are collected in errs.
	g.Wait()

	err := errors.Join(errs...)
	utils.GetLogger().Info("Batch evaluated",
		zap.Int("profiles", len(raws)),
		zap.Duration("processing_time", time.Since(start)),
		zap.Bool("defects", err != nil),
	)
	return results, err
}

// Stats returns a snapshot of this engine's counters.
func (e *Engine) Stats() models.EngineStats {
	return e.stats.snapshot()
}

// ResetStats zeroes this engine's counters.
func (e *Engine) ResetStats() {
	e.stats.reset(e.now())
}

// Summarize counts the decisions in a batch. Nil slots are skipped.
func (e *Engine) Summarize(batchID string, results []*models.EvaluationResult) models.BatchSummary {
	return Summarize(batchID, results)
}

// Summarize counts the decisions in a batch without an engine.
func Summarize(batchID string, results []*models.EvaluationResult) models.BatchSummary {
	s := models.BatchSummary{BatchID: batchID}
	for _, r := range results {
		if r == nil {
			continue
		}
		s.Total++
		switch r.Decision {
		case models.DecisionApproved:
			s.Approved++
		case models.DecisionManualReview:
			s.ManualReview++
		case models.DecisionRejected:
			s.Rejected++
		case models.DecisionInvalid:
			s.Invalid++
		}
	}
	if s.Total > 0 {
		s.ApprovalRate = float64(s.Approved) / float64(s.Total)
	}
	return s
}
