package engine

import (
	"sync"
	"time"

	"mihac/internal/models"
)

// statsTracker accumulates counters for one engine.
type statsTracker struct {
	mu       sync.Mutex
	stats    models.EngineStats
	scoreSum float64
	dtiSum   float64
	scored   int
}

func newStatsTracker(since time.Time) *statsTracker {
	return &statsTracker{stats: models.EngineStats{Since: since.UTC()}}
}

func (t *statsTracker) record(r *models.EvaluationResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.TotalEvaluations++
	switch r.Decision {
	case models.DecisionApproved:
		t.stats.Approved++
	case models.DecisionManualReview:
		t.stats.ManualReview++
	case models.DecisionRejected:
		t.stats.Rejected++
	case models.DecisionInvalid:
		t.stats.Invalid++
	}

	if r.Breakdown != nil {
		t.scored++
		t.scoreSum += float64(r.Breakdown.FinalScore)
		t.dtiSum += r.Breakdown.DTI
	}
}

func (t *statsTracker) snapshot() models.EngineStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	if s.TotalEvaluations > 0 {
		s.ApprovalRate = float64(s.Approved) / float64(s.TotalEvaluations)
	}
	if t.scored > 0 {
		s.AverageScore = t.scoreSum / float64(t.scored)
		s.AverageDTI = t.dtiSum / float64(t.scored)
	}
	return s
}

func (t *statsTracker) reset(since time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats = models.EngineStats{Since: since.UTC()}
	t.scoreSum, t.dtiSum, t.scored = 0, 0, 0
}
