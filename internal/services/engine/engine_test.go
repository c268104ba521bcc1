package engine

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mihac/internal/models"
	"mihac/internal/services/rules"
)

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(rules.MustDefault(), opts...)
	require.NoError(t, err)
	return e
}

func sample(t *testing.T, name string) models.RawProfile {
	t.Helper()
	for _, s := range SampleProfiles() {
		if s.Name == name {
			return s.Raw
		}
	}
	t.Fatalf("no sample %q", name)
	return nil
}

func TestNew_NilConfig(t *testing.T) {
	e, err := New(nil)
	assert.Nil(t, e)
	require.Error(t, err)

	var cfgErr *rules.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, rules.ErrNilConfig)
}

func TestDecide_Boundaries(t *testing.T) {
	th := rules.MustDefault().Thresholds

	tests := []struct {
		name    string
		score   int
		dti     float64
		approve int
		want    models.Decision
		basis   models.DecisionBasis
	}{
		{"59 rejects", 59, 0.2, 80, models.DecisionRejected, models.BasisThreshold},
		{"60 reviews", 60, 0.2, 80, models.DecisionManualReview, models.BasisThreshold},
		{"79 reviews", 79, 0.2, 80, models.DecisionManualReview, models.BasisThreshold},
		{"80 approves", 80, 0.2, 80, models.DecisionApproved, models.BasisThreshold},
		{"84 reviews on high amount", 84, 0.2, 85, models.DecisionManualReview, models.BasisThreshold},
		{"85 approves on high amount", 85, 0.2, 85, models.DecisionApproved, models.BasisThreshold},
		{"dti exactly critical is not an override", 90, 0.60, 80, models.DecisionApproved, models.BasisThreshold},
		{"dti above critical overrides score", 100, 0.6001, 80, models.DecisionRejected, models.BasisCriticalDTI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := decide(tt.score, tt.dti, tt.approve, th)
			assert.Equal(t, tt.want, dc.Decision)
			assert.Equal(t, tt.basis, dc.Basis)
			assert.Equal(t, tt.approve, dc.ApproveThreshold)
			assert.Equal(t, 60, dc.RejectThreshold)
		})
	}
}

func TestEvaluate_SampleProfiles(t *testing.T) {
	tests := []struct {
		name     string
		decision models.Decision
		score    int
		approve  int
	}{
		{"ideal", models.DecisionApproved, 100, 80},
		{"risk", models.DecisionRejected, 0, 80},
		{"gray", models.DecisionManualReview, 67, 80},
		{"compensated", models.DecisionApproved, 100, 80},
		{"high-amount", models.DecisionManualReview, 81, 85},
		{"spanish", models.DecisionApproved, 100, 80},
	}

	e := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.Evaluate(sample(t, tt.name))
			require.True(t, r.Scored(), "errors: %v", r.Validation.Errors)
			assert.Equal(t, tt.decision, r.Decision)
			assert.Equal(t, tt.score, r.Breakdown.FinalScore)
			assert.Equal(t, tt.approve, r.Context.ApproveThreshold)
			assert.NotEmpty(t, r.ID)
			assert.NotEmpty(t, r.Explanation)
			assert.Contains(t, r.Summary, string(tt.decision))
		})
	}
}

func TestEvaluate_RiskProfileIsCriticalDTI(t *testing.T) {
	r := newEngine(t).Evaluate(sample(t, "risk"))

	assert.Equal(t, models.DecisionRejected, r.Decision)
	assert.Equal(t, models.BasisCriticalDTI, r.Context.Basis)
	assert.Equal(t, 0.6875, r.Breakdown.DTI)
	assert.Equal(t, "DEMO-RISK", r.ApplicantID)
}

func TestEvaluate_CriticalDTIOverridesHighScore(t *testing.T) {
	r := newEngine(t).Evaluate(models.RawProfile{
		"age": 40, "monthly_income": 10000, "current_total_debt": 6500,
		"credit_history": "good", "employment_tenure_years": 10, "dependents": 0,
		"housing_type": "owned", "credit_purpose": "business", "requested_amount": 2000,
	})

	require.True(t, r.Scored())
	assert.GreaterOrEqual(t, r.Breakdown.FinalScore, 80)
	assert.Equal(t, models.DecisionRejected, r.Decision)
	assert.Equal(t, models.BasisCriticalDTI, r.Context.Basis)
	assert.Contains(t, r.Explanation, "re-apply in 6 months")
}

func TestEvaluate_Invalid(t *testing.T) {
	r := newEngine(t).Evaluate(sample(t, "invalid"))

	assert.Equal(t, models.DecisionInvalid, r.Decision)
	assert.Equal(t, models.BasisValidation, r.Context.Basis)
	assert.False(t, r.Scored())
	assert.Nil(t, r.Profile)
	assert.Nil(t, r.ActivatedRuleIDs())
	assert.NotEmpty(t, r.Validation.Errors)
	assert.Equal(t, "validation failed", r.Explanation)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "INVALIDO", out["decision"])
	assert.Equal(t, []any{}, out["activated_rules"])
	assert.NotContains(t, out, "final_score")
}

func TestEvaluate_ExtremeMoneyStaysSerializable(t *testing.T) {
	tests := []struct {
		name     string
		over     map[string]any
		decision models.Decision
	}{
		{"income below a cent", map[string]any{"monthly_income": "1e-400"}, models.DecisionInvalid},
		{"debt overflows float", map[string]any{"current_total_debt": "1e400"}, models.DecisionInvalid},
		{"smallest income, largest debt", map[string]any{
			"monthly_income": "0.01", "current_total_debt": "1000000000", "requested_amount": 500,
		}, models.DecisionRejected},
	}

	e := newEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := sample(t, "ideal")
			for k, v := range tt.over {
				raw[k] = v
			}

			r := e.Evaluate(raw)
			assert.Equal(t, tt.decision, r.Decision)
			_, err := json.Marshal(r)
			require.NoError(t, err)
		})
	}
}

func TestEvaluate_StrictWarnings(t *testing.T) {
	raw := sample(t, "gray")
	raw["current_total_debt"] = 200000

	lenient := newEngine(t).Evaluate(raw)
	assert.NotEqual(t, models.DecisionInvalid, lenient.Decision)
	assert.NotEmpty(t, lenient.Validation.Warnings)

	strict := newEngine(t, WithStrictWarnings(true)).Evaluate(raw)
	assert.Equal(t, models.DecisionInvalid, strict.Decision)
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	e := newEngine(t)
	raw := sample(t, "gray")

	a := e.Evaluate(raw)
	b := e.Evaluate(raw)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Decision, b.Decision)
	assert.Equal(t, a.Breakdown, b.Breakdown)
	assert.Equal(t, a.Explanation, b.Explanation)
	assert.Equal(t, a.Summary, b.Summary)
}

func TestEvaluateBatch_PreservesOrder(t *testing.T) {
	samples := SampleProfiles()
	raws := make([]models.RawProfile, 0, len(samples))
	for _, s := range samples {
		raws = append(raws, s.Raw)
	}

	results, err := newEngine(t, WithWorkers(3)).EvaluateBatch(raws)
	require.NoError(t, err)
	require.Len(t, results, len(raws))

	want := []string{"DEMO-IDEAL", "DEMO-RISK", "DEMO-GRAY", "DEMO-COMP", "DEMO-HIGH", "DEMO-ES", "DEMO-INVALID"}
	for i, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, i, r.Index)
		assert.Equal(t, want[i], r.ApplicantID)
	}
}

func TestEvaluateBatch_Empty(t *testing.T) {
	results, err := newEngine(t).EvaluateBatch(nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEvaluateBatch_RecoversPanics(t *testing.T) {
	e := newEngine(t)
	e.evaluate = func(raw models.RawProfile) *models.EvaluationResult {
		if raw["boom"] != nil {
			panic("boom")
		}
		return e.Evaluate(raw)
	}

	raws := []models.RawProfile{sample(t, "ideal"), {"boom": true}, sample(t, "gray")}
	results, err := e.EvaluateBatch(raws)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile 1")
	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.NotNil(t, results[2])
	assert.Equal(t, 2, results[2].Index)
}

func TestStats_CountsAndAverages(t *testing.T) {
	e := newEngine(t)
	for _, s := range SampleProfiles() {
		e.Evaluate(s.Raw)
	}

	st := e.Stats()
	assert.Equal(t, 7, st.TotalEvaluations)
	assert.Equal(t, 3, st.Approved)
	assert.Equal(t, 2, st.ManualReview)
	assert.Equal(t, 1, st.Rejected)
	assert.Equal(t, 1, st.Invalid)
	assert.InDelta(t, 3.0/7.0, st.ApprovalRate, 1e-9)
	assert.InDelta(t, 448.0/6.0, st.AverageScore, 1e-9)
	assert.False(t, st.Since.IsZero())

	e.ResetStats()
	st = e.Stats()
	assert.Zero(t, st.TotalEvaluations)
	assert.Zero(t, st.ApprovalRate)
	assert.Zero(t, st.AverageScore)
}

func TestStats_EnginesAreIsolated(t *testing.T) {
	a := newEngine(t)
	b := newEngine(t)

	a.Evaluate(sample(t, "ideal"))
	a.Evaluate(sample(t, "risk"))

	assert.Equal(t, 2, a.Stats().TotalEvaluations)
	assert.Zero(t, b.Stats().TotalEvaluations)
}

func TestStats_ConcurrentEvaluations(t *testing.T) {
	e := newEngine(t)
	raw := sample(t, "gray")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Evaluate(raw)
		}()
	}
	wg.Wait()

	st := e.Stats()
	assert.Equal(t, 50, st.TotalEvaluations)
	assert.Equal(t, 50, st.ManualReview)
	assert.InDelta(t, 67.0, st.AverageScore, 1e-9)
}

func TestSummarize(t *testing.T) {
	e := newEngine(t)
	results := []*models.EvaluationResult{
		{Decision: models.DecisionApproved},
		{Decision: models.DecisionApproved},
		{Decision: models.DecisionRejected},
		{Decision: models.DecisionInvalid},
		nil,
	}

	s := e.Summarize("batch-1", results)
	assert.Equal(t, models.BatchSummary{
		BatchID:      "batch-1",
		Total:        4,
		Approved:     2,
		Rejected:     1,
		Invalid:      1,
		ApprovalRate: 0.5,
	}, s)

	assert.Equal(t, models.BatchSummary{BatchID: "empty"}, Summarize("empty", nil))
}
