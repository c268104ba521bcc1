// Package backtest scores the engine's decisions against known repayment
// outcomes. An APROBADO decision counts as a predicted good payer; every
// other decision, INVALIDO included, counts as a predicted bad payer.
package backtest

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"mihac/internal/models"
)

// DefaultLabelColumn is the CSV column holding the known outcome.
const DefaultLabelColumn = "expected"

// topRules caps the rule list of an ErrorProfile.
const topRules = 3

// Backtest errors
var (
	ErrInvalidLabel   = errors.New("invalid outcome label")
	ErrLengthMismatch = errors.New("results and labels differ in length")
	ErrNoLabelledRows = errors.New("no labelled rows to backtest")
)

// goodLabels maps folded outcome tokens to good payer.
var goodLabels = map[string]bool{
	"1": true, "good": true, "bueno": true, "true": true, "yes": true, "si": true, "aprobado": true,
	"0": false, "bad": false, "malo": false, "false": false, "no": false, "rechazado": false,
}

// ParseLabel reads an outcome cell. It returns true for a good payer.
func ParseLabel(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int:
		if t == 0 || t == 1 {
			return t == 1, nil
		}
	case float64:
		if t == 0 || t == 1 {
			return t == 1, nil
		}
	case string:
		if good, ok := goodLabels[models.FoldKey(t)]; ok {
			return good, nil
		}
	}
	return false, fmt.Errorf("%w: %v", ErrInvalidLabel, v)
}

// Confusion is the 2x2 confusion matrix with good payer as the positive class.
type Confusion struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`
}

// Total is the number of rows in the matrix.
func (c Confusion) Total() int {
	return c.TruePositives + c.FalsePositives + c.TrueNegatives + c.FalseNegatives
}

// Metrics are the classification rates derived from a Confusion, rounded to
// four decimals. A rate whose denominator is zero is 0.
type Metrics struct {
	Accuracy    float64 `json:"accuracy"`
	Precision   float64 `json:"precision"`
	Recall      float64 `json:"recall"`
	Specificity float64 `json:"specificity"`
	F1          float64 `json:"f1_score"`
}

// RuleCount is how often a rule fired within an error group.
type RuleCount struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// ErrorProfile describes the rows of one error type.
type ErrorProfile struct {
	Count        int                     `json:"count"`
	AverageScore float64                 `json:"average_score"`
	AverageDTI   float64                 `json:"average_dti"`
	ByDecision   map[models.Decision]int `json:"by_decision"`
	TopRules     []RuleCount             `json:"top_rules"`
}

// Report is the outcome of one backtest run.
type Report struct {
	Total          int                     `json:"total"`
	Decisions      map[models.Decision]int `json:"decisions"`
	Confusion      Confusion               `json:"confusion_matrix"`
	Metrics        Metrics                 `json:"metrics"`
	FalsePositives ErrorProfile            `json:"false_positives"`
	FalseNegatives ErrorProfile            `json:"false_negatives"`
}

// Predicted reports whether a result counts as a predicted good payer.
func Predicted(r *models.EvaluationResult) bool {
	return r.Decision == models.DecisionApproved
}

// Compute builds a Report from results and the matching labels. Nil results
// are skipped.
func Compute(results []*models.EvaluationResult, good []bool) (Report, error) {
	if len(results) != len(good) {
		return Report{}, fmt.Errorf("%w: %d results, %d labels", ErrLengthMismatch, len(results), len(good))
	}

	rep := Report{Decisions: make(map[models.Decision]int, len(models.Decisions()))}
	for _, d := range models.Decisions() {
		rep.Decisions[d] = 0
	}

	var fp, fn profileBuilder
	for i, r := range results {
		if r == nil {
			continue
		}
		rep.Total++
		rep.Decisions[r.Decision]++

		switch pred, actual := Predicted(r), good[i]; {
		case pred && actual:
			rep.Confusion.TruePositives++
		case pred && !actual:
			rep.Confusion.FalsePositives++
			fp.add(r)
		case !pred && actual:
			rep.Confusion.FalseNegatives++
			fn.add(r)
		default:
			rep.Confusion.TrueNegatives++
		}
	}
	if rep.Total == 0 {
		return Report{}, ErrNoLabelledRows
	}

	rep.Metrics = computeMetrics(rep.Confusion)
	rep.FalsePositives = fp.profile()
	rep.FalseNegatives = fn.profile()
	return rep, nil
}

func computeMetrics(c Confusion) Metrics {
	precision := ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
	recall := ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return Metrics{
		Accuracy:    round4(ratio(c.TruePositives+c.TrueNegatives, c.Total())),
		Precision:   round4(precision),
		Recall:      round4(recall),
		Specificity: round4(ratio(c.TrueNegatives, c.TrueNegatives+c.FalsePositives)),
		F1:          round4(f1),
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// profileBuilder accumulates one error group. Score and DTI averages cover
// scored results only.
type profileBuilder struct {
	count    int
	scored   int
	scoreSum int
	dtiSum   float64
	decision map[models.Decision]int
	rules    map[string]int
}

func (b *profileBuilder) add(r *models.EvaluationResult) {
	if b.decision == nil {
		b.decision = make(map[models.Decision]int)
		b.rules = make(map[string]int)
	}
	b.count++
	b.decision[r.Decision]++
	if !r.Scored() {
		return
	}
	b.scored++
	b.scoreSum += r.Breakdown.FinalScore
	b.dtiSum += r.Breakdown.DTI
	for _, id := range r.ActivatedRuleIDs() {
		b.rules[id]++
	}
}

func (b *profileBuilder) profile() ErrorProfile {
	p := ErrorProfile{
		Count:      b.count,
		ByDecision: b.decision,
		TopRules:   []RuleCount{},
	}
	if p.ByDecision == nil {
		p.ByDecision = map[models.Decision]int{}
	}
	if b.scored > 0 {
		p.AverageScore = math.Round(float64(b.scoreSum)/float64(b.scored)*10) / 10
		p.AverageDTI = round4(b.dtiSum / float64(b.scored))
	}

	for id, n := range b.rules {
		p.TopRules = append(p.TopRules, RuleCount{ID: id, Count: n})
	}
	sort.Slice(p.TopRules, func(i, j int) bool {
		if p.TopRules[i].Count != p.TopRules[j].Count {
			return p.TopRules[i].Count > p.TopRules[j].Count
		}
		return p.TopRules[i].ID < p.TopRules[j].ID
	})
	if len(p.TopRules) > topRules {
		p.TopRules = p.TopRules[:topRules]
	}
	return p
}
