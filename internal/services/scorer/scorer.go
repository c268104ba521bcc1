// Package scorer computes DTI, weighted sub-scores and rule adjustments for a
// validated applicant profile.
package scorer

import (
	"math"

	"mihac/internal/models"
	"mihac/internal/services/rules"
	"mihac/internal/utils"
)

// Stability scoring steps.
const (
	tenureNone        = 0.0
	tenureJunior      = 30.0
	tenureEstablished = 60.0
	tenureSenior      = 80.0

	ownedHousingBonus = 20.0
	otherHousingBonus = 8.0
	dependentPenalty  = 5.0
)

// Scorer turns a validated profile into a ScoreBreakdown. It only reads its
// RuleConfig and is safe for concurrent use.
type Scorer struct {
	cfg *rules.RuleConfig
}

// New creates a new scorer.
func New(cfg *rules.RuleConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the breakdown for a profile that has passed validation.
// Calling it with anything else is a programming error and panics.
func (s *Scorer) Score(p *models.ApplicantProfile) models.ScoreBreakdown {
	if p == nil {
		panic(models.PreconditionViolation{Component: "scorer", Reason: "nil profile"})
	}
	if !p.MonthlyIncome.IsPositive() {
		panic(models.PreconditionViolation{Component: "scorer", Reason: "monthly income must be positive"})
	}

	dti := DTI(p)
	th := s.cfg.Thresholds

	subs := models.SubScores{
		Solvency:    s.solvency(p, dti),
		Stability:   stability(p),
		History:     clamp(s.cfg.Scoring.HistoryScore(p.CreditHistory), 0, 100),
		Purpose:     clamp(s.cfg.Scoring.PurposeScore(p.CreditPurpose), 0, 100),
		Demographic: s.demographic(p),
	}

	w := s.cfg.Weights
	contrib := models.SubScores{
		Solvency:    w.Solvency * subs.Solvency,
		Stability:   w.Stability * subs.Stability,
		History:     w.History * subs.History,
		Purpose:     w.Purpose * subs.Purpose,
		Demographic: w.Demographic * subs.Demographic,
	}
	rawSum := contrib.Solvency + contrib.Stability + contrib.History + contrib.Purpose + contrib.Demographic

	facts := rules.NewFacts(p, dti, rawSum)
	activated := make([]models.ActivatedRule, 0, 4)
	adjustment := 0
	for i := range s.cfg.Rules {
		rule := &s.cfg.Rules[i]
		if rule.Matches(facts) {
			activated = append(activated, rule.Activation())
			adjustment += rule.Impact
		}
	}

	final := int(clamp(math.Round(rawSum+float64(adjustment)), 0, 100))

	utils.GetLogger().Debug("Scored profile",
		utils.Float64("dti", dti),
		utils.Float64("raw_sum", rawSum),
		utils.Int("adjustment", adjustment),
		utils.Int("final_score", final),
		utils.Int("rules", len(activated)))

	return models.ScoreBreakdown{
		DTI:           dti,
		DTIBand:       th.BandFor(dti),
		SubScores:     subs,
		Contributions: contrib,
		Rules:         activated,
		RawSum:        rawSum,
		Adjustment:    adjustment,
		FinalScore:    final,
	}
}

// DTI returns current_total_debt / monthly_income. Division happens in decimal
// so that 4000/25000 is exactly 0.16.
func DTI(p *models.ApplicantProfile) float64 {
	return p.CurrentTotalDebt.Div(p.MonthlyIncome).InexactFloat64()
}

// solvency rewards income coverage of the requested amount and penalizes DTI,
// reaching zero on the DTI side at the critical boundary.
func (s *Scorer) solvency(p *models.ApplicantProfile, dti float64) float64 {
	coverage := p.MonthlyIncome.Div(p.RequestedAmount).InexactFloat64() / s.cfg.Scoring.CoverageTarget
	coveragePart := 50 * math.Min(coverage, 1)
	dtiPart := 50 * clamp(1-dti/s.cfg.Thresholds.CriticalDTI, 0, 1)
	return clamp(coveragePart+dtiPart, 0, 100)
}

func stability(p *models.ApplicantProfile) float64 {
	var score float64
	switch t := p.EmploymentTenureYears; {
	case t < 1:
		score = tenureNone
	case t < 2:
		score = tenureJunior
	case t < 5:
		score = tenureEstablished
	default:
		score = tenureSenior
	}

	switch p.HousingType {
	case models.HousingOwned:
		score += ownedHousingBonus
	case models.HousingOther:
		score += otherHousingBonus
	}

	score -= dependentPenalty * float64(p.Dependents)
	return clamp(score, 0, 100)
}

func (s *Scorer) demographic(p *models.ApplicantProfile) float64 {
	if p.Age < s.cfg.Scoring.YoungAge {
		return clamp(s.cfg.Scoring.YoungScore, 0, 100)
	}
	return 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
