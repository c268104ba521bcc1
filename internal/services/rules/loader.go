package rules

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"mihac/internal/models"
)

//go:embed default_rules.yaml
var defaultRules []byte

// DefaultSource names the embedded rule set.
const DefaultSource = "embedded:default_rules.yaml"

// weightTolerance absorbs float noise in YAML fractions like 0.35.
const weightTolerance = 1e-6

// Config errors
var (
	ErrReadConfig        = errors.New("cannot read rule config")
	ErrMalformedConfig   = errors.New("malformed rule config")
	ErrNilConfig         = errors.New("rule config is required")
	ErrWeightsSum        = errors.New("weights must be non-negative and sum to 1.0")
	ErrDuplicateRuleID   = errors.New("duplicate rule id")
	ErrUnknownCategory   = errors.New("unknown rule category")
	ErrUnknownField      = errors.New("unknown predicate field")
	ErrUnknownOperator   = errors.New("unknown predicate operator")
	ErrInvalidRule       = errors.New("invalid rule")
	ErrInvalidThresholds = errors.New("invalid thresholds")
	ErrInvalidScoring    = errors.New("invalid scoring table")
)

// ConfigError is a fatal problem with a rule configuration. An engine must not
// start with a config that produced one.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rule config %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Default returns the embedded rule set.
func Default() (*RuleConfig, error) {
	return Parse(defaultRules, DefaultSource)
}

// MustDefault returns the embedded rule set and panics if it is broken.
func MustDefault() *RuleConfig {
	cfg, err := Default()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads a rule config from a YAML file. An empty path loads the default.
func Load(path string) (*RuleConfig, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Err: fmt.Errorf("%w: %v", ErrReadConfig, err)}
	}

	return Parse(data, path)
}

// Parse decodes and validates a rule config. Unknown keys are rejected.
func Parse(data []byte, source string) (*RuleConfig, error) {
	var cfg RuleConfig

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ConfigError{Source: source, Err: fmt.Errorf("%w: %v", ErrMalformedConfig, err)}
	}

	if err := cfg.validate(); err != nil {
		return nil, &ConfigError{Source: source, Err: err}
	}

	sort.SliceStable(cfg.Rules, func(i, j int) bool {
		return cfg.Rules[i].ID < cfg.Rules[j].ID
	})

	sum := sha256.Sum256(data)
	cfg.Source = source
	cfg.Hash = hex.EncodeToString(sum[:])

	return &cfg, nil
}

func (c *RuleConfig) validate() error {
	if err := c.Weights.validate(); err != nil {
		return err
	}
	if err := c.Thresholds.validate(); err != nil {
		return err
	}
	if err := c.Scoring.validate(); err != nil {
		return err
	}
	if len(c.Rules) == 0 {
		return fmt.Errorf("%w: no rules defined", ErrInvalidRule)
	}

	seen := make(map[string]bool, len(c.Rules))
	for i := range c.Rules {
		r := &c.Rules[i]
		if r.ID == "" {
			return fmt.Errorf("%w: rule %d has no id", ErrInvalidRule, i+1)
		}
		if seen[r.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateRuleID, r.ID)
		}
		seen[r.ID] = true

		if !r.Category.IsValid() {
			return fmt.Errorf("%w: %q in rule %s", ErrUnknownCategory, r.Category, r.ID)
		}
		switch {
		case r.Impact == 0:
			return fmt.Errorf("%w: rule %s has zero impact", ErrInvalidRule, r.ID)
		case r.Category == CategoryPenalty && r.Impact > 0:
			return fmt.Errorf("%w: penalty rule %s must have a negative impact", ErrInvalidRule, r.ID)
		case r.Category == CategoryCompensation && r.Impact < 0:
			return fmt.Errorf("%w: compensation rule %s must have a positive impact", ErrInvalidRule, r.ID)
		}

		if err := r.compile(); err != nil {
			return err
		}
	}
	return nil
}

func (w WeightTable) validate() error {
	for _, v := range []float64{w.Solvency, w.Stability, w.History, w.Purpose, w.Demographic} {
		if v < 0 {
			return fmt.Errorf("%w: negative weight %.4f", ErrWeightsSum, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: got %.4f", ErrWeightsSum, sum)
	}
	return nil
}

func (t ThresholdTable) validate() error {
	switch {
	case t.Reject < 0 || t.Approve > 100 || t.Reject >= t.Approve:
		return fmt.Errorf("%w: need 0 <= reject < approve <= 100, got reject=%d approve=%d",
			ErrInvalidThresholds, t.Reject, t.Approve)
	case t.HighAmountApprove < t.Approve || t.HighAmountApprove > 100:
		return fmt.Errorf("%w: high_amount_approve %d must be within [approve, 100]",
			ErrInvalidThresholds, t.HighAmountApprove)
	case t.HighAmountBoundary <= 0:
		return fmt.Errorf("%w: high_amount_boundary must be positive", ErrInvalidThresholds)
	case !(t.DTILow > 0 && t.DTILow < t.DTIModerate && t.DTIModerate < t.CriticalDTI):
		return fmt.Errorf("%w: need 0 < dti_low < dti_moderate < critical_dti", ErrInvalidThresholds)
	}
	return nil
}

func (s ScoringTable) validate() error {
	if s.CoverageTarget <= 0 {
		return fmt.Errorf("%w: coverage_target must be positive", ErrInvalidScoring)
	}
	if s.YoungAge <= 0 {
		return fmt.Errorf("%w: young_age must be positive", ErrInvalidScoring)
	}
	if s.YoungScore < 0 || s.YoungScore > 100 {
		return fmt.Errorf("%w: young_score must be within [0,100]", ErrInvalidScoring)
	}

	for _, h := range []models.CreditHistory{models.CreditHistoryBad, models.CreditHistoryNeutral, models.CreditHistoryGood} {
		if err := checkBase(s.History, string(h), "history"); err != nil {
			return err
		}
	}
	for _, p := range models.ValidCreditPurposes() {
		if err := checkBase(s.Purpose, string(p), "purpose"); err != nil {
			return err
		}
	}
	return nil
}

func checkBase(table map[string]float64, key, name string) error {
	v, ok := table[key]
	if !ok {
		return fmt.Errorf("%w: %s table is missing %q", ErrInvalidScoring, name, key)
	}
	if v < 0 || v > 100 {
		return fmt.Errorf("%w: %s[%s] must be within [0,100]", ErrInvalidScoring, name, key)
	}
	return nil
}
