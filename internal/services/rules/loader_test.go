package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mihac/internal/models"
)

func TestDefault_Loads(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, DefaultSource, cfg.Source)
	assert.Len(t, cfg.Hash, 64)
	assert.Len(t, cfg.Rules, 15)
	assert.InDelta(t, 1.0, cfg.Weights.Sum(), 1e-9)
	assert.Equal(t, 80, cfg.Thresholds.Approve)
	assert.Equal(t, 60, cfg.Thresholds.Reject)
	assert.Equal(t, 85, cfg.Thresholds.HighAmountApprove)
	assert.Equal(t, 0.60, cfg.Thresholds.CriticalDTI)

	for i := 1; i < len(cfg.Rules); i++ {
		assert.Less(t, cfg.Rules[i-1].ID, cfg.Rules[i].ID, "rules must be sorted by id")
	}

	r14, ok := cfg.RuleByID("R014")
	require.True(t, ok)
	assert.Equal(t, "DTI_ALTO_PENALIZADO", r14.Flag)
	assert.Equal(t, -20, r14.Impact)
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSource, cfg.Source)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, ErrReadConfig)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, defaultRules, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.Len(t, cfg.Rules, 15)
}

// mutate returns the default YAML with one substring replaced.
func mutate(t *testing.T, old, new string) []byte {
	t.Helper()
	src := string(defaultRules)
	require.Contains(t, src, old)
	return []byte(strings.Replace(src, old, new, 1))
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{
			name: "weights do not sum to one",
			data: mutate(t, "solvency: 0.35", "solvency: 0.45"),
			want: ErrWeightsSum,
		},
		{
			name: "negative weight",
			data: mutate(t, "demographic: 0.05", "demographic: -0.05"),
			want: ErrWeightsSum,
		},
		{
			name: "duplicate rule id",
			data: mutate(t, "- id: R002", "- id: R001"),
			want: ErrDuplicateRuleID,
		},
		{
			name: "unknown category",
			data: mutate(t, "category: penalty", "category: surcharge"),
			want: ErrUnknownCategory,
		},
		{
			name: "unknown predicate field",
			data: mutate(t, "{field: age, op:", "{field: shoe_size, op:"),
			want: ErrUnknownField,
		},
		{
			name: "unknown operator",
			data: mutate(t, `{field: age, op: "<"`, `{field: age, op: "~="`),
			want: ErrUnknownOperator,
		},
		{
			name: "ordering operator on text field",
			data: mutate(t, `{field: credit_history, op: "==", value: bad}`, `{field: credit_history, op: ">", value: bad}`),
			want: ErrUnknownOperator,
		},
		{
			name: "unknown enum value",
			data: mutate(t, "value: business}", "value: lottery}"),
			want: ErrInvalidRule,
		},
		{
			name: "penalty with positive impact",
			data: mutate(t, "impact: -15", "impact: 15"),
			want: ErrInvalidRule,
		},
		{
			name: "reject above approve",
			data: mutate(t, "reject: 60", "reject: 90"),
			want: ErrInvalidThresholds,
		},
		{
			name: "high amount approve below approve",
			data: mutate(t, "high_amount_approve: 85", "high_amount_approve: 70"),
			want: ErrInvalidThresholds,
		},
		{
			name: "missing purpose base score",
			data: mutate(t, "    vacation: 0\n", ""),
			want: ErrInvalidScoring,
		},
		{
			name: "unknown top level key",
			data: append(append([]byte{}, defaultRules...), []byte("\nextras: true\n")...),
			want: ErrMalformedConfig,
		},
		{
			name: "not yaml",
			data: []byte("rules: [unterminated"),
			want: ErrMalformedConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse(tt.data, "test")
			require.Error(t, err)
			assert.Nil(t, cfg)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T", err)
			assert.Equal(t, "test", cfgErr.Source)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestThresholdTable_ApproveFor(t *testing.T) {
	cfg := MustDefault()
	th := cfg.Thresholds

	tests := []struct {
		amount string
		want   int
	}{
		{"500", 80},
		{"20000", 80},
		{"20000.01", 85},
		{"45000", 85},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, th.ApproveFor(decimal.RequireFromString(tt.amount)))
		})
	}

	// The table itself never moves.
	assert.Equal(t, 80, cfg.Thresholds.Approve)
}

func TestThresholdTable_BandFor(t *testing.T) {
	th := MustDefault().Thresholds

	tests := []struct {
		dti  float64
		want models.DTIBand
	}{
		{0, models.DTIBandLow},
		{0.16, models.DTIBandLow},
		{0.25, models.DTIBandModerate},
		{0.3999, models.DTIBandModerate},
		{0.40, models.DTIBandHigh},
		{0.60, models.DTIBandHigh},
		{0.6001, models.DTIBandCritical},
		{0.6875, models.DTIBandCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.BandFor(tt.dti), "dti=%v", tt.dti)
	}

	assert.False(t, th.IsCriticalDTI(0.60))
	assert.True(t, th.IsCriticalDTI(0.6001))
}
