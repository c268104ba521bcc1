package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mihac/internal/models"
	"mihac/internal/utils"
)

const applicantsCSV = `applicant_id,age,monthly_income,current_total_debt,credit_history,employment_tenure_years,dependents,housing_type,credit_purpose,requested_amount
A-1,35,25000,4000,good,7,1,owned,business,15000
A-2,19,8000,5500,bad,0,3,rented,consumption,30000
`

const idealYAML = `applicant_id: Y-1
age: 35
monthly_income: 25000
current_total_debt: 4000
credit_history: good
employment_tenure_years: 7
dependents: 1
housing_type: owned
credit_purpose: business
requested_amount: 15000
`

// cleanEnv keeps the developer's environment out of the commands under test.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORE_DRIVER", "DATABASE_URL", "RULES_PATH", "STRICT_WARNINGS", "AUDIT_LOG_PATH",
		"S3_BUCKET", "SES_SENDER_EMAIL", "REVIEW_TEAM_EMAIL", "BATCH_WORKERS", "PORT",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func run(t *testing.T, stdinData string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newApp()
	cmd.Writer = &out
	cmd.ErrWriter = &bytes.Buffer{}
	cmd.Reader = strings.NewReader(stdinData)
	err := cmd.Run(context.Background(), append([]string{name}, args...))
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDemo_JSON(t *testing.T) {
	cleanEnv(t)

	out, err := run(t, "", "demo", "--format", "json")
	require.NoError(t, err)

	var results []struct {
		Sample string `json:"sample"`
		Result struct {
			Decision   models.Decision `json:"decision"`
			FinalScore *int            `json:"final_score"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &results))

	byName := make(map[string]models.Decision, len(results))
	for _, r := range results {
		byName[r.Sample] = r.Result.Decision
	}
	assert.Equal(t, models.DecisionApproved, byName["ideal"])
	assert.Equal(t, models.DecisionRejected, byName["risk"])
	assert.Equal(t, models.DecisionManualReview, byName["gray"])
	assert.Equal(t, models.DecisionInvalid, byName["invalid"])
}

func TestDemo_Text(t *testing.T) {
	cleanEnv(t)

	out, err := run(t, "", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "[ideal]")
	assert.Contains(t, out, "decision: APROBADO  score: 100")
	assert.Contains(t, out, "7 evaluated")
}

func TestEvaluate_YAMLFromStdin(t *testing.T) {
	cleanEnv(t)

	out, err := run(t, idealYAML, "evaluate", "--file", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Decision: APROBADO")
	assert.Contains(t, out, "Final score: 100/100")
}

func TestEvaluate_JSONArrayFile(t *testing.T) {
	cleanEnv(t)
	path := writeFile(t, "profiles.json", `[
		{"applicant_id":"J-1","age":35,"monthly_income":25000,"current_total_debt":4000,"credit_history":"good",
		 "employment_tenure_years":7,"dependents":1,"housing_type":"owned","credit_purpose":"business","requested_amount":15000},
		{"applicant_id":"J-2","age":"abc"}
	]`)

	out, err := run(t, "", "evaluate", "-f", path, "-o", "json")
	require.NoError(t, err)

	var resp struct {
		Summary models.BatchSummary `json:"summary"`
		Results []json.RawMessage   `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.Approved)
	assert.Equal(t, 1, resp.Summary.Invalid)
	assert.Len(t, resp.Results, 2)
}

func TestEvaluate_Errors(t *testing.T) {
	cleanEnv(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"missing file flag", "", []string{"evaluate"}},
		{"missing file", "", []string{"evaluate", "--file", filepath.Join(t.TempDir(), "nope.json")}},
		{"empty stdin", "  ", []string{"evaluate", "--file", "-"}},
		{"bad format", idealYAML, []string{"evaluate", "--file", "-", "--format", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.stdin, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestBatch_Text(t *testing.T) {
	cleanEnv(t)
	path := writeFile(t, "applicants.csv", applicantsCSV)

	out, err := run(t, "", "batch", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "A-1")
	assert.Contains(t, out, "APROBADO")
	assert.Contains(t, out, "RECHAZADO")
	assert.Contains(t, out, "2 evaluated: 1 approved, 0 manual review, 1 rejected, 0 invalid")
}

func TestBatch_MissingColumns(t *testing.T) {
	cleanEnv(t)

	_, err := run(t, "age,monthly_income\n30,1000\n", "batch", "--file", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestBatch_RecordThenDashboard(t *testing.T) {
	cleanEnv(t)
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "mihac.db"))

	out, err := run(t, applicantsCSV, "batch", "--file", "-", "--record", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Summary models.BatchSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Summary.Total)

	out, err = run(t, "", "dashboard", "--format", "json")
	require.NoError(t, err)

	var d models.DashboardSummary
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, 2, d.Total)
	assert.Equal(t, 1, d.ByDecision[models.DecisionApproved])
	assert.Equal(t, 1, d.ByDecision[models.DecisionRejected])
	assert.InDelta(t, 0.5, d.ApprovalRate, 1e-9)

	out, err = run(t, "", "dashboard")
	require.NoError(t, err)
	assert.Contains(t, out, "Evaluations: 2")
}

func TestDashboard_NoStore(t *testing.T) {
	cleanEnv(t)

	_, err := run(t, "", "dashboard")
	assert.ErrorIs(t, err, errNoStore)
}

func TestRulesCheck(t *testing.T) {
	cleanEnv(t)

	out, err := run(t, "", "rules", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "OK ")
	assert.Contains(t, out, "IMPACT")

	out, err = run(t, "", "rules", "check", "--file", "../../internal/services/rules/default_rules.yaml", "--format", "json")
	require.NoError(t, err)
	var summary rulesSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.NotEmpty(t, summary.Hash)
	assert.NotEmpty(t, summary.Rules)

	bad := writeFile(t, "bad.yaml", "weights: [1, 2\n")
	_, err = run(t, "", "rules", "check", "--file", bad)
	assert.Error(t, err)
}

const labelledCSV = `applicant_id,age,monthly_income,current_total_debt,credit_history,employment_tenure_years,dependents,housing_type,credit_purpose,requested_amount,expected
B-1,35,25000,4000,good,7,1,owned,business,15000,good
B-2,19,8000,5500,bad,0,3,rented,consumption,30000,bad
B-3,35,25000,4000,good,7,1,owned,business,15000,0
B-4,19,8000,5500,bad,0,3,rented,consumption,30000,1
B-5,35,25000,4000,good,7,1,owned,business,15000,maybe
`

func TestBacktest_Text(t *testing.T) {
	cleanEnv(t)
	path := writeFile(t, "labelled.csv", labelledCSV)

	out, err := run(t, "", "backtest", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Backtest over 4 labelled rows")
	assert.Contains(t, out, "TP 1")
	assert.Contains(t, out, "TN 1")
	assert.Contains(t, out, "accuracy 0.5000  precision 0.5000  recall 0.5000  specificity 0.5000  f1 0.5000")
	assert.Contains(t, out, "false positives: 1  avg score 100.0")
	assert.Contains(t, out, "false negatives: 1")
	assert.Contains(t, out, "skipped: row 5")
}

func TestBacktest_JSON(t *testing.T) {
	cleanEnv(t)

	out, err := run(t, labelledCSV, "backtest", "--file", "-", "--format", "json")
	require.NoError(t, err)

	var rep struct {
		Total     int `json:"total"`
		Confusion struct {
			TP int `json:"true_positives"`
			FP int `json:"false_positives"`
			TN int `json:"true_negatives"`
			FN int `json:"false_negatives"`
		} `json:"confusion_matrix"`
		Metrics struct {
			Precision float64 `json:"precision"`
			Recall    float64 `json:"recall"`
			F1        float64 `json:"f1_score"`
		} `json:"metrics"`
		FalsePositives struct {
			Count        int     `json:"count"`
			AverageScore float64 `json:"average_score"`
		} `json:"false_positives"`
		FalseNegatives struct {
			ByDecision map[models.Decision]int `json:"by_decision"`
		} `json:"false_negatives"`
		Skipped []string `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))

	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, 1, rep.Confusion.TP)
	assert.Equal(t, 1, rep.Confusion.FP)
	assert.Equal(t, 1, rep.Confusion.TN)
	assert.Equal(t, 1, rep.Confusion.FN)
	assert.InDelta(t, 0.5, rep.Metrics.Precision, 1e-9)
	assert.InDelta(t, 0.5, rep.Metrics.Recall, 1e-9)
	assert.InDelta(t, 0.5, rep.Metrics.F1, 1e-9)
	assert.Equal(t, 1, rep.FalsePositives.Count)
	assert.InDelta(t, 100.0, rep.FalsePositives.AverageScore, 1e-9)
	assert.Equal(t, 1, rep.FalseNegatives.ByDecision[models.DecisionRejected])
	require.Len(t, rep.Skipped, 1)
	assert.Contains(t, rep.Skipped[0], "maybe")
}

func TestBacktest_CustomLabelColumn(t *testing.T) {
	cleanEnv(t)
	csv := strings.Replace(labelledCSV, ",expected\n", ",Resultado Real\n", 1)

	out, err := run(t, csv, "backtest", "--file", "-", "--label-column", "resultado real")
	require.NoError(t, err)
	assert.Contains(t, out, "Backtest over 4 labelled rows")
}

func TestBacktest_Errors(t *testing.T) {
	cleanEnv(t)

	tests := []struct {
		name    string
		stdin   string
		args    []string
		wantErr string
	}{
		{"no label column", applicantsCSV, nil, `label column "expected" not found`},
		{"missing columns", "age,expected\n30,good\n", nil, "missing required columns"},
		{"empty", "", nil, "empty"},
		{"no usable labels", labelledCSV, []string{"--label-column", "credit_purpose"}, "no labelled rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.stdin, append([]string{"backtest", "--file", "-"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBatch_EmptyCSV(t *testing.T) {
	cleanEnv(t)

	_, err := run(t, "", "batch", "--file", "-")
	assert.ErrorIs(t, err, utils.ErrEmptyCSV)
}
