package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mihac/internal/models"
	"mihac/internal/services/engine"
	"mihac/internal/services/recorder"
	"mihac/internal/services/rules"
)

const csvHeader = "applicant_id,age,monthly_income,current_total_debt,credit_history,employment_tenure_years,dependents,housing_type,credit_purpose,requested_amount"

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(rules.MustDefault())
	require.NoError(t, err)
	return eng
}

func sampleJSON(t *testing.T, names ...string) string {
	t.Helper()
	var raws []models.RawProfile
	for _, s := range engine.SampleProfiles() {
		for _, n := range names {
			if s.Name == n {
				raws = append(raws, s.Raw)
			}
		}
	}
	require.Len(t, raws, len(names))
	var data []byte
	var err error
	if len(raws) == 1 {
		data, err = json.Marshal(raws[0])
	} else {
		data, err = json.Marshal(raws)
	}
	require.NoError(t, err)
	return string(data)
}

type auditSpy struct{ ids []string }

func (a *auditSpy) Record(r *models.EvaluationResult) { a.ids = append(a.ids, r.ID) }

func TestEvaluateHandler_Single(t *testing.T) {
	audit := &auditSpy{}
	h := NewEvaluateHandler(newTestEngine(t), recorder.New(recorder.WithAudit(audit)))

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Body:       sampleJSON(t, "ideal"),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Equal(t, "APROBADO", body["decision"])
	assert.Equal(t, 100.0, body["final_score"])
	assert.Equal(t, "DEMO-IDEAL", body["applicant_id"])
	assert.Len(t, audit.ids, 1)
}

func TestEvaluateHandler_InvalidProfileIsData(t *testing.T) {
	h := NewEvaluateHandler(newTestEngine(t), nil)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Body:       `{"age": 12}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Body, `"decision":"INVALIDO"`)
}

func TestEvaluateHandler_Batch(t *testing.T) {
	h := NewEvaluateHandler(newTestEngine(t), nil)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Body:       sampleJSON(t, "ideal", "gray", "risk"),
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Summary models.BatchSummary `json:"summary"`
		Results []json.RawMessage   `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	assert.Len(t, body.Results, 3)
	assert.Equal(t, 3, body.Summary.Total)
	assert.Equal(t, 1, body.Summary.Approved)
	assert.Equal(t, 1, body.Summary.ManualReview)
	assert.Equal(t, 1, body.Summary.Rejected)
	assert.NotEmpty(t, body.Summary.BatchID)
}

func TestEvaluateHandler_Base64Body(t *testing.T) {
	h := NewEvaluateHandler(newTestEngine(t), nil)

	resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Body:            base64.StdEncoding.EncodeToString([]byte(sampleJSON(t, "gray"))),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Body, `"decision":"REVISION_MANUAL"`)
}

func TestEvaluateHandler_RequestErrors(t *testing.T) {
	h := NewEvaluateHandler(newTestEngine(t), nil)

	tests := []struct {
		name   string
		req    events.APIGatewayProxyRequest
		status int
	}{
		{"preflight", events.APIGatewayProxyRequest{HTTPMethod: http.MethodOptions}, http.StatusOK},
		{"wrong method", events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet}, http.StatusMethodNotAllowed},
		{"empty body", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost}, http.StatusBadRequest},
		{"not json", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: "age=35"}, http.StatusBadRequest},
		{"bad base64", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Body: "%%%", IsBase64Encoded: true}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.Handle(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

type fakeUploads struct {
	files    map[string][]byte
	archived []string
}

func (f *fakeUploads) DownloadFile(_ context.Context, key string) ([]byte, error) {
	data, ok := f.files[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return data, nil
}

func (f *fakeUploads) ArchiveFile(_ context.Context, key string) (string, error) {
	f.archived = append(f.archived, key)
	return "processed/" + key, nil
}

func s3Event(keys ...string) events.S3Event {
	var ev events.S3Event
	for _, k := range keys {
		var rec events.S3EventRecord
		rec.S3.Bucket.Name = "uploads"
		rec.S3.Object.Key = k
		ev.Records = append(ev.Records, rec)
	}
	return ev
}

func TestBatchProcessor_Handle(t *testing.T) {
	uploads := &fakeUploads{files: map[string][]byte{
		"batch 1.csv": []byte(csvHeader + `
A-1,35,25000,4000,good,7,1,owned,business,15000
A-2,19,8000,5500,bad,0,3,rented,vacation,12000
A-3,abc,8000,5500,bad,0,3,rented,vacation,12000
`),
	}}
	h := NewBatchProcessorHandler(uploads, newTestEngine(t), nil)

	results, err := h.Handle(context.Background(), s3Event("batch+1.csv"))
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "batch 1.csv", res.Key)
	assert.Equal(t, "processed/batch 1.csv", res.ArchivedKey)
	assert.Equal(t, 3, res.Summary.Total)
	assert.Equal(t, 1, res.Summary.Approved)
	assert.Equal(t, 1, res.Summary.Rejected)
	assert.Equal(t, 1, res.Summary.Invalid)
	assert.Equal(t, []string{"batch 1.csv"}, uploads.archived)
}

func TestBatchProcessor_SkipsArchivedCopies(t *testing.T) {
	body := []byte(csvHeader + "\nA-1,35,25000,4000,good,7,1,owned,business,15000\n")
	uploads := &fakeUploads{files: map[string][]byte{
		"uploads/x.csv":           body,
		"processed/uploads/x.csv": body,
	}}
	eng := newTestEngine(t)
	h := NewBatchProcessorHandler(uploads, eng, nil)

	results, err := h.Handle(context.Background(), s3Event("uploads/x.csv", "processed/uploads/x.csv"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Summary.Total)
	assert.Equal(t, MessageSkippedArchived, results[1].Message)
	assert.Zero(t, results[1].Summary.Total)
	assert.Equal(t, 1, eng.Stats().TotalEvaluations)
	assert.Equal(t, []string{"uploads/x.csv"}, uploads.archived)
}

func TestBatchProcessor_MissingFile(t *testing.T) {
	h := NewBatchProcessorHandler(&fakeUploads{files: map[string][]byte{}}, newTestEngine(t), nil)

	_, err := h.Handle(context.Background(), s3Event("gone.csv"))
	assert.Error(t, err)
}

func TestBatchProcessor_NoRecords(t *testing.T) {
	h := NewBatchProcessorHandler(&fakeUploads{}, newTestEngine(t), nil)

	results, err := h.Handle(context.Background(), events.S3Event{})
	require.NoError(t, err)
	assert.Equal(t, "No records to process", results[0].Message)
}

func TestProcessCSV_MissingColumns(t *testing.T) {
	res := ProcessCSV(context.Background(), newTestEngine(t), nil, "b-1", "age,income\n30,1000\n")
	assert.Equal(t, "No profiles found in CSV", res.Message)
	assert.Zero(t, res.Summary.Total)
	assert.Equal(t, 1, res.ParseErrors)
}

type fakeChecker struct{ err error }

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

func TestHealthHandler(t *testing.T) {
	cfg := rules.MustDefault()

	tests := []struct {
		name       string
		store      HealthChecker
		wantStatus int
		wantStore  string
	}{
		{"no store", nil, http.StatusOK, "not configured"},
		{"store up", fakeChecker{}, http.StatusOK, "connected"},
		{"store down", fakeChecker{err: errors.New("refused")}, http.StatusServiceUnavailable, "disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := NewHealthHandler(tt.store, cfg).Handle(context.Background(), events.APIGatewayProxyRequest{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body HealthResponse
			require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
			assert.Equal(t, tt.wantStore, body.Store)
			assert.Equal(t, len(cfg.Rules), body.RuleCount)
			assert.Equal(t, cfg.Version, body.RulesVersion)
		})
	}
}
