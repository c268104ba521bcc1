package ses

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mihac/internal/models"
	"mihac/internal/services/resilience"
)

type fakeSES struct {
	sent []*ses.SendEmailInput
	err  error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, in)
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func newTestService(client EmailAPI) *Service {
	svc := NewWithClient(client, "noreply@example.com", "review@example.com")
	svc.retry = resilience.Config{}
	return svc
}

func reviewResult() *models.EvaluationResult {
	return &models.EvaluationResult{
		ID:          "eval-7",
		ApplicantID: "DEMO-GRAY",
		Decision:    models.DecisionManualReview,
		Breakdown: &models.ScoreBreakdown{
			DTI:        0.3,
			FinalScore: 67,
			Rules: []models.ActivatedRule{
				{ID: "R012", Impact: 5, Description: "Stable employment <script>"},
			},
		},
		Context:     models.DecisionContext{ApproveThreshold: 80, RejectThreshold: 60},
		Summary:     "REVISION_MANUAL | Score: 67",
		Explanation: "CREDIT EVALUATION REPORT",
	}
}

func TestNotifyManualReview(t *testing.T) {
	fake := &fakeSES{}
	svc := newTestService(fake)

	res, err := svc.NotifyManualReview(context.Background(), reviewResult())
	require.NoError(t, err)
	assert.Equal(t, "msg-1", res.MessageID)

	require.Len(t, fake.sent, 1)
	in := fake.sent[0]
	assert.Equal(t, "noreply@example.com", aws.ToString(in.Source))
	assert.Equal(t, []string{"review@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Manual review required: DEMO-GRAY (score 67)", aws.ToString(in.Message.Subject.Data))

	text := aws.ToString(in.Message.Body.Text.Data)
	assert.Contains(t, text, "Score: 67 (reject below 60, approve at 80)")
	assert.Contains(t, text, "DTI: 30.00%")
	assert.Contains(t, text, "R012 (+5)")

	html := aws.ToString(in.Message.Body.Html.Data)
	assert.Contains(t, html, "DEMO-GRAY")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<script>")
}

func TestNotifyManualReview_OtherDecisions(t *testing.T) {
	for _, d := range []models.Decision{models.DecisionApproved, models.DecisionRejected, models.DecisionInvalid} {
		t.Run(string(d), func(t *testing.T) {
			fake := &fakeSES{}
			result := reviewResult()
			result.Decision = d

			_, err := newTestService(fake).NotifyManualReview(context.Background(), result)
			assert.ErrorIs(t, err, ErrNotReviewable)
			assert.Empty(t, fake.sent)
		})
	}
}

func TestNotifyManualReview_SendFailure(t *testing.T) {
	fake := &fakeSES{err: errors.New("throttled")}

	_, err := newTestService(fake).NotifyManualReview(context.Background(), reviewResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestReviewSubject_FallsBackToEvaluationID(t *testing.T) {
	p := BuildReviewParams(reviewResult())
	p.ApplicantID = ""
	assert.Equal(t, "Manual review required: eval-7 (score 67)", reviewSubject(p))
}
