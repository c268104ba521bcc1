// Package ses notifies the review team by email when an evaluation needs
// manual review.
package ses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	appConfig "mihac/internal/config"
	"mihac/internal/models"
	"mihac/internal/services/resilience"
	"mihac/internal/utils"
)

// ErrNotReviewable is returned for results that are not REVISION_MANUAL.
var ErrNotReviewable = errors.New("evaluation does not require manual review")

// EmailAPI is the subset of the SES client the service uses.
type EmailAPI interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Service handles SES email operations
type Service struct {
	client    EmailAPI
	fromEmail string
	reviewTo  string
	breaker   *gobreaker.CircuitBreaker
	retry     resilience.Config
}

// EmailParams represents parameters for sending an email
type EmailParams struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	ReplyTo  string
}

// ReviewParams is the data rendered into a manual-review email.
type ReviewParams struct {
	EvaluationID     string
	ApplicantID      string
	Score            int
	ApproveThreshold int
	RejectThreshold  int
	DTI              string
	Rules            []models.ActivatedRule
	Summary          string
	Explanation      string
}

// SendEmailResult contains the result of sending an email
type SendEmailResult struct {
	MessageID string
	SentAt    time.Time
}

// NewService creates a new SES service
func NewService(ctx context.Context, appCfg *appConfig.Config) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(appCfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewWithClient(ses.NewFromConfig(cfg), appCfg.SESSenderEmail, appCfg.ReviewTeamEmail), nil
}

// NewWithClient builds a Service around an existing client.
func NewWithClient(client EmailAPI, from, reviewTo string) *Service {
	return &Service{
		client:    client,
		fromEmail: from,
		reviewTo:  reviewTo,
		breaker:   resilience.NewCircuitBreaker("ses"),
		retry:     resilience.DefaultConfig,
	}
}

// SendEmail sends a basic email
func (s *Service) SendEmail(ctx context.Context, params EmailParams) (*SendEmailResult, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{params.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(params.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{},
		},
	}

	if params.HTMLBody != "" {
		input.Message.Body.Html = &types.Content{
			Data:    aws.String(params.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}
	if params.TextBody != "" {
		input.Message.Body.Text = &types.Content{
			Data:    aws.String(params.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}
	if params.ReplyTo != "" {
		input.ReplyToAddresses = []string{params.ReplyTo}
	}

	result, err := resilience.Call(ctx, s.breaker, s.retry, func() (*ses.SendEmailOutput, error) {
		return s.client.SendEmail(ctx, input)
	})
	if err != nil {
		utils.GetLogger().Error("Failed to send email",
			zap.String("to", params.To),
			zap.String("subject", params.Subject),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	messageID := aws.ToString(result.MessageId)
	utils.GetLogger().Info("Email sent successfully",
		zap.String("to", params.To),
		zap.String("subject", params.Subject),
		zap.String("messageId", messageID),
	)

	return &SendEmailResult{
		MessageID: messageID,
		SentAt:    time.Now(),
	}, nil
}

// NotifyManualReview emails the review team about a REVISION_MANUAL result.
func (s *Service) NotifyManualReview(ctx context.Context, result *models.EvaluationResult) (*SendEmailResult, error) {
	if result.Decision != models.DecisionManualReview || result.Breakdown == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotReviewable, result.Decision)
	}

	params := BuildReviewParams(result)
	htmlBody, err := renderReviewHTML(params)
	if err != nil {
		return nil, fmt.Errorf("failed to render email template: %w", err)
	}

	return s.SendEmail(ctx, EmailParams{
		To:       s.reviewTo,
		Subject:  reviewSubject(params),
		HTMLBody: htmlBody,
		TextBody: renderReviewText(params),
	})
}

// BuildReviewParams extracts the email data from a result.
func BuildReviewParams(result *models.EvaluationResult) ReviewParams {
	params := ReviewParams{
		EvaluationID:     result.ID,
		ApplicantID:      result.ApplicantID,
		ApproveThreshold: result.Context.ApproveThreshold,
		RejectThreshold:  result.Context.RejectThreshold,
		Summary:          result.Summary,
		Explanation:      result.Explanation,
	}
	if b := result.Breakdown; b != nil {
		params.Score = b.FinalScore
		params.DTI = fmt.Sprintf("%.2f%%", b.DTI*100)
		params.Rules = b.Rules
	}
	return params
}

func reviewSubject(p ReviewParams) string {
	who := p.ApplicantID
	if who == "" {
		who = p.EvaluationID
	}
	return fmt.Sprintf("Manual review required: %s (score %d)", who, p.Score)
}

var reviewTemplate = template.Must(template.New("manual_review").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Segoe UI', Tahoma, sans-serif; line-height: 1.5; color: #333; max-width: 640px; margin: 0 auto; padding: 20px; }
        .header { background: #f0ad4e; color: white; padding: 20px; border-radius: 8px 8px 0 0; }
        .content { background: #f9f9f9; padding: 20px; border-radius: 0 0 8px 8px; }
        table { border-collapse: collapse; width: 100%; }
        td { padding: 4px 8px; border-bottom: 1px solid #eee; }
        pre { background: white; padding: 12px; font-size: 12px; white-space: pre-wrap; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Manual review required</h2>
        <p>Evaluation {{.EvaluationID}}{{if .ApplicantID}} for applicant {{.ApplicantID}}{{end}}</p>
    </div>
    <div class="content">
        <p>Score <strong>{{.Score}}</strong> falls between the rejection threshold ({{.RejectThreshold}}) and the approval threshold ({{.ApproveThreshold}}). DTI: {{.DTI}}.</p>
        {{if .Rules}}
        <table>
            {{range .Rules}}<tr><td>{{.ID}}</td><td>{{.Impact}}</td><td>{{.Description}}</td></tr>
            {{end}}
        </table>
        {{end}}
        <pre>{{.Explanation}}</pre>
    </div>
</body>
</html>`))

func renderReviewHTML(p ReviewParams) (string, error) {
	var buf bytes.Buffer
	if err := reviewTemplate.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderReviewText(p ReviewParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evaluation %s requires manual review.\n\n", p.EvaluationID)
	if p.ApplicantID != "" {
		fmt.Fprintf(&b, "Applicant: %s\n", p.ApplicantID)
	}
	fmt.Fprintf(&b, "Score: %d (reject below %d, approve at %d)\n", p.Score, p.RejectThreshold, p.ApproveThreshold)
	fmt.Fprintf(&b, "DTI: %s\n\n", p.DTI)
	if len(p.Rules) > 0 {
		b.WriteString("Activated rules:\n")
		for _, r := range p.Rules {
			fmt.Fprintf(&b, "  %s (%+d) %s\n", r.ID, r.Impact, r.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString(p.Summary)
	b.WriteString("\n")
	return b.String()
}
