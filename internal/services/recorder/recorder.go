// Package recorder fans evaluation results out to the optional sinks: metrics,
// audit log, evaluation store, report archive and review notifier.
package recorder

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"mihac/internal/models"
	"mihac/internal/services/ses"
	"mihac/internal/utils"
)

// Sink names used in logs and the sink error metric.
const (
	SinkStore    = "store"
	SinkReports  = "s3"
	SinkNotifier = "ses"
)

// MetricsSink receives every result.
type MetricsSink interface {
	Observe(r *models.EvaluationResult)
	IncSinkError(sink string)
}

// AuditSink receives every result.
type AuditSink interface {
	Record(r *models.EvaluationResult)
}

// Store persists evaluation records.
type Store interface {
	SaveBatch(ctx context.Context, recs []*models.EvaluationRecord) error
}

// ReportArchive stores the full explanation of scored results.
type ReportArchive interface {
	UploadReport(ctx context.Context, r *models.EvaluationResult) (string, error)
}

// Notifier is told about REVISION_MANUAL results.
type Notifier interface {
	NotifyManualReview(ctx context.Context, r *models.EvaluationResult) (*ses.SendEmailResult, error)
}

// Recorder delivers results to whichever sinks are configured. Sink failures
// are logged and returned but never alter a result.
type Recorder struct {
	metrics  MetricsSink
	audit    AuditSink
	store    Store
	reports  ReportArchive
	notifier Notifier
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithMetrics sets the metrics sink.
func WithMetrics(m MetricsSink) Option { return func(r *Recorder) { r.metrics = m } }

// WithAudit sets the audit log.
func WithAudit(a AuditSink) Option { return func(r *Recorder) { r.audit = a } }

// WithStore sets the evaluation store.
func WithStore(s Store) Option { return func(r *Recorder) { r.store = s } }

// WithReports sets the report archive.
func WithReports(a ReportArchive) Option { return func(r *Recorder) { r.reports = a } }

// WithNotifier sets the manual-review notifier.
func WithNotifier(n Notifier) Option { return func(r *Recorder) { r.notifier = n } }

// New builds a Recorder. With no options it records nothing.
func New(opts ...Option) *Recorder {
	r := &Recorder{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record delivers results in order. batchID is stored with each record and
// may be empty for single evaluations.
func (rec *Recorder) Record(ctx context.Context, batchID string, results ...*models.EvaluationResult) error {
	var errs []error
	fail := func(sink string, err error) {
		utils.GetLogger().Error("Failed to record evaluation",
			zap.String("sink", sink),
			zap.String("batch_id", batchID),
			zap.Error(err),
		)
		if rec.metrics != nil {
			rec.metrics.IncSinkError(sink)
		}
		errs = append(errs, fmt.Errorf("%s: %w", sink, err))
	}

	records := make([]*models.EvaluationRecord, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		if rec.metrics != nil {
			rec.metrics.Observe(r)
		}
		if rec.audit != nil {
			rec.audit.Record(r)
		}
		if rec.store != nil {
			row, err := models.NewEvaluationRecord(r, batchID)
			if err != nil {
				fail(SinkStore, err)
			} else {
				records = append(records, row)
			}
		}
		if rec.reports != nil && r.Scored() {
			if _, err := rec.reports.UploadReport(ctx, r); err != nil {
				fail(SinkReports, err)
			}
		}
		if rec.notifier != nil && r.Decision == models.DecisionManualReview {
			if _, err := rec.notifier.NotifyManualReview(ctx, r); err != nil {
				fail(SinkNotifier, err)
			}
		}
	}

	if rec.store != nil && len(records) > 0 {
		if err := rec.store.SaveBatch(ctx, records); err != nil {
			fail(SinkStore, err)
		}
	}

	return errors.Join(errs...)
}
