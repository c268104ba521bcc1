// Package auditlog appends one JSON line per evaluation to a file.
package auditlog

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mihac/internal/models"
)

// Log is an append-only evaluation log. Safe for concurrent use.
type Log struct {
	logger *zap.Logger
	closer io.Closer
}

// Open appends to the file at path, creating it if needed.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %s: %w", path, err)
	}
	l := NewWithWriter(f)
	l.closer = f
	return l, nil
}

// NewWithWriter writes audit lines to w.
func NewWithWriter(w io.Writer) *Log {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		MessageKey:     "event",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), zapcore.InfoLevel)
	return &Log{logger: zap.New(core)}
}

// Record appends the line for one result.
func (l *Log) Record(r *models.EvaluationResult) {
	fields := []zap.Field{
		zap.String("evaluation_id", r.ID),
		zap.String("applicant_id", r.ApplicantID),
		zap.String("decision", string(r.Decision)),
		zap.Float64("duration_ms", float64(r.Duration.Microseconds())/1000),
	}
	if b := r.Breakdown; b != nil {
		fields = append(fields,
			zap.Int("score", b.FinalScore),
			zap.Float64("dti", b.DTI),
			zap.Strings("rules", b.RuleIDs()),
		)
	} else {
		fields = append(fields, zap.Int("validation_errors", len(r.Validation.Errors)))
	}
	if p := r.Profile; p != nil {
		fields = append(fields,
			zap.String("requested_amount", p.RequestedAmount.String()),
			zap.String("purpose", string(p.CreditPurpose)),
		)
	}
	l.logger.Info("evaluation", fields...)
}

// Close flushes and closes the underlying file, if any.
func (l *Log) Close() error {
	_ = l.logger.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
