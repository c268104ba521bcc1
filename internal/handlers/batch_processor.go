package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"mihac/internal/models"
	"mihac/internal/services/engine"
	"mihac/internal/services/recorder"
	s3service "mihac/internal/services/s3"
	"mihac/internal/utils"
)

// MessageSkippedArchived is reported for archive copies that trigger the Lambda.
const MessageSkippedArchived = "Skipped: file is already archived"

// maxReportedErrors limits the errors echoed back in a BatchProcessResult.
const maxReportedErrors = 10

// UploadStore reads uploaded CSV files and moves them out of the way.
type UploadStore interface {
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	ArchiveFile(ctx context.Context, key string) (string, error)
}

// BatchProcessorHandler evaluates CSV files uploaded to S3.
type BatchProcessorHandler struct {
	uploads  UploadStore
	engine   *engine.Engine
	recorder *recorder.Recorder
}

// NewBatchProcessorHandler creates a new batch processor handler. rec may be nil.
func NewBatchProcessorHandler(uploads UploadStore, eng *engine.Engine, rec *recorder.Recorder) *BatchProcessorHandler {
	if rec == nil {
		rec = recorder.New()
	}
	return &BatchProcessorHandler{uploads: uploads, engine: eng, recorder: rec}
}

// BatchProcessResult is the result of processing one CSV file.
type BatchProcessResult struct {
	Message     string              `json:"message"`
	Key         string              `json:"key,omitempty"`
	ArchivedKey string              `json:"archived_key,omitempty"`
	Summary     models.BatchSummary `json:"summary"`
	ParseErrors int                 `json:"parse_errors"`
	Errors      []string            `json:"errors,omitempty"`
}

// Handle processes every record of an S3 event. A file that cannot be read
// fails the invocation so Lambda retries it; row-level problems do not.
func (h *BatchProcessorHandler) Handle(ctx context.Context, s3Event events.S3Event) ([]BatchProcessResult, error) {
	if len(s3Event.Records) == 0 {
		return []BatchProcessResult{{Message: "No records to process"}}, nil
	}

	var results []BatchProcessResult
	var errs []error
	for _, record := range s3Event.Records {
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to decode S3 key %q: %w", record.S3.Object.Key, err))
			continue
		}
		res, err := h.ProcessFile(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// ProcessFile downloads, evaluates, records and archives one CSV upload.
// Keys already under the processed prefix are the archive copies written by
// an earlier invocation and are skipped.
func (h *BatchProcessorHandler) ProcessFile(ctx context.Context, key string) (BatchProcessResult, error) {
	logger := utils.GetLogger()
	if s3service.IsArchived(key) {
		logger.Info("Skipping archived file", utils.String("key", key))
		return BatchProcessResult{Message: MessageSkippedArchived, Key: key}, nil
	}
	logger.Info("Processing CSV file", utils.String("key", key))

	content, err := h.uploads.DownloadFile(ctx, key)
	if err != nil {
		return BatchProcessResult{}, fmt.Errorf("failed to download CSV %s: %w", key, err)
	}

	batchID := uuid.New().String()
	result := ProcessCSV(ctx, h.engine, h.recorder, batchID, string(content))
	result.Key = key

	archived, err := h.uploads.ArchiveFile(ctx, key)
	if err != nil {
		logger.Warn("Failed to archive file", utils.String("key", key), utils.Error(err))
	} else {
		result.ArchivedKey = archived
	}

	logger.Info("Processed CSV file",
		utils.String("key", key),
		utils.String("batch_id", batchID),
		utils.Int("total", result.Summary.Total),
		utils.Int("approved", result.Summary.Approved),
		utils.Int("parse_errors", result.ParseErrors))

	return result, nil
}

// ProcessCSV parses CSV content, evaluates every row and records the results.
// It is shared by the S3 Lambda and the HTTP server.
func ProcessCSV(ctx context.Context, eng *engine.Engine, rec *recorder.Recorder, batchID, content string) BatchProcessResult {
	profiles, parseErrors := utils.NewCSVParser().ParseProfiles(content)

	allErrors := make([]string, 0, len(parseErrors))
	for _, e := range parseErrors {
		allErrors = append(allErrors, e.Error())
	}

	if len(profiles) == 0 {
		return BatchProcessResult{
			Message:     "No profiles found in CSV",
			Summary:     models.BatchSummary{BatchID: batchID},
			ParseErrors: len(parseErrors),
			Errors:      limitErrors(allErrors),
		}
	}

	results, err := eng.EvaluateBatch(profiles)
	if err != nil {
		allErrors = append(allErrors, err.Error())
	}
	if rec != nil {
		if err := rec.Record(ctx, batchID, results...); err != nil {
			allErrors = append(allErrors, err.Error())
		}
	}

	return BatchProcessResult{
		Message:     "CSV processed successfully",
		Summary:     eng.Summarize(batchID, results),
		ParseErrors: len(parseErrors),
		Errors:      limitErrors(allErrors),
	}
}

func limitErrors(errs []string) []string {
	if len(errs) > maxReportedErrors {
		return errs[:maxReportedErrors]
	}
	return errs
}
