// Package s3service archives evaluation reports and batch CSV uploads in S3.
package s3service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	appConfig "mihac/internal/config"
	"mihac/internal/models"
	"mihac/internal/services/resilience"
	"mihac/internal/utils"
)

// ProcessedPrefix is where ArchiveFile moves consumed uploads.
const ProcessedPrefix = "processed/"

// ObjectAPI is the subset of the S3 client the service uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Service handles S3 operations
type Service struct {
	client       ObjectAPI
	bucketName   string
	reportPrefix string
	breaker      *gobreaker.CircuitBreaker
	retry        resilience.Config
}

// NewService creates a new S3 service from the default AWS credential chain.
func NewService(ctx context.Context, appCfg *appConfig.Config) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(appCfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(cfg), appCfg.S3Bucket, appCfg.ReportPrefix), nil
}

// NewWithClient builds a Service around an existing client.
func NewWithClient(client ObjectAPI, bucket, reportPrefix string) *Service {
	return &Service{
		client:       client,
		bucketName:   bucket,
		reportPrefix: strings.Trim(reportPrefix, "/"),
		breaker:      resilience.NewCircuitBreaker("s3"),
		retry:        resilience.DefaultConfig,
	}
}

// Bucket returns the configured bucket name.
func (s *Service) Bucket() string {
	return s.bucketName
}

// ReportKey returns <prefix>/<yyyy>/<mm>/<dd>/<id>.txt for a result.
func (s *Service) ReportKey(result *models.EvaluationResult) string {
	day := result.EvaluatedAt.UTC().Format("2006/01/02")
	return path.Join(s.reportPrefix, day, result.ID+".txt")
}

// UploadReport stores the full explanation of a result and returns its key.
func (s *Service) UploadReport(ctx context.Context, result *models.EvaluationResult) (string, error) {
	key := s.ReportKey(result)
	body := []byte(result.Explanation)

	_, err := resilience.Call(ctx, s.breaker, s.retry, func() (*s3.PutObjectOutput, error) {
		return s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucketName),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String("text/plain; charset=utf-8"),
			Metadata: map[string]string{
				"decision":     string(result.Decision),
				"applicant-id": result.ApplicantID,
			},
		})
	})
	if err != nil {
		utils.GetLogger().Error("Failed to upload report to S3",
			zap.String("bucket", s.bucketName),
			zap.String("key", key),
			zap.Error(err),
		)
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	utils.GetLogger().Debug("Uploaded report to S3",
		zap.String("bucket", s.bucketName),
		zap.String("key", key),
		zap.Int("size", len(body)),
	)
	return key, nil
}

// DownloadFile downloads a file from S3
func (s *Service) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	data, err := resilience.Call(ctx, s.breaker, s.retry, func() ([]byte, error) {
		result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucketName),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, err
		}
		defer result.Body.Close()
		return io.ReadAll(result.Body)
	})
	if err != nil {
		utils.GetLogger().Error("Failed to download file from S3",
			zap.String("bucket", s.bucketName),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to download file: %w", err)
	}

	utils.GetLogger().Info("Downloaded file from S3",
		zap.String("bucket", s.bucketName),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)
	return data, nil
}

// IsArchived reports whether key already lives under ProcessedPrefix.
func IsArchived(key string) bool {
	return strings.HasPrefix(key, ProcessedPrefix)
}

// ArchiveFile moves a consumed upload under ProcessedPrefix (copy + delete)
// and returns the new key. The full source key is kept so uploads with the
// same file name in different folders do not collide.
func (s *Service) ArchiveFile(ctx context.Context, key string) (string, error) {
	if IsArchived(key) {
		return key, nil
	}
	dest := ProcessedPrefix + key

	_, err := resilience.Call(ctx, s.breaker, s.retry, func() (*s3.CopyObjectOutput, error) {
		return s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucketName),
			CopySource: aws.String(fmt.Sprintf("%s/%s", s.bucketName, key)),
			Key:        aws.String(dest),
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to copy file: %w", err)
	}

	_, err = resilience.Call(ctx, s.breaker, s.retry, func() (*s3.DeleteObjectOutput, error) {
		return s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucketName),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to delete file: %w", err)
	}

	utils.GetLogger().Info("Archived file in S3",
		zap.String("source", key),
		zap.String("destination", dest),
	)
	return dest, nil
}
