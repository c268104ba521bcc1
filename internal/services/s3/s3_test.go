package s3service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mihac/internal/models"
	"mihac/internal/services/resilience"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.meta[aws.ToString(in.Key)] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src := aws.ToString(in.CopySource)
	key := src[len(aws.ToString(in.Bucket))+1:]
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newTestService(client ObjectAPI) *Service {
	svc := NewWithClient(client, "bucket", "/reports/")
	svc.retry = resilience.Config{}
	return svc
}

func mockResult() *models.EvaluationResult {
	return &models.EvaluationResult{
		ID:          "eval-1",
		ApplicantID: "APP-1",
		Decision:    models.DecisionManualReview,
		Explanation: "CREDIT EVALUATION REPORT\n...",
		EvaluatedAt: time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC),
	}
}

func TestReportKey(t *testing.T) {
	svc := newTestService(newFakeS3())
	assert.Equal(t, "reports/2026/03/07/eval-1.txt", svc.ReportKey(mockResult()))
}

func TestUploadReport(t *testing.T) {
	fake := newFakeS3()
	svc := newTestService(fake)

	key, err := svc.UploadReport(context.Background(), mockResult())
	require.NoError(t, err)
	assert.Equal(t, "reports/2026/03/07/eval-1.txt", key)
	assert.Equal(t, "CREDIT EVALUATION REPORT\n...", string(fake.objects[key]))
	assert.Equal(t, "REVISION_MANUAL", fake.meta[key]["decision"])
}

func TestUploadReport_Error(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	svc := newTestService(fake)

	_, err := svc.UploadReport(context.Background(), mockResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestDownloadAndArchive(t *testing.T) {
	fake := newFakeS3()
	fake.objects["uploads/applicants.csv"] = []byte("age\n30\n")
	svc := newTestService(fake)
	ctx := context.Background()

	data, err := svc.DownloadFile(ctx, "uploads/applicants.csv")
	require.NoError(t, err)
	assert.Equal(t, "age\n30\n", string(data))

	dest, err := svc.ArchiveFile(ctx, "uploads/applicants.csv")
	require.NoError(t, err)
	assert.Equal(t, "processed/uploads/applicants.csv", dest)
	assert.Contains(t, fake.objects, "processed/uploads/applicants.csv")
	assert.NotContains(t, fake.objects, "uploads/applicants.csv")

	again, err := svc.ArchiveFile(ctx, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, again)
}

func TestArchiveFile_KeepsFolders(t *testing.T) {
	fake := newFakeS3()
	fake.objects["a/batch.csv"] = []byte("a")
	fake.objects["b/batch.csv"] = []byte("b")
	svc := newTestService(fake)
	ctx := context.Background()

	destA, err := svc.ArchiveFile(ctx, "a/batch.csv")
	require.NoError(t, err)
	destB, err := svc.ArchiveFile(ctx, "b/batch.csv")
	require.NoError(t, err)

	assert.NotEqual(t, destA, destB)
	assert.Equal(t, "a", string(fake.objects[destA]))
	assert.Equal(t, "b", string(fake.objects[destB]))
	assert.True(t, IsArchived(destA))
	assert.False(t, IsArchived("a/batch.csv"))
}

func TestDownloadFile_Missing(t *testing.T) {
	svc := newTestService(newFakeS3())
	_, err := svc.DownloadFile(context.Background(), "nope.csv")
	assert.Error(t, err)
}
