package s3

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/tests/helpers"
)

func TestNewS3Storage(t *testing.T) {
	config := &S3Config{
		Region: "us-east-1",
		Bucket: "test-bucket",
	}

	logger := logrus.New()
	storage, err := NewS3Storage(config, logger)

	require.NoError(t, err)
	require.NotNil(t, storage)
	assert.Equal(t, config, storage.config)
	assert.Equal(t, logger, storage.logger)
	assert.NotNil(t, storage.metrics)
}

func TestNewS3StorageInvalidConfig(t *testing.T) {
	_, err := NewS3Storage(nil, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3 config cannot be nil")

	_, err = NewS3Storage(&S3Config{Region: "us-east-1"}, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3 bucket is required")
	assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))
}

func TestS3StorageGenerateKey(t *testing.T) {
	storage, err := NewS3Storage(&S3Config{
		Region: "us-east-1",
		Bucket: "test-bucket",
		Prefix: "test-prefix",
	}, logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "test-prefix/results/job-1.csv", storage.generateKey("job-1", constants.FormatCSV))
	assert.Equal(t, "test-prefix/results/job-1.json", storage.generateKey("job-1", "JSON"))

	storage.config.UseCompression = true
	assert.Equal(t, "test-prefix/results/job-1.csv.gz", storage.generateKey("job-1", constants.FormatCSV))
}

func TestS3StorageGenerateKeyNoPrefix(t *testing.T) {
	storage, err := NewS3Storage(&S3Config{
		Region: "us-east-1",
		Bucket: "test-bucket",
	}, logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "results/job-1.csv", storage.generateKey("job-1", constants.FormatCSV))
	assert.Equal(t, "results/job-1", storage.generateKey("job-1", ""))
}

func TestS3StorageCompressionRoundTrip(t *testing.T) {
	storage, err := NewS3Storage(&S3Config{
		Bucket:         "test-bucket",
		UseCompression: true,
	}, helpers.GetTestLogger(t))
	require.NoError(t, err)

	original := []byte("zip,age\n10001,[23.00-60.00]\n")
	encoded, err := storage.encodeBody(original)
	require.NoError(t, err)
	assert.NotEqual(t, original, encoded)

	decoded, err := storage.decodeBody(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	storage.config.UseCompression = false
	passthrough, err := storage.encodeBody(original)
	require.NoError(t, err)
	assert.Equal(t, original, passthrough)
}

func TestS3StorageRequiresConnection(t *testing.T) {
	storage, err := NewS3Storage(&S3Config{Bucket: "test-bucket"}, helpers.GetTestLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = storage.PutResult(ctx, "job-1", constants.FormatCSV, []byte("a\n1\n"))
	assert.ErrorIs(t, err, errors.ErrNotConnected)

	_, err = storage.PutResult(ctx, "", constants.FormatCSV, nil)
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))

	_, err = storage.GetResult(ctx, "job-1", constants.FormatCSV)
	assert.ErrorIs(t, err, errors.ErrNotConnected)

	assert.ErrorIs(t, storage.DeleteResult(ctx, "job-1", constants.FormatCSV), errors.ErrNotConnected)

	health, err := storage.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "unhealthy", health.Status)

	assert.NoError(t, storage.Close())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(awserr.New("NoSuchKey", "missing", nil)))
	assert.True(t, isNotFound(awserr.New("NotFound", "missing", nil)))
	assert.False(t, isNotFound(awserr.New("AccessDenied", "denied", nil)))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: NoSuchKey")))
}

func TestS3StorageMetrics(t *testing.T) {
	storage, err := NewS3Storage(&S3Config{Bucket: "test-bucket"}, helpers.GetTestLogger(t))
	require.NoError(t, err)

	storage.incrementWriteOps(128)
	storage.incrementReadOps(64)
	storage.recordError(assert.AnError)

	metrics, err := storage.GetMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.WriteOperations)
	assert.Equal(t, int64(1), metrics.ReadOperations)
	assert.Equal(t, int64(1), metrics.ErrorCount)
	assert.Equal(t, int64(128), storage.metrics.bytesWritten)
	assert.Equal(t, int64(64), storage.metrics.bytesRead)
}

// Note: The following test requires S3 or an S3-compatible endpoint

func TestS3StorageIntegration(t *testing.T) {
	t.Skip("Integration test - requires S3 or MinIO")

	storage, err := NewS3Storage(&S3Config{
		Region:          "us-east-1",
		Bucket:          "anonimadata-test",
		Endpoint:        "http://localhost:9000",
		ForcePathStyle:  true,
		DisableSSL:      true,
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		UseCompression:  true,
	}, helpers.GetTestLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, storage.Connect(ctx))
	defer storage.Close()

	data := []byte("zip,disease\n10001,***SUPPRESSED***\n")
	location, err := storage.PutResult(ctx, "job-1", constants.FormatCSV, data)
	require.NoError(t, err)
	assert.Equal(t, "s3://anonimadata-test/results/job-1.csv.gz", location)

	retrieved, err := storage.GetResult(ctx, "job-1", constants.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, data, retrieved)

	require.NoError(t, storage.DeleteResult(ctx, "job-1", constants.FormatCSV))
	_, err = storage.GetResult(ctx, "job-1", constants.FormatCSV)
	assert.Equal(t, errors.CodeDataNotFound, errors.CodeOf(err))
}
