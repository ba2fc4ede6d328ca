package s3

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/internal/utils/encoding"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/pkg/interfaces"
)

// S3Config holds configuration for the anonymized result store
type S3Config struct {
	Region          string        `json:"region" mapstructure:"region"`
	Bucket          string        `json:"bucket" mapstructure:"bucket"`
	AccessKeyID     string        `json:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken    string        `json:"session_token,omitempty" mapstructure:"session_token"`
	Endpoint        string        `json:"endpoint,omitempty" mapstructure:"endpoint"`
	ForcePathStyle  bool          `json:"force_path_style" mapstructure:"force_path_style"`
	DisableSSL      bool          `json:"disable_ssl" mapstructure:"disable_ssl"`
	Prefix          string        `json:"prefix" mapstructure:"prefix"`
	Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries      int           `json:"max_retries" mapstructure:"max_retries"`
	PartSize        int64         `json:"part_size" mapstructure:"part_size"`
	UseCompression  bool          `json:"use_compression" mapstructure:"use_compression"`
	StorageClass    string        `json:"storage_class" mapstructure:"storage_class"`
}

// S3Storage stores full anonymized datasets as objects
type S3Storage struct {
	config     *S3Config
	s3Client   *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	logger     *logrus.Logger
	mu         sync.RWMutex
	metrics    *storageMetrics
	closed     bool
}

type storageMetrics struct {
	readOps      int64
	writeOps     int64
	deleteOps    int64
	errorCount   int64
	bytesRead    int64
	bytesWritten int64
	lastError    string
	startTime    time.Time
	mu           sync.RWMutex
}

var _ interfaces.ResultStore = (*S3Storage)(nil)

// NewS3Storage creates a new S3 storage instance
func NewS3Storage(config *S3Config, logger *logrus.Logger) (*S3Storage, error) {
	if config == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "S3 config cannot be nil")
	}

	if config.Bucket == "" {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "S3 bucket is required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &S3Storage{
		config: config,
		logger: logger,
		metrics: &storageMetrics{
			startTime: time.Now(),
		},
	}, nil
}

// Connect establishes connection to S3
func (s *S3Storage) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.s3Client != nil {
		return nil // Already connected
	}

	sess, err := session.NewSession(s.awsConfig())
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, "SESSION_FAILED", "Failed to create AWS session")
	}

	client := s3.New(sess)

	// Bucket must be reachable before jobs start writing to it
	if _, err := client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	}); err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed,
			fmt.Sprintf("Failed to access bucket '%s'", s.config.Bucket))
	}

	s.s3Client = client
	s.uploader = s3manager.NewUploaderWithClient(client)
	s.downloader = s3manager.NewDownloaderWithClient(client)
	if s.config.PartSize > 0 {
		s.uploader.PartSize = s.config.PartSize
	}
	s.closed = false

	s.logger.WithFields(logrus.Fields{
		"region": s.config.Region,
		"bucket": s.config.Bucket,
	}).Info("Connected to S3")

	return nil
}

func (s *S3Storage) awsConfig() *aws.Config {
	awsConfig := &aws.Config{
		Region:     aws.String(s.config.Region),
		MaxRetries: aws.Int(s.config.MaxRetries),
	}

	if s.config.AccessKeyID != "" && s.config.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			s.config.AccessKeyID,
			s.config.SecretAccessKey,
			s.config.SessionToken,
		)
	}

	// S3-compatible services (MinIO, localstack)
	if s.config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(s.config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(s.config.ForcePathStyle)
	}

	if s.config.DisableSSL {
		awsConfig.DisableSSL = aws.Bool(true)
	}

	return awsConfig
}

// Close closes the S3 connection
func (s *S3Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.s3Client = nil
	s.uploader = nil
	s.downloader = nil
	s.closed = true

	s.logger.Info("S3 connection closed")
	return nil
}

// Ping tests the S3 connection
func (s *S3Storage) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.s3Client == nil {
		return errors.WrapError(errors.ErrNotConnected, errors.ErrorTypeStorage, "NOT_CONNECTED", "S3 not connected")
	}

	if _, err := s.s3Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	}); err != nil {
		s.recordError(err)
		return errors.WrapError(err, errors.ErrorTypeStorage, "PING_FAILED", "S3 ping failed")
	}

	return nil
}

// Health returns the health status of the storage
func (s *S3Storage) Health(ctx context.Context) (*interfaces.HealthStatus, error) {
	start := time.Now()
	status := "healthy"
	var errs []string

	if err := s.Ping(ctx); err != nil {
		status = "unhealthy"
		errs = append(errs, fmt.Sprintf("Connection failed: %v", err))
	}

	return &interfaces.HealthStatus{
		Status:    status,
		LastCheck: time.Now(),
		Latency:   time.Since(start),
		Errors:    errs,
		Metadata: map[string]interface{}{
			"bucket": s.config.Bucket,
			"region": s.config.Region,
		},
	}, nil
}

// PutResult uploads an anonymized dataset and returns its s3:// location
func (s *S3Storage) PutResult(ctx context.Context, jobID, format string, data []byte) (string, error) {
	if jobID == "" {
		return "", errors.NewValidationError(errors.CodeInvalidInput, "job id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.uploader == nil {
		return "", errors.WrapError(errors.ErrNotConnected, errors.ErrorTypeStorage, "NOT_CONNECTED", "S3 not connected")
	}

	start := time.Now()

	body, err := s.encodeBody(data)
	if err != nil {
		s.recordError(err)
		return "", errors.WrapError(err, errors.ErrorTypeStorage, "COMPRESSION_FAILED", "Failed to compress result")
	}

	key := s.generateKey(jobID, format)
	input := &s3manager.UploadInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(constants.ContentTypeForFormat(format)),
		Metadata: map[string]*string{
			"job-id":      aws.String(jobID),
			"format":      aws.String(format),
			"uploaded-at": aws.String(time.Now().UTC().Format(time.RFC3339)),
		},
	}
	if s.config.UseCompression {
		input.ContentEncoding = aws.String("gzip")
	}
	if s.config.StorageClass != "" {
		input.StorageClass = aws.String(s.config.StorageClass)
	}

	if _, err := s.uploader.UploadWithContext(ctx, input); err != nil {
		s.recordError(err)
		return "", errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to upload result to S3").
			WithContext("job_id", jobID)
	}

	s.incrementWriteOps(int64(len(body)))
	location := fmt.Sprintf("s3://%s/%s", s.config.Bucket, key)

	s.logger.WithFields(logrus.Fields{
		"job_id":   jobID,
		"location": location,
		"bytes":    len(body),
		"duration": time.Since(start),
	}).Debug("Result uploaded")

	return location, nil
}

// GetResult downloads a stored result
func (s *S3Storage) GetResult(ctx context.Context, jobID, format string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.downloader == nil {
		return nil, errors.WrapError(errors.ErrNotConnected, errors.ErrorTypeStorage, "NOT_CONNECTED", "S3 not connected")
	}

	buf := aws.NewWriteAtBuffer([]byte{})
	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.generateKey(jobID, format)),
	})
	if err != nil {
		s.recordError(err)
		if isNotFound(err) {
			return nil, errors.NewStorageError(errors.CodeDataNotFound, fmt.Sprintf("result for job '%s' not found", jobID))
		}
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "Failed to download result from S3")
	}

	s.incrementReadOps(int64(len(buf.Bytes())))

	data, err := s.decodeBody(buf.Bytes())
	if err != nil {
		s.recordError(err)
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, "DECOMPRESSION_FAILED", "Failed to decompress result")
	}
	return data, nil
}

// DeleteResult removes a stored result
func (s *S3Storage) DeleteResult(ctx context.Context, jobID, format string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.s3Client == nil {
		return errors.WrapError(errors.ErrNotConnected, errors.ErrorTypeStorage, "NOT_CONNECTED", "S3 not connected")
	}

	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.generateKey(jobID, format)),
	})
	if err != nil {
		s.recordError(err)
		return errors.WrapError(err, errors.ErrorTypeStorage, "DELETE_FAILED", "Failed to delete result from S3")
	}

	s.metrics.mu.Lock()
	s.metrics.deleteOps++
	s.metrics.mu.Unlock()
	return nil
}

// GetMetrics returns storage metrics
func (s *S3Storage) GetMetrics(ctx context.Context) (*interfaces.StorageMetrics, error) {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()

	return &interfaces.StorageMetrics{
		ReadOperations:   s.metrics.readOps,
		WriteOperations:  s.metrics.writeOps,
		DeleteOperations: s.metrics.deleteOps,
		ErrorCount:       s.metrics.errorCount,
		LastError:        s.metrics.lastError,
		Uptime:           time.Since(s.metrics.startTime),
	}, nil
}

func (s *S3Storage) generateKey(jobID, format string) string {
	ext := "." + strings.ToLower(format)
	if format == "" {
		ext = ""
	}
	if s.config.UseCompression {
		ext += constants.ExtensionGzip
	}
	return path.Join(s.config.Prefix, "results", jobID+ext)
}

func (s *S3Storage) encodeBody(data []byte) ([]byte, error) {
	if !s.config.UseCompression {
		return data, nil
	}
	return encoding.NewGZIPCompressor(encoding.CompressionLevelDefault).Compress(data)
}

func (s *S3Storage) decodeBody(data []byte) ([]byte, error) {
	if !s.config.UseCompression {
		return data, nil
	}
	return encoding.NewGZIPCompressor(encoding.CompressionLevelDefault).Decompress(data)
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return strings.Contains(err.Error(), "NoSuchKey")
}

func (s *S3Storage) incrementReadOps(bytes int64) {
	s.metrics.mu.Lock()
	s.metrics.readOps++
	s.metrics.bytesRead += bytes
	s.metrics.mu.Unlock()
}

func (s *S3Storage) incrementWriteOps(bytes int64) {
	s.metrics.mu.Lock()
	s.metrics.writeOps++
	s.metrics.bytesWritten += bytes
	s.metrics.mu.Unlock()
}

func (s *S3Storage) recordError(err error) {
	s.metrics.mu.Lock()
	s.metrics.errorCount++
	s.metrics.lastError = err.Error()
	s.metrics.mu.Unlock()

	s.logger.WithError(err).Warn("S3 operation failed")
}
