package redis

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/pkg/models"
	"github.com/IacopoSb/AnonimaData/tests/helpers"
)

func TestNewRedisStorage(t *testing.T) {
	config := &RedisConfig{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
	}

	logger := logrus.New()
	storage, err := NewRedisStorage(config, logger)

	require.NoError(t, err)
	require.NotNil(t, storage)
	assert.Equal(t, config, storage.config)
	assert.Equal(t, logger, storage.logger)
	assert.Equal(t, constants.DefaultJobStatusTTL, storage.config.StatusTTL)
}

func TestNewRedisStorageInvalidConfig(t *testing.T) {
	_, err := NewRedisStorage(nil, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")

	_, err = NewRedisStorage(&RedisConfig{}, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address or cluster addresses are required")
	assert.Equal(t, errors.CodeInvalidConfig, errors.CodeOf(err))

	_, err = NewRedisStorageWithClient(nil, nil, nil)
	require.Error(t, err)
}

func TestRedisStorageGenerateKeys(t *testing.T) {
	storage, err := NewRedisStorage(&RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "test",
	}, logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "test:queue:anonymization:requests", storage.generateQueueKey(constants.QueueAnonymizationRequests))
	assert.Equal(t, "test:anonymization:job:job-1", storage.generateStatusKey("job-1"))
}

func TestRedisStorageGenerateKeysNoPrefix(t *testing.T) {
	storage, err := NewRedisStorage(&RedisConfig{Addr: "localhost:6379"}, logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "queue:anonymization:results", storage.generateQueueKey(constants.QueueAnonymizationResults))
	assert.Equal(t, "anonymization:job:job-1", storage.generateStatusKey("job-1"))
}

func TestRedisStorageMetricsIncrements(t *testing.T) {
	storage, err := NewRedisStorage(&RedisConfig{Addr: "localhost:6379"}, helpers.GetTestLogger(t))
	require.NoError(t, err)

	assert.Equal(t, int64(0), storage.metrics.readOps)
	assert.Equal(t, int64(0), storage.metrics.writeOps)
	assert.Equal(t, int64(0), storage.metrics.deleteOps)
	assert.Equal(t, int64(0), storage.metrics.errorCount)

	storage.incrementReadOps()
	storage.incrementWriteOps()
	storage.incrementDeleteOps()
	storage.incrementEmptyPolls()
	storage.recordError(assert.AnError)

	metrics, err := storage.GetMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.ReadOperations)
	assert.Equal(t, int64(1), metrics.WriteOperations)
	assert.Equal(t, int64(1), metrics.DeleteOperations)
	assert.Equal(t, int64(1), metrics.ErrorCount)
	assert.Equal(t, assert.AnError.Error(), metrics.LastError)
	assert.Equal(t, int64(1), storage.metrics.emptyPolls)
}

func TestRedisStorageRequiresConnection(t *testing.T) {
	storage, err := NewRedisStorage(&RedisConfig{Addr: "localhost:6379"}, helpers.GetTestLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, storage.Ping(ctx), errors.ErrNotConnected)
	assert.ErrorIs(t, storage.Enqueue(ctx, "q", []byte("x")), errors.ErrNotConnected)

	_, err = storage.Dequeue(ctx, "q", time.Second)
	assert.ErrorIs(t, err, errors.ErrNotConnected)

	_, err = storage.GetJobStatus(ctx, "job-1")
	assert.ErrorIs(t, err, errors.ErrNotConnected)

	health, err := storage.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "unhealthy", health.Status)
	assert.NotEmpty(t, health.Errors)

	// Close on a never-connected storage is a no-op
	assert.NoError(t, storage.Close())
	assert.NoError(t, storage.Close())
}

func TestSetJobStatusRequiresJobID(t *testing.T) {
	storage, err := NewRedisStorage(&RedisConfig{Addr: "localhost:6379"}, helpers.GetTestLogger(t))
	require.NoError(t, err)

	err = storage.SetJobStatus(context.Background(), &models.JobStatus{Status: constants.JobStatusRunning})
	assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))
	assert.Error(t, storage.SetJobStatus(context.Background(), nil))
}

func TestStatusFieldsRoundTrip(t *testing.T) {
	updated := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	status := &models.JobStatus{
		JobID:     "job-1",
		Status:    constants.JobStatusFailed,
		Method:    constants.MethodLDiversity,
		Message:   "l cannot be greater than k",
		UpdatedAt: updated,
	}

	fields := statusFields(status)
	raw := make(map[string]string, len(fields))
	for k, v := range fields {
		raw[k] = v.(string)
	}

	assert.Equal(t, status, parseStatusFields("job-1", raw))
}

func TestParseInfoInt(t *testing.T) {
	info := "# Clients\r\nconnected_clients:7\r\nblocked_clients:1\r\n"
	assert.Equal(t, int64(7), parseInfoInt(info, "connected_clients"))
	assert.Equal(t, int64(1), parseInfoInt(info, "blocked_clients"))
	assert.Equal(t, int64(0), parseInfoInt(info, "maxclients"))
}

// Note: The following test requires a running Redis instance

func TestRedisStorageIntegration(t *testing.T) {
	t.Skip("Integration test - requires running Redis instance")

	storage, err := NewRedisStorage(&RedisConfig{
		Addr:      "localhost:6379",
		DB:        15, // Use test database
		KeyPrefix: "anonimadata-test",
		StatusTTL: time.Minute,
	}, helpers.GetTestLogger(t))
	require.NoError(t, err)

	ctx, cancel := helpers.GetTestContext(30 * time.Second)
	defer cancel()
	require.NoError(t, storage.Connect(ctx))
	defer storage.Close()

	require.NoError(t, storage.Ping(ctx))

	cleanup := helpers.NewTestCleanup(t)
	cleanup.RegisterRedisCleanup(storage.client,
		storage.generateQueueKey("jobs"),
		storage.generateStatusKey("job-1"))

	require.NoError(t, storage.Enqueue(ctx, "jobs", []byte("first")))
	require.NoError(t, storage.Enqueue(ctx, "jobs", []byte("second")))

	n, err := storage.QueueLength(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	payload, err := storage.Dequeue(ctx, "jobs", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", string(payload))

	payload, err = storage.Dequeue(ctx, "jobs", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second", string(payload))

	payload, err = storage.Dequeue(ctx, "jobs", time.Second)
	require.NoError(t, err)
	assert.Nil(t, payload)

	require.NoError(t, storage.SetJobStatus(ctx, &models.JobStatus{JobID: "job-1", Status: constants.JobStatusRunning}))
	status, err := storage.GetJobStatus(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusRunning, status.Status)

	require.NoError(t, storage.DeleteJobStatus(ctx, "job-1"))
	_, err = storage.GetJobStatus(ctx, "job-1")
	assert.Equal(t, errors.CodeDataNotFound, errors.CodeOf(err))
}
