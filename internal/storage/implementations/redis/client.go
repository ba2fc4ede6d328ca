package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/pkg/interfaces"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

// RedisConfig holds configuration for the Redis job queue
type RedisConfig struct {
	Addr          string        `json:"addr" mapstructure:"addr"`
	Password      string        `json:"password" mapstructure:"password"`
	DB            int           `json:"db" mapstructure:"db"`
	DialTimeout   time.Duration `json:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout   time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	PoolSize      int           `json:"pool_size" mapstructure:"pool_size"`
	MinIdleConns  int           `json:"min_idle_conns" mapstructure:"min_idle_conns"`
	MaxRetries    int           `json:"max_retries" mapstructure:"max_retries"`
	IdleTimeout   time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
	StatusTTL     time.Duration `json:"status_ttl" mapstructure:"status_ttl"`
	KeyPrefix     string        `json:"key_prefix" mapstructure:"key_prefix"`
	UseClustering bool          `json:"use_clustering" mapstructure:"use_clustering"`
	ClusterAddrs  []string      `json:"cluster_addrs" mapstructure:"cluster_addrs"`
}

// RedisStorage implements JobQueue and JobStatusStore on Redis lists and hashes
type RedisStorage struct {
	config  *RedisConfig
	client  redis.UniversalClient
	logger  *logrus.Logger
	mu      sync.RWMutex
	metrics *storageMetrics
	closed  bool
}

type storageMetrics struct {
	readOps    int64
	writeOps   int64
	deleteOps  int64
	errorCount int64
	emptyPolls int64
	lastError  string
	startTime  time.Time
	mu         sync.RWMutex
}

var (
	_ interfaces.JobQueue       = (*RedisStorage)(nil)
	_ interfaces.JobStatusStore = (*RedisStorage)(nil)
)

// NewRedisStorage creates a new Redis storage instance
func NewRedisStorage(config *RedisConfig, logger *logrus.Logger) (*RedisStorage, error) {
	if config == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "Redis config cannot be nil")
	}

	if config.Addr == "" && len(config.ClusterAddrs) == 0 {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "Redis address or cluster addresses are required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	if config.StatusTTL <= 0 {
		config.StatusTTL = constants.DefaultJobStatusTTL
	}

	return &RedisStorage{
		config: config,
		logger: logger,
		metrics: &storageMetrics{
			startTime: time.Now(),
		},
	}, nil
}

// NewRedisStorageWithClient wraps an existing client, mainly for tests and
// for processes that already own a connection.
func NewRedisStorageWithClient(client redis.UniversalClient, config *RedisConfig, logger *logrus.Logger) (*RedisStorage, error) {
	if client == nil {
		return nil, errors.NewStorageError(errors.CodeInvalidConfig, "Redis client cannot be nil")
	}
	if config == nil {
		config = &RedisConfig{Addr: "external"}
	}
	storage, err := NewRedisStorage(config, logger)
	if err != nil {
		return nil, err
	}
	storage.client = client
	return storage, nil
}

// Connect establishes connection to Redis
func (r *RedisStorage) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return nil // Already connected
	}

	var client redis.UniversalClient

	if r.config.UseClustering && len(r.config.ClusterAddrs) > 0 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        r.config.ClusterAddrs,
			Password:     r.config.Password,
			DialTimeout:  r.config.DialTimeout,
			ReadTimeout:  r.config.ReadTimeout,
			WriteTimeout: r.config.WriteTimeout,
			PoolSize:     r.config.PoolSize,
			MinIdleConns: r.config.MinIdleConns,
			MaxRetries:   r.config.MaxRetries,
			IdleTimeout:  r.config.IdleTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         r.config.Addr,
			Password:     r.config.Password,
			DB:           r.config.DB,
			DialTimeout:  r.config.DialTimeout,
			ReadTimeout:  r.config.ReadTimeout,
			WriteTimeout: r.config.WriteTimeout,
			PoolSize:     r.config.PoolSize,
			MinIdleConns: r.config.MinIdleConns,
			MaxRetries:   r.config.MaxRetries,
			IdleTimeout:  r.config.IdleTimeout,
		})
	}

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "Failed to connect to Redis")
	}

	r.client = client
	r.closed = false

	r.logger.WithFields(logrus.Fields{
		"addr":       r.config.Addr,
		"db":         r.config.DB,
		"clustering": r.config.UseClustering,
	}).Info("Connected to Redis")

	return nil
}

// Close closes the Redis connection
func (r *RedisStorage) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.client != nil {
		err := r.client.Close()
		r.client = nil
		if err != nil {
			return errors.WrapError(err, errors.ErrorTypeStorage, "CLOSE_FAILED", "Failed to close Redis connection")
		}
	}

	r.logger.Info("Redis connection closed")
	return nil
}

// Ping tests the Redis connection
func (r *RedisStorage) Ping(ctx context.Context) error {
	client, err := r.getClient()
	if err != nil {
		return err
	}

	if _, err := client.Ping(ctx).Result(); err != nil {
		r.recordError(err)
		return errors.WrapError(err, errors.ErrorTypeStorage, "PING_FAILED", "Redis ping failed")
	}

	return nil
}

// Health returns health status of the queue backend
func (r *RedisStorage) Health(ctx context.Context) (*interfaces.HealthStatus, error) {
	start := time.Now()
	status := "healthy"
	var errs []string

	if err := r.Ping(ctx); err != nil {
		status = "unhealthy"
		errs = append(errs, fmt.Sprintf("Connection failed: %v", err))
	}

	metadata := map[string]interface{}{}
	if status == "healthy" {
		client, _ := r.getClient()
		if client != nil {
			if depth, err := client.LLen(ctx, r.generateQueueKey(constants.QueueAnonymizationRequests)).Result(); err == nil {
				metadata["pending_jobs"] = depth
			}
			if info, err := client.Info(ctx, "clients").Result(); err == nil {
				metadata["connected_clients"] = parseInfoInt(info, "connected_clients")
			}
		}
	}

	return &interfaces.HealthStatus{
		Status:    status,
		LastCheck: time.Now(),
		Latency:   time.Since(start),
		Errors:    errs,
		Metadata:  metadata,
	}, nil
}

// Enqueue pushes a payload onto the head of a queue
func (r *RedisStorage) Enqueue(ctx context.Context, queue string, payload []byte) error {
	client, err := r.getClient()
	if err != nil {
		return err
	}

	key := r.generateQueueKey(queue)
	if err := client.LPush(ctx, key, payload).Err(); err != nil {
		r.recordError(err)
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to enqueue payload").
			WithContext("queue", queue)
	}

	r.incrementWriteOps()
	r.logger.WithFields(logrus.Fields{
		"queue": queue,
		"bytes": len(payload),
	}).Debug("Enqueued payload")

	return nil
}

// Dequeue pops the oldest payload from a queue, waiting up to timeout.
func (r *RedisStorage) Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	client, err := r.getClient()
	if err != nil {
		return nil, err
	}

	key := r.generateQueueKey(queue)
	result, err := client.BRPop(ctx, timeout, key).Result()
	if err == redis.Nil {
		r.incrementEmptyPolls()
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.recordError(err)
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "Failed to dequeue payload").
			WithContext("queue", queue)
	}

	r.incrementReadOps()

	// BRPOP answers with [key, value]
	if len(result) != 2 {
		return nil, errors.NewStorageError(errors.CodeReadFailed, fmt.Sprintf("unexpected BRPOP reply of length %d", len(result)))
	}
	return []byte(result[1]), nil
}

// QueueLength returns the number of payloads waiting in a queue
func (r *RedisStorage) QueueLength(ctx context.Context, queue string) (int64, error) {
	client, err := r.getClient()
	if err != nil {
		return 0, err
	}

	n, err := client.LLen(ctx, r.generateQueueKey(queue)).Result()
	if err != nil {
		r.recordError(err)
		return 0, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "Failed to read queue length")
	}
	return n, nil
}

// SetJobStatus stores the job state as a hash that expires after StatusTTL
func (r *RedisStorage) SetJobStatus(ctx context.Context, status *models.JobStatus) error {
	if status == nil || status.JobID == "" {
		return errors.NewValidationError(errors.CodeInvalidInput, "job status requires a job id")
	}

	client, err := r.getClient()
	if err != nil {
		return err
	}

	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}

	key := r.generateStatusKey(status.JobID)
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, statusFields(status))
		pipe.Expire(ctx, key, r.config.StatusTTL)
		return nil
	})
	if err != nil {
		r.recordError(err)
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, "Failed to store job status").
			WithContext("job_id", status.JobID)
	}

	r.incrementWriteOps()
	return nil
}

// GetJobStatus reads the job state. Unknown or expired jobs yield DATA_NOT_FOUND.
func (r *RedisStorage) GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	client, err := r.getClient()
	if err != nil {
		return nil, err
	}

	fields, err := client.HGetAll(ctx, r.generateStatusKey(jobID)).Result()
	if err != nil {
		r.recordError(err)
		return nil, errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeReadFailed, "Failed to read job status")
	}
	r.incrementReadOps()

	if len(fields) == 0 {
		return nil, errors.NewStorageError(errors.CodeDataNotFound, fmt.Sprintf("job %s not found", jobID))
	}

	return parseStatusFields(jobID, fields), nil
}

// DeleteJobStatus removes the stored state of a job
func (r *RedisStorage) DeleteJobStatus(ctx context.Context, jobID string) error {
	client, err := r.getClient()
	if err != nil {
		return err
	}

	if err := client.Del(ctx, r.generateStatusKey(jobID)).Err(); err != nil {
		r.recordError(err)
		return errors.WrapError(err, errors.ErrorTypeStorage, "DELETE_FAILED", "Failed to delete job status")
	}
	r.incrementDeleteOps()
	return nil
}

// GetMetrics returns storage metrics
func (r *RedisStorage) GetMetrics(ctx context.Context) (*interfaces.StorageMetrics, error) {
	r.metrics.mu.RLock()
	defer r.metrics.mu.RUnlock()

	return &interfaces.StorageMetrics{
		ReadOperations:   r.metrics.readOps,
		WriteOperations:  r.metrics.writeOps,
		DeleteOperations: r.metrics.deleteOps,
		ErrorCount:       r.metrics.errorCount,
		LastError:        r.metrics.lastError,
		Uptime:           time.Since(r.metrics.startTime),
	}, nil
}

func (r *RedisStorage) getClient() (redis.UniversalClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed || r.client == nil {
		return nil, errors.WrapError(errors.ErrNotConnected, errors.ErrorTypeStorage, "NOT_CONNECTED", "Redis not connected")
	}
	return r.client, nil
}

func (r *RedisStorage) generateQueueKey(queue string) string {
	if r.config.KeyPrefix != "" {
		return fmt.Sprintf("%s:queue:%s", r.config.KeyPrefix, queue)
	}
	return fmt.Sprintf("queue:%s", queue)
}

func (r *RedisStorage) generateStatusKey(jobID string) string {
	if r.config.KeyPrefix != "" {
		return fmt.Sprintf("%s:%s:%s", r.config.KeyPrefix, constants.JobStatusKeyPrefix, jobID)
	}
	return fmt.Sprintf("%s:%s", constants.JobStatusKeyPrefix, jobID)
}

func statusFields(status *models.JobStatus) map[string]interface{} {
	return map[string]interface{}{
		"status":     status.Status,
		"method":     status.Method,
		"message":    status.Message,
		"updated_at": status.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseStatusFields(jobID string, fields map[string]string) *models.JobStatus {
	status := &models.JobStatus{
		JobID:   jobID,
		Status:  fields["status"],
		Method:  fields["method"],
		Message: fields["message"],
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		status.UpdatedAt = ts
	}
	return status
}

func parseInfoInt(info, field string) int64 {
	for _, line := range strings.Split(info, "\n") {
		if strings.HasPrefix(line, field+":") {
			if val, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, field+":")), 10, 64); err == nil {
				return val
			}
		}
	}
	return 0
}

func (r *RedisStorage) incrementReadOps() {
	r.metrics.mu.Lock()
	r.metrics.readOps++
	r.metrics.mu.Unlock()
}

func (r *RedisStorage) incrementWriteOps() {
	r.metrics.mu.Lock()
	r.metrics.writeOps++
	r.metrics.mu.Unlock()
}

func (r *RedisStorage) incrementDeleteOps() {
	r.metrics.mu.Lock()
	r.metrics.deleteOps++
	r.metrics.mu.Unlock()
}

func (r *RedisStorage) incrementEmptyPolls() {
	r.metrics.mu.Lock()
	r.metrics.emptyPolls++
	r.metrics.mu.Unlock()
}

func (r *RedisStorage) recordError(err error) {
	r.metrics.mu.Lock()
	r.metrics.errorCount++
	r.metrics.lastError = err.Error()
	r.metrics.mu.Unlock()

	r.logger.WithError(err).Warn("Redis operation failed")
}
