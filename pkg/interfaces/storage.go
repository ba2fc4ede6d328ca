package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/IacopoSb/AnonimaData/pkg/models"
)

// Storage defines the lifecycle shared by every storage backend
type Storage interface {
	// Connect establishes connection to the storage backend
	Connect(ctx context.Context) error

	// Close closes the connection and cleans up resources
	Close() error

	// Ping tests the connection
	Ping(ctx context.Context) error

	// Health returns health status of the storage
	Health(ctx context.Context) (*HealthStatus, error)
}

// DatasetLoader reads datasets and their descriptions from a source
type DatasetLoader interface {
	// LoadDataset reads a tabular dataset
	LoadDataset(ctx context.Context, source string) (*models.Dataset, error)

	// LoadMetadata reads the column metadata table
	LoadMetadata(ctx context.Context, source string) (models.Metadata, error)

	// LoadRoles reads explicit column role assignments
	LoadRoles(ctx context.Context, source string) ([]models.RoleAssignment, error)
}

// DatasetWriter serializes a dataset
type DatasetWriter interface {
	Format() string
	Write(ctx context.Context, w io.Writer, ds *models.Dataset) error
}

// ResultStore persists full anonymized outputs
type ResultStore interface {
	Storage

	// PutResult stores data under the job's key and returns its location
	PutResult(ctx context.Context, jobID, format string, data []byte) (string, error)

	// GetResult reads a stored result back
	GetResult(ctx context.Context, jobID, format string) ([]byte, error)
}

// JobQueue is a FIFO of serialized jobs and notifications
type JobQueue interface {
	Storage

	// Enqueue appends a payload to the named queue
	Enqueue(ctx context.Context, queue string, payload []byte) error

	// Dequeue blocks up to timeout for a payload. It returns nil, nil on timeout.
	Dequeue(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
}

// JobStatusStore tracks the state of each job
type JobStatusStore interface {
	SetJobStatus(ctx context.Context, status *models.JobStatus) error
	GetJobStatus(ctx context.Context, jobID string) (*models.JobStatus, error)
}

// HealthStatus represents storage health status
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy"
	LastCheck time.Time              `json:"last_check"`
	Latency   time.Duration          `json:"latency"`
	Errors    []string               `json:"errors,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// StorageMetrics contains storage operation counters
type StorageMetrics struct {
	ReadOperations   int64         `json:"read_operations"`
	WriteOperations  int64         `json:"write_operations"`
	DeleteOperations int64         `json:"delete_operations"`
	AverageReadTime  time.Duration `json:"average_read_time"`
	AverageWriteTime time.Duration `json:"average_write_time"`
	ErrorCount       int64         `json:"error_count"`
	LastError        string        `json:"last_error,omitempty"`
	Uptime           time.Duration `json:"uptime"`
}
