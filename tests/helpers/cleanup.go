package helpers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

// TestCleanup provides utilities for cleaning up test resources
type TestCleanup struct {
	t         *testing.T
	resources []CleanupResource
	mu        sync.Mutex
}

// CleanupResource represents a resource that needs cleanup
type CleanupResource interface {
	Cleanup() error
	String() string
}

// FileCleanup represents file system cleanup
type FileCleanup struct {
	paths []string
}

// RedisCleanup represents Redis cleanup
type RedisCleanup struct {
	client redis.UniversalClient
	keys   []string
}

// NewTestCleanup creates a new test cleanup helper
func NewTestCleanup(t *testing.T) *TestCleanup {
	tc := &TestCleanup{
		t:         t,
		resources: make([]CleanupResource, 0),
	}

	t.Cleanup(func() {
		tc.CleanupAll()
	})

	return tc
}

// AddResource adds a resource to be cleaned up
func (tc *TestCleanup) AddResource(resource CleanupResource) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.resources = append(tc.resources, resource)
}

// CleanupAll cleans up all registered resources, newest first
func (tc *TestCleanup) CleanupAll() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	var errs []string
	for i := len(tc.resources) - 1; i >= 0; i-- {
		resource := tc.resources[i]
		if err := resource.Cleanup(); err != nil {
			errs = append(errs, fmt.Sprintf("failed to cleanup %s: %v", resource.String(), err))
		}
	}

	if len(errs) > 0 {
		tc.t.Errorf("cleanup errors: %s", strings.Join(errs, "; "))
	}

	tc.resources = tc.resources[:0]
}

// CreateTempDir creates a temporary directory for testing
func (tc *TestCleanup) CreateTempDir(pattern string) string {
	tempDir, err := os.MkdirTemp("", pattern)
	require.NoError(tc.t, err)

	tc.AddResource(&FileCleanup{paths: []string{tempDir}})
	return tempDir
}

// RegisterRedisCleanup deletes the given keys when the test ends
func (tc *TestCleanup) RegisterRedisCleanup(client redis.UniversalClient, keys ...string) {
	tc.AddResource(&RedisCleanup{client: client, keys: keys})
}

func (fc *FileCleanup) Cleanup() error {
	var errs []string
	for _, path := range fc.paths {
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("file cleanup errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (fc *FileCleanup) String() string {
	return fmt.Sprintf("FileCleanup(%s)", strings.Join(fc.paths, ", "))
}

func (rc *RedisCleanup) Cleanup() error {
	if len(rc.keys) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := rc.client.Del(ctx, rc.keys...).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

func (rc *RedisCleanup) String() string {
	return fmt.Sprintf("RedisCleanup(%s)", strings.Join(rc.keys, ", "))
}
