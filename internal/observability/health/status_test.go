package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IacopoSb/AnonimaData/pkg/interfaces"
	"github.com/IacopoSb/AnonimaData/tests/helpers"
)

type fakeStorage struct {
	status *interfaces.HealthStatus
	err    error
}

func (f *fakeStorage) Connect(ctx context.Context) error { return nil }
func (f *fakeStorage) Close() error                      { return nil }
func (f *fakeStorage) Ping(ctx context.Context) error    { return f.err }
func (f *fakeStorage) Health(ctx context.Context) (*interfaces.HealthStatus, error) {
	return f.status, f.err
}

func TestHealthMonitorAllHealthy(t *testing.T) {
	hm := NewHealthMonitor(nil, helpers.GetTestLogger(t))
	assert.Equal(t, StatusUnknown, hm.GetStatus().OverallStatus)

	hm.RegisterCheck(NewBasicHealthCheck("ok", func(ctx context.Context) error { return nil }, true, time.Second, "always ok"))
	hm.RegisterCheck(NewStorageHealthCheck("redis", &fakeStorage{
		status: &interfaces.HealthStatus{Status: "healthy", Latency: time.Millisecond, Metadata: map[string]interface{}{"pending_jobs": 3}},
	}, true, time.Second))

	status := hm.RunChecks(context.Background())
	assert.Equal(t, StatusHealthy, status.OverallStatus)
	assert.Equal(t, 2, status.TotalChecks)
	assert.Equal(t, 2, status.HealthyChecks)
	assert.Empty(t, status.CriticalIssues)
	assert.Equal(t, "3", status.CheckResults["redis"].Details["pending_jobs"])
}

func TestHealthMonitorCriticalFailure(t *testing.T) {
	hm := NewHealthMonitor(nil, helpers.GetTestLogger(t))
	hm.RegisterCheck(NewStorageHealthCheck("redis", &fakeStorage{
		status: &interfaces.HealthStatus{Status: "unhealthy", Errors: []string{"not connected"}},
	}, true, time.Second))
	hm.RegisterCheck(NewBasicHealthCheck("s3", func(ctx context.Context) error { return fmt.Errorf("bucket missing") }, false, 0, "results bucket"))

	status := hm.RunChecks(context.Background())
	assert.Equal(t, StatusUnhealthy, status.OverallStatus)
	assert.Equal(t, []string{"redis"}, status.CriticalIssues)
	assert.Equal(t, "not connected", status.CheckResults["redis"].Message)
	assert.Equal(t, "bucket missing", status.CheckResults["s3"].Message)
}

func TestHealthMonitorNonCriticalFailureDegrades(t *testing.T) {
	hm := NewHealthMonitor(nil, helpers.GetTestLogger(t))
	hm.RegisterCheck(NewStorageHealthCheck("s3", &fakeStorage{err: fmt.Errorf("timeout")}, false, time.Second))

	status := hm.RunChecks(context.Background())
	assert.Equal(t, StatusDegraded, status.OverallStatus)
	assert.Equal(t, 1, status.UnhealthyChecks)
}

func TestHealthHandler(t *testing.T) {
	hm := NewHealthMonitor(nil, helpers.GetTestLogger(t))
	hm.RegisterCheck(NewBasicHealthCheck("down", func(ctx context.Context) error { return fmt.Errorf("down") }, true, time.Second, ""))
	hm.RunChecks(context.Background())

	rec := httptest.NewRecorder()
	hm.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body SystemStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, StatusUnhealthy, body.OverallStatus)
}
