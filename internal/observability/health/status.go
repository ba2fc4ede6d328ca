package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/pkg/interfaces"
)

// HealthMonitor runs the registered checks periodically and serves the last
// aggregated status
type HealthMonitor struct {
	logger *logrus.Logger
	config *HealthConfig
	mu     sync.RWMutex
	checks map[string]HealthCheck
	status *SystemStatus
}

// HealthConfig configures health monitoring
type HealthConfig struct {
	Enabled            bool          `json:"enabled" mapstructure:"enabled"`
	CheckInterval      time.Duration `json:"check_interval" mapstructure:"check_interval"`
	Timeout            time.Duration `json:"timeout" mapstructure:"timeout"`
	EnableDetailedLogs bool          `json:"enable_detailed_logs" mapstructure:"enable_detailed_logs"`
}

// HealthCheck defines a health check function
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) HealthResult
	Critical() bool
	Timeout() time.Duration
}

// HealthResult represents the result of a health check
type HealthResult struct {
	Status    HealthStatus      `json:"status"`
	Message   string            `json:"message"`
	Duration  time.Duration     `json:"duration"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
	Error     error             `json:"-"`
}

// HealthStatus represents the health status
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusUnknown   HealthStatus = "unknown"
)

// SystemStatus represents overall worker health
type SystemStatus struct {
	OverallStatus   HealthStatus            `json:"overall_status"`
	CheckResults    map[string]HealthResult `json:"check_results"`
	LastCheck       time.Time               `json:"last_check"`
	CriticalIssues  []string                `json:"critical_issues"`
	TotalChecks     int                     `json:"total_checks"`
	HealthyChecks   int                     `json:"healthy_checks"`
	DegradedChecks  int                     `json:"degraded_checks"`
	UnhealthyChecks int                     `json:"unhealthy_checks"`
	Uptime          time.Duration           `json:"uptime"`
	StartTime       time.Time               `json:"start_time"`
}

// BasicHealthCheck implements a health check backed by a function
type BasicHealthCheck struct {
	name        string
	checkFunc   func(ctx context.Context) error
	critical    bool
	timeout     time.Duration
	description string
}

// StorageHealthCheck reports the health of a storage backend
type StorageHealthCheck struct {
	name     string
	storage  interfaces.Storage
	critical bool
	timeout  time.Duration
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(config *HealthConfig, logger *logrus.Logger) *HealthMonitor {
	if config == nil {
		config = getDefaultHealthConfig()
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &HealthMonitor{
		logger: logger,
		config: config,
		checks: make(map[string]HealthCheck),
		status: &SystemStatus{
			OverallStatus:  StatusUnknown,
			StartTime:      time.Now(),
			CheckResults:   make(map[string]HealthResult),
			CriticalIssues: make([]string, 0),
		},
	}
}

// Start runs the checks once and then on every interval until ctx is done
func (hm *HealthMonitor) Start(ctx context.Context) {
	if !hm.config.Enabled {
		hm.logger.Info("Health monitoring disabled")
		return
	}

	hm.logger.WithField("interval", hm.config.CheckInterval).Info("Starting health monitoring")
	go hm.monitoringLoop(ctx)
}

// RegisterCheck registers a new health check
func (hm *HealthMonitor) RegisterCheck(check HealthCheck) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.checks[check.Name()] = check
	hm.logger.WithField("check", check.Name()).Info("Registered health check")
}

// GetStatus returns a copy of the last aggregated status
func (hm *HealthMonitor) GetStatus() *SystemStatus {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := *hm.status
	status.Uptime = time.Since(hm.status.StartTime)
	status.CheckResults = make(map[string]HealthResult, len(hm.status.CheckResults))
	for k, v := range hm.status.CheckResults {
		status.CheckResults[k] = v
	}
	status.CriticalIssues = append([]string(nil), hm.status.CriticalIssues...)

	return &status
}

// RunChecks executes every registered check concurrently and updates the
// aggregated status
func (hm *HealthMonitor) RunChecks(ctx context.Context) *SystemStatus {
	hm.mu.RLock()
	checks := make([]HealthCheck, 0, len(hm.checks))
	for _, check := range hm.checks {
		checks = append(checks, check)
	}
	hm.mu.RUnlock()

	results := make([]HealthResult, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, c HealthCheck) {
			defer wg.Done()
			results[i] = hm.executeCheck(ctx, c)
		}(i, check)
	}
	wg.Wait()

	byName := make(map[string]HealthResult, len(checks))
	criticalIssues := make([]string, 0)
	for i, check := range checks {
		byName[check.Name()] = results[i]
		if results[i].Status == StatusUnhealthy && check.Critical() {
			criticalIssues = append(criticalIssues, check.Name())
		}
	}
	sort.Strings(criticalIssues)

	hm.updateStatus(byName, criticalIssues)
	return hm.GetStatus()
}

// Handler serves the last status as JSON, answering 503 when unhealthy
func (hm *HealthMonitor) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := hm.GetStatus()

		code := http.StatusOK
		if status.OverallStatus == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			hm.logger.WithError(err).Warn("Failed to write health status")
		}
	})
}

func (hm *HealthMonitor) monitoringLoop(ctx context.Context) {
	ticker := time.NewTicker(hm.config.CheckInterval)
	defer ticker.Stop()

	hm.RunChecks(ctx)

	for {
		select {
		case <-ctx.Done():
			hm.logger.Info("Stopping health monitoring")
			return
		case <-ticker.C:
			status := hm.RunChecks(ctx)
			if status.OverallStatus != StatusHealthy {
				hm.logger.WithFields(logrus.Fields{
					"status":          status.OverallStatus,
					"critical_issues": status.CriticalIssues,
				}).Warn("Worker health degraded")
			}
		}
	}
}

func (hm *HealthMonitor) executeCheck(ctx context.Context, check HealthCheck) HealthResult {
	start := time.Now()

	timeout := check.Timeout()
	if timeout == 0 {
		timeout = hm.config.Timeout
	}

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := check.Check(checkCtx)
	result.Duration = time.Since(start)
	result.Timestamp = time.Now()

	if hm.config.EnableDetailedLogs {
		hm.logger.WithFields(logrus.Fields{
			"check":    check.Name(),
			"status":   result.Status,
			"duration": result.Duration,
			"message":  result.Message,
		}).Debug("Health check completed")
	}

	return result
}

func (hm *HealthMonitor) updateStatus(results map[string]HealthResult, criticalIssues []string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.status.CheckResults = results
	hm.status.LastCheck = time.Now()
	hm.status.CriticalIssues = criticalIssues
	hm.status.TotalChecks = len(results)
	hm.status.HealthyChecks = 0
	hm.status.DegradedChecks = 0
	hm.status.UnhealthyChecks = 0

	for _, result := range results {
		switch result.Status {
		case StatusHealthy:
			hm.status.HealthyChecks++
		case StatusDegraded:
			hm.status.DegradedChecks++
		case StatusUnhealthy:
			hm.status.UnhealthyChecks++
		}
	}

	hm.status.OverallStatus = hm.calculateOverallStatus(criticalIssues)
}

func (hm *HealthMonitor) calculateOverallStatus(criticalIssues []string) HealthStatus {
	if len(criticalIssues) > 0 {
		return StatusUnhealthy
	}

	if hm.status.UnhealthyChecks > 0 || hm.status.DegradedChecks > 0 {
		return StatusDegraded
	}

	return StatusHealthy
}

// NewBasicHealthCheck creates a new basic health check
func NewBasicHealthCheck(name string, checkFunc func(ctx context.Context) error, critical bool, timeout time.Duration, description string) *BasicHealthCheck {
	return &BasicHealthCheck{
		name:        name,
		checkFunc:   checkFunc,
		critical:    critical,
		timeout:     timeout,
		description: description,
	}
}

// Name returns the check name
func (bhc *BasicHealthCheck) Name() string {
	return bhc.name
}

// Check executes the health check
func (bhc *BasicHealthCheck) Check(ctx context.Context) HealthResult {
	err := bhc.checkFunc(ctx)

	result := HealthResult{
		Status:    StatusHealthy,
		Message:   "OK",
		Details:   make(map[string]string),
		Timestamp: time.Now(),
	}

	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		result.Error = err
	}

	result.Details["description"] = bhc.description
	result.Details["critical"] = fmt.Sprintf("%t", bhc.critical)

	return result
}

// Critical returns whether this check is critical
func (bhc *BasicHealthCheck) Critical() bool {
	return bhc.critical
}

// Timeout returns the check timeout
func (bhc *BasicHealthCheck) Timeout() time.Duration {
	return bhc.timeout
}

// NewStorageHealthCheck wraps the Health call of a storage backend
func NewStorageHealthCheck(name string, storage interfaces.Storage, critical bool, timeout time.Duration) *StorageHealthCheck {
	return &StorageHealthCheck{
		name:     name,
		storage:  storage,
		critical: critical,
		timeout:  timeout,
	}
}

func (shc *StorageHealthCheck) Name() string {
	return shc.name
}

func (shc *StorageHealthCheck) Check(ctx context.Context) HealthResult {
	result := HealthResult{
		Status:    StatusUnknown,
		Details:   make(map[string]string),
		Timestamp: time.Now(),
	}

	status, err := shc.storage.Health(ctx)
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
		result.Error = err
		return result
	}

	switch status.Status {
	case string(StatusHealthy):
		result.Status = StatusHealthy
		result.Message = "OK"
	case string(StatusDegraded):
		result.Status = StatusDegraded
	default:
		result.Status = StatusUnhealthy
	}
	if len(status.Errors) > 0 {
		result.Message = status.Errors[0]
	}

	result.Details["latency"] = status.Latency.String()
	for k, v := range status.Metadata {
		result.Details[k] = fmt.Sprintf("%v", v)
	}

	return result
}

func (shc *StorageHealthCheck) Critical() bool {
	return shc.critical
}

func (shc *StorageHealthCheck) Timeout() time.Duration {
	return shc.timeout
}

func getDefaultHealthConfig() *HealthConfig {
	return &HealthConfig{
		Enabled:            true,
		CheckInterval:      30 * time.Second,
		Timeout:            10 * time.Second,
		EnableDetailedLogs: false,
	}
}
