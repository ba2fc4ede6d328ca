package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/internal/export"
	"github.com/IacopoSb/AnonimaData/internal/observability/metrics"
	"github.com/IacopoSb/AnonimaData/internal/privacy"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/errors"
	"github.com/IacopoSb/AnonimaData/pkg/interfaces"
	"github.com/IacopoSb/AnonimaData/pkg/models"
)

// Stages reported in error notifications
const (
	stageDecode = "decode"
	stageExport = "export"
	stageUpload = "upload"
)

// JobProcessor runs anonymization jobs on a fixed pool of goroutines
type JobProcessor struct {
	config     *WorkerConfig
	logger     *logrus.Logger
	anonymizer *privacy.Anonymizer
	exporter   *export.ExportEngine
	queue      interfaces.JobQueue
	statuses   interfaces.JobStatusStore
	results    interfaces.ResultStore
	metrics    *metrics.PrometheusMetrics

	activeJobs    int32
	completedJobs int64
	failedJobs    int64
	wg            sync.WaitGroup
}

// NewJobProcessor wires the processor. results may be nil, in which case the
// full anonymized dataset is published inline with the result message.
func NewJobProcessor(
	config *WorkerConfig,
	queue interfaces.JobQueue,
	statuses interfaces.JobStatusStore,
	results interfaces.ResultStore,
	m *metrics.PrometheusMetrics,
	logger *logrus.Logger,
) *JobProcessor {
	if logger == nil {
		logger = logrus.New()
	}
	if m == nil {
		m, _ = metrics.NewPrometheusMetrics(nil, logger)
	}

	engineConfig := config.Engine
	return &JobProcessor{
		config:     config,
		logger:     logger,
		anonymizer: privacy.NewAnonymizer(&engineConfig, logger),
		exporter:   export.NewExportEngine(logger),
		queue:      queue,
		statuses:   statuses,
		results:    results,
		metrics:    m,
	}
}

// Start runs the pool until the job channel is closed or ctx is done
func (jp *JobProcessor) Start(ctx context.Context, jobs <-chan []byte) {
	jp.logger.WithField("concurrency", jp.config.Concurrency).Info("Job processor started")

	for i := 0; i < jp.config.Concurrency; i++ {
		jp.wg.Add(1)
		go jp.worker(ctx, i, jobs)
	}

	jp.wg.Wait()
	jp.logger.Info("All workers stopped")
}

func (jp *JobProcessor) worker(ctx context.Context, workerID int, jobs <-chan []byte) {
	defer jp.wg.Done()

	jp.logger.WithField("workerID", workerID).Debug("Worker started")

	for {
		select {
		case <-ctx.Done():
			jp.logger.WithField("workerID", workerID).Debug("Worker stopping")
			return
		case payload, ok := <-jobs:
			if !ok {
				jp.logger.WithField("workerID", workerID).Debug("Job queue closed, worker stopping")
				return
			}

			jp.ProcessPayload(ctx, payload, workerID)
		}
	}
}

// ProcessPayload handles one serialized job end to end. Every failure is
// reported through the job status and the error queue, never returned.
func (jp *JobProcessor) ProcessPayload(ctx context.Context, payload []byte, workerID int) {
	atomic.AddInt32(&jp.activeJobs, 1)
	defer atomic.AddInt32(&jp.activeJobs, -1)

	jp.metrics.JobStarted()
	defer jp.metrics.JobFinished()

	startTime := time.Now()

	job, err := decodeJob(payload)
	if err != nil {
		if job == nil {
			job = &models.AnonymizationJob{JobID: uuid.New().String()}
		}
		jp.logger.WithError(err).WithField("jobID", job.JobID).Error("Failed to decode job")
		jp.fail(ctx, job, stageDecode, err, startTime)
		return
	}

	logger := jp.logger.WithFields(logrus.Fields{
		"jobID":    job.JobID,
		"method":   job.Method,
		"workerID": workerID,
	})
	logger.Info("Processing job")

	jp.setStatus(ctx, job, constants.JobStatusRunning, "")

	jobCtx := ctx
	if jp.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, jp.config.JobTimeout)
		defer cancel()
	}

	result, err := jp.anonymizer.Anonymize(jobCtx, &privacy.Request{
		Dataset:  job.Dataset,
		Metadata: job.Metadata,
		Roles:    job.UserSelections,
		Method:   job.Method,
		Params:   job.Params,
	})
	if err != nil {
		logger.WithError(err).Error("Anonymization failed")
		jp.fail(ctx, job, constants.StageAnonymization, err, startTime)
		return
	}

	message, stage, err := jp.buildResult(jobCtx, job, result)
	if err != nil {
		logger.WithError(err).WithField("stage", stage).Error("Failed to store result")
		jp.fail(ctx, job, stage, err, startTime)
		return
	}

	if err := jp.publish(ctx, jp.config.Queues.Results, message); err != nil {
		logger.WithError(err).Error("Failed to publish result")
		jp.fail(ctx, job, constants.StageAnonymization, err, startTime)
		return
	}

	jp.setStatus(ctx, job, constants.JobStatusCompleted, message.OutputLocation)
	jp.recordSuccess(result, time.Since(startTime))
	atomic.AddInt64(&jp.completedJobs, 1)

	logger.WithFields(logrus.Fields{
		"duration":       time.Since(startTime),
		"rows":           result.Dataset.Len(),
		"outputLocation": message.OutputLocation,
	}).Info("Job completed successfully")
}

// buildResult assembles the result message, uploading the full dataset when a
// result store is configured. The returned stage names the failing step.
func (jp *JobProcessor) buildResult(ctx context.Context, job *models.AnonymizationJob, result *privacy.Result) (*models.AnonymizationResult, string, error) {
	message := &models.AnonymizationResult{
		JobID:        job.JobID,
		Status:       constants.JobStatusCompleted,
		MethodUsed:   string(result.Method),
		ParamsUsed:   result.Parameters.AsMap(),
		Sample:       result.Sample,
		Warnings:     diagnosticMessages(result.Diagnostics),
		AnonymizedAt: time.Now().UTC(),
	}

	if jp.results == nil {
		message.Dataset = result.Dataset
		return message, "", nil
	}

	format, err := jp.exporter.ParseFormat(jp.config.ResultFormat)
	if err != nil {
		return nil, stageExport, err
	}

	var buf bytes.Buffer
	if err := jp.exporter.Export(ctx, result.Dataset, format, &buf, export.DefaultExportOptions()); err != nil {
		return nil, stageExport, err
	}

	start := time.Now()
	location, err := jp.results.PutResult(ctx, job.JobID, string(format), buf.Bytes())
	if err != nil {
		jp.metrics.RecordStorageOperation("s3", "put_result", "error", time.Since(start))
		return nil, stageUpload, err
	}
	jp.metrics.RecordStorageOperation("s3", "put_result", "success", time.Since(start))

	message.OutputLocation = location
	return message, "", nil
}

func (jp *JobProcessor) fail(ctx context.Context, job *models.AnonymizationJob, stage string, cause error, startTime time.Time) {
	atomic.AddInt64(&jp.failedJobs, 1)

	code := errors.CodeOf(cause)
	jp.metrics.RecordError("worker", code)
	jp.metrics.RecordJob(methodLabel(job.Method), constants.JobStatusFailed, time.Since(startTime))

	notification := &models.ErrorNotification{
		JobID:     job.JobID,
		Stage:     stage,
		Code:      code,
		Error:     cause.Error(),
		Timestamp: time.Now().UTC(),
	}
	if err := jp.publish(ctx, jp.config.Queues.Errors, notification); err != nil {
		jp.logger.WithError(err).WithField("jobID", job.JobID).Error("Failed to publish error notification")
	}

	jp.setStatus(ctx, job, constants.JobStatusFailed, cause.Error())
}

func (jp *JobProcessor) setStatus(ctx context.Context, job *models.AnonymizationJob, status, message string) {
	err := jp.statuses.SetJobStatus(ctx, &models.JobStatus{
		JobID:     job.JobID,
		Status:    status,
		Method:    job.Method,
		Message:   message,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		jp.metrics.RecordStorageOperation("redis", "set_status", "error", 0)
		jp.logger.WithError(err).WithFields(logrus.Fields{
			"jobID":  job.JobID,
			"status": status,
		}).Error("Failed to update job status")
	}
}

func (jp *JobProcessor) publish(ctx context.Context, queue string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeInternal, errors.CodeInternalError, "failed to encode message")
	}
	return jp.queue.Enqueue(ctx, queue, payload)
}

func (jp *JobProcessor) recordSuccess(result *privacy.Result, duration time.Duration) {
	method := string(result.Method)
	jp.metrics.RecordJob(method, constants.JobStatusCompleted, duration)

	suppressed := 0
	if result.Report != nil && result.Report.Suppression != nil {
		suppressed = result.Report.Suppression.SuppressedRows
	}
	jp.metrics.RecordRows(method, result.Dataset.Len(), suppressed)

	for _, d := range result.Diagnostics {
		jp.metrics.RecordDiagnostic(string(d.Level), d.Stage)
	}
}

func (jp *JobProcessor) ActiveJobs() int32 {
	return atomic.LoadInt32(&jp.activeJobs)
}

func (jp *JobProcessor) CompletedJobs() int64 {
	return atomic.LoadInt64(&jp.completedJobs)
}

func (jp *JobProcessor) FailedJobs() int64 {
	return atomic.LoadInt64(&jp.failedJobs)
}

// decodeJob parses a queue payload. A job without an id gets a fresh one.
// The partially decoded job is returned alongside errors when available.
func decodeJob(payload []byte) (*models.AnonymizationJob, error) {
	job := &models.AnonymizationJob{}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	if err := decoder.Decode(job); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeValidation, errors.CodeInvalidInput, "malformed job payload")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Dataset == nil {
		return job, errors.NewValidationError(errors.CodeInvalidInput, "job has no dataset")
	}
	normalizeNumbers(job.Dataset)

	return job, nil
}

// normalizeNumbers turns json.Number cells into int64 or float64
func normalizeNumbers(ds *models.Dataset) {
	for _, row := range ds.Rows {
		for col, v := range row {
			n, ok := v.(json.Number)
			if !ok {
				continue
			}
			if i, err := n.Int64(); err == nil {
				row[col] = i
			} else if f, err := n.Float64(); err == nil {
				row[col] = f
			} else {
				row[col] = n.String()
			}
		}
	}
}

func diagnosticMessages(diags []privacy.Diagnostic) []string {
	if len(diags) == 0 {
		return nil
	}
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		if d.Column != "" {
			out = append(out, fmt.Sprintf("%s: %s (%s)", d.Stage, d.Message, d.Column))
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", d.Stage, d.Message))
	}
	return out
}

func methodLabel(method string) string {
	if m, err := privacy.ParseMethod(method); err == nil {
		return string(m)
	}
	if strings.TrimSpace(method) == "" {
		return "none"
	}
	return "unknown"
}
