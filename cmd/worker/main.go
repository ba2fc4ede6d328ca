package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/internal/observability/health"
	"github.com/IacopoSb/AnonimaData/internal/observability/metrics"
	"github.com/IacopoSb/AnonimaData/internal/storage/implementations/redis"
	"github.com/IacopoSb/AnonimaData/internal/storage/implementations/s3"
	"github.com/IacopoSb/AnonimaData/pkg/constants"
	"github.com/IacopoSb/AnonimaData/pkg/interfaces"
)

var logger *logrus.Logger

func main() {
	config, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger = setupLogger(config.LogLevel, config.LogFormat)

	logger.WithFields(logrus.Fields{
		"workerID":      config.WorkerID,
		"concurrency":   config.Concurrency,
		"requestQueue":  config.Queues.Requests,
		"resultsBucket": config.S3.Bucket,
	}).Info("Starting AnonimaData worker")

	if err := run(config); err != nil {
		logger.WithError(err).Error("Worker failed")
		os.Exit(1)
	}

	logger.Info("Worker stopped successfully")
}

func run(config *WorkerConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	queue, err := redis.NewRedisStorage(&config.Redis, logger)
	if err != nil {
		return err
	}
	if err := queue.Connect(ctx); err != nil {
		return err
	}
	defer queue.Close()

	monitor := health.NewHealthMonitor(&config.Health, logger)
	monitor.RegisterCheck(health.NewStorageHealthCheck("redis", queue, true, config.Health.Timeout))

	var results interfaces.ResultStore
	if config.ResultsEnabled() {
		store, err := s3.NewS3Storage(&config.S3, logger)
		if err != nil {
			return err
		}
		if err := store.Connect(ctx); err != nil {
			return err
		}
		defer store.Close()

		results = store
		monitor.RegisterCheck(health.NewStorageHealthCheck("s3", store, true, config.Health.Timeout))
	}

	promConfig := &metrics.PrometheusConfig{
		Enabled:        true,
		Port:           config.MetricsPort,
		Path:           "/metrics",
		Namespace:      constants.AppName,
		Subsystem:      "worker",
		Labels:         map[string]string{"worker_id": config.WorkerID},
		RuntimeMetrics: true,
	}
	workerMetrics, err := metrics.NewPrometheusMetrics(promConfig, logger)
	if err != nil {
		return err
	}

	scheduler := NewScheduler(config, queue, workerMetrics, logger)
	processor := NewJobProcessor(config, queue, queue, results, workerMetrics, logger)

	server := newHTTPServer(config.MetricsPort, workerMetrics, monitor)
	go func() {
		logger.WithField("addr", server.Addr).Info("Serving metrics and health")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()

	monitor.Start(ctx)
	go scheduler.Start(ctx)

	processorDone := make(chan struct{})
	go func() {
		processor.Start(ctx, scheduler.GetJobQueue())
		close(processorDone)
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.WithFields(logrus.Fields{
					"activeJobs":    processor.ActiveJobs(),
					"completedJobs": processor.CompletedJobs(),
					"failedJobs":    processor.FailedJobs(),
				}).Debug("Worker stats")
			}
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer shutdownCancel()

	shutdownErr := gracefulShutdown(shutdownCtx, scheduler, processorDone)
	cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Metrics server shutdown failed")
	}

	return shutdownErr
}

func newHTTPServer(port int, m *metrics.PrometheusMetrics, monitor *health.HealthMonitor) *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.Handle("/healthz", monitor.Handler()).Methods(http.MethodGet)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == constants.LogFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// gracefulShutdown stops polling and waits for in-flight jobs to drain
func gracefulShutdown(ctx context.Context, scheduler *Scheduler, processorDone <-chan struct{}) error {
	logger.Info("Starting graceful shutdown")

	scheduler.Stop()

	select {
	case <-processorDone:
		logger.Info("All jobs completed")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
