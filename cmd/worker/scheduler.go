package main

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IacopoSb/AnonimaData/internal/observability/metrics"
	"github.com/IacopoSb/AnonimaData/pkg/interfaces"
)

// queueLengther is implemented by queues that can report their backlog
type queueLengther interface {
	QueueLength(ctx context.Context, queue string) (int64, error)
}

// Scheduler pops raw job payloads from the request queue and hands them to
// the processor pool
type Scheduler struct {
	config   *WorkerConfig
	logger   *logrus.Logger
	queue    interfaces.JobQueue
	metrics  *metrics.PrometheusMetrics
	jobQueue chan []byte
	stop     chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex
	running  bool
}

func NewScheduler(config *WorkerConfig, queue interfaces.JobQueue, m *metrics.PrometheusMetrics, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		config:   config,
		logger:   logger,
		queue:    queue,
		metrics:  m,
		jobQueue: make(chan []byte, config.Concurrency),
		stop:     make(chan struct{}),
	}
}

// Start polls until ctx is done or Stop is called. It closes the job channel
// on return so the processor pool drains and exits.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.jobQueue)
	}()

	s.logger.WithField("queue", s.config.Queues.Requests).Info("Scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopping due to context cancellation")
			return
		case <-s.stop:
			s.logger.Info("Scheduler stopped")
			return
		default:
		}

		payload, err := s.queue.Dequeue(ctx, s.config.Queues.Requests, s.config.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.WithError(err).Error("Failed to poll request queue")
			s.backoff(ctx)
			continue
		}

		s.updateQueueDepth(ctx)

		if payload == nil {
			continue
		}

		select {
		case s.jobQueue <- payload:
			s.logger.WithField("bytes", len(payload)).Debug("Job queued")
		case <-ctx.Done():
			s.requeue(payload)
			return
		case <-s.stop:
			s.requeue(payload)
			return
		}
	}
}

// Stop makes Start return after the current poll
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.logger.Info("Scheduler stop requested")
	})
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) GetJobQueue() <-chan []byte {
	return s.jobQueue
}

// requeue pushes back a payload that was popped but never handed out
func (s *Scheduler) requeue(payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.queue.Enqueue(ctx, s.config.Queues.Requests, payload); err != nil {
		s.logger.WithError(err).Error("Failed to requeue job during shutdown")
	}
}

func (s *Scheduler) updateQueueDepth(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	lengther, ok := s.queue.(queueLengther)
	if !ok {
		return
	}
	depth, err := lengther.QueueLength(ctx, s.config.Queues.Requests)
	if err != nil {
		s.logger.WithError(err).Debug("Failed to read queue length")
		return
	}
	s.metrics.SetQueueDepth(s.config.Queues.Requests, float64(depth))
}

func (s *Scheduler) backoff(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-s.stop:
	case <-time.After(s.config.PollInterval):
	}
}
