package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/notifier"
	"github.com/noah-isme/grievance-api/pkg/ids"
	"github.com/noah-isme/grievance-api/pkg/jobs"
)

// NotificationConfig tunes delivery.
type NotificationConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

type delivery struct {
	notifier notifier.Notifier
	event    models.NotificationEvent
}

// NotificationService fans events out to every applicable notifier through a
// background queue. Publish never blocks and never fails the caller.
type NotificationService struct {
	notifiers []notifier.Notifier
	queue     *jobs.Queue
	timeout   time.Duration
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time

	pending int64
}

// NewNotificationService wires the dispatcher. Call Start before Publish.
func NewNotificationService(notifiers []notifier.Notifier, cfg NotificationConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	s := &NotificationService{
		notifiers: notifiers,
		timeout:   cfg.Timeout,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnGiveUp:   s.giveUp,
	})
	return s
}

// Start launches delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop halts workers. Undelivered events are dropped.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Publish schedules delivery of each event to every notifier that accepts it
// and returns the number of deliveries queued.
func (s *NotificationService) Publish(events ...models.NotificationEvent) int {
	if s == nil {
		return 0
	}
	queued := 0
	for _, evt := range events {
		if evt.ID == "" {
			evt.ID = ids.New()
		}
		if evt.OccurredAt.IsZero() {
			evt.OccurredAt = s.now().UTC()
		}
		for _, n := range s.notifiers {
			if !n.Accepts(evt) {
				continue
			}
			atomic.AddInt64(&s.pending, 1)
			err := s.queue.Enqueue(jobs.Job{Type: n.Name(), Payload: delivery{notifier: n, event: evt}})
			if err != nil {
				atomic.AddInt64(&s.pending, -1)
				s.metrics.RecordNotification(n.Name(), "dropped")
				s.logger.Warn("notification not queued",
					zap.String("notifier", n.Name()),
					zap.String("event", string(evt.Type)),
					zap.String("tracking_id", evt.TrackingID),
					zap.Error(err))
				continue
			}
			queued++
		}
	}
	return queued
}

// Flush waits until every queued delivery has succeeded or been abandoned.
func (s *NotificationService) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for atomic.LoadInt64(&s.pending) > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("flush notifications: %w", ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	d, ok := job.Payload.(delivery)
	if !ok {
		atomic.AddInt64(&s.pending, -1)
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.notifyWithin(callCtx, d); err != nil {
		s.metrics.RecordNotification(d.notifier.Name(), "failed")
		return err
	}
	atomic.AddInt64(&s.pending, -1)
	s.metrics.RecordNotification(d.notifier.Name(), "sent")
	return nil
}

// notifyWithin frees the worker once ctx is done, even if the notifier
// itself ignores cancellation.
func (s *NotificationService) notifyWithin(ctx context.Context, d delivery) error {
	done := make(chan error, 1)
	go func() { done <- d.notifier.Notify(ctx, d.event) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s notifier: %w", d.notifier.Name(), ctx.Err())
	}
}

func (s *NotificationService) giveUp(job jobs.Job, err error) {
	atomic.AddInt64(&s.pending, -1)
	d, _ := job.Payload.(delivery)
	s.metrics.RecordNotification(job.Type, "abandoned")
	s.logger.Warn("notification abandoned",
		zap.String("notifier", job.Type),
		zap.String("event", string(d.event.Type)),
		zap.String("grievance_id", d.event.GrievanceID),
		zap.String("tracking_id", d.event.TrackingID),
		zap.String("recipient", d.event.Recipient.UserID),
		zap.Int("attempts", job.Attempt),
		zap.Error(err))
}
