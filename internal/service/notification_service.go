package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/pkg/jobs"
	"github.com/noah-isme/smart-report-api/pkg/mailer"
)

const notificationJobType = "notification"

// NotificationConfig sizes the dispatch queue.
type NotificationConfig struct {
	Workers    int
	Retries    int
	BufferSize int
	RetryDelay time.Duration
	BaseURL    string
}

// NotificationService renders e-mail intents and delivers them on a background worker pool.
type NotificationService struct {
	mailer  mailer.Mailer
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
	baseURL string
}

// NewNotificationService wires the dispatch queue. Call Start before Notify.
func NewNotificationService(m mailer.Mailer, metrics *MetricsService, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		mailer:  m,
		metrics: metrics,
		logger:  logger,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnGiveUp: func(job jobs.Job, _ error) {
			if n, ok := job.Payload.(models.Notification); ok {
				s.metrics.RecordNotification(string(n.Kind), "failed")
			}
		},
	})
	return s
}

// Start launches the workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for in-flight deliveries to finish.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues a notification without blocking. Failures are logged, never returned.
func (s *NotificationService) Notify(_ context.Context, notification models.Notification) {
	if strings.TrimSpace(notification.Recipient) == "" {
		s.logger.Warn("notification without recipient dropped", zap.String("kind", string(notification.Kind)))
		s.metrics.RecordNotification(string(notification.Kind), "dropped")
		return
	}
	err := s.queue.TryEnqueue(jobs.Job{Type: notificationJobType, Payload: notification})
	if err != nil {
		s.logger.Warn("notification not queued",
			zap.String("kind", string(notification.Kind)),
			zap.Bool("queue_full", errors.Is(err, jobs.ErrQueueFull)),
			zap.Error(err),
		)
		s.metrics.RecordNotification(string(notification.Kind), "dropped")
		return
	}
	s.metrics.RecordNotification(string(notification.Kind), "queued")
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	msg, err := s.render(notification)
	if err != nil {
		s.logger.Warn("notification not rendered", zap.String("kind", string(notification.Kind)), zap.Error(err))
		s.metrics.RecordNotification(string(notification.Kind), "dropped")
		return nil
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return err
	}
	s.metrics.RecordNotification(string(notification.Kind), "sent")
	return nil
}

func (s *NotificationService) render(n models.Notification) (mailer.Message, error) {
	name := n.Payload["name"]
	if name == "" {
		name = "there"
	}
	msg := mailer.Message{To: n.Recipient}
	switch n.Kind {
	case models.NotificationWelcome:
		msg.Subject = "Welcome to Smart Report"
		msg.Body = fmt.Sprintf("Hi %s,\n\nYour account is ready. Sign in to start submitting classroom inspection reports.\n", name)
		if s.baseURL != "" {
			msg.Body += "\n" + s.baseURL + "/login\n"
		}
	case models.NotificationReportStatus:
		status := n.Payload["status"]
		msg.Subject = fmt.Sprintf("Report %s: %s", statusLabel(status), n.Payload["title"])
		msg.Body = fmt.Sprintf("Hi %s,\n\nYour report \"%s\" for %s is now %s.\n",
			name, n.Payload["title"], n.Payload["class"], statusLabel(status))
		if s.baseURL != "" && n.Payload["reportId"] != "" {
			msg.Body += "\n" + s.baseURL + "/reports/" + n.Payload["reportId"] + "\n"
		}
	default:
		return mailer.Message{}, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	return msg, nil
}

func statusLabel(status string) string {
	switch models.ReportStatus(status) {
	case models.ReportStatusUnderReview:
		return "under review"
	case models.ReportStatusApproved:
		return "approved"
	case models.ReportStatusRejected:
		return "rejected"
	case models.ReportStatusReviewed:
		return "reviewed"
	}
	return strings.ToLower(status)
}
