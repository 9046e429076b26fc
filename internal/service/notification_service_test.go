package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-report-api/internal/models"
	"github.com/noah-isme/smart-report-api/pkg/mailer"
)

type captureMailer struct {
	mu       sync.Mutex
	messages []mailer.Message
	failures int
}

func (c *captureMailer) Send(_ context.Context, msg mailer.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return errors.New("smtp unavailable")
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *captureMailer) sent() []mailer.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]mailer.Message(nil), c.messages...)
}

func TestNotificationServiceDeliversReportStatus(t *testing.T) {
	m := &captureMailer{failures: 1}
	svc := NewNotificationService(m, nil, NotificationConfig{Workers: 1, Retries: 2, RetryDelay: 10 * time.Millisecond, BaseURL: "https://school.example/"}, nil)
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify(context.Background(), models.Notification{
		Kind:      models.NotificationReportStatus,
		Recipient: "ani@school.example",
		Payload:   map[string]string{"name": "Ani", "title": "Daily check", "class": "CS 1", "status": "UNDER_REVIEW", "reportId": "r1"},
	})

	require.Eventually(t, func() bool { return len(m.sent()) == 1 }, time.Second, 10*time.Millisecond)
	msg := m.sent()[0]
	assert.Equal(t, "ani@school.example", msg.To)
	assert.Equal(t, "Report under review: Daily check", msg.Subject)
	assert.Contains(t, msg.Body, "Hi Ani")
	assert.Contains(t, msg.Body, "https://school.example/reports/r1")
}

func TestNotificationServiceRendersWelcome(t *testing.T) {
	svc := NewNotificationService(&captureMailer{}, nil, NotificationConfig{}, nil)

	msg, err := svc.render(models.Notification{Kind: models.NotificationWelcome, Recipient: "x@y.z"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome to Smart Report", msg.Subject)
	assert.Contains(t, msg.Body, "Hi there")

	_, err = svc.render(models.Notification{Kind: "digest", Recipient: "x@y.z"})
	assert.Error(t, err)
}

func TestNotificationServiceNotifyNeverFails(t *testing.T) {
	m := &captureMailer{}
	svc := NewNotificationService(m, nil, NotificationConfig{Workers: 1}, nil)

	// not started and missing recipient are both swallowed
	svc.Notify(context.Background(), models.Notification{Kind: models.NotificationWelcome, Recipient: "a@b.c"})
	svc.Notify(context.Background(), models.Notification{Kind: models.NotificationWelcome})
	assert.Empty(t, m.sent())
}
