// Package mailer delivers plain-text notification e-mails.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/pkg/config"
)

// Message is a single outbound e-mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends messages. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New selects the SMTP mailer when a host is configured and the log mailer otherwise.
// A relay that cannot be configured also falls back to the log mailer.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return NewLogMailer(logger)
	}
	m, err := NewSMTPMailer(cfg)
	if err != nil {
		logger.Warn("smtp mailer unavailable, logging mail instead", zap.String("host", cfg.Host), zap.Error(err))
		return NewLogMailer(logger)
	}
	return m
}

// SMTPMailer delivers through an SMTP relay using go-mail. STARTTLS is used when the
// relay offers it and implicit TLS when the port is 465.
type SMTPMailer struct {
	from    string
	client  *mail.Client
	deliver func(ctx context.Context, msg *mail.Msg) error
	now     func() time.Time
}

// NewSMTPMailer constructs an SMTP mailer from configuration.
func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(15 * time.Second),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client for %s: %w", cfg.Host, err)
	}
	m := &SMTPMailer{from: cfg.From, client: client, now: time.Now}
	m.deliver = func(ctx context.Context, msg *mail.Msg) error {
		return m.client.DialAndSendWithContext(ctx, msg)
	}
	return m, nil
}

// Send builds the message and hands it to the relay within ctx.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("mail recipient required")
	}
	out, err := m.compose(msg)
	if err != nil {
		return err
	}
	if err := m.deliver(ctx, out); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) compose(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(m.from); err != nil {
		return nil, fmt.Errorf("mail sender %q: %w", m.from, err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail recipient %q: %w", msg.To, err)
	}
	out.Subject(sanitizeHeader(msg.Subject))
	out.SetDateWithValue(m.now())
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	return out, nil
}

// LogMailer records messages in the application log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer builds a mailer for environments without SMTP.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// Send logs the message at info level.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("mail delivered to log",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}

func sanitizeHeader(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
