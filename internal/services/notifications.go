package services

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer delivers the password setup link to a newly registered identity.
type Mailer interface {
	SendSetupLink(ctx context.Context, recipient, token string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string
}

type SMTPMailer struct {
	dialer  *gomail.Dialer
	from    string
	baseURL string
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    from,
		baseURL: cfg.BaseURL,
	}
}

// SendSetupLink returns when the message is sent or ctx is done. gomail
// dials without a deadline, so a stalled server is abandoned, not awaited.
func (m *SMTPMailer) SendSetupLink(ctx context.Context, recipient, token string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", "Set up your password")
	msg.SetBody("text/plain", setupBody(m.baseURL, token))

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("error sending email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("error sending email: %w", ctx.Err())
	}
}

func setupLink(baseURL, token string) string {
	return fmt.Sprintf("%s/set-password?token=%s", baseURL, url.QueryEscape(token))
}

func setupBody(baseURL, token string) string {
	return fmt.Sprintf("Welcome! Use the link below within the hour to set your password:\n\n%s\n", setupLink(baseURL, token))
}

// LogMailer is used when no SMTP host is configured; it only logs the link.
type LogMailer struct {
	log     *zap.Logger
	baseURL string
}

func NewLogMailer(log *zap.Logger, baseURL string) *LogMailer {
	return &LogMailer{log: log, baseURL: baseURL}
}

// SendSetupLink logs the link itself only at debug level since it carries a
// live setup token.
func (m *LogMailer) SendSetupLink(_ context.Context, recipient, token string) error {
	m.log.Info("setup link not mailed (SMTP disabled)", zap.String("recipient", recipient))
	m.log.Debug("setup link",
		zap.String("recipient", recipient),
		zap.String("link", setupLink(m.baseURL, token)))
	return nil
}

// NotificationService dispatches mail in the background so registration
// never waits on SMTP. Delivery failures are logged, not returned.
type NotificationService struct {
	mailer  Mailer
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewNotificationService(mailer Mailer, log *zap.Logger) *NotificationService {
	return &NotificationService{mailer: mailer, log: log, timeout: 30 * time.Second}
}

func (s *NotificationService) SendSetupEmail(recipient, token string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.mailer.SendSetupLink(ctx, recipient, token); err != nil {
			s.log.Warn("setup email not delivered", zap.String("recipient", recipient), zap.Error(err))
			return
		}
		s.log.Info("setup email sent", zap.String("recipient", recipient))
	}()
}

// Wait blocks until every in-flight dispatch has finished or ctx is done.
func (s *NotificationService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
