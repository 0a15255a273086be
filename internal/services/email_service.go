package services

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"constructflow/internal/models"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService delivers notifications over SMTP.
type EmailService struct {
	dialer mailSender
	from   string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) *EmailService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &EmailService{
		dialer: dialer,
		from:   fromEmail,
	}
}

func (s *EmailService) Name() string { return "email" }

func (s *EmailService) Enabled(rc *models.Recipient) bool {
	return s != nil && rc.NotifyTasksEmail && rc.Email != ""
}

func (s *EmailService) Deliver(ctx context.Context, rc *models.Recipient, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", rc.Email)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", "<p>"+strings.ReplaceAll(msg.HTML, "\n", "<br>")+"</p>")

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	return nil
}
