// Package notify sends templated outreach and confirmation emails.
// All sends are best-effort from the caller's point of view: callers log
// failures and move on.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// Sender delivers one rendered template to one recipient.
type Sender interface {
	Send(ctx context.Context, template, to string, fields map[string]string) error
}

// SMTPSender sends mail through a plain-auth SMTP relay.
type SMTPSender struct {
	Host     string // e.g. "smtp.gmail.com"
	Port     string // e.g. "587"
	From     string
	Password string
}

func (s *SMTPSender) Send(ctx context.Context, template, to string, fields map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject, body, err := Render(template, fields)
	if err != nil {
		return err
	}

	msg := []byte("From: " + s.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\r\nContent-Type: text/plain; charset=\"UTF-8\";\r\n\r\n" +
		body)

	auth := smtp.PlainAuth("", s.From, s.Password, s.Host)
	if err := smtp.SendMail(s.Host+":"+s.Port, auth, s.From, []string{to}, msg); err != nil {
		return fmt.Errorf("sending %s to %s: %w", template, to, err)
	}
	return nil
}

// LogSender renders templates and logs them instead of sending. Used when
// no SMTP relay is configured (local development, tests).
type LogSender struct{}

func (LogSender) Send(_ context.Context, template, to string, fields map[string]string) error {
	subject, _, err := Render(template, fields)
	if err != nil {
		return err
	}
	slog.Info("email suppressed (no SMTP configured)", "template", template, "to", to, "subject", subject)
	return nil
}
