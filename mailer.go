package emailauth

import (
	"context"
	"fmt"
	"net/smtp"
	"time"
)

// MailSender delivers a verification code to a recipient. Implementations are
// injected into the orchestrator; delivery failures propagate to the caller
// as ErrDeliveryFailed without rolling back the stored code.
type MailSender interface {
	Send(ctx context.Context, recipient, code string) error
}

// SenderFunc adapts a plain function to the MailSender interface.
type SenderFunc func(ctx context.Context, recipient, code string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, recipient, code string) error {
	return f(ctx, recipient, code)
}

// SMTPMailer sends verification codes over SMTP with a plain-text body.
type SMTPMailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	subject  string
	codeTTL  time.Duration
}

// NewSMTPMailer returns a MailSender for the given SMTP configuration.
// codeTTL is only used to word the message body.
func NewSMTPMailer(cfg SMTPConfig, codeTTL time.Duration) *SMTPMailer {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	subject := cfg.Subject
	if subject == "" {
		subject = "Verification Code"
	}
	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		from:     from,
		username: cfg.Username,
		password: cfg.Password,
		subject:  subject,
		codeTTL:  codeTTL,
	}
}

// Send delivers the code. The context is accepted for interface symmetry;
// net/smtp has no context support, so cancellation does not abort an
// in-flight delivery.
func (m *SMTPMailer) Send(_ context.Context, recipient, code string) error {
	body := fmt.Sprintf(
		"Your verification code:\r\n\r\n%s\r\n\r\nThis code is valid for %.0f minutes.\r\n\r\nIf you did not request this code, please ignore this email.\r\n",
		code, m.codeTTL.Minutes(),
	)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", m.from, recipient, m.subject, body)
	addr := m.host + ":" + m.port

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{recipient}, []byte(msg))
}
