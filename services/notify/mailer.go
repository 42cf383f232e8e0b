package notify

import (
	"context"
	"fmt"

	"triaright-platform/config"
	"triaright-platform/logger"

	"gopkg.in/gomail.v2"
)

// Email is one outgoing message. Body is HTML.
type Email struct {
	To         string `json:"recipient"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	Attachment string `json:"attachment,omitempty"`
}

func (e Email) validate() error {
	switch {
	case e.To == "":
		return fmt.Errorf("invalid recipient in email")
	case e.Subject == "":
		return fmt.Errorf("invalid subject in email")
	case e.Body == "":
		return fmt.Errorf("invalid body in email")
	}
	return nil
}

// Mailer delivers an email.
type Mailer interface {
	Send(ctx context.Context, e Email) error
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	host string
	port int
	user string
	pass string
	from string
}

func NewSMTPMailer(cfg config.Config) *SMTPMailer {
	from := cfg.EmailFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	return &SMTPMailer{
		host: cfg.SMTPHost,
		port: cfg.SMTPPort,
		user: cfg.SMTPUser,
		pass: cfg.SMTPPass,
		from: from,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	if err := e.validate(); err != nil {
		return err
	}
	if m.from == "" {
		return fmt.Errorf("email sender not configured (set EMAIL_FROM or SMTP_USER)")
	}
	if m.user == "" || m.pass == "" {
		return fmt.Errorf("smtp credentials not configured (set SMTP_USER and SMTP_PASS)")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", e.To)
	msg.SetHeader("Subject", e.Subject)
	msg.SetBody("text/html", e.Body)
	if e.Attachment != "" {
		msg.Attach(e.Attachment)
	}

	logger.Info("[EMAIL] sending to %s: %s", e.To, e.Subject)
	d := gomail.NewDialer(m.host, m.port, m.user, m.pass)
	if err := d.DialAndSend(msg); err != nil {
		logger.Error("[EMAIL] failed to send to %s: %v", e.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	logger.Info("[EMAIL] sent to %s", e.To)
	return nil
}
