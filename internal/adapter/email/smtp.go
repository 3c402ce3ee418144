// Package email sends notification emails over SMTP.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/config"
	"github.com/neomorfeo/taxireg/internal/platform/logger"
)

// Compile-time check: SMTPSender implements domain.EmailSender.
var _ domain.EmailSender = (*SMTPSender)(nil)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers HTML emails through a single SMTP relay.
type SMTPSender struct {
	cfg      config.EmailConfig
	sendMail sendFunc
}

// NewSMTP creates a sender. Returns nil when no host is configured (emails
// disabled).
func NewSMTP(cfg config.EmailConfig) *SMTPSender {
	if cfg.Host == "" {
		return nil
	}
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	if err := s.sendMail(addr, auth, s.cfg.From, []string{to}, message(s.cfg.From, to, subject, body)); err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}
	logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func message(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
