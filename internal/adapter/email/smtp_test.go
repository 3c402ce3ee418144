package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/taxireg/internal/platform/config"
)

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestSender(cfg config.EmailConfig, err error) (*SMTPSender, *[]sentMail) {
	var sent []sentMail
	s := NewSMTP(cfg)
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)})
		return err
	}
	return s, &sent
}

func TestNewSMTP_DisabledWithoutHost(t *testing.T) {
	assert.Nil(t, NewSMTP(config.EmailConfig{}))
}

func TestSMTPSender_Send(t *testing.T) {
	cfg := config.EmailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "mailer",
		Password: "secret",
		From:     "noreply@example.com",
	}
	s, sent := newTestSender(cfg, nil)

	err := s.Send(context.Background(), "owner@example.com", "CSV errors", "Line 2: bad<br>Line 3: bad")
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.NotNil(t, mail.auth)
	assert.Equal(t, "noreply@example.com", mail.from)
	assert.Equal(t, []string{"owner@example.com"}, mail.to)

	headers, body, ok := strings.Cut(mail.msg, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, headers, "To: owner@example.com")
	assert.Contains(t, headers, "Subject: CSV errors")
	assert.Contains(t, headers, `Content-Type: text/html; charset="UTF-8"`)
	assert.Equal(t, "Line 2: bad<br>Line 3: bad", body)
}

func TestSMTPSender_SendWithoutCredentials(t *testing.T) {
	s, sent := newTestSender(config.EmailConfig{Host: "localhost", Port: 25, From: "noreply@example.com"}, nil)

	require.NoError(t, s.Send(context.Background(), "owner@example.com", "s", "b"))
	require.Len(t, *sent, 1)
	assert.Nil(t, (*sent)[0].auth)
}

func TestSMTPSender_SendError(t *testing.T) {
	s, _ := newTestSender(config.EmailConfig{Host: "localhost", Port: 25}, errors.New("connection refused"))

	err := s.Send(context.Background(), "owner@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner@example.com")
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	s, sent := newTestSender(config.EmailConfig{Host: "localhost", Port: 25}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Send(ctx, "owner@example.com", "s", "b"), context.Canceled)
	assert.Empty(t, *sent)
}
