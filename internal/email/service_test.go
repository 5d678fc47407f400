package email

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/fmea-api/internal/config"
	"github.com/redmonkez12/fmea-api/internal/logging"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestService(t *testing.T, sendErr error) (*Service, *[]sentMail) {
	t.Helper()

	svc := NewService(config.EmailConfig{
		SMTPHost:    "smtp.example.com",
		SMTPPort:    "587",
		SMTPUser:    "mailer@example.com",
		FromAddress: "no-reply@example.com",
		BaseURL:     "https://fmea.example",
	}, time.Hour, time.Hour)

	var sent []sentMail
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		if sendErr != nil {
			return sendErr
		}
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}

	return svc, &sent
}

func TestService_SendVerificationEmail(t *testing.T) {
	svc, sent := newTestService(t, nil)

	require.NoError(t, svc.SendVerificationEmail(context.Background(), "alice@example.com", "alice smith", "tok+en/="))
	require.Len(t, *sent, 1)

	m := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", m.addr)
	assert.Equal(t, "no-reply@example.com", m.from)
	assert.Equal(t, []string{"alice@example.com"}, m.to)
	assert.Contains(t, m.msg, "Subject: Verify your email address\r\n")
	assert.Contains(t, m.msg, "https://fmea.example/verify-email?token=tok%2Ben%2F%3D")
	assert.Contains(t, m.msg, "Hello Alice,")
	assert.Contains(t, m.msg, "link will expire in 1 hour")
}

func TestService_SendOTPEmail(t *testing.T) {
	svc, sent := newTestService(t, nil)

	require.NoError(t, svc.SendOTPEmail(context.Background(), "bob@example.com", "", "123456", 10*time.Minute))
	require.Len(t, *sent, 1)

	m := (*sent)[0].msg
	assert.Contains(t, m, `<p class="code">123456</p>`)
	assert.Contains(t, m, "Hello,")
	assert.Contains(t, m, "code will expire in 10 minutes")
	assert.NotContains(t, m, "copy and paste this link")
}

func TestService_SendPasswordResetEmail(t *testing.T) {
	svc, sent := newTestService(t, nil)

	require.NoError(t, svc.SendPasswordResetEmail(context.Background(), "alice@example.com", "Alice", "abc"))
	assert.Contains(t, (*sent)[0].msg, "https://fmea.example/reset-password?token=abc")
}

func TestService_SendFailure(t *testing.T) {
	svc, _ := newTestService(t, errors.New("connection refused"))

	err := svc.SendOTPEmail(context.Background(), "bob@example.com", "Bob", "123456", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestService_NoSMTPHostSkipsDelivery(t *testing.T) {
	svc, sent := newTestService(t, nil)
	svc.smtpHost = ""

	require.NoError(t, svc.SendVerificationEmail(context.Background(), "alice@example.com", "Alice", "abc"))
	assert.Empty(t, *sent)
}

func TestService_NoSMTPHostNeverLogsCode(t *testing.T) {
	svc, _ := newTestService(t, nil)
	svc.smtpHost = ""

	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), logging.NewLoggerWithWriter(&buf, true))

	require.NoError(t, svc.SendOTPEmail(ctx, "bob@example.com", "Bob", "482913", time.Minute))
	require.NoError(t, svc.SendVerificationEmail(ctx, "alice@example.com", "Alice", "abc"))

	out := buf.String()
	assert.Contains(t, out, "SMTP not configured")
	assert.NotContains(t, out, "482913")
	assert.Contains(t, out, "verify-email?token=abc")
}

func TestRender_EscapesContent(t *testing.T) {
	body, err := render(message{Title: "<script>x</script>", Expiry: "1 hour"})
	require.NoError(t, err)
	assert.False(t, strings.Contains(body, "<script>x</script>"))
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "1 hour", humanize(time.Hour))
	assert.Equal(t, "24 hours", humanize(24*time.Hour))
	assert.Equal(t, "10 minutes", humanize(10*time.Minute))
	assert.Equal(t, "90 minutes", humanize(90*time.Minute))
	assert.Equal(t, "1 minute", humanize(time.Minute))
	assert.Equal(t, "30 seconds", humanize(30*time.Second))
}
