package email

import (
	"context"
	"fmt"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/redmonkez12/fmea-api/internal/config"
	"github.com/redmonkez12/fmea-api/internal/logging"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	smtpHost        string
	smtpPort        string
	smtpUser        string
	smtpPassword    string
	fromEmail       string
	baseURL         string
	verificationTTL time.Duration
	resetTTL        time.Duration
	send            sendFunc
}

// NewService creates the SMTP mailer. With no SMTP host configured messages
// are logged instead of sent.
func NewService(cfg config.EmailConfig, verificationTTL, resetTTL time.Duration) *Service {
	return &Service{
		smtpHost:        cfg.SMTPHost,
		smtpPort:        cfg.SMTPPort,
		smtpUser:        cfg.SMTPUser,
		smtpPassword:    cfg.SMTPPassword,
		fromEmail:       cfg.FromAddress,
		baseURL:         cfg.BaseURL,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
		send:            smtp.SendMail,
	}
}

// SendVerificationEmail sends an email verification link to the user
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, name, token string) error {
	link := s.link("/verify-email", token)

	return s.deliver(ctx, "verification", toEmail, "Verify your email address", message{
		Title:    "Welcome to FMEA Tracker!",
		Greeting: greeting(name),
		Intro:    "Please confirm your email address to activate your account.",
		Action:   "Verify Email Address",
		Link:     link,
		Outro:    "If you didn't create an account, you can safely ignore this email.",
		Expiry:   humanize(s.verificationTTL),
	})
}

// SendOTPEmail sends a one-time login code
func (s *Service) SendOTPEmail(ctx context.Context, toEmail, name, code string, ttl time.Duration) error {
	return s.deliver(ctx, "otp", toEmail, "Your login code", message{
		Title:    "Your login code",
		Greeting: greeting(name),
		Intro:    "Use the code below to sign in.",
		Code:     code,
		Outro:    "If you didn't try to sign in, you can ignore this email. Nobody can sign in without the code.",
		Expiry:   humanize(ttl),
	})
}

// SendPasswordResetEmail sends a password reset link to the user
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, name, token string) error {
	return s.deliver(ctx, "password reset", toEmail, "Reset your password", message{
		Title:    "Password Reset Request",
		Greeting: greeting(name),
		Intro:    "You requested to reset your password. Click the button below to create a new password.",
		Action:   "Reset Password",
		Link:     s.link("/reset-password", token),
		Outro:    "If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.",
		Expiry:   humanize(s.resetTTL),
	})
}

func (s *Service) deliver(ctx context.Context, kind, toEmail, subject string, msg message) error {
	logger := logging.GetLoggerFromContext(ctx)

	body, err := render(msg)
	if err != nil {
		logger.Error("failed to render email template", "kind", kind, "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if s.smtpHost == "" {
		logger.Warn("SMTP not configured, email not sent", "kind", kind, "email", toEmail)
		// one-time codes are never logged
		if msg.Link != "" {
			logger.Debug("email link", "kind", kind, "link", msg.Link)
		}
		return nil
	}

	if err := s.sendEmail(toEmail, subject, body); err != nil {
		logger.Error("failed to send "+kind+" email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info(kind+" email sent", "email", toEmail)
	return nil
}

func (s *Service) link(path, token string) string {
	return fmt.Sprintf("%s%s?token=%s", s.baseURL, path, url.QueryEscape(token))
}

func (s *Service) sendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	// Build message
	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.fromEmail, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)
	return s.send(addr, auth, s.fromEmail, []string{to}, msg)
}

var titleCaser = cases.Title(language.English)

// greeting addresses the user by first name
func greeting(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "Hello,"
	}
	return fmt.Sprintf("Hello %s,", titleCaser.String(fields[0]))
}

func humanize(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute:
		if d < 2*time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return fmt.Sprintf("%d seconds", d/time.Second)
	}
}
