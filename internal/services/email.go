package services

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/huangang/thesisdesk/pkg/logger"
	"gorm.io/gorm"
)

// Mailer delivers an HTML message.
type Mailer interface {
	Send(to []string, subject, body string) error
}

// EmailService sends mail over SMTP using the email_* system configs. It is a
// no-op while email is disabled or no host is configured.
type EmailService struct {
	configSvc *SystemConfigService
}

func NewEmailService(db *gorm.DB) *EmailService {
	return &EmailService{configSvc: NewSystemConfigService(db)}
}

func (s *EmailService) Send(to []string, subject, body string) error {
	cfg := s.configSvc.GetEmailSettings()
	if !cfg.Enabled || cfg.Host == "" || len(to) == 0 {
		return nil
	}
	return s.sendEmail(cfg, to, subject, body)
}

func buildMessage(from string, to []string, subject, body string) string {
	headers := [][2]string{
		{"From", from},
		{"To", strings.Join(to, ",")},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var message strings.Builder
	for _, h := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	message.WriteString("\r\n")
	message.WriteString(body)
	return message.String()
}

func (s *EmailService) sendEmail(cfg *EmailSettings, to []string, subject, body string) error {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	message := buildMessage(from, to, subject, body)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	var err error
	// 465 is implicit TLS; other ports negotiate STARTTLS inside SendMail
	if cfg.Port == 465 {
		err = s.sendEmailTLS(cfg, addr, auth, from, to, message)
	} else {
		err = smtp.SendMail(addr, auth, from, to, []byte(message))
	}

	if err != nil {
		logger.Warnf("[Email] Failed to send email: %v", err)
		return err
	}

	logger.Infof("[Email] Sent %q to %d recipient(s)", subject, len(to))
	return nil
}

func (s *EmailService) sendEmailTLS(cfg *EmailSettings, addr string, auth smtp.Auth, from string, to []string, message string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write([]byte(message)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
