package providers

import (
	"fmt"
	"net/smtp"
	"strings"

	"ms-bookworks/internal/config"
	"ms-bookworks/internal/logger"
)

// EmailNotifier sends buyer-facing mail over SMTP.
type EmailNotifier struct {
	cfg    config.EmailConfig
	logger *logger.Logger
}

func NewEmailNotifier(cfg config.EmailConfig, log *logger.Logger) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, logger: log}
}

func (n *EmailNotifier) Send(to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + n.cfg.FromAddress,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	addr := n.cfg.SMTPHost + ":" + n.cfg.SMTPPort
	auth := smtp.PlainAuth("", n.cfg.SMTPUsername, n.cfg.SMTPPassword, n.cfg.SMTPHost)

	if err := smtp.SendMail(addr, auth, n.cfg.FromAddress, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	n.logger.Info("EMAIL", fmt.Sprintf("sent %q to %s", subject, to))
	return nil
}
