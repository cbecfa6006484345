// Package mailer sends transactional email over SMTP.
package mailer

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"balancestudio/config"
)

// Mailer delivers plain-text email. A nil Mailer is safe to call and drops
// every message, for environments without SMTP credentials.
type Mailer struct {
	host string
	port string
	auth smtp.Auth
	from string
	log  *slog.Logger
}

// New builds a Mailer from config. Returns nil when no host is configured.
func New(cfg *config.SMTPConfig, log *slog.Logger) *Mailer {
	if cfg.Host == "" {
		return nil
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &Mailer{
		host: cfg.Host,
		port: cfg.Port,
		auth: auth,
		from: cfg.From,
		log:  log,
	}
}

// Send delivers one message and reports success. Errors are logged, never
// returned; callers only need the delivery flag.
func (m *Mailer) Send(to, subject, body string) bool {
	if m == nil {
		return false
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(body)

	addr := m.host + ":" + m.port
	if err := smtp.SendMail(addr, m.auth, m.from, []string{to}, []byte(msg.String())); err != nil {
		if m.log != nil {
			m.log.Warn("smtp send failed", "to", to, "subject", subject, "error", err)
		}
		return false
	}
	return true
}
