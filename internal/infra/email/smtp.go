package email

import (
	"context"
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ledgerline/portal-iam/internal/core/port"
	"github.com/ledgerline/portal-iam/internal/infra/config"
	"github.com/ledgerline/portal-iam/internal/infra/logger"
)

// SMTPSender delivers HTML emails over SMTP with PLAIN auth.
type SMTPSender struct {
	cfg config.SMTPSettings
	log *zap.Logger
}

// NewSMTPSender constructs an SMTP-backed sender.
func NewSMTPSender(cfg config.SMTPSettings, log *zap.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, log: log}
}

// Send delivers the message. The send itself is synchronous; the context is
// checked before dialing because net/smtp has no cancellation support.
func (s *SMTPSender) Send(ctx context.Context, msg port.Email) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("email send cancelled: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	headers := map[string]string{
		"From":         s.cfg.From,
		"To":           msg.To,
		"Subject":      msg.Subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, headers[k])
	}
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", logger.MaskEmail(msg.To), err)
	}

	s.log.Debug("email delivered",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// LogSender writes emails to the log instead of delivering them. Useful for
// development environments without an SMTP relay.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender constructs a log-only sender.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg port.Email) error {
	s.log.Info("email (dev mode, not delivered)",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.String("html", msg.HTML),
	)
	return nil
}

var (
	_ port.NotificationSender = (*SMTPSender)(nil)
	_ port.NotificationSender = (*LogSender)(nil)
)
