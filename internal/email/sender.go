package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"voyago/backend/internal/config"
)

// Sender delivers a fully composed message (headers and body) to the
// given recipients.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// NewFromConfig picks the sender for the environment. With MOCK_EMAIL set,
// mail is logged and stored in Redis for inspection; without an SMTP host it
// is only logged.
func NewFromConfig(cfg *config.Config, rdb *redis.Client, log *zap.Logger) Sender {
	if cfg.MockEmail {
		return NewCompositeEmailSender(NewLoggingSender(log), NewRedisSender(rdb, cfg, log))
	}
	if cfg.SmtpHost == "" {
		log.Info("SMTP host not configured, using logging email sender")
		return NewLoggingSender(log)
	}
	return NewSMTPSender(cfg, log)
}

// SMTPSender sends mail through the configured relay.
type SMTPSender struct {
	from string
	addr string
	auth smtp.Auth
	log  *zap.Logger
}

func NewSMTPSender(cfg *config.Config, log *zap.Logger) *SMTPSender {
	return &SMTPSender{
		from: cfg.SmtpFromAddress,
		addr: fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
		auth: smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost),
		log:  log,
	}
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := smtp.SendMail(s.addr, s.auth, s.from, to, rawMessage); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	s.log.Info("Email sent", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

// LoggingSender only logs what would have been sent.
type LoggingSender struct {
	log *zap.Logger
}

func NewLoggingSender(log *zap.Logger) *LoggingSender {
	return &LoggingSender{log: log}
}

func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	s.log.Info("Email (logged only)",
		zap.Strings("to", to),
		zap.String("subject", subject),
		zap.ByteString("message", rawMessage),
	)
	return nil
}
