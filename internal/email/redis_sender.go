package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"voyago/backend/internal/config"
)

const mockEmailTTL = 5 * time.Minute

// MockEmailKey is where RedisSender stores the latest message for a recipient.
func MockEmailKey(to string) string {
	return "mockemail:" + strings.ToLower(to)
}

// RedisSender stores messages in Redis instead of sending them, so
// integration tests can read what a user would have received.
type RedisSender struct {
	client *redis.Client
	from   string
	log    *zap.Logger
}

func NewRedisSender(client *redis.Client, cfg *config.Config, log *zap.Logger) *RedisSender {
	return &RedisSender{client: client, from: cfg.SmtpFromAddress, log: log}
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}
	data, err := json.Marshal(map[string]string{
		"to":      strings.Join(to, ", "),
		"from":    s.from,
		"subject": subject,
		"body":    string(rawMessage),
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(to[0])
	if err := s.client.Set(ctx, key, data, mockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}
	s.log.Debug("Mock email stored", zap.String("key", key), zap.String("subject", subject))
	return nil
}
