package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"voyago/backend/internal/config"
)

type recordingSender struct {
	sent []string
	err  error
}

func (r *recordingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	r.sent = append(r.sent, subject)
	return r.err
}

func TestCompose(t *testing.T) {
	msg := string(Compose("Voyago <no-reply@voyago.app>", []string{"host@example.com"}, "Payout sent", "line one\nline two"))

	assert.Contains(t, msg, "From: Voyago <no-reply@voyago.app>\r\n")
	assert.Contains(t, msg, "To: host@example.com\r\n")
	assert.Contains(t, msg, "Subject: Payout sent\r\n")
	assert.Contains(t, msg, "@voyago.app>\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nline one\r\nline two"))
}

func TestCompositeEmailSender(t *testing.T) {
	ok := &recordingSender{}
	failing := &recordingSender{err: errors.New("relay down")}

	err := NewCompositeEmailSender(ok, failing).Send(context.Background(), []string{"a@b.c"}, "Hello", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")
	assert.Equal(t, []string{"Hello"}, ok.sent)
	assert.Equal(t, []string{"Hello"}, failing.sent)

	assert.Error(t, NewCompositeEmailSender().Send(context.Background(), []string{"a@b.c"}, "Hello", nil))
}

func TestNewFromConfig(t *testing.T) {
	log := zap.NewNop()

	assert.IsType(t, &LoggingSender{}, NewFromConfig(&config.Config{}, nil, log))
	assert.IsType(t, &SMTPSender{}, NewFromConfig(&config.Config{SmtpHost: "smtp.example.com", SmtpPort: 587}, nil, log))
	assert.IsType(t, &CompositeEmailSender{}, NewFromConfig(&config.Config{MockEmail: true}, nil, log))
}

func TestLoggingSender(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	err := NewLoggingSender(zap.New(core)).Send(context.Background(), []string{"a@b.c"}, "Hello", []byte("body"))
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Hello", logs.All()[0].ContextMap()["subject"])
}

func TestMockEmailKey(t *testing.T) {
	assert.Equal(t, "mockemail:host@example.com", MockEmailKey("Host@Example.com"))
}
