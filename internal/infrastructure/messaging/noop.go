package messaging

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// NoopSender is a Sender for development and test environments. It
// logs the message instead of delivering it and hands back a synthetic
// message ID so callers can exercise the full dispatch path.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a sender that only logs
func NewNoopSender(logger *zap.Logger) *NoopSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopSender{logger: logger}
}

// Send logs the email and returns a synthetic message ID
func (s *NoopSender) Send(ctx context.Context, email *Email) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.logger.Info("Email suppressed (noop sender)",
		zap.Strings("to", email.To),
		zap.String("subject", email.Subject),
		zap.Int("attachments", len(email.Attachments)))
	return fmt.Sprintf("noop-%d", time.Now().UnixNano()), nil
}

var _ Sender = (*NoopSender)(nil)
