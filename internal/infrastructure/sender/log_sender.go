// Package sender holds MessageSender implementations
package sender

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
)

// ErrNoRecipient is returned for notifications without a recipient phone
var ErrNoRecipient = errors.New("notification has no recipient phone")

// LogSender writes messages to the log instead of a carrier
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a new LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns the sender name
func (s *LogSender) Name() string {
	return "log"
}

// Send logs the message
func (s *LogSender) Send(ctx context.Context, n *entity.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.RecipientPhone == "" {
		return ErrNoRecipient
	}

	s.logger.Info("Patient notification",
		zap.String("notification_id", n.ID),
		zap.String("case_id", n.CaseID),
		zap.String("case_kind", string(n.CaseKind)),
		zap.String("to", n.RecipientPhone),
		zap.String("message", n.Message))
	return nil
}
