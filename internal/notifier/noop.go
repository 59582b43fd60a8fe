package notifier

import (
	"context"

	"go.uber.org/zap"
)

// Noop logs instead of sending; used when no bot token is configured.
type Noop struct {
	log *zap.Logger
}

func NewNoop(log *zap.Logger) *Noop {
	return &Noop{log: log}
}

func (n *Noop) NotifyUser(ctx context.Context, userID int64, text string) error {
	n.log.Info("notification suppressed (no bot token)",
		zap.Int64("user_id", userID), zap.String("text", text))
	return nil
}

func (n *Noop) EditOperatorMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	n.log.Info("operator edit suppressed (no bot token)",
		zap.Int64("chat_id", chatID), zap.Int("message_id", messageID))
	return nil
}
