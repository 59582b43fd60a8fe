package notifier

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Telegram delivers user notifications and operator-message edits
// through the bot API.
type Telegram struct {
	bot *tgbotapi.BotAPI
	log *zap.Logger
}

func NewTelegram(token string, log *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Info("notifier bot authorized", zap.String("username", bot.Self.UserName))
	return &Telegram{bot: bot, log: log}, nil
}

func (t *Telegram) NotifyUser(ctx context.Context, userID int64, text string) error {
	_, err := t.bot.Send(tgbotapi.NewMessage(userID, text))
	return err
}

// EditOperatorMessage tries a caption edit first (operator messages
// usually carry the receipt photo) and falls back to a text edit for
// photo-less messages.
func (t *Telegram) EditOperatorMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	if _, err := t.bot.Send(tgbotapi.NewEditMessageCaption(chatID, messageID, text)); err == nil {
		return nil
	}
	_, err := t.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}
