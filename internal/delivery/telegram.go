package delivery

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram delivers summaries to a fixed target chat and error notices to
// the admin chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	target int64
	admin  int64
	logger *slog.Logger
}

func NewTelegram(bot *tgbotapi.BotAPI, targetChatID, adminChatID int64, logger *slog.Logger) *Telegram {
	return &Telegram{bot: bot, target: targetChatID, admin: adminChatID, logger: logger}
}

// Deliver sends text to the target chat, splitting it into as many messages
// as the length limit requires. Chunks go out in order; a failed chunk fails
// the whole delivery. The bot API client has no context support, so ctx only
// gates the attempt between chunks.
func (t *Telegram) Deliver(ctx context.Context, text string) error {
	chunks := Split(text, TelegramMaxLength)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.target, FixHTMLTags(chunk))
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = i > 0
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	t.logger.Info("summary delivered", "chat_id", t.target, "chunks", len(chunks))
	return nil
}

// NotifyAdmin sends a plain-text notice to the admin chat. Failures are
// logged and swallowed; an unreachable admin must not fail a run.
func (t *Telegram) NotifyAdmin(ctx context.Context, text string) {
	if t.admin == 0 {
		return
	}
	if err := ctx.Err(); err != nil {
		return
	}
	msg := tgbotapi.NewMessage(t.admin, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Warn("admin notification failed", "error", err)
	}
}
