// Package bot exposes the control surface as Telegram commands, restricted
// to the admin chat.
package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kalambet/ytdigest/internal/pipeline"
	"github.com/kalambet/ytdigest/internal/storage"
	"github.com/kalambet/ytdigest/internal/youtube"
)

// ChannelResolver turns a channel URL into channel metadata.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, rawURL string) (youtube.Channel, error)
}

// Summarizer handles ad-hoc single-video requests.
type Summarizer interface {
	SummarizeURL(ctx context.Context, rawURL string) error
}

// Control is the scheduler surface the bot drives.
type Control interface {
	RunNow(ctx context.Context) (pipeline.Report, error)
	Pause() error
	Resume() error
	SetTime(hour, minute int) error
	Status() (storage.ScheduleState, time.Time, error)
}

// Bot long-polls Telegram and dispatches admin commands.
type Bot struct {
	api        *tgbotapi.BotAPI
	store      *storage.Store
	resolver   ChannelResolver
	summarizer Summarizer
	control    Control
	admin      int64
	logger     *slog.Logger
}

func New(api *tgbotapi.BotAPI, store *storage.Store, resolver ChannelResolver, summarizer Summarizer, control Control, adminChatID int64, logger *slog.Logger) *Bot {
	return &Bot{
		api:        api,
		store:      store,
		resolver:   resolver,
		summarizer: summarizer,
		control:    control,
		admin:      adminChatID,
		logger:     logger,
	}
}

// Run polls for updates until ctx is canceled. Each command is handled in
// its own goroutine so long-running ones (a manual run, an ad-hoc summary)
// do not stall polling.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.Message
			if msg == nil || !msg.IsCommand() {
				continue
			}
			if msg.Chat.ID != b.admin {
				b.logger.Warn("command from unauthorized chat", "chat_id", msg.Chat.ID)
				continue
			}
			go func() {
				reply := b.handleCommand(ctx, msg.Command(), msg.CommandArguments())
				if reply == "" {
					return
				}
				out := tgbotapi.NewMessage(b.admin, reply)
				if _, err := b.api.Send(out); err != nil {
					b.logger.Error("sending reply failed", "error", err)
				}
			}()
		}
	}
}
