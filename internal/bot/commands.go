package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/ytdigest/internal/pipeline"
	"github.com/kalambet/ytdigest/internal/scheduler"
	"github.com/kalambet/ytdigest/internal/storage"
)

const helpText = `Commands:
/add_channel <url> — start watching a channel
/remove_channel <id> — stop watching a channel
/list_channels — show watched channels
/summarize <video url> — summarize one video now
/run_now — run the daily digest immediately
/pause — pause the daily schedule
/resume — resume the daily schedule
/set_time HH:MM — change the daily trigger time
/status — schedule and ledger overview`

// handleCommand executes one command and returns the reply text.
func (b *Bot) handleCommand(ctx context.Context, command, args string) string {
	args = strings.TrimSpace(args)
	b.logger.Info("command received", "command", command)

	switch command {
	case "start", "help":
		return helpText
	case "add_channel":
		return b.addChannel(ctx, args)
	case "remove_channel":
		return b.removeChannel(args)
	case "list_channels":
		return b.listChannels()
	case "summarize":
		return b.summarize(ctx, args)
	case "run_now":
		return b.runNow(ctx)
	case "pause":
		if err := b.control.Pause(); err != nil {
			return "Pausing failed: " + err.Error()
		}
		return "Daily schedule paused. /run_now and /summarize still work."
	case "resume":
		if err := b.control.Resume(); err != nil {
			return "Resuming failed: " + err.Error()
		}
		return "Daily schedule resumed."
	case "set_time":
		return b.setTime(args)
	case "status":
		return b.status()
	default:
		return "Unknown command. Try /help."
	}
}

func (b *Bot) addChannel(ctx context.Context, rawURL string) string {
	if rawURL == "" {
		return "Usage: /add_channel <channel url>"
	}
	ch, err := b.resolver.ResolveChannel(ctx, rawURL)
	if err != nil {
		return "Could not resolve channel: " + err.Error()
	}
	err = b.store.CreateChannel(storage.Channel{
		ID:                ch.ID,
		Name:              ch.Name,
		UploadsPlaylistID: ch.UploadsPlaylistID,
		CreatedAt:         time.Now(),
	})
	if err != nil {
		return "Saving channel failed: " + err.Error()
	}
	return fmt.Sprintf("Watching %q (%s). New uploads will appear in the daily digest.", ch.Name, ch.ID)
}

func (b *Bot) removeChannel(channelID string) string {
	if channelID == "" {
		return "Usage: /remove_channel <channel id>"
	}
	if err := b.store.DeleteChannel(channelID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "No such channel. /list_channels shows the watched ones."
		}
		return "Removing channel failed: " + err.Error()
	}
	return "Channel removed."
}

func (b *Bot) listChannels() string {
	channels, err := b.store.ListChannels()
	if err != nil {
		return "Listing channels failed: " + err.Error()
	}
	if len(channels) == 0 {
		return "No channels watched yet. Add one with /add_channel."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Watching %d channel(s):\n", len(channels))
	for _, ch := range channels {
		fmt.Fprintf(&sb, "• %s (%s)\n", ch.Name, ch.ID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) summarize(ctx context.Context, rawURL string) string {
	if rawURL == "" {
		return "Usage: /summarize <video url>"
	}
	if err := b.summarizer.SummarizeURL(ctx, rawURL); err != nil {
		if errors.Is(err, pipeline.ErrAlreadyProcessed) {
			return "That video was already summarized."
		}
		return "Summarizing failed: " + err.Error()
	}
	return "Summary delivered."
}

func (b *Bot) runNow(ctx context.Context) string {
	report, err := b.control.RunNow(ctx)
	if err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			return "A run is already in progress."
		}
		return "Run failed: " + err.Error()
	}
	return "Run finished: " + report.String()
}

func (b *Bot) setTime(args string) string {
	hour, minute, err := ParseClock(args)
	if err != nil {
		return "Usage: /set_time HH:MM (e.g. /set_time 09:30)"
	}
	if err := b.control.SetTime(hour, minute); err != nil {
		return "Changing trigger time failed: " + err.Error()
	}
	return fmt.Sprintf("Daily digest now runs at %02d:%02d.", hour, minute)
}

func (b *Bot) status() string {
	state, next, err := b.control.Status()
	if err != nil {
		return "Reading schedule failed: " + err.Error()
	}
	counts, err := b.store.CountByStatus()
	if err != nil {
		return "Reading ledger failed: " + err.Error()
	}
	channels, err := b.store.ListChannels()
	if err != nil {
		return "Listing channels failed: " + err.Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Schedule: daily at %02d:%02d", state.TriggerHour, state.TriggerMinute)
	if state.Paused {
		sb.WriteString(" (paused)")
	} else {
		fmt.Fprintf(&sb, ", next run %s", next.Format("2006-01-02 15:04"))
	}
	sb.WriteString("\n")
	if !state.LastRunAt.IsZero() {
		fmt.Fprintf(&sb, "Last run: %s — %s\n", state.LastRunAt.Format("2006-01-02 15:04"), state.LastRunOutcome)
	}
	fmt.Fprintf(&sb, "Channels: %d\n", len(channels))
	fmt.Fprintf(&sb, "Videos: %d delivered, %d failed, %d in flight",
		counts[storage.StatusDelivered],
		counts[storage.StatusFailed],
		counts[storage.StatusDiscovered]+counts[storage.StatusTranscriptFetched]+counts[storage.StatusSummarized])
	return sb.String()
}

// ParseClock parses a HH:MM string on a 24-hour clock.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad minute in %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q out of range", s)
	}
	return hour, minute, nil
}
