package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/ytdigest/internal/delivery"
	"github.com/kalambet/ytdigest/internal/engine"
	"github.com/kalambet/ytdigest/internal/storage"
	"github.com/kalambet/ytdigest/internal/summarize"
	"github.com/kalambet/ytdigest/internal/transcript"
	"github.com/kalambet/ytdigest/internal/youtube"
)

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeDuplicate
	outcomeNoTranscript
	outcomeFailed
)

// Orchestrator drives the discover → transcript → summarize → deliver flow.
type Orchestrator struct {
	store       *storage.Store
	discovery   Discovery
	transcripts TranscriptFetcher
	engine      engine.Engine
	router      *summarize.Router
	deliverer   Deliverer
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

func NewOrchestrator(
	store *storage.Store,
	discovery Discovery,
	transcripts TranscriptFetcher,
	eng engine.Engine,
	router *summarize.Router,
	deliverer Deliverer,
	logger *slog.Logger,
	concurrency int,
) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Orchestrator{
		store:       store,
		discovery:   discovery,
		transcripts: transcripts,
		engine:      eng,
		router:      router,
		deliverer:   deliverer,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Run processes every monitored channel once. Channel-level provider errors
// are counted and skipped; an unavailable summarization engine aborts the
// remainder of the run, since every following video would hit the same wall.
func (o *Orchestrator) Run(ctx context.Context) Report {
	report := Report{RunID: uuid.New(), StartedAt: o.now()}
	logger := o.logger.With("run_id", report.RunID.String())
	logger.Info("run started")

	channels, err := o.store.ListChannels()
	if err != nil {
		report.Fatal = fmt.Sprintf("listing channels: %s", err)
		report.FinishedAt = o.now()
		return report
	}

	var counts tally
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, ch := range channels {
		ch := ch
		g.Go(func() error {
			return o.processChannel(gctx, logger, ch, &counts)
		})
	}
	if err := g.Wait(); err != nil {
		report.Fatal = err.Error()
		logger.Error("run aborted", "error", err)
	}

	report.Delivered = counts.delivered
	report.SkippedNoTranscript = counts.skippedNoTranscript
	report.Failed = counts.failed
	report.ChannelFailures = counts.channelFailures
	report.FinishedAt = o.now()
	logger.Info("run finished", "outcome", report.String())
	return report
}

func (o *Orchestrator) processChannel(ctx context.Context, logger *slog.Logger, ch storage.Channel, counts *tally) error {
	logger = logger.With("channel_id", ch.ID, "channel", ch.Name)

	videos, err := o.discovery.LatestUploads(ctx, ch.UploadsPlaylistID)
	if err != nil {
		// A channel the provider cannot serve right now is retried on the
		// next run; the rest of the run proceeds.
		logger.Warn("listing uploads failed", "error", err)
		counts.channelError(ChannelFailure{ChannelID: ch.ID, ChannelName: ch.Name, Err: err.Error()})
		return nil
	}

	cutoff, haveCutoff, err := o.store.LatestPublishedAt(ch.ID)
	if err != nil {
		return fmt.Errorf("reading publish cutoff for %s: %w", ch.ID, err)
	}

	for _, v := range videos {
		// Skip uploads strictly older than the newest recorded one. Videos at
		// or past the cutoff still go through the claim, which dedups them
		// and applies the retry rules.
		if haveCutoff && v.PublishedAt.Before(cutoff) {
			continue
		}
		out, err := o.processVideo(ctx, logger, v, false)
		if errors.Is(err, engine.ErrUnavailable) {
			counts.add(outcomeFailed)
			return err
		}
		counts.add(out)
	}
	return nil
}

// processVideo walks one video through the ledger state machine. The
// returned error is non-nil only when it should abort the whole run.
func (o *Orchestrator) processVideo(ctx context.Context, logger *slog.Logger, v youtube.Video, allowPermanentRetry bool) (outcome, error) {
	logger = logger.With("video_id", v.ID, "title", v.Title)

	claimed, err := o.store.ClaimVideo(storage.VideoRecord{
		VideoID:         v.ID,
		ChannelID:       v.ChannelID,
		Title:           v.Title,
		DurationSeconds: v.DurationSeconds,
		PublishedAt:     v.PublishedAt,
		DiscoveredAt:    o.now(),
	}, allowPermanentRetry)
	if err != nil {
		logger.Error("claiming video failed", "error", err)
		return outcomeFailed, nil
	}
	if !claimed {
		logger.Debug("video already claimed, skipping")
		return outcomeDuplicate, nil
	}

	rec, err := o.store.GetVideo(v.ID)
	if err != nil {
		logger.Error("reading claimed video failed", "error", err)
		return outcomeFailed, nil
	}

	summary := rec.Summary
	if summary == "" {
		summary, err = o.summarize(ctx, logger, v)
		if err != nil {
			switch {
			case errors.Is(err, transcript.ErrNoTranscript):
				o.markFailed(logger, v.ID, "no transcript available", false)
				o.deliverer.NotifyAdmin(ctx, fmt.Sprintf("No transcript for %q (%s); it will not be retried.", v.Title, v.ID))
				return outcomeNoTranscript, nil
			case errors.Is(err, engine.ErrUnavailable):
				o.markFailed(logger, v.ID, err.Error(), true)
				o.deliverer.NotifyAdmin(ctx, fmt.Sprintf("Summarization engine unavailable while processing %q (%s): %s. Aborting this run; it will be retried next run.", v.Title, v.ID, err))
				return outcomeFailed, err
			default:
				o.markFailed(logger, v.ID, err.Error(), true)
				o.deliverer.NotifyAdmin(ctx, fmt.Sprintf("Summarizing %q (%s) failed: %s. It will be retried next run.", v.Title, v.ID, err))
				return outcomeFailed, nil
			}
		}
	}

	if err := o.deliverer.Deliver(ctx, summary); err != nil {
		// The summary is persisted; the next attempt re-delivers without
		// another engine call.
		o.markFailed(logger, v.ID, fmt.Sprintf("delivery: %s", err), true)
		o.deliverer.NotifyAdmin(ctx, fmt.Sprintf("Delivering the summary of %q (%s) failed: %s. The summary is cached and will be re-sent next run.", v.Title, v.ID, err))
		return outcomeFailed, nil
	}
	if err := o.store.MarkDelivered(v.ID); err != nil {
		logger.Error("marking delivered failed", "error", err)
		return outcomeFailed, nil
	}
	logger.Info("video delivered")
	return outcomeDelivered, nil
}

// summarize fetches the transcript, builds the prompt, and invokes the
// engine, retrying a single time on bad output. The returned summary is
// already cleaned, escaped, and persisted.
func (o *Orchestrator) summarize(ctx context.Context, logger *slog.Logger, v youtube.Video) (string, error) {
	text, err := o.transcripts.Fetch(ctx, v.ID)
	if err != nil {
		return "", err
	}
	if err := o.store.MarkTranscriptFetched(v.ID); err != nil {
		return "", err
	}

	prompt, strategy, err := o.router.BuildPrompt(summarize.VideoMeta{
		ID:              v.ID,
		Title:           v.Title,
		ChannelName:     v.ChannelName,
		DurationSeconds: v.DurationSeconds,
		PublishedAt:     v.PublishedAt,
	}, text, o.now())
	if err != nil {
		return "", err
	}
	logger.Info("summarizing", "strategy", strategy, "duration_s", v.DurationSeconds)

	raw, err := o.engine.Summarize(ctx, prompt)
	if errors.Is(err, engine.ErrBadOutput) {
		logger.Warn("engine output unusable, retrying once", "error", err)
		raw, err = o.engine.Summarize(ctx, prompt)
	}
	if err != nil {
		return "", err
	}

	summary := delivery.EscapeAmpersands(delivery.CleanSummary(raw))
	if err := o.store.MarkSummarized(v.ID, summary, string(strategy)); err != nil {
		return "", err
	}
	return summary, nil
}

func (o *Orchestrator) markFailed(logger *slog.Logger, videoID, reason string, retryable bool) {
	logger.Warn("video failed", "reason", reason, "retryable", retryable)
	if err := o.store.MarkFailed(videoID, reason, retryable); err != nil {
		logger.Error("recording failure failed", "error", err)
	}
}

// SummarizeURL runs the pipeline for a single video on demand, outside the
// scheduled flow. Videos whose earlier failure was permanent are retried.
func (o *Orchestrator) SummarizeURL(ctx context.Context, rawURL string) error {
	v, err := o.discovery.VideoByURL(ctx, rawURL)
	if err != nil {
		return err
	}

	out, err := o.processVideo(ctx, o.logger.With("run", "ad-hoc"), v, true)
	if err != nil {
		return err
	}
	switch out {
	case outcomeDelivered:
		return nil
	case outcomeDuplicate:
		return fmt.Errorf("%w: %s", ErrAlreadyProcessed, v.ID)
	case outcomeNoTranscript:
		return fmt.Errorf("no transcript available for %s", v.ID)
	default:
		rec, recErr := o.store.GetVideo(v.ID)
		if recErr == nil && rec.LastError != "" {
			return errors.New(rec.LastError)
		}
		return fmt.Errorf("summarizing %s failed", v.ID)
	}
}
