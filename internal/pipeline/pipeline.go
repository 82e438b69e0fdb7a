// Package pipeline orchestrates a digest run: discover new uploads, fetch
// transcripts, summarize, and deliver, with the storage ledger guaranteeing
// each video is processed at most once.
package pipeline

import (
	"context"
	"errors"

	"github.com/kalambet/ytdigest/internal/youtube"
)

// ErrAlreadyProcessed is returned by SummarizeURL when the video has already
// been delivered or is being worked on.
var ErrAlreadyProcessed = errors.New("video already processed")

// Discovery lists a channel's newest uploads and looks up single videos.
type Discovery interface {
	LatestUploads(ctx context.Context, uploadsPlaylistID string) ([]youtube.Video, error)
	VideoByURL(ctx context.Context, rawURL string) (youtube.Video, error)
}

// TranscriptFetcher retrieves a video's transcript text.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// Deliverer sends finished summaries and operator notices.
type Deliverer interface {
	Deliver(ctx context.Context, text string) error
	NotifyAdmin(ctx context.Context, text string)
}
