package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// VideoStatus tracks how far a video has advanced through the pipeline.
type VideoStatus string

const (
	StatusDiscovered        VideoStatus = "discovered"
	StatusTranscriptFetched VideoStatus = "transcript_fetched"
	StatusSummarized        VideoStatus = "summarized"
	StatusDelivered         VideoStatus = "delivered"
	StatusFailed            VideoStatus = "failed"
)

// Channel is a monitored YouTube channel.
type Channel struct {
	ID                string
	Name              string
	UploadsPlaylistID string
	CreatedAt         time.Time
}

// VideoRecord is the per-video ledger entry. The video ID is unique across
// the table; it is the dedup key that guarantees at-most-once delivery.
// Records are never deleted.
type VideoRecord struct {
	VideoID         string
	ChannelID       string
	Title           string
	DurationSeconds int
	PublishedAt     time.Time
	DiscoveredAt    time.Time
	Status          VideoStatus
	LastError       string
	Retryable       bool
	Summary         string
	Strategy        string
	DeliveredAt     time.Time
}

// ScheduleState is the singleton scheduler state (row id = 1).
type ScheduleState struct {
	TriggerHour    int
	TriggerMinute  int
	Paused         bool
	LastRunAt      time.Time
	LastRunOutcome string
	UpdatedAt      time.Time
}
