package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChannelFailure records a channel the provider could not serve during a run.
type ChannelFailure struct {
	ChannelID   string
	ChannelName string
	Err         string
}

// Report summarizes one pipeline run.
type Report struct {
	RunID               uuid.UUID
	StartedAt           time.Time
	FinishedAt          time.Time
	Delivered           int
	SkippedNoTranscript int
	Failed              int
	ChannelFailures     []ChannelFailure
	Fatal               string
}

// ChannelErrors is the number of channels skipped over provider errors.
func (r Report) ChannelErrors() int {
	return len(r.ChannelFailures)
}

func (r Report) String() string {
	s := fmt.Sprintf("%d delivered, %d skipped (no transcript), %d failed, %d channel errors",
		r.Delivered, r.SkippedNoTranscript, r.Failed, len(r.ChannelFailures))
	for _, cf := range r.ChannelFailures {
		s += fmt.Sprintf("; %s (%s): %s", cf.ChannelName, cf.ChannelID, cf.Err)
	}
	if r.Fatal != "" {
		s += ", aborted: " + r.Fatal
	}
	return s
}

// tally accumulates counters across channel goroutines.
type tally struct {
	mu                  sync.Mutex
	delivered           int
	skippedNoTranscript int
	failed              int
	channelFailures     []ChannelFailure
}

func (t *tally) add(o outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch o {
	case outcomeDelivered:
		t.delivered++
	case outcomeNoTranscript:
		t.skippedNoTranscript++
	case outcomeFailed:
		t.failed++
	}
}

func (t *tally) channelError(f ChannelFailure) {
	t.mu.Lock()
	t.channelFailures = append(t.channelFailures, f)
	t.mu.Unlock()
}
