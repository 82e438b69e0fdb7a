package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/ytdigest/internal/pipeline"
	"github.com/kalambet/ytdigest/internal/scheduler"
	"github.com/kalambet/ytdigest/internal/storage"
	"github.com/kalambet/ytdigest/internal/youtube"
)

type fakeResolver struct {
	channels map[string]youtube.Channel
}

func (f *fakeResolver) ResolveChannel(_ context.Context, rawURL string) (youtube.Channel, error) {
	ch, ok := f.channels[rawURL]
	if !ok {
		return youtube.Channel{}, youtube.ErrChannelNotFound
	}
	return ch, nil
}

type fakeSummarizer struct {
	err  error
	urls []string
}

func (f *fakeSummarizer) SummarizeURL(_ context.Context, rawURL string) error {
	f.urls = append(f.urls, rawURL)
	return f.err
}

type fakeControl struct {
	paused     bool
	hour, min  int
	runErr     error
	lastReport pipeline.Report
}

func (f *fakeControl) RunNow(context.Context) (pipeline.Report, error) {
	return f.lastReport, f.runErr
}
func (f *fakeControl) Pause() error  { f.paused = true; return nil }
func (f *fakeControl) Resume() error { f.paused = false; return nil }
func (f *fakeControl) SetTime(hour, minute int) error {
	f.hour, f.min = hour, minute
	return nil
}
func (f *fakeControl) Status() (storage.ScheduleState, time.Time, error) {
	return storage.ScheduleState{TriggerHour: f.hour, TriggerMinute: f.min, Paused: f.paused},
		time.Date(2026, 8, 31, f.hour, f.min, 0, 0, time.UTC), nil
}

func newBot(t *testing.T) (*Bot, *fakeResolver, *fakeSummarizer, *fakeControl, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	resolver := &fakeResolver{channels: map[string]youtube.Channel{}}
	summarizer := &fakeSummarizer{}
	control := &fakeControl{hour: 9}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := New(nil, store, resolver, summarizer, control, 42, logger)
	return b, resolver, summarizer, control, store
}

func TestAddListRemoveChannel(t *testing.T) {
	b, resolver, _, _, _ := newBot(t)
	resolver.channels["https://www.youtube.com/@somebody"] = youtube.Channel{
		ID: "UC123", Name: "Somebody", UploadsPlaylistID: "UU123",
	}

	reply := b.handleCommand(context.Background(), "add_channel", "https://www.youtube.com/@somebody")
	if !strings.Contains(reply, "Somebody") {
		t.Errorf("add reply = %q, want channel name", reply)
	}

	reply = b.handleCommand(context.Background(), "list_channels", "")
	if !strings.Contains(reply, "UC123") {
		t.Errorf("list reply = %q, want channel id", reply)
	}

	reply = b.handleCommand(context.Background(), "remove_channel", "UC123")
	if !strings.Contains(reply, "removed") {
		t.Errorf("remove reply = %q", reply)
	}

	reply = b.handleCommand(context.Background(), "list_channels", "")
	if !strings.Contains(reply, "No channels") {
		t.Errorf("list after remove = %q", reply)
	}
}

func TestAddChannelUnresolvable(t *testing.T) {
	b, _, _, _, _ := newBot(t)
	reply := b.handleCommand(context.Background(), "add_channel", "https://www.youtube.com/@missing")
	if !strings.Contains(reply, "Could not resolve") {
		t.Errorf("reply = %q", reply)
	}
}

func TestAddChannelUsage(t *testing.T) {
	b, _, _, _, _ := newBot(t)
	reply := b.handleCommand(context.Background(), "add_channel", "")
	if !strings.HasPrefix(reply, "Usage:") {
		t.Errorf("reply = %q, want usage hint", reply)
	}
}

func TestRemoveChannelMissing(t *testing.T) {
	b, _, _, _, _ := newBot(t)
	reply := b.handleCommand(context.Background(), "remove_channel", "UCnope")
	if !strings.Contains(reply, "No such channel") {
		t.Errorf("reply = %q", reply)
	}
}

func TestSummarizeCommand(t *testing.T) {
	b, _, summarizer, _, _ := newBot(t)
	url := "https://youtu.be/dQw4w9WgXcQ"

	reply := b.handleCommand(context.Background(), "summarize", url)
	if !strings.Contains(reply, "delivered") {
		t.Errorf("reply = %q", reply)
	}
	if len(summarizer.urls) != 1 || summarizer.urls[0] != url {
		t.Errorf("summarizer got %v", summarizer.urls)
	}

	summarizer.err = pipeline.ErrAlreadyProcessed
	reply = b.handleCommand(context.Background(), "summarize", url)
	if !strings.Contains(reply, "already summarized") {
		t.Errorf("duplicate reply = %q", reply)
	}
}

func TestRunNowCommand(t *testing.T) {
	b, _, _, control, _ := newBot(t)
	control.lastReport = pipeline.Report{
		Delivered: 2,
		ChannelFailures: []pipeline.ChannelFailure{
			{ChannelID: "UC1", ChannelName: "One", Err: "metadata provider unavailable"},
		},
	}

	reply := b.handleCommand(context.Background(), "run_now", "")
	if !strings.Contains(reply, "2 delivered") {
		t.Errorf("reply = %q", reply)
	}
	if !strings.Contains(reply, "One (UC1): metadata provider unavailable") {
		t.Errorf("reply = %q, want the failed channel named", reply)
	}

	control.runErr = scheduler.ErrRunInProgress
	reply = b.handleCommand(context.Background(), "run_now", "")
	if !strings.Contains(reply, "already in progress") {
		t.Errorf("busy reply = %q", reply)
	}
}

func TestPauseResumeCommands(t *testing.T) {
	b, _, _, control, _ := newBot(t)

	b.handleCommand(context.Background(), "pause", "")
	if !control.paused {
		t.Error("pause command should pause the schedule")
	}
	b.handleCommand(context.Background(), "resume", "")
	if control.paused {
		t.Error("resume command should resume the schedule")
	}
}

func TestSetTimeCommand(t *testing.T) {
	b, _, _, control, _ := newBot(t)

	reply := b.handleCommand(context.Background(), "set_time", "07:45")
	if !strings.Contains(reply, "07:45") {
		t.Errorf("reply = %q", reply)
	}
	if control.hour != 7 || control.min != 45 {
		t.Errorf("control time = %02d:%02d", control.hour, control.min)
	}

	for _, bad := range []string{"", "25:00", "12:60", "noon", "9"} {
		if reply := b.handleCommand(context.Background(), "set_time", bad); !strings.Contains(reply, "Usage") {
			t.Errorf("set_time %q reply = %q, want usage hint", bad, reply)
		}
	}
}

func TestStatusCommand(t *testing.T) {
	b, _, _, control, _ := newBot(t)
	control.hour, control.min = 9, 30

	reply := b.handleCommand(context.Background(), "status", "")
	for _, want := range []string{"09:30", "Channels: 0", "delivered"} {
		if !strings.Contains(reply, want) {
			t.Errorf("status reply %q missing %q", reply, want)
		}
	}

	control.paused = true
	if reply := b.handleCommand(context.Background(), "status", ""); !strings.Contains(reply, "paused") {
		t.Errorf("paused status reply = %q", reply)
	}
}

func TestUnknownCommand(t *testing.T) {
	b, _, _, _, _ := newBot(t)
	if reply := b.handleCommand(context.Background(), "dance", ""); !strings.Contains(reply, "Unknown command") {
		t.Errorf("reply = %q", reply)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in        string
		hour, min int
		wantErr   bool
	}{
		{"09:30", 9, 30, false},
		{"0:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"-1:10", 0, 0, true},
		{"12", 0, 0, true},
		{"ab:cd", 0, 0, true},
	}
	for _, tt := range tests {
		hour, minute, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && (hour != tt.hour || minute != tt.min) {
			t.Errorf("ParseClock(%q) = %d:%d, want %d:%d", tt.in, hour, minute, tt.hour, tt.min)
		}
	}
}
