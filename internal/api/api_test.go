package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

type fakeSummarizer struct{ err error }

func (f *fakeSummarizer) SummarizeURL(context.Context, string) error { return f.err }

type fakeControl struct {
	paused    bool
	hour, min int
	runErr    error
	report    pipeline.Report
}

func (f *fakeControl) RunNow(context.Context) (pipeline.Report, error) { return f.report, f.runErr }
func (f *fakeControl) Pause() error                                    { f.paused = true; return nil }
func (f *fakeControl) Resume() error                                   { f.paused = false; return nil }
func (f *fakeControl) SetTime(hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return scheduler.ErrRunInProgress // any error will do for the handler
	}
	f.hour, f.min = hour, minute
	return nil
}
func (f *fakeControl) Status() (storage.ScheduleState, time.Time, error) {
	return storage.ScheduleState{TriggerHour: f.hour, TriggerMinute: f.min, Paused: f.paused},
		time.Date(2026, 8, 31, f.hour, f.min, 0, 0, time.UTC), nil
}

func newTestServer(t *testing.T, token string) (*httptest.Server, *fakeResolver, *fakeSummarizer, *fakeControl) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	resolver := &fakeResolver{channels: map[string]youtube.Channel{}}
	summarizer := &fakeSummarizer{}
	control := &fakeControl{hour: 9}
	srv := httptest.NewServer(NewHandler(Deps{
		Store:      store,
		Resolver:   resolver,
		Summarizer: summarizer,
		Control:    control,
		Token:      token,
	}))
	t.Cleanup(srv.Close)
	return srv, resolver, summarizer, control
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealth(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "")
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/health", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}

func TestBearerAuth(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "secret")

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/health", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("with token status = %d, want 200", resp2.StatusCode)
	}
}

func TestChannelLifecycle(t *testing.T) {
	srv, resolver, _, _ := newTestServer(t, "")
	resolver.channels["https://www.youtube.com/@somebody"] = youtube.Channel{
		ID: "UC123", Name: "Somebody", UploadsPlaylistID: "UU123",
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/channels", `{"url":"https://www.youtube.com/@somebody"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %v", resp.StatusCode, body)
	}
	if body["id"] != "UC123" {
		t.Errorf("created channel = %v", body)
	}

	listResp, err := http.Get(srv.URL + "/channels")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer listResp.Body.Close()
	var channels []map[string]any
	json.NewDecoder(listResp.Body).Decode(&channels)
	if len(channels) != 1 || channels[0]["name"] != "Somebody" {
		t.Errorf("channels = %v", channels)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/channels/UC123", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/channels/UC123", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestAddChannelNotFound(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "")
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/channels", `{"url":"https://www.youtube.com/@missing"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAddChannelBadRequest(t *testing.T) {
	srv, _, _, _ := newTestServer(t, "")
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/channels", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRunEndpoint(t *testing.T) {
	srv, _, _, control := newTestServer(t, "")
	control.report = pipeline.Report{
		Delivered: 3,
		Failed:    1,
		ChannelFailures: []pipeline.ChannelFailure{
			{ChannelID: "UC1", ChannelName: "One", Err: "metadata provider unavailable"},
		},
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/run", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["delivered"].(float64) != 3 || body["failed"].(float64) != 1 {
		t.Errorf("run body = %v", body)
	}
	if body["channel_errors"].(float64) != 1 {
		t.Errorf("channel_errors = %v, want 1", body["channel_errors"])
	}
	failures, ok := body["channel_failures"].([]any)
	if !ok || len(failures) != 1 {
		t.Fatalf("channel_failures = %v, want one entry", body["channel_failures"])
	}
	cf := failures[0].(map[string]any)
	if cf["channel_id"] != "UC1" || cf["error"] != "metadata provider unavailable" {
		t.Errorf("channel failure = %v", cf)
	}
}

func TestRunConflict(t *testing.T) {
	srv, _, _, control := newTestServer(t, "")
	control.runErr = scheduler.ErrRunInProgress

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/run", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestSummarizeEndpoint(t *testing.T) {
	srv, _, summarizer, _ := newTestServer(t, "")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/summarize", `{"url":"https://youtu.be/dQw4w9WgXcQ"}`)
	if resp.StatusCode != http.StatusOK || body["status"] != "delivered" {
		t.Errorf("summarize = %d %v", resp.StatusCode, body)
	}

	summarizer.err = pipeline.ErrAlreadyProcessed
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/summarize", `{"url":"https://youtu.be/dQw4w9WgXcQ"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", resp.StatusCode)
	}

	summarizer.err = youtube.ErrVideoNotFound
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/summarize", `{"url":"https://youtu.be/dQw4w9WgXcQ"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing video status = %d, want 404", resp.StatusCode)
	}
}

func TestPauseResumeEndpoints(t *testing.T) {
	srv, _, _, control := newTestServer(t, "")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/pause", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "paused" || !control.paused {
		t.Errorf("pause = %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/resume", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "active" || control.paused {
		t.Errorf("resume = %d %v", resp.StatusCode, body)
	}
}

func TestSetScheduleEndpoint(t *testing.T) {
	srv, _, _, control := newTestServer(t, "")

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/schedule", `{"hour":7,"minute":45}`)
	if resp.StatusCode != http.StatusOK || body["trigger_time"] != "07:45" {
		t.Errorf("schedule = %d %v", resp.StatusCode, body)
	}
	if control.hour != 7 || control.min != 45 {
		t.Errorf("control time = %02d:%02d", control.hour, control.min)
	}

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/schedule", `{"hour":24,"minute":0}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad time status = %d, want 400", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _, _, control := newTestServer(t, "")
	control.hour, control.min = 9, 30

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["trigger_time"] != "09:30" || body["paused"] != false {
		t.Errorf("status body = %v", body)
	}
	if body["channels"].(float64) != 0 {
		t.Errorf("channels = %v", body["channels"])
	}
}
