// Package api is the local HTTP control surface, mirroring the Telegram
// commands for scripting and the bundled CLI client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/ytdigest/internal/pipeline"
	"github.com/kalambet/ytdigest/internal/scheduler"
	"github.com/kalambet/ytdigest/internal/storage"
	"github.com/kalambet/ytdigest/internal/youtube"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ChannelResolver turns a channel URL into channel metadata.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, rawURL string) (youtube.Channel, error)
}

// Summarizer handles ad-hoc single-video requests.
type Summarizer interface {
	SummarizeURL(ctx context.Context, rawURL string) error
}

// Control is the scheduler surface the API drives.
type Control interface {
	RunNow(ctx context.Context) (pipeline.Report, error)
	Pause() error
	Resume() error
	SetTime(hour, minute int) error
	Status() (storage.ScheduleState, time.Time, error)
}

type Deps struct {
	Store      *storage.Store
	Resolver   ChannelResolver
	Summarizer Summarizer
	Control    Control
	Token      string // empty disables auth, for loopback-only setups
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	if deps.Token != "" {
		r.Use(BearerAuth(deps.Token))
	}

	r.Get("/health", handleHealth)
	r.Get("/status", handleStatus(deps))
	r.Get("/channels", handleListChannels(deps))
	r.Post("/channels", handleAddChannel(deps))
	r.Delete("/channels/{id}", handleDeleteChannel(deps))
	r.Post("/run", handleRun(deps))
	r.Post("/summarize", handleSummarize(deps))
	r.Post("/pause", handlePause(deps))
	r.Post("/resume", handleResume(deps))
	r.Put("/schedule", handleSetSchedule(deps))

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	TriggerTime    string         `json:"trigger_time"`
	Paused         bool           `json:"paused"`
	NextRunAt      string         `json:"next_run_at,omitempty"`
	LastRunAt      string         `json:"last_run_at,omitempty"`
	LastRunOutcome string         `json:"last_run_outcome,omitempty"`
	Channels       int            `json:"channels"`
	Videos         map[string]int `json:"videos"`
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, next, err := deps.Control.Status()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read schedule: %v", err)
			return
		}
		counts, err := deps.Store.CountByStatus()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read ledger: %v", err)
			return
		}
		channels, err := deps.Store.ListChannels()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list channels: %v", err)
			return
		}

		resp := statusResponse{
			TriggerTime: fmt.Sprintf("%02d:%02d", state.TriggerHour, state.TriggerMinute),
			Paused:      state.Paused,
			Channels:    len(channels),
			Videos:      make(map[string]int, len(counts)),
		}
		if !state.Paused {
			resp.NextRunAt = next.Format(time.RFC3339)
		}
		if !state.LastRunAt.IsZero() {
			resp.LastRunAt = state.LastRunAt.Format(time.RFC3339)
			resp.LastRunOutcome = state.LastRunOutcome
		}
		for status, n := range counts {
			resp.Videos[string(status)] = n
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type channelResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	UploadsPlaylistID string `json:"uploads_playlist_id"`
	CreatedAt         string `json:"created_at"`
}

func handleListChannels(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channels, err := deps.Store.ListChannels()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list channels: %v", err)
			return
		}
		resp := make([]channelResponse, 0, len(channels))
		for _, ch := range channels {
			resp = append(resp, channelResponse{
				ID:                ch.ID,
				Name:              ch.Name,
				UploadsPlaylistID: ch.UploadsPlaylistID,
				CreatedAt:         ch.CreatedAt.Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleAddChannel(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}

		ch, err := deps.Resolver.ResolveChannel(r.Context(), req.URL)
		if err != nil {
			if errors.Is(err, youtube.ErrChannelNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "channel not found: %s", req.URL)
				return
			}
			httpError(w, http.StatusBadGateway, "api_error", "failed to resolve channel: %v", err)
			return
		}

		rec := storage.Channel{
			ID:                ch.ID,
			Name:              ch.Name,
			UploadsPlaylistID: ch.UploadsPlaylistID,
			CreatedAt:         time.Now().UTC(),
		}
		if err := deps.Store.CreateChannel(rec); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save channel: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, channelResponse{
			ID:                rec.ID,
			Name:              rec.Name,
			UploadsPlaylistID: rec.UploadsPlaylistID,
			CreatedAt:         rec.CreatedAt.Format(time.RFC3339),
		})
	}
}

func handleDeleteChannel(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		err := deps.Store.DeleteChannel(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "channel not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete channel: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

type channelFailureResponse struct {
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	Error       string `json:"error"`
}

type runResponse struct {
	Delivered           int                      `json:"delivered"`
	SkippedNoTranscript int                      `json:"skipped_no_transcript"`
	Failed              int                      `json:"failed"`
	ChannelErrors       int                      `json:"channel_errors"`
	ChannelFailures     []channelFailureResponse `json:"channel_failures,omitempty"`
	Fatal               string                   `json:"fatal,omitempty"`
}

func handleRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := deps.Control.RunNow(r.Context())
		if errors.Is(err, scheduler.ErrRunInProgress) {
			httpError(w, http.StatusConflict, "conflict", "a run is already in progress")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "run failed: %v", err)
			return
		}
		resp := runResponse{
			Delivered:           report.Delivered,
			SkippedNoTranscript: report.SkippedNoTranscript,
			Failed:              report.Failed,
			ChannelErrors:       report.ChannelErrors(),
			Fatal:               report.Fatal,
		}
		for _, cf := range report.ChannelFailures {
			resp.ChannelFailures = append(resp.ChannelFailures, channelFailureResponse{
				ChannelID:   cf.ChannelID,
				ChannelName: cf.ChannelName,
				Error:       cf.Err,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSummarize(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}

		err := deps.Summarizer.SummarizeURL(r.Context(), req.URL)
		if errors.Is(err, pipeline.ErrAlreadyProcessed) {
			httpError(w, http.StatusConflict, "conflict", "video already summarized")
			return
		}
		if errors.Is(err, youtube.ErrVideoNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "video not found: %s", req.URL)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "summarizing failed: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
	}
}

func handlePause(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Control.Pause(); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to pause: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
	}
}

func handleResume(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Control.Resume(); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to resume: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
	}
}

func handleSetSchedule(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			Hour   int `json:"hour"`
			Minute int `json:"minute"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := deps.Control.SetTime(req.Hour, req.Minute); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid trigger time: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"trigger_time": fmt.Sprintf("%02d:%02d", req.Hour, req.Minute),
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
