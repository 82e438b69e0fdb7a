// Package transcript retrieves video transcripts from YouTube's timedtext
// endpoint. A video without any caption track is a permanent condition; the
// pipeline marks it failed and never retries it on scheduled runs.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoTranscript means the video has no caption track in any candidate
// language. Permanent, per-video.
var ErrNoTranscript = errors.New("no transcript available")

// ErrProviderError means the transcript provider failed transiently; the
// video is retried on the next run.
var ErrProviderError = errors.New("transcript provider error")

const defaultBaseURL = "https://www.youtube.com/api/timedtext"

// Preferred caption languages, tried in order before falling back to the
// video's default track.
var preferredLanguages = []string{"ko", "en", "ja"}

// Client fetches transcripts over the timedtext API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	languages  []string
}

func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		languages:  preferredLanguages,
	}
}

// NewWithBaseURL is used by tests to point the client at a fake endpoint.
func NewWithBaseURL(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL, languages: preferredLanguages}
}

// timedtextResponse mirrors the JSON (fmt=json3) returned by the endpoint.
type timedtextResponse struct {
	Events []timedtextEvent `json:"events"`
}

type timedtextEvent struct {
	Segs []timedtextSegment `json:"segs,omitempty"`
}

type timedtextSegment struct {
	UTF8 string `json:"utf8"`
}

// Fetch returns the full transcript text for a video, joining caption
// segments with spaces. Candidate languages are tried in preference order,
// then the default track.
func (c *Client) Fetch(ctx context.Context, videoID string) (string, error) {
	if videoID == "" {
		return "", fmt.Errorf("video ID is required")
	}

	langs := append(append([]string{}, c.languages...), "")
	for _, lang := range langs {
		text, err := c.fetchTrack(ctx, videoID, lang)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("%w: video %s", ErrNoTranscript, videoID)
}

// fetchTrack fetches one caption track. A missing track ("" body or 404) is
// reported as empty text, not an error, so the caller can try the next
// language.
func (c *Client) fetchTrack(ctx context.Context, videoID, lang string) (string, error) {
	params := url.Values{}
	params.Set("v", videoID)
	params.Set("fmt", "json3")
	if lang != "" {
		params.Set("lang", lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderError, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Fall through to parsing.
	case http.StatusNotFound:
		return "", nil
	case http.StatusForbidden:
		// Captions disabled or region locked; no track will ever appear.
		return "", nil
	case http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: rate limited", ErrProviderError)
	default:
		return "", fmt.Errorf("%w: status %d", ErrProviderError, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrProviderError, err)
	}
	// The endpoint answers 200 with an empty body when the track is missing.
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", nil
	}

	var tt timedtextResponse
	if err := json.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("%w: parsing timedtext: %v", ErrProviderError, err)
	}

	var parts []string
	for _, event := range tt.Events {
		if len(event.Segs) == 0 {
			continue
		}
		var sb strings.Builder
		for _, seg := range event.Segs {
			sb.WriteString(seg.UTF8)
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
