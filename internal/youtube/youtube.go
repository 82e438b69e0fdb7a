// Package youtube queries the YouTube Data API for channel and video
// metadata. It is the discovery side of the pipeline: resolving channel URLs
// to uploads playlists and listing a channel's most recent uploads.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	yt "google.golang.org/api/youtube/v3"
)

// ErrProviderUnavailable marks transport or quota failures of the metadata
// provider. A run skips the affected channel and continues with the rest.
var ErrProviderUnavailable = errors.New("metadata provider unavailable")

// ErrChannelNotFound is returned when a channel URL resolves to nothing.
var ErrChannelNotFound = errors.New("channel not found")

// ErrVideoNotFound is returned when a video ID resolves to nothing.
var ErrVideoNotFound = errors.New("video not found")

// maxRecentUploads caps how many of a channel's latest uploads a single
// discovery call returns.
const maxRecentUploads = 5

// Video is the discovery view of a single upload.
type Video struct {
	ID              string
	ChannelID       string
	ChannelName     string
	Title           string
	DurationSeconds int
	PublishedAt     time.Time
}

// Channel is the discovery view of a resolved channel.
type Channel struct {
	ID                string
	Name              string
	UploadsPlaylistID string
}

// Client wraps the YouTube Data API service.
type Client struct {
	svc *yt.Service
}

func New(svc *yt.Service) *Client {
	return &Client{svc: svc}
}

// ResolveChannel resolves a channel URL (channel ID, @handle, /user or /c
// form) to its ID, display name, and uploads playlist.
func (c *Client) ResolveChannel(ctx context.Context, rawURL string) (Channel, error) {
	kind, value, ok := ParseChannelURL(rawURL)
	if !ok {
		return Channel{}, fmt.Errorf("unrecognized channel URL: %s", rawURL)
	}

	call := c.svc.Channels.List([]string{"snippet", "contentDetails"}).Context(ctx)
	switch kind {
	case ChannelRefID:
		call = call.Id(value)
	case ChannelRefHandle:
		call = call.ForHandle(value)
	case ChannelRefUsername:
		call = call.ForUsername(value)
	case ChannelRefCustom:
		// Custom URLs have no direct lookup; search for the channel by name.
		id, err := c.searchChannelID(ctx, value)
		if err != nil {
			return Channel{}, err
		}
		call = call.Id(id)
	}

	resp, err := call.Do()
	if err != nil {
		return Channel{}, providerErr("resolving channel", err)
	}
	if len(resp.Items) == 0 {
		return Channel{}, fmt.Errorf("%w: %s", ErrChannelNotFound, rawURL)
	}

	item := resp.Items[0]
	return Channel{
		ID:                item.Id,
		Name:              item.Snippet.Title,
		UploadsPlaylistID: item.ContentDetails.RelatedPlaylists.Uploads,
	}, nil
}

func (c *Client) searchChannelID(ctx context.Context, query string) (string, error) {
	resp, err := c.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("channel").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", providerErr("searching channel", err)
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("%w: %s", ErrChannelNotFound, query)
	}
	return resp.Items[0].Snippet.ChannelId, nil
}

// LatestUploads returns up to five of the playlist's most recent uploads,
// newest first. Live and upcoming broadcasts are skipped. Repeated calls with
// no new uploads return the same leading videos.
func (c *Client) LatestUploads(ctx context.Context, uploadsPlaylistID string) ([]Video, error) {
	items, err := c.svc.PlaylistItems.List([]string{"snippet"}).
		PlaylistId(uploadsPlaylistID).
		MaxResults(maxRecentUploads).
		Context(ctx).
		Do()
	if err != nil {
		return nil, providerErr("listing uploads", err)
	}

	ids := make([]string, 0, len(items.Items))
	for _, item := range items.Items {
		ids = append(ids, item.Snippet.ResourceId.VideoId)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	details, err := c.svc.Videos.List([]string{"snippet", "contentDetails"}).
		Id(ids...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, providerErr("fetching video details", err)
	}

	byID := make(map[string]*yt.Video, len(details.Items))
	for _, item := range details.Items {
		byID[item.Id] = item
	}

	// Preserve playlist order: the uploads playlist lists newest first.
	videos := make([]Video, 0, len(ids))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			continue
		}
		if item.Snippet.LiveBroadcastContent == "live" || item.Snippet.LiveBroadcastContent == "upcoming" {
			continue
		}
		videos = append(videos, videoFromAPI(item))
	}
	return videos, nil
}

// VideoByURL looks up a single video from any supported YouTube video URL.
func (c *Client) VideoByURL(ctx context.Context, rawURL string) (Video, error) {
	id, ok := ParseVideoURL(rawURL)
	if !ok {
		return Video{}, fmt.Errorf("unrecognized video URL: %s", rawURL)
	}

	resp, err := c.svc.Videos.List([]string{"snippet", "contentDetails"}).
		Id(id).
		Context(ctx).
		Do()
	if err != nil {
		return Video{}, providerErr("fetching video", err)
	}
	if len(resp.Items) == 0 {
		return Video{}, fmt.Errorf("%w: %s", ErrVideoNotFound, id)
	}
	return videoFromAPI(resp.Items[0]), nil
}

func videoFromAPI(item *yt.Video) Video {
	publishedAt, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
	return Video{
		ID:              item.Id,
		ChannelID:       item.Snippet.ChannelId,
		ChannelName:     item.Snippet.ChannelTitle,
		Title:           item.Snippet.Title,
		DurationSeconds: ParseISODuration(item.ContentDetails.Duration),
		PublishedAt:     publishedAt,
	}
}

// providerErr classifies API failures. Quota exhaustion, rate limiting, and
// server-side or transport errors all become ErrProviderUnavailable so the
// orchestrator moves on to the next channel.
func providerErr(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusForbidden, http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w: %s", op, ErrProviderUnavailable, reason(apiErr))
		default:
			if apiErr.Code >= 500 {
				return fmt.Errorf("%s: %w: status %d", op, ErrProviderUnavailable, apiErr.Code)
			}
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrProviderUnavailable, err)
}

func reason(apiErr *googleapi.Error) string {
	if len(apiErr.Errors) > 0 && apiErr.Errors[0].Reason != "" {
		return apiErr.Errors[0].Reason
	}
	return strings.TrimSpace(apiErr.Message)
}
