// Package summarize selects a summarization strategy from video duration and
// renders the matching prompt template.
package summarize

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"
)

//go:embed prompts/*.tmpl
var promptsFS embed.FS

// Strategy is one of the two fixed summarization templates.
type Strategy string

const (
	StrategyStructured Strategy = "structured"
	StrategyDetailed   Strategy = "detailed"
)

// detailedThresholdSeconds is the routing boundary: videos of exactly 30
// minutes and longer get the detailed treatment.
const detailedThresholdSeconds = 30 * 60

// ChooseStrategy routes by duration. The boundary is inclusive: 1800 seconds
// is detailed, 1799 is structured.
func ChooseStrategy(durationSeconds int) Strategy {
	if durationSeconds >= detailedThresholdSeconds {
		return StrategyDetailed
	}
	return StrategyStructured
}

// MinSections scales the prompt's minimum-section hint with video length.
func MinSections(durationSeconds int) int {
	switch {
	case durationSeconds < 10*60:
		return 3
	case durationSeconds < 30*60:
		return 6
	case durationSeconds < 60*60:
		return 8
	default:
		return 10
	}
}

// PromptInput carries everything the templates substitute.
type PromptInput struct {
	Title        string
	VideoID      string
	ChannelName  string
	Runtime      string
	UploadedAt   string
	SummarizedAt string
	MinSections  int
	Transcript   string
}

// Router renders prompts for the engine.
type Router struct {
	templates map[Strategy]*template.Template
}

func NewRouter() (*Router, error) {
	templates := make(map[Strategy]*template.Template, 2)
	for _, strategy := range []Strategy{StrategyStructured, StrategyDetailed} {
		name := fmt.Sprintf("prompts/%s.tmpl", strategy)
		tmpl, err := template.ParseFS(promptsFS, name)
		if err != nil {
			return nil, fmt.Errorf("parsing prompt template %s: %w", name, err)
		}
		templates[strategy] = tmpl
	}
	return &Router{templates: templates}, nil
}

// VideoMeta is the subset of video metadata the prompt carries.
type VideoMeta struct {
	ID              string
	Title           string
	ChannelName     string
	DurationSeconds int
	PublishedAt     time.Time
}

// BuildPrompt picks the strategy for the video's duration and renders the
// prompt with the transcript and metadata substituted.
func (r *Router) BuildPrompt(video VideoMeta, transcript string, now time.Time) (string, Strategy, error) {
	strategy := ChooseStrategy(video.DurationSeconds)

	uploadedAt := "unknown"
	if !video.PublishedAt.IsZero() {
		uploadedAt = video.PublishedAt.Format("2006-01-02")
	}
	channelName := video.ChannelName
	if channelName == "" {
		channelName = "unknown"
	}

	in := PromptInput{
		Title:        video.Title,
		VideoID:      video.ID,
		ChannelName:  channelName,
		Runtime:      FormatDuration(video.DurationSeconds),
		UploadedAt:   uploadedAt,
		SummarizedAt: now.Format("2006-01-02 15:04"),
		MinSections:  MinSections(video.DurationSeconds),
		Transcript:   transcript,
	}

	var sb strings.Builder
	if err := r.templates[strategy].Execute(&sb, in); err != nil {
		return "", strategy, fmt.Errorf("rendering %s prompt: %w", strategy, err)
	}
	return sb.String(), strategy, nil
}

// FormatDuration renders seconds as a human readable runtime.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "unknown"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
