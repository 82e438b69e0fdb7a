// Package engine abstracts the external summarization engine. Consumers hand
// it a fully-built prompt and get generated text back; everything about the
// engine itself (process launch, API transport) stays behind the interface.
package engine

import (
	"context"
	"errors"
)

// ErrUnavailable means the engine could not be reached or launched at all.
// Fatal for the current run, never fatal for the process.
var ErrUnavailable = errors.New("summarization engine unavailable")

// ErrBadOutput means the engine ran but produced an error or unusable
// output. Retried once per video within a run.
var ErrBadOutput = errors.New("summarization engine returned bad output")

// Engine is a blocking, single-shot summarization call.
type Engine interface {
	// Summarize sends the prompt and returns the generated text.
	Summarize(ctx context.Context, prompt string) (string, error)

	// Name identifies the backend for logs and status output.
	Name() string
}
