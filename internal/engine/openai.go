package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI invokes an OpenAI-compatible chat completion API as the
// summarization backend.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAI{client: openai.NewClient(apiKey), model: model}
}

func (o *OpenAI) Name() string {
	return fmt.Sprintf("openai (model %s)", o.model)
}

func (o *OpenAI) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.HTTPStatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				// Bad or revoked credentials fail every call the same way;
				// retrying per request only burns time.
				return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
			case http.StatusTooManyRequests:
				return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			if apiErr.HTTPStatusCode < 500 {
				return "", fmt.Errorf("%w: %v", ErrBadOutput, err)
			}
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrBadOutput)
	}

	out := strings.TrimSpace(resp.Choices[len(resp.Choices)-1].Message.Content)
	if out == "" {
		return "", fmt.Errorf("%w: empty output", ErrBadOutput)
	}
	return out, nil
}
