package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultCLITimeout = 120 * time.Second

// CLI invokes a local code-assistant CLI in print mode, feeding the prompt on
// stdin and reading the generated text from stdout.
type CLI struct {
	// Binary is the executable name, looked up on PATH.
	Binary string
	// Model is passed through via --model.
	Model string
	// Timeout bounds a single invocation. Expiry counts as the engine being
	// unavailable.
	Timeout time.Duration
}

func NewCLI(binary, model string, timeout time.Duration) *CLI {
	if timeout <= 0 {
		timeout = defaultCLITimeout
	}
	return &CLI{Binary: binary, Model: model, Timeout: timeout}
}

func (c *CLI) Name() string {
	return fmt.Sprintf("cli (%s, model %s)", c.Binary, c.Model)
}

func (c *CLI) Summarize(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Binary, "-p", "--model", c.Model)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w: timed out after %s", ErrUnavailable, c.Timeout)
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			// Binary not found or not executable.
			return "", fmt.Errorf("%w: launching %s: %v", ErrUnavailable, c.Binary, err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: exit %d: %s", ErrBadOutput, exitErr.ExitCode(), firstLine(stderr.String()))
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return "", fmt.Errorf("%w: empty output", ErrBadOutput)
	}
	return out, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
