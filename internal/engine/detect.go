package engine

import (
	"fmt"
	"os/exec"
	"time"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Backend      string // "cli", "openai", or "" for auto
	CLIBinary    string
	CLIModel     string
	CLITimeout   time.Duration
	OpenAIAPIKey string
	OpenAIModel  string
}

// Detect picks a summarization backend. With Backend unset it prefers the
// local CLI when the binary is on PATH and falls back to the OpenAI API when
// a key is configured.
func Detect(cfg DetectConfig) (Engine, error) {
	switch cfg.Backend {
	case "cli":
		return NewCLI(cfg.CLIBinary, cfg.CLIModel, cfg.CLITimeout), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai backend selected but no API key configured")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	case "":
		if _, err := exec.LookPath(cfg.CLIBinary); err == nil {
			return NewCLI(cfg.CLIBinary, cfg.CLIModel, cfg.CLITimeout), nil
		}
		if cfg.OpenAIAPIKey != "" {
			return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
		}
		return nil, fmt.Errorf("no summarization backend available: %s not on PATH and no OpenAI API key configured", cfg.CLIBinary)
	default:
		return nil, fmt.Errorf("unknown engine backend %q", cfg.Backend)
	}
}
