// Package config loads settings from a .env file and YTDIGEST_* environment
// variables, with environment taking precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Telegram TelegramConfig
	YouTube  YouTubeConfig
	Engine   EngineConfig
	Pipeline PipelineConfig
	Server   ServerConfig
	Storage  StorageConfig
	Log      LogConfig
}

type TelegramConfig struct {
	BotToken string
	// TargetChatID receives the summaries.
	TargetChatID int64
	// AdminChatID receives error notices and accepts commands. Defaults to
	// the target chat.
	AdminChatID int64
}

type YouTubeConfig struct {
	APIKey string
}

type EngineConfig struct {
	// Backend selects "cli" or "openai"; empty auto-detects.
	Backend      string
	CLIBinary    string
	CLIModel     string
	CLITimeout   time.Duration
	OpenAIAPIKey string
	OpenAIModel  string
}

type PipelineConfig struct {
	// Concurrency bounds how many channels are processed in parallel.
	Concurrency int
}

type ServerConfig struct {
	Port int
	// Token guards the local API; empty disables auth.
	Token string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Engine: EngineConfig{
			CLIBinary:  "claude",
			CLIModel:   "sonnet",
			CLITimeout: 120 * time.Second,
		},
		Pipeline: PipelineConfig{Concurrency: 1},
		Server:   ServerConfig{Port: 4800},
		Storage:  StorageConfig{DataDir: defaultDataDir()},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads the optional .env file in the working directory, then the
// environment, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadFromEnv(os.Getenv)
}

func loadFromEnv(getenv func(string) string) (Config, error) {
	cfg := defaults()

	setStr(getenv, "YTDIGEST_TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)
	if err := setInt64(getenv, "YTDIGEST_TELEGRAM_CHAT_ID", &cfg.Telegram.TargetChatID); err != nil {
		return Config{}, err
	}
	if err := setInt64(getenv, "YTDIGEST_TELEGRAM_ADMIN_CHAT_ID", &cfg.Telegram.AdminChatID); err != nil {
		return Config{}, err
	}
	setStr(getenv, "YTDIGEST_YOUTUBE_API_KEY", &cfg.YouTube.APIKey)
	setStr(getenv, "YTDIGEST_ENGINE_BACKEND", &cfg.Engine.Backend)
	setStr(getenv, "YTDIGEST_ENGINE_CLI_BINARY", &cfg.Engine.CLIBinary)
	setStr(getenv, "YTDIGEST_ENGINE_CLI_MODEL", &cfg.Engine.CLIModel)
	if err := setSeconds(getenv, "YTDIGEST_ENGINE_TIMEOUT_SECONDS", &cfg.Engine.CLITimeout); err != nil {
		return Config{}, err
	}
	setStr(getenv, "YTDIGEST_OPENAI_API_KEY", &cfg.Engine.OpenAIAPIKey)
	setStr(getenv, "YTDIGEST_OPENAI_MODEL", &cfg.Engine.OpenAIModel)
	if err := setInt(getenv, "YTDIGEST_PIPELINE_CONCURRENCY", &cfg.Pipeline.Concurrency); err != nil {
		return Config{}, err
	}
	if err := setInt(getenv, "YTDIGEST_SERVER_PORT", &cfg.Server.Port); err != nil {
		return Config{}, err
	}
	setStr(getenv, "YTDIGEST_SERVER_TOKEN", &cfg.Server.Token)
	setStr(getenv, "YTDIGEST_DATA_DIR", &cfg.Storage.DataDir)
	setStr(getenv, "YTDIGEST_LOG_LEVEL", &cfg.Log.Level)

	if cfg.Telegram.AdminChatID == 0 {
		cfg.Telegram.AdminChatID = cfg.Telegram.TargetChatID
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if c.Telegram.BotToken == "" {
		missing = append(missing, "YTDIGEST_TELEGRAM_BOT_TOKEN")
	}
	if c.Telegram.TargetChatID == 0 {
		missing = append(missing, "YTDIGEST_TELEGRAM_CHAT_ID")
	}
	if c.YouTube.APIKey == "" {
		missing = append(missing, "YTDIGEST_YOUTUBE_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.Engine.Backend != "" && c.Engine.Backend != "cli" && c.Engine.Backend != "openai" {
		return fmt.Errorf("YTDIGEST_ENGINE_BACKEND must be \"cli\" or \"openai\", got %q", c.Engine.Backend)
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("YTDIGEST_PIPELINE_CONCURRENCY must be at least 1")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("YTDIGEST_SERVER_PORT %d out of range", c.Server.Port)
	}
	return nil
}

// LogLevel maps the configured level name to a slog level, defaulting to
// info for unknown values.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "ytdigest")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "ytdigest-data"
	}
	return filepath.Join(home, ".local", "share", "ytdigest")
}

func setStr(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setInt(getenv func(string) string, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func setInt64(getenv func(string) string, key string, dst *int64) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func setSeconds(getenv func(string) string, key string, dst *time.Duration) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("%s: %q is not a positive number of seconds", key, v)
	}
	*dst = time.Duration(n) * time.Second
	return nil
}
