package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func requiredEnv() map[string]string {
	return map[string]string{
		"YTDIGEST_TELEGRAM_BOT_TOKEN": "123:abc",
		"YTDIGEST_TELEGRAM_CHAT_ID":   "-1001234567890",
		"YTDIGEST_YOUTUBE_API_KEY":    "yt-key",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadFromEnv(envMap(requiredEnv()))
	if err != nil {
		t.Fatalf("loadFromEnv: %v", err)
	}
	if cfg.Engine.CLIBinary != "claude" || cfg.Engine.CLIModel != "sonnet" {
		t.Errorf("engine defaults = %q/%q", cfg.Engine.CLIBinary, cfg.Engine.CLIModel)
	}
	if cfg.Engine.CLITimeout != 120*time.Second {
		t.Errorf("timeout default = %s", cfg.Engine.CLITimeout)
	}
	if cfg.Pipeline.Concurrency != 1 {
		t.Errorf("concurrency default = %d", cfg.Pipeline.Concurrency)
	}
	if cfg.Server.Port != 4800 {
		t.Errorf("port default = %d", cfg.Server.Port)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("data dir default should not be empty")
	}
}

func TestLoadOverrides(t *testing.T) {
	env := requiredEnv()
	env["YTDIGEST_ENGINE_BACKEND"] = "openai"
	env["YTDIGEST_OPENAI_API_KEY"] = "sk-test"
	env["YTDIGEST_ENGINE_TIMEOUT_SECONDS"] = "300"
	env["YTDIGEST_PIPELINE_CONCURRENCY"] = "4"
	env["YTDIGEST_SERVER_PORT"] = "8088"
	env["YTDIGEST_DATA_DIR"] = "/tmp/digest"
	env["YTDIGEST_LOG_LEVEL"] = "debug"

	cfg, err := loadFromEnv(envMap(env))
	if err != nil {
		t.Fatalf("loadFromEnv: %v", err)
	}
	if cfg.Engine.Backend != "openai" || cfg.Engine.OpenAIAPIKey != "sk-test" {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.CLITimeout != 300*time.Second {
		t.Errorf("timeout = %s, want 300s", cfg.Engine.CLITimeout)
	}
	if cfg.Pipeline.Concurrency != 4 {
		t.Errorf("concurrency = %d, want 4", cfg.Pipeline.Concurrency)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("port = %d, want 8088", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/digest" {
		t.Errorf("data dir = %q", cfg.Storage.DataDir)
	}
	if cfg.LogLevel() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", cfg.LogLevel())
	}
}

func TestAdminDefaultsToTargetChat(t *testing.T) {
	cfg, err := loadFromEnv(envMap(requiredEnv()))
	if err != nil {
		t.Fatalf("loadFromEnv: %v", err)
	}
	if cfg.Telegram.AdminChatID != cfg.Telegram.TargetChatID {
		t.Errorf("admin chat = %d, want target %d", cfg.Telegram.AdminChatID, cfg.Telegram.TargetChatID)
	}

	env := requiredEnv()
	env["YTDIGEST_TELEGRAM_ADMIN_CHAT_ID"] = "42"
	cfg, err = loadFromEnv(envMap(env))
	if err != nil {
		t.Fatalf("loadFromEnv: %v", err)
	}
	if cfg.Telegram.AdminChatID != 42 {
		t.Errorf("admin chat = %d, want 42", cfg.Telegram.AdminChatID)
	}
}

func TestMissingRequired(t *testing.T) {
	for _, drop := range []string{
		"YTDIGEST_TELEGRAM_BOT_TOKEN",
		"YTDIGEST_TELEGRAM_CHAT_ID",
		"YTDIGEST_YOUTUBE_API_KEY",
	} {
		env := requiredEnv()
		delete(env, drop)
		_, err := loadFromEnv(envMap(env))
		if err == nil || !strings.Contains(err.Error(), drop) {
			t.Errorf("dropping %s: err = %v, want it named", drop, err)
		}
	}
}

func TestInvalidValues(t *testing.T) {
	tests := []struct{ key, value string }{
		{"YTDIGEST_TELEGRAM_CHAT_ID", "not-a-number"},
		{"YTDIGEST_ENGINE_BACKEND", "quantum"},
		{"YTDIGEST_ENGINE_TIMEOUT_SECONDS", "-5"},
		{"YTDIGEST_PIPELINE_CONCURRENCY", "0"},
		{"YTDIGEST_SERVER_PORT", "99999"},
	}
	for _, tt := range tests {
		env := requiredEnv()
		env[tt.key] = tt.value
		if _, err := loadFromEnv(envMap(env)); err == nil {
			t.Errorf("%s=%s should fail validation", tt.key, tt.value)
		}
	}
}

func TestLogLevelFallback(t *testing.T) {
	cfg := Config{Log: LogConfig{Level: "verbose"}}
	if cfg.LogLevel() != slog.LevelInfo {
		t.Errorf("unknown level = %v, want info fallback", cfg.LogLevel())
	}
}
