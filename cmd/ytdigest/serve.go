package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/kalambet/ytdigest/internal/api"
	"github.com/kalambet/ytdigest/internal/bot"
	"github.com/kalambet/ytdigest/internal/config"
	"github.com/kalambet/ytdigest/internal/delivery"
	"github.com/kalambet/ytdigest/internal/engine"
	"github.com/kalambet/ytdigest/internal/pipeline"
	"github.com/kalambet/ytdigest/internal/scheduler"
	"github.com/kalambet/ytdigest/internal/storage"
	"github.com/kalambet/ytdigest/internal/summarize"
	"github.com/kalambet/ytdigest/internal/transcript"
	"github.com/kalambet/ytdigest/internal/youtube"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the digest service (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running digest service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "ytdigest.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "ytdigest version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)

	// Refuse to double-start: probe the health endpoint first.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	ytService, err := yt.NewService(ctx, option.WithAPIKey(cfg.YouTube.APIKey))
	if err != nil {
		return fmt.Errorf("creating YouTube client: %w", err)
	}
	discovery := youtube.New(ytService)

	eng, err := engine.Detect(engine.DetectConfig{
		Backend:      cfg.Engine.Backend,
		CLIBinary:    cfg.Engine.CLIBinary,
		CLIModel:     cfg.Engine.CLIModel,
		CLITimeout:   cfg.Engine.CLITimeout,
		OpenAIAPIKey: cfg.Engine.OpenAIAPIKey,
		OpenAIModel:  cfg.Engine.OpenAIModel,
	})
	if err != nil {
		return fmt.Errorf("detecting summarization engine: %w", err)
	}
	slog.Info("summarization engine selected", "engine", eng.Name())

	router, err := summarize.NewRouter()
	if err != nil {
		return fmt.Errorf("loading prompt templates: %w", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return fmt.Errorf("connecting to Telegram: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", botAPI.Self.UserName)

	deliverer := delivery.NewTelegram(botAPI, cfg.Telegram.TargetChatID, cfg.Telegram.AdminChatID, logger)
	orch := pipeline.NewOrchestrator(
		store, discovery, transcript.New(), eng, router, deliverer, logger, cfg.Pipeline.Concurrency,
	)
	sched := scheduler.New(store, orch, logger)

	controlBot := bot.New(botAPI, store, discovery, orch, sched, cfg.Telegram.AdminChatID, logger)
	go func() {
		if err := controlBot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Telegram bot stopped", "error", err)
		}
	}()

	go func() {
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("scheduler stopped", "error", err)
		}
	}()

	handler := api.NewHandler(api.Deps{
		Store:      store,
		Resolver:   discovery,
		Summarizer: orch,
		Control:    sched,
		Token:      cfg.Server.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "ytdigest listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("ytdigest is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop ytdigest (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to ytdigest (PID %d)", pid)
	return nil
}
