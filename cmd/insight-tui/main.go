package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"insight-agent/internal/config"
	"insight-agent/internal/credentials"
	"insight-agent/internal/integrations/gemini"
	"insight-agent/internal/tui"
	"insight-agent/internal/usecase"
)

func main() {
	if err := loadDotEnv(".env"); err != nil {
		slog.Error("failed to load .env", "err", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; logs go to a file only when asked for.
	logOut := io.Discard
	if path := os.Getenv("INSIGHT_TUI_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			slog.Error("failed to open log file", "path", path, "err", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	geminiClient := gemini.NewClient(
		gemini.WithBaseURL(cfg.GeminiBaseURL),
		gemini.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
	)
	svc, err := usecase.NewInsightService(credentials.Env{Key: cfg.APIKeyVar}, geminiClient, nil, cfg.GeminiModel, cfg.MaxWordLength, log)
	if err != nil {
		slog.Error("failed to create insight service", "err", err)
		os.Exit(1)
	}
	requester, err := usecase.NewRequester(svc)
	if err != nil {
		slog.Error("failed to create requester", "err", err)
		os.Exit(1)
	}

	if _, err := tea.NewProgram(tui.New(context.Background(), requester)).Run(); err != nil {
		slog.Error("insight tui exited", "err", err)
		os.Exit(1)
	}
}

// loadDotEnv applies path to the environment. A missing file is normal; a
// malformed one is reported.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
