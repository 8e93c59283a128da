package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"propfeed/internal/bids"
	"propfeed/internal/bot"
	"propfeed/internal/catalog"
	"propfeed/internal/config"
	"propfeed/internal/feed"
	"propfeed/internal/scheduler"
	"propfeed/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireBot(); err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	client := catalog.New(cfg.CatalogBaseURL, httpClient, log, catalog.WithRetries(cfg.HTTPRetries))

	var listings feed.PageSource
	if cfg.CatalogFeedURL != "" {
		listings = catalog.NewFeedSource(cfg.CatalogFeedURL, httpClient, log)
	}

	b, err := bot.New(cfg, store, client, listings, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	source := func(token string) bids.EnquirySource { return client.WithToken(token) }
	sched := scheduler.New(store, source, b, b.Money(), log)
	sched.SetTickInterval(cfg.WatchInterval)

	log.Info("starting bot")

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	if cfg.DatabaseURL != "" {
		log.Info("using postgres")
		pg, err := storage.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	log.Info("using sqlite", "path", cfg.DatabasePath)
	lite, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
