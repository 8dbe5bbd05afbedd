package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/eliseohh/tagstickerbot/internal/bot"
	"github.com/eliseohh/tagstickerbot/internal/config"
	"github.com/eliseohh/tagstickerbot/internal/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("app", "tagstickerbot"))

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fatal(log, "load .env", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fatal(log, "load config", err)
	}
	level, _ := cfg.Level()
	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", "tagstickerbot"))
	slog.SetDefault(log)

	// 1. Schema
	if err := store.Migrate(cfg.DatabasePath, log); err != nil {
		fatal(log, "migrate", err)
	}

	// 2. Store
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		fatal(log, "open store", err)
	}
	defer db.Close()
	log.Info("store_opened", slog.String("path", db.Path()))

	// 3. Bot
	b, err := bot.New(bot.Config{
		Token:       cfg.Token,
		PollTimeout: cfg.PollTimeout,
		PageSize:    cfg.InlinePageSize,
		InlineRate:  cfg.InlineRate,
		InlineBurst: cfg.InlineBurst,
	}, db, log)
	if err != nil {
		fatal(log, "bot init", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b.Start(ctx)
	log.Info("bot_stopped")
}

func fatal(log *slog.Logger, step string, err error) {
	log.Error("startup_failed", slog.String("step", step), slog.Any("error", err))
	os.Exit(1)
}
