// Command refresh runs one scrape cycle outside the schedule.
//
// Usage:
//
//	refresh                     # full refresh: discover, scrape, index
//	refresh -nav                # NAV-only refresh of stored schemes
//	refresh -reindex            # rebuild the vector index from the store
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fundveille/fundveille/app"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	navOnly := flag.Bool("nav", false, "refresh NAV fields only")
	reindex := flag.Bool("reindex", false, "rebuild the index from stored chunks, no scraping")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *navOnly, *reindex); err != nil {
		logger.Error("refresh: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, navOnly, reindex bool) error {
	godotenv.Load()

	cfg, err := app.LoadConfigFile(configPath)
	if err != nil {
		return err
	}

	sys, err := app.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer sys.Close()

	if reindex {
		return runReindex(ctx, logger, sys)
	}

	if navOnly {
		res, err := sys.Scrape.NAVRefresh(ctx)
		if err != nil {
			return err
		}
		logger.Info("refresh: NAV refresh done", "schemes", res.Schemes, "failed", res.Failed)
		return nil
	}

	res, err := sys.Scrape.FullRefresh(ctx)
	if err != nil {
		return err
	}
	logger.Info("refresh: full refresh done",
		"schemes", res.Schemes, "factsheets", res.Factsheets,
		"chunks", res.Chunks, "failed", res.Failed)
	return nil
}

// runReindex rebuilds the vector index from chunks already on disk,
// re-embedding everything. Useful after changing the embedding model.
func runReindex(ctx context.Context, logger *slog.Logger, sys *app.System) error {
	chunks, err := sys.Scrape.Chunks("")
	if err != nil {
		return err
	}
	if err := sys.Index.Reset(ctx); err != nil {
		return err
	}
	if err := sys.Index.Index(ctx, chunks); err != nil {
		return err
	}
	logger.Info("refresh: reindex done", "chunks", len(chunks))
	return nil
}
