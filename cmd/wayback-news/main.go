package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wayback-news/internal/app"
	"wayback-news/internal/archive"
	"wayback-news/internal/config"
	"wayback-news/internal/fetcher"
	"wayback-news/internal/normalize"
	"wayback-news/internal/observability"
	"wayback-news/internal/scraper"
	"wayback-news/internal/sources"
	"wayback-news/internal/storage"
	"wayback-news/internal/storage/mssql"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "wayback-news",
		Short:         "Search archived news homepages for articles by keyword",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to config file (empty for built-in defaults)")

	root.AddCommand(newServeCmd(), newQueryCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runtime holds everything a command needs, plus what has to be closed.
type runtime struct {
	cfg      *config.Config
	logger   *observability.Logger
	registry *sources.Registry
	pipeline *app.Orchestrator
	closers  []func() error
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability)
	rt := &runtime{cfg: cfg, logger: logger}

	defs, err := cfg.ResolveSources()
	if err != nil {
		return nil, err
	}
	rt.registry, err = sources.NewRegistry(defs)
	if err != nil {
		return nil, err
	}

	f := fetcher.NewFetcher(cfg, logger)

	var renderer archive.PageRenderer
	if cfg.Rod.Enabled {
		r := fetcher.NewRenderer(cfg, logger)
		rt.closers = append(rt.closers, r.Close)
		renderer = r
	}

	var history storage.Repository
	if cfg.Storage.Enabled {
		repo, err := mssql.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.closers = append(rt.closers, repo.Close)
		if err := repo.EnsureSchema(ctx); err != nil {
			rt.close()
			return nil, err
		}
		history = repo
	}

	normalizer := normalize.NewNormalizer(cfg)

	rt.pipeline = app.NewOrchestrator(
		cfg,
		logger,
		observability.NewMetrics(nil),
		rt.registry,
		archive.NewResolver(cfg, f, logger),
		archive.NewSnapshotFetcher(f, renderer),
		scraper.NewScraper(normalizer.Title),
		history,
	)

	logger.Info("Configuration loaded",
		"config", configPath,
		"sources", len(defs),
		"workers", cfg.Pipeline.Workers,
		"rod", cfg.Rod.Enabled,
		"storage", cfg.Storage.Enabled,
	)

	return rt, nil
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Error("Failed to close resource", "error", err.Error())
		}
	}
	_ = rt.logger.Sync()
}
