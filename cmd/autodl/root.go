package main

import (
	"context"
	"fmt"

	"github.com/datallboy/autodl/internal/app"
	"github.com/datallboy/autodl/internal/engine"
	"github.com/datallboy/autodl/internal/infra/config"
	"github.com/datallboy/autodl/internal/infra/logger"
	"github.com/datallboy/autodl/internal/store"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	concurrent int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "autodl",
		Short:         "Batch downloader driving yt-dlp from a links file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default ./config.yaml)")
	root.PersistentFlags().IntVarP(&opts.concurrent, "concurrent", "n", 0, "number of parallel downloads (overrides download.concurrency)")

	root.AddCommand(
		newRunCmd(opts),
		newServeCmd(opts),
		newQueueCmd(opts),
		newDoctorCmd(opts),
		newConfigCmd(opts),
	)

	return root
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.concurrent > 0 {
		cfg.Download.Concurrency = o.concurrent
	}
	return cfg, nil
}

// bootstrap builds the full application: config, logger, state, history
// store and the batch manager.
func (o *rootOptions) bootstrap(ctx context.Context) (*app.Context, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	appCtx := app.NewContext(cfg, log)

	history, err := store.New(ctx, cfg.Store)
	if err != nil {
		log.Warn("History disabled: %v", err)
		history = store.NopStore{}
	}
	appCtx.History = history

	appCtx.Controller = engine.NewManager(appCtx)

	return appCtx, nil
}

// bootstrapLite is for commands that only touch the links file
func (o *rootOptions) bootstrapLite() (*app.Context, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.NewContext(cfg, logger.NewNop()), nil
}

func shutdown(appCtx *app.Context) {
	if err := appCtx.Close(); err != nil {
		appCtx.Logger.Error("Failed to close history store: %v", err)
	}
	appCtx.Logger.Close()
}
