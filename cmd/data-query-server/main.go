package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FreePeak/data-query-server/internal/builder"
	"github.com/FreePeak/data-query-server/internal/config"
	"github.com/FreePeak/data-query-server/internal/domain"
	"github.com/FreePeak/data-query-server/internal/infrastructure/logging"
	"github.com/FreePeak/data-query-server/internal/infrastructure/store"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "data-query-server",
		Short:         "MCP server exposing SQL tools over sample datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.String("transport", config.TransportStdio, "transport: stdio, sse or both")
	flags.String("host", "0.0.0.0", "HTTP bind host")
	flags.Int("port", 8000, "HTTP bind port")
	flags.String("db", "data/datasets.db", "SQLite database path (falls back to memory)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Duration("store-timeout", store.DefaultTimeout, "maximum wait for the dataset store")
	flags.Bool("seed", true, "regenerate the sample datasets on start")

	if err := config.BindFlags(v, flags); err != nil {
		panic(err)
	}
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lc, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(lc)
	if err != nil {
		return err
	}
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	db, err := store.Open(ctx, cfg.Database.Path, logger)
	if err != nil {
		return errors.Wrap(err, "open dataset store")
	}

	datasets, err := loadDatasets(ctx, db, cfg.Database.Seed)
	if err != nil {
		_ = db.Close()
		return err
	}
	logger.Info("datasets ready", logging.Fields{
		"path":      db.Path(),
		"in_memory": db.InMemory(),
		"datasets":  len(datasets),
	})

	srv, err := builder.NewServerBuilder().
		FromConfig(cfg).
		WithLogger(logger).
		WithStore(db, datasets).
		Build()
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.WithError(err).Warn("closing dataset store")
		}
	}()

	logger.Info("server starting", logging.Fields{
		"transport": cfg.Transport,
		"addr":      cfg.Server.Addr(),
	})
	start := time.Now()
	err = srv.Run(ctx, cfg.Transport)
	logger.Info("server stopped", logging.Fields{"uptime": time.Since(start).String()})
	return err
}

func loadDatasets(ctx context.Context, db *store.SQLiteStore, seed bool) ([]domain.DatasetMetadata, error) {
	if seed {
		datasets, err := store.SeedSampleDatasets(ctx, db, nil)
		return datasets, errors.Wrap(err, "seed sample datasets")
	}
	datasets, err := store.InspectDatasets(ctx, db)
	return datasets, errors.Wrap(err, "inspect datasets")
}
