// ============================================================================
// fleetstore CLI
// ============================================================================
//
// Package: internal/cli
//
// Command Structure:
//   fleetstore                       # Root command
//   ├── serve                        # Start the gRPC backend API
//   ├── job                          # Remote job calls against a running server
//   │   ├── get                      # List jobs by filter
//   │   ├── add    -f job.json       # Create a job, print its id
//   │   ├── update -f job.json       # Replace a job by job_id
//   │   └── delete --id N            # Delete a job
//   ├── seq next <scope> [ids...]    # Allocate one id from the configured store
//   ├── status                       # Configuration and server health
//   ├── --config, -c                 # Config file (default configs/default.yaml)
//   └── --version
//
// serve:
//   1. Load config, install the slog handler
//   2. Open the document store (mongodb with index migration, or memory
//      with an optional snapshot file)
//   3. Build the allocator (store or redis counter) and the job service
//   4. Serve gRPC and /metrics until SIGINT/SIGTERM, then stop gracefully
//
// ============================================================================

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ChuLiYu/fleetstore/internal/config"
	"github.com/ChuLiYu/fleetstore/internal/docstore"
	"github.com/ChuLiYu/fleetstore/internal/docstore/memory"
	"github.com/ChuLiYu/fleetstore/internal/docstore/mongo"
	"github.com/ChuLiYu/fleetstore/internal/sequence"
)

// Version is stamped at build time with -ldflags.
var Version = "1.0.0"

var configFile string

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fleetstore",
		Short: "fleetstore: data-access tier for the robot fleet backend",
		Long: `fleetstore stores robot jobs with their task trees and hands out
gap-free ids, backed by MongoDB or an in-memory store, with:
- atomic per-scope sequence counters (store or Redis)
- filtered, sorted and paginated job listings
- a gRPC backend API with Prometheus metrics`,
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildServeCommand())
	rootCmd.AddCommand(buildJobCommand())
	rootCmd.AddCommand(buildSeqCommand())
	rootCmd.AddCommand(buildStatusCommand())

	return rootCmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setupLogger installs the configured handler as the slog default.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Log.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// openStore opens the configured backend and runs its migrations.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (docstore.Store, error) {
	var (
		store docstore.Store
		err   error
	)

	switch cfg.Database.Backend {
	case config.BackendMongo:
		store, err = mongo.Connect(ctx, mongo.ConnectConfig{
			URI:         cfg.MongoDB.URI,
			Database:    cfg.Database.Name,
			Timeout:     cfg.MongoDB.Timeout,
			MaxPoolSize: cfg.MongoDB.MaxPoolSize,
			Attempts:    cfg.MongoDB.ConnectAttempts,
			RetryDelay:  cfg.MongoDB.ConnectDelay,
		}, mongo.WithLogger(logger))
	case config.BackendMemory:
		opts := []memory.Option{memory.WithLogger(logger)}
		if cfg.Memory.SnapshotPath != "" {
			opts = append(opts, memory.WithSnapshot(cfg.Memory.SnapshotPath))
		}
		store, err = memory.New(opts...)
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Database.Backend, err)
	}

	if m, ok := store.(docstore.Migrator); ok {
		if err := m.Migrate(ctx); err != nil {
			_ = store.Close(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("failed to migrate store: %w", err)
		}
	}
	return store, nil
}

// newCounter builds the configured counter. The returned close func
// releases any client the counter owns.
func newCounter(cfg *config.Config, store docstore.Store) (sequence.Counter, func() error, error) {
	switch cfg.Sequence.Backend {
	case config.CounterStore:
		return sequence.NewStoreCounter(store), func() error { return nil }, nil
	case config.CounterRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Sequence.Redis.Addr,
			Password: cfg.Sequence.Redis.Password,
			DB:       cfg.Sequence.Redis.DB,
		})
		return sequence.NewRedisCounter(client, cfg.Sequence.Redis.Prefix), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown sequence backend %q", cfg.Sequence.Backend)
	}
}

// closeAll closes store and counter, joining their errors.
func closeAll(ctx context.Context, store docstore.Store, closeCounter func() error) error {
	return errors.Join(closeCounter(), store.Close(context.WithoutCancel(ctx)))
}
