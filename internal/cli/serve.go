package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ChuLiYu/fleetstore/internal/config"
	"github.com/ChuLiYu/fleetstore/internal/docstore"
	"github.com/ChuLiYu/fleetstore/internal/jobstore"
	"github.com/ChuLiYu/fleetstore/internal/metrics"
	"github.com/ChuLiYu/fleetstore/internal/sequence"
	"github.com/ChuLiYu/fleetstore/internal/server"
)

func buildServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the fleetstore gRPC backend API",
		Long:  "Open the configured store and serve the backend API and /metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.address")
	return cmd
}

// runServer serves until ctx is cancelled or a component fails.
func runServer(ctx context.Context, cfg *config.Config) error {
	logger := setupLogger(cfg)

	lis, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address, err)
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		lis.Close()
		return err
	}
	if collector != nil {
		store = docstore.Instrument(store, collector)
	}

	counter, closeCounter, err := newCounter(cfg, store)
	if err != nil {
		lis.Close()
		_ = store.Close(ctx)
		return err
	}
	defer func() {
		if err := closeAll(ctx, store, closeCounter); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	var (
		allocOpts    []sequence.Option
		interceptors = []grpc.UnaryServerInterceptor{server.Tracing(), server.Logging(logger)}
		timeouts     jobstore.TimeoutRecorder
	)
	if collector != nil {
		allocOpts = append(allocOpts, sequence.WithRecorder(collector))
		interceptors = append(interceptors, server.Metrics(collector))
		timeouts = collector
	}

	alloc := sequence.NewAllocator(counter, allocOpts...)
	jobs := jobstore.NewService(
		jobstore.New(store, alloc, jobstore.WithLogger(logger)),
		cfg.Context.Timeout,
		timeouts,
	)
	gs, health := server.NewGRPCServer(server.New(jobs, alloc, server.WithLogger(logger)), interceptors...)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gRPC server listening", "addr", lis.Addr().String(), "backend", cfg.Database.Backend, "counter", cfg.Sequence.Backend)
		return gs.Serve(lis)
	})

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			logger.Info("metrics server listening", "port", cfg.Metrics.Port)
			return metrics.NewServer(cfg.Metrics.Port).Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		health.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		gs.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped with error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}
