// Command server runs the arena chat orchestrator.
//
// Configuration is read from a YAML file (the -config flag, ARENA_CONFIG,
// ./config.yaml or /etc/arena/config.yaml) with ARENA_* environment
// overrides applied on top. See pkg/config for every setting.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/config"
	"github.com/llmarena/arena/pkg/debug"
	"github.com/llmarena/arena/pkg/directory"
	"github.com/llmarena/arena/pkg/engine"
	"github.com/llmarena/arena/pkg/observability"
	"github.com/llmarena/arena/pkg/processor"
	"github.com/llmarena/arena/pkg/transport"
	transporthttp "github.com/llmarena/arena/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.threads.Close()

	dir := directory.New(stores.models)
	if err := dir.Seed(ctx, cfg.ModelConfigs()); err != nil {
		return err
	}
	enabled, err := dir.ListEnabled(ctx)
	if err != nil {
		return err
	}
	if len(enabled) < cfg.Engine.AssignmentSize {
		slog.Warn("fewer enabled models than a thread needs",
			"enabled", len(enabled),
			"assignment_size", cfg.Engine.AssignmentSize,
		)
	}

	dialer := processor.NewCachingDialer(cfg.Engine.HTTPTimeout)
	defer dialer.Close()

	eng, err := engine.New(stores.threads, dir, processor.NewSet(dialer), transport.NewInFlightRegistry(), engine.Config{
		AssignmentSize:  cfg.Engine.AssignmentSize,
		DefaultCategory: cfg.Engine.DefaultCategory,
		ProviderTimeout: cfg.Engine.ProviderTimeout,
		PersistTimeout:  cfg.Engine.PersistTimeout,
		ErrorFrames:     cfg.Engine.ErrorFrames,
		Validation: api.ValidationConfig{
			MaxMessageSize: cfg.Engine.MaxMessageSize,
			StrictThreadID: cfg.Engine.StrictThreadID,
		},
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	authMW, err := buildAuth(cfg.Auth)
	if err != nil {
		return err
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithReadinessCheck("storage", stores.threads.HealthCheck),
		transporthttp.WithOnShutdown(func() {
			// Answers produced so far are still persisted.
			n := eng.InFlight().CancelAll()
			slog.Info("cancelled in-flight turns", "count", n)
		}),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts,
			transporthttp.WithMetricsHandler(observability.Handler()),
			transporthttp.WithHTTPMiddleware(observability.MetricsMiddleware),
		)
	}
	opts = append(opts, transporthttp.WithHTTPMiddleware(authMW))

	srv := transporthttp.NewServer(eng, eng, opts...)

	slog.Info("arena starting",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
		"models", len(enabled),
	)
	return srv.Run(ctx)
}
