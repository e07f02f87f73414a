package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"mpgserve/config"
	mhttp "mpgserve/http"
	"mpgserve/logger"
	"mpgserve/ml"
	"mpgserve/monitoring"
	"mpgserve/render"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			zap.ReplaceGlobals(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, log)
		},
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if cfg.Debug() {
		level = "debug"
	}
	log, err := logger.New(logger.Options{
		Level:      level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

// runServer loads the model, then serves until ctx is cancelled. A failed
// model load leaves the server running in degraded mode.
func runServer(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	logStartupDiagnostics(log, cfg.Model.Path)

	metrics := monitoring.NewPredictionMetrics(monitoring.NewMetricsCollector())

	store := ml.NewModelStore()
	params, err := loadModel(store, cfg.Model.Path, cfg.Model.Name)
	if err != nil {
		log.Error("model load failed, predictions unavailable", zap.Error(err))
	} else {
		log.Info("model loaded",
			zap.String("source", store.Source()),
			zap.Float64("intercept", params.Intercept),
			zap.Float64("coefficient", params.Coefficient))
	}
	metrics.RecordModelLoad(err == nil)

	opts := render.Options{CacheSize: cfg.App.FragmentCacheSize}
	if cfg.Debug() {
		opts.Dir = cfg.App.TemplatesDir
	}
	renderer, err := render.New(opts, log.Named("render"))
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	handlers := &mhttp.Handlers{
		Model:          store,
		Service:        ml.NewPredictionService(store, ml.NewMessages(cfg.App.Language)),
		Renderer:       renderer,
		Metrics:        metrics,
		Log:            log.Named("http"),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}
	server := mhttp.NewServer(mhttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		Timeout:        cfg.HTTP.Timeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, handlers, log.Named("http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		return renderer.Watch(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	log.Info("mpgserve started",
		zap.String("addr", server.Addr()),
		zap.String("env", cfg.App.Env),
		zap.Bool("model_loaded", store.IsLoaded()))

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("mpgserve stopped")
	return nil
}
