package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/roster/internal/config"
	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/metrics"
	"github.com/JonMunkholm/roster/internal/settings"
	"github.com/JonMunkholm/roster/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"store_driver", cfg.Store.Driver,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store, err := openStore(ctx, &cfg.Store, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	cfgStore := settings.New(store.Collection(cfg.Store.ConfigCollection), settings.WithMetrics(m))
	if err := cfgStore.Reconcile(ctx, config.SeedDefaults()); err != nil {
		return fmt.Errorf("failed to reconcile config: %w", err)
	}

	svc := core.NewService(store, core.ServiceConfig{
		StudentsCollection:   cfg.Store.StudentsCollection,
		MaxConcurrentImports: cfg.Upload.MaxConcurrent,
		ImportWait:           cfg.Upload.MaxWaitTime,
		Metrics:              m,
	})

	srv := web.NewServer(cfg, web.Deps{
		Service:  svc,
		Settings: cfgStore,
		Store:    store,
		Gatherer: reg,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
