package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"facecards/internal/platform/httpserver"
	"facecards/internal/platform/postgres"
	"facecards/internal/refresh/preview"
	httptransport "facecards/internal/transport/http"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := setup()
	if err != nil {
		return err
	}

	a, err := build(ctx, cfg, log)
	defer func() {
		if cerr := a.close(); cerr != nil {
			log.Warn("failed to close resources", "error", cerr)
		}
	}()
	if err != nil {
		log.Error("startup failed", "error", err)
		return err
	}
	if a.db != nil {
		if err := postgres.Migrate(ctx, a.db, log); err != nil {
			log.Error("migrations failed", "error", err)
			return err
		}
	}

	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(a.routes))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	g.Go(func() error {
		return preview.NewSweeper(a.previews, cfg.Preview.SweepInterval, log).Run(gctx)
	})
	if a.outbox != nil {
		g.Go(func() error {
			return a.outbox.Run(gctx)
		})
	}

	log.Info("facecards started",
		"addr", cfg.Server.Addr,
		"positions", len(a.catalog.All()),
		"postgres", a.db != nil,
		"redis", a.redis != nil,
		"kafka", a.kafka != nil,
	)
	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}
