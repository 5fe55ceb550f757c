package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/delifood/delifood/internal/app"
	"github.com/delifood/delifood/internal/products"
)

func main() {
	os.Exit(run())
}

func run() int {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping products startup")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg).With(slog.String("service", "products"))

	err = app.Serve(ctx, cfg, logger, "products", func(deps *app.Deps) ([]app.Mounter, []app.Loop, error) {
		repo := products.NewRepository(deps.Pool)
		service := products.NewService(repo, deps.Channel, logger)
		taxonomy := products.NewTaxonomy(repo, repo)
		return []app.Mounter{products.NewHandler(logger, service, taxonomy, deps.Security.Gate)}, nil, nil
	})
	if err != nil {
		logger.Error("server exited", slog.Any("error", err))
		return 1
	}
	return 0
}
