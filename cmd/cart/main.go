package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/delifood/delifood/internal/app"
	"github.com/delifood/delifood/internal/cart"
	"github.com/delifood/delifood/internal/replica"
)

func main() {
	os.Exit(run())
}

func run() int {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping cart startup")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg).With(slog.String("service", "cart"))

	err = app.Serve(ctx, cfg, logger, "cart", func(deps *app.Deps) ([]app.Mounter, []app.Loop, error) {
		replicas := replica.NewPGStore(deps.Pool)
		consumer := replica.NewConsumer(deps.Channel, replicas, replicas, logger)
		service := cart.NewService(cart.NewRepository(deps.Pool), replicas)
		return []app.Mounter{cart.NewHandler(logger, service, deps.Security.Gate)}, []app.Loop{consumer.Run}, nil
	})
	if err != nil {
		logger.Error("server exited", slog.Any("error", err))
		return 1
	}
	return 0
}
