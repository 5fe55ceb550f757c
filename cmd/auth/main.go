package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/delifood/delifood/internal/app"
	"github.com/delifood/delifood/internal/auth"
	"github.com/delifood/delifood/internal/rbac"
)

func main() {
	os.Exit(run())
}

func run() int {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping auth startup")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg).With(slog.String("service", "auth"))

	err = app.Serve(ctx, cfg, logger, "auth", func(deps *app.Deps) ([]app.Mounter, []app.Loop, error) {
		rbacService := rbac.NewService(rbac.NewRepository(deps.Pool))
		authService := auth.NewService(auth.NewRepository(deps.Pool), rbacService, deps.Security.Issuer, deps.Channel, logger)
		return []app.Mounter{
			auth.NewHandler(logger, authService, deps.Security.Gate, cfg.SigninRateLimit),
			rbac.NewHandler(logger, rbacService, deps.Security.Gate),
		}, nil, nil
	})
	if err != nil {
		logger.Error("server exited", slog.Any("error", err))
		return 1
	}
	return 0
}
