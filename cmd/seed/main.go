// Command seed installs the default permission catalogue, the Admin and User
// roles and the admin account. It publishes user.created for the admin so the
// cart replica learns about it.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"

	"github.com/delifood/delifood/internal/app"
	"github.com/delifood/delifood/internal/auth"
	"github.com/delifood/delifood/internal/rbac"
)

type seedConfig struct {
	AdminEmail    string `envconfig:"SEED_ADMIN_EMAIL" default:"admin@admin.com"`
	AdminPassword string `envconfig:"SEED_ADMIN_PASSWORD" default:"adminadmin"`
}

func main() {
	os.Exit(run())
}

func run() int {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping seed")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	var seed seedConfig
	if err := envconfig.Process("", &seed); err != nil {
		slog.Default().Error("load seed config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg).With(slog.String("service", "seed"))

	deps, err := app.Bootstrap(ctx, cfg, logger, "seed")
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		return 1
	}
	defer deps.Close()

	rbacService := rbac.NewService(rbac.NewRepository(deps.Pool))
	seeder := &Seeder{
		rbac:   rbacService,
		users:  auth.NewService(auth.NewRepository(deps.Pool), rbacService, deps.Security.Issuer, deps.Channel, logger),
		logger: logger,
	}
	if err := seeder.Run(ctx, seed.AdminEmail, seed.AdminPassword); err != nil {
		logger.Error("seed", slog.Any("error", err))
		return 1
	}
	logger.Info("seed complete")
	return 0
}
