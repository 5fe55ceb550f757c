package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/delifood/delifood/internal/events"
	"github.com/delifood/delifood/internal/observability"
	"github.com/delifood/delifood/internal/platform/cache"
	"github.com/delifood/delifood/internal/platform/db"
)

// Deps holds the process-wide dependencies every service binary starts with.
type Deps struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Channel  events.Channel
	Metrics  *observability.Metrics
	Security *Security
	Checks   map[string]Pinger

	logger *slog.Logger
}

// Bootstrap connects postgres, the broker and the token primitives for the
// named service. Any failure is fatal to startup.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger, service string) (*Deps, error) {
	d := &Deps{
		Metrics: observability.NewMetrics(service),
		Checks:  map[string]Pinger{},
		logger:  logger,
	}
	var err error
	if d.Security, err = NewSecurity(cfg, logger); err != nil {
		return nil, fmt.Errorf("app: security: %w", err)
	}
	if d.Pool, err = db.New(ctx, cfg.PGDSN, cfg.PGMaxConns); err != nil {
		return nil, err
	}
	d.Checks["postgres"] = d.Pool
	if cfg.Broker == BrokerAsynq {
		if d.Redis, err = cache.New(ctx, cfg.RedisAddr); err != nil {
			d.Close()
			return nil, err
		}
		d.Checks["redis"] = PingFunc(func(ctx context.Context) error { return d.Redis.Ping(ctx).Err() })
	}
	d.Channel, err = NewChannel(ctx, cfg, logger, d.Redis, events.NewMetrics(d.Metrics.Registerer()))
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Wiring builds a service's routes and background loops from its deps.
type Wiring func(deps *Deps) ([]Mounter, []Loop, error)

var bootstrap = Bootstrap

// Serve boots the named service and serves until ctx ends. Deps are
// released before Serve returns, on failure too.
func Serve(ctx context.Context, cfg *Config, logger *slog.Logger, service string, wire Wiring) error {
	deps, err := bootstrap(ctx, cfg, logger, service)
	if err != nil {
		return fmt.Errorf("app: bootstrap: %w", err)
	}
	defer deps.Close()

	handlers, loops, err := wire(deps)
	if err != nil {
		return fmt.Errorf("app: wire %s: %w", service, err)
	}
	router := NewRouter(RouterParams{
		Logger:   logger,
		Config:   cfg,
		Metrics:  deps.Metrics,
		Checks:   deps.Checks,
		Handlers: handlers,
	})
	return NewServer(cfg, logger, router, loops...).Run(ctx)
}

// Close releases everything Bootstrap opened.
func (d *Deps) Close() {
	if d.Channel != nil {
		if err := d.Channel.Close(); err != nil {
			d.logger.Warn("event channel close", slog.Any("error", err))
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.logger.Warn("redis close", slog.Any("error", err))
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}
