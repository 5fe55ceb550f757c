// Command eventsctl inspects the asynq-backed event channel: topic bindings,
// dead letters, replay and queue statistics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"

	"github.com/delifood/delifood/internal/events"
	"github.com/delifood/delifood/internal/platform/cache"
)

type ctlConfig struct {
	RedisAddr string `envconfig:"REDIS_ADDR" default:"redis://127.0.0.1:6379/0"`
}

func connect(ctx context.Context) (events.Inspector, func(), error) {
	var cfg ctlConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, nil, err
	}
	rdb, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	inspector := events.NewAsynqInspector(rdb)
	return inspector, func() {
		_ = inspector.Close()
		_ = rdb.Close()
	}, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(connect).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "eventsctl:", err)
		return 1
	}
	return 0
}
