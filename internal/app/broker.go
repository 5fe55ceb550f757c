package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/delifood/delifood/internal/events"
)

var (
	// ErrNoRedis is returned when the asynq broker is selected without a client.
	ErrNoRedis = errors.New("app: asynq broker requires a redis client")
	// ErrMemoryBroker is returned when the in-process broker is selected
	// outside development. Each binary would get a private broker and no
	// event would reach another service.
	ErrMemoryBroker = errors.New("app: memory broker is limited to APP_ENV=development")
)

// NewChannel builds the event channel selected by cfg.Broker. Test mode gets
// a channel that drops everything. The memory broker only serves single
// process development runs. The caller owns Close.
func NewChannel(ctx context.Context, cfg *Config, logger *slog.Logger, rdb *redis.Client, metrics *events.Metrics) (events.Channel, error) {
	if InTestMode() {
		return events.NopChannel{}, nil
	}
	switch cfg.Broker {
	case BrokerMemory:
		if !cfg.IsDevelopment() {
			return nil, ErrMemoryBroker
		}
		logger.Warn("in-memory broker selected; events do not leave this process")
		return events.NewMemoryChannel(logger,
			events.WithMaxDeliveries(cfg.EventMaxRetry+1),
			events.WithMemoryMetrics(metrics)), nil
	default:
		if rdb == nil {
			return nil, ErrNoRedis
		}
		return events.NewAsynqChannel(ctx, rdb, events.AsynqConfig{
			Logger:          logger,
			MaxRetry:        cfg.EventMaxRetry,
			PublishAttempts: cfg.EventPublishAttempts,
			Metrics:         metrics,
		})
	}
}
