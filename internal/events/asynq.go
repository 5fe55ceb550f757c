package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const bindingKeyPrefix = "events:bindings:"

func bindingKey(topic string) string {
	return bindingKeyPrefix + topic
}

// RedisConnOpt converts go-redis options into an asynq connection option.
func RedisConnOpt(opts *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Network:   opts.Network,
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqConfig collects dependencies for AsynqChannel.
type AsynqConfig struct {
	Logger *slog.Logger
	// MaxRetry is the number of redeliveries before a task is archived.
	MaxRetry int
	// PublishAttempts bounds enqueue retries per bound queue.
	PublishAttempts int
	Metrics         *Metrics
}

// AsynqChannel is a redis-backed durable Channel. Each bound queue is an
// asynq queue; failed deliveries are retried with backoff and archived once
// MaxRetry is exhausted.
type AsynqChannel struct {
	rdb       redis.UniversalClient
	connOpt   asynq.RedisConnOpt
	client    enqueuer
	logger    *slog.Logger
	maxRetry  int
	attempts  int
	backoff   time.Duration
	metrics   *Metrics
	newServer func(queue string) *asynq.Server
}

// NewAsynqChannel pings redis and builds the channel. An unreachable broker
// is returned as an error so the process fails to start.
func NewAsynqChannel(ctx context.Context, rdb *redis.Client, cfg AsynqConfig) (*AsynqChannel, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("events: broker unreachable: %w", err)
	}
	connOpt := RedisConnOpt(rdb.Options())
	c := newAsynqChannel(rdb, asynq.NewClient(connOpt), cfg)
	c.connOpt = connOpt
	c.newServer = c.buildServer
	return c, nil
}

func newAsynqChannel(rdb redis.UniversalClient, client enqueuer, cfg AsynqConfig) *AsynqChannel {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 10
	}
	if cfg.PublishAttempts <= 0 {
		cfg.PublishAttempts = 3
	}
	return &AsynqChannel{
		rdb:      rdb,
		client:   client,
		logger:   cfg.Logger,
		maxRetry: cfg.MaxRetry,
		attempts: cfg.PublishAttempts,
		backoff:  100 * time.Millisecond,
		metrics:  cfg.Metrics,
	}
}

// Publish enqueues one task per queue bound to topic. The task id is derived
// from the event id so a retried enqueue never duplicates a task.
func (c *AsynqChannel) Publish(ctx context.Context, topic string, payload any) error {
	err := c.publish(ctx, topic, payload)
	c.metrics.Published(topic, err)
	return err
}

func (c *AsynqChannel) publish(ctx context.Context, topic string, payload any) error {
	env, err := newEnvelope(topic, payload, time.Now())
	if err != nil {
		return err
	}
	queues, err := c.rdb.SMembers(ctx, bindingKey(topic)).Result()
	if err != nil {
		return fmt.Errorf("events: load bindings for %s: %w", topic, err)
	}
	if len(queues) == 0 {
		c.logger.Debug("event published without bindings", slog.String("topic", topic))
		return nil
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: encode envelope: %w", err)
	}
	for _, queue := range queues {
		task := asynq.NewTask(topic, body)
		if err := c.enqueue(ctx, task, queue, env.ID+":"+queue); err != nil {
			return err
		}
	}
	return nil
}

func (c *AsynqChannel) enqueue(ctx context.Context, task *asynq.Task, queue, taskID string) error {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		_, err := c.client.EnqueueContext(ctx, task,
			asynq.Queue(queue),
			asynq.TaskID(taskID),
			asynq.MaxRetry(c.maxRetry),
		)
		if err == nil || errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		lastErr = err
		c.logger.Warn("event enqueue failed",
			slog.String("queue", queue),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("events: enqueue to %s: %w", queue, lastErr)
}

// Subscribe records the binding and runs an asynq server for queue until ctx
// is done.
func (c *AsynqChannel) Subscribe(ctx context.Context, topic, queue string, h Handler) error {
	if err := c.rdb.SAdd(ctx, bindingKey(topic), queue).Err(); err != nil {
		return fmt.Errorf("events: bind %s to %s: %w", queue, topic, err)
	}
	srv := c.newServer(queue)
	mux := asynq.NewServeMux()
	mux.HandleFunc(topic, c.process(queue, h))
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("events: start consumer %s: %w", queue, err)
	}
	c.logger.Info("event consumer started", slog.String("topic", topic), slog.String("queue", queue))
	<-ctx.Done()
	srv.Shutdown()
	return ctx.Err()
}

func (c *AsynqChannel) buildServer(queue string) *asynq.Server {
	return asynq.NewServer(c.connOpt, asynq.Config{
		Concurrency:    1,
		Queues:         map[string]int{queue: 1},
		RetryDelayFunc: retryDelay,
		Logger:         asynqLogger{c.logger.With(slog.String("queue", queue))},
	})
}

// process adapts h to an asynq handler. Delivery errors are returned to asynq
// so the task is retried; ErrSkipRetry and undecodable tasks are archived.
func (c *AsynqChannel) process(queue string, h Handler) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := c.metrics.Track(queue)
		var env Envelope
		if err := json.Unmarshal(t.Payload(), &env); err != nil {
			c.logger.Error("undecodable event", slog.String("queue", queue), slog.Any("error", err))
			return tracker.End(OutcomeDead, fmt.Errorf("events: decode envelope: %v: %w", err, asynq.SkipRetry))
		}
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, ok := asynq.GetMaxRetry(ctx)
		if !ok {
			maxRetry = c.maxRetry
		}
		env.Attempt = retried + 1

		err := h(ctx, env)
		outcome := outcomeFor(err, retried >= maxRetry)
		switch outcome {
		case OutcomeAck:
			return tracker.End(outcome, nil)
		case OutcomeDead:
			c.logger.Warn("event dead-lettered",
				slog.String("queue", queue),
				slog.String("event_id", env.ID),
				slog.Int("attempt", env.Attempt),
				slog.Any("error", err))
			if errors.Is(err, ErrSkipRetry) {
				err = fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			return tracker.End(outcome, err)
		default:
			return tracker.End(outcome, err)
		}
	}
}

// Close releases the enqueue client.
func (c *AsynqChannel) Close() error {
	return c.client.Close()
}

// retryDelay backs off exponentially from one second, capped at one minute.
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	d := time.Duration(math.Pow(2, float64(n))) * time.Second
	if d > time.Minute || d <= 0 {
		return time.Minute
	}
	return d
}

// asynqLogger routes asynq's internal logging into slog.
type asynqLogger struct {
	l *slog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }

var _ Channel = (*AsynqChannel)(nil)
