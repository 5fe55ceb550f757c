package replica

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/delifood/delifood/internal/events"
	"github.com/delifood/delifood/internal/shared"
)

// Consumer applies user and product events to the local replicas.
type Consumer struct {
	channel  events.Channel
	users    UserStore
	products ProductStore
	logger   *slog.Logger
}

// NewConsumer builds a Consumer.
func NewConsumer(channel events.Channel, users UserStore, products ProductStore, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{channel: channel, users: users, products: products, logger: logger}
}

// Run consumes every replicated topic until ctx is done. A failing
// subscription stops the others and its error is returned.
func (c *Consumer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for topic, h := range c.handlers() {
		g.Go(func() error {
			return c.channel.Subscribe(ctx, topic, events.QueueName(topic), h)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *Consumer) handlers() map[string]events.Handler {
	return map[string]events.Handler{
		events.TopicUserCreated:    c.HandleUserCreated,
		events.TopicUserUpdated:    c.HandleUserUpdated,
		events.TopicProductCreated: c.HandleProductCreated,
		events.TopicProductUpdated: c.HandleProductUpdated,
	}
}

// HandleUserCreated inserts the user replica. A replica that already exists
// means this is a redelivery, so the message is acknowledged.
func (c *Consumer) HandleUserCreated(ctx context.Context, env events.Envelope) error {
	u, err := decodeUser(env)
	if err != nil {
		return err
	}
	err = c.users.InsertUser(ctx, u)
	if errors.Is(err, shared.ErrConflict) {
		c.logger.Debug("user replica exists", slog.String("user_id", u.ID), slog.String("event_id", env.ID))
		return nil
	}
	return err
}

// HandleUserUpdated upserts the user replica unless a newer copy is stored.
func (c *Consumer) HandleUserUpdated(ctx context.Context, env events.Envelope) error {
	u, err := decodeUser(env)
	if err != nil {
		return err
	}
	applied, err := c.users.UpsertUser(ctx, u)
	if err != nil {
		return err
	}
	if !applied {
		c.logger.Debug("stale user update ignored", slog.String("user_id", u.ID), slog.String("event_id", env.ID))
	}
	return nil
}

// HandleProductCreated inserts the product replica, acknowledging duplicates.
func (c *Consumer) HandleProductCreated(ctx context.Context, env events.Envelope) error {
	p, err := decodeProduct(env)
	if err != nil {
		return err
	}
	err = c.products.InsertProduct(ctx, p)
	if errors.Is(err, shared.ErrConflict) {
		c.logger.Debug("product replica exists", slog.String("product_id", p.ID), slog.String("event_id", env.ID))
		return nil
	}
	return err
}

// HandleProductUpdated upserts the product replica unless a newer copy is stored.
func (c *Consumer) HandleProductUpdated(ctx context.Context, env events.Envelope) error {
	p, err := decodeProduct(env)
	if err != nil {
		return err
	}
	applied, err := c.products.UpsertProduct(ctx, p)
	if err != nil {
		return err
	}
	if !applied {
		c.logger.Debug("stale product update ignored", slog.String("product_id", p.ID), slog.String("event_id", env.ID))
	}
	return nil
}

// Undecodable payloads can never succeed, so they skip redelivery.
func decodeUser(env events.Envelope) (User, error) {
	var p events.UserPayload
	if err := env.Decode(&p); err != nil {
		return User{}, fmt.Errorf("%w: %v", events.ErrSkipRetry, err)
	}
	if strings.TrimSpace(p.ID) == "" {
		return User{}, fmt.Errorf("%w: %s without id", events.ErrSkipRetry, env.Topic)
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = env.Timestamp
	}
	return User{ID: p.ID, Email: p.Email, UpdatedAt: updated.UTC()}, nil
}

func decodeProduct(env events.Envelope) (Product, error) {
	var p events.ProductPayload
	if err := env.Decode(&p); err != nil {
		return Product{}, fmt.Errorf("%w: %v", events.ErrSkipRetry, err)
	}
	if strings.TrimSpace(p.ID) == "" {
		return Product{}, fmt.Errorf("%w: %s without id", events.ErrSkipRetry, env.Topic)
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = env.Timestamp
	}
	return Product{ID: p.ID, Name: p.Name, SKU: p.SKU, Price: p.Price, UpdatedAt: updated.UTC()}, nil
}
