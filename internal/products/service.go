package products

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/delifood/delifood/internal/events"
	"github.com/delifood/delifood/internal/shared"
)

// Repository persists products.
type Repository interface {
	Create(ctx context.Context, p Product) (Product, error)
	Get(ctx context.Context, id string) (Product, error)
	List(ctx context.Context) ([]Product, error)
	Update(ctx context.Context, id string, patch Patch) (Product, error)
	Delete(ctx context.Context, id string) error
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Service implements catalogue operations.
type Service struct {
	repo      Repository
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, publisher: publisher, logger: logger, now: time.Now}
}

// Create adds a product. A duplicate SKU conflicts.
func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.TrimSpace(p.SKU)
	if p.Name == "" || p.SKU == "" {
		return Product{}, shared.Invalid("name and sku required")
	}
	if p.Price < 0 {
		return Product{}, shared.Invalid("price must not be negative")
	}
	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.announce(ctx, events.TopicProductCreated, created)
	return created, nil
}

// Get returns a product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	return s.repo.Get(ctx, id)
}

// List returns the catalogue.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

// Update applies patch and announces the new state.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (Product, error) {
	if patch == (Patch{}) {
		return Product{}, shared.Invalid("nothing to update")
	}
	if patch.Price != nil && *patch.Price < 0 {
		return Product{}, shared.Invalid("price must not be negative")
	}
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Product{}, err
	}
	s.announce(ctx, events.TopicProductUpdated, updated)
	return updated, nil
}

// Delete removes a product. Cart replicas keep their copy.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

const publishTimeout = 5 * time.Second

// announce outlives the request that triggered it.
func (s *Service) announce(ctx context.Context, topic string, p Product) {
	payload := events.ProductPayload{ID: p.ID, Name: p.Name, SKU: p.SKU, Price: p.Price, UpdatedAt: p.UpdatedAt}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, topic, payload); err != nil {
		s.logger.Error("publish product event",
			slog.String("topic", topic),
			slog.String("product_id", p.ID),
			slog.Any("error", err))
	}
}
