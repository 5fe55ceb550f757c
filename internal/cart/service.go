package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/delifood/delifood/internal/replica"
	"github.com/delifood/delifood/internal/shared"
)

// Repository persists cart items.
type Repository interface {
	// AddItem inserts the line or adds qty to an existing one.
	AddItem(ctx context.Context, item Item) (Item, error)
	Items(ctx context.Context, userID string) ([]Item, error)
	SetQuantity(ctx context.Context, userID, productID string, qty int, at time.Time) (Item, error)
	RemoveItem(ctx context.Context, userID, productID string) error
}

// Replicas reads the locally replicated users and products.
type Replicas interface {
	GetUser(ctx context.Context, id string) (replica.User, error)
	GetProduct(ctx context.Context, id string) (replica.Product, error)
}

// Service implements cart operations for an authenticated caller.
type Service struct {
	repo     Repository
	replicas Replicas
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, replicas Replicas) *Service {
	return &Service{repo: repo, replicas: replicas, now: time.Now}
}

// AddItem puts qty of productID in the caller's cart.
func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) (Item, error) {
	if qty < 1 {
		return Item{}, shared.Invalid("quantity must be at least 1")
	}
	if err := s.checkUser(ctx, userID); err != nil {
		return Item{}, err
	}
	if _, err := s.replicas.GetProduct(ctx, productID); err != nil {
		return Item{}, productErr(err)
	}
	now := s.now().UTC()
	return s.repo.AddItem(ctx, Item{UserID: userID, ProductID: productID, Quantity: qty, CreatedAt: now, UpdatedAt: now})
}

// Cart returns the caller's cart priced from the product replica.
func (s *Service) Cart(ctx context.Context, userID string) (View, error) {
	if err := s.checkUser(ctx, userID); err != nil {
		return View{}, err
	}
	items, err := s.repo.Items(ctx, userID)
	if err != nil {
		return View{}, err
	}
	view := View{UserID: userID, Items: make([]Line, 0, len(items))}
	for _, it := range items {
		p, err := s.replicas.GetProduct(ctx, it.ProductID)
		if err != nil {
			return View{}, fmt.Errorf("cart: price %s: %w", it.ProductID, err)
		}
		line := Line{
			ProductID: it.ProductID,
			Name:      p.Name,
			SKU:       p.SKU,
			Price:     p.Price,
			Quantity:  it.Quantity,
			Subtotal:  p.Price * int64(it.Quantity),
		}
		view.Total += line.Subtotal
		view.Items = append(view.Items, line)
	}
	return view, nil
}

// SetQuantity changes the quantity of a line already in the cart.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, qty int) (Item, error) {
	if qty < 1 {
		return Item{}, shared.Invalid("quantity must be at least 1")
	}
	if err := s.checkUser(ctx, userID); err != nil {
		return Item{}, err
	}
	return s.repo.SetQuantity(ctx, userID, productID, qty, s.now().UTC())
}

// RemoveItem drops a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	if err := s.checkUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.RemoveItem(ctx, userID, productID)
}

// checkUser rejects callers whose account has not reached the replica.
func (s *Service) checkUser(ctx context.Context, userID string) error {
	_, err := s.replicas.GetUser(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("cart: user %s not replicated: %w", userID, shared.ErrForbidden)
	}
	return err
}

func productErr(err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: product does not exist", shared.ErrNotFound)
	}
	return err
}
