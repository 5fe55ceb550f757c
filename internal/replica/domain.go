// Package replica maintains read-only local copies of users and products
// owned by other services, fed by their created/updated events.
package replica

import (
	"context"
	"time"
)

// User is the local copy of an identity-service user.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Product is the local copy of a catalogue product.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Price     int64     `json:"price"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserStore persists user replicas. InsertUser reports an existing id as
// *shared.ConflictError. UpsertUser never replaces a row with a newer
// UpdatedAt and reports whether it wrote.
type UserStore interface {
	InsertUser(ctx context.Context, u User) error
	UpsertUser(ctx context.Context, u User) (bool, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// ProductStore persists product replicas with the same rules as UserStore.
type ProductStore interface {
	InsertProduct(ctx context.Context, p Product) error
	UpsertProduct(ctx context.Context, p Product) (bool, error)
	GetProduct(ctx context.Context, id string) (Product, error)
}
