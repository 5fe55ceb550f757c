// Package cart keeps per-user shopping carts, validated against the local
// user and product replicas.
package cart

import "time"

// Item is one product line in a user's cart.
type Item struct {
	UserID    string    `json:"-"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Line is an item priced from the product replica.
type Line struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

// View is the priced cart returned to callers.
type View struct {
	UserID string `json:"userId"`
	Items  []Line `json:"items"`
	Total  int64  `json:"total"`
}
