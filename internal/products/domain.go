// Package products owns the product catalogue and announces its changes.
package products

import "time"

// Product is a catalogue entry. Price is in minor currency units.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	CategoryIDs []string  `json:"categories"`
	TagIDs      []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Patch carries optional product updates.
type Patch struct {
	Name        *string
	SKU         *string
	Description *string
	Price       *int64
}

// Category groups products for browsing. Names are unique.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CategoryPatch carries optional category updates.
type CategoryPatch struct {
	Name        *string
	Description *string
}

// Tag is a free-form product label. Values are unique.
type Tag struct {
	ID        string    `json:"id"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}
