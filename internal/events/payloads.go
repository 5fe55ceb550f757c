package events

import "time"

// UserPayload is published on user.created and user.updated.
type UserPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProductPayload is published on product.created and product.updated.
// Price is in minor currency units.
type ProductPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Price     int64     `json:"price"`
	UpdatedAt time.Time `json:"updatedAt"`
}
