// Package token seals credential payloads into opaque bearer tokens and
// signs service-to-service tokens.
package token

import "time"

// User is the identity snapshot carried inside a sealed token.
type User struct {
	ID          string   `json:"id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Payload is the sealed credential. Timestamps are epoch milliseconds.
type Payload struct {
	User      User  `json:"user"`
	IssuedAt  int64 `json:"issuedAt"`
	ExpiresAt int64 `json:"expiresAt"`
}

// Expired reports whether now is past ExpiresAt.
func (p Payload) Expired(now time.Time) bool {
	return now.UnixMilli() > p.ExpiresAt
}

// IssuedTime returns IssuedAt as a time.Time.
func (p Payload) IssuedTime() time.Time {
	return time.UnixMilli(p.IssuedAt)
}

// ExpiresTime returns ExpiresAt as a time.Time.
func (p Payload) ExpiresTime() time.Time {
	return time.UnixMilli(p.ExpiresAt)
}
