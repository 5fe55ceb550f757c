package auth

import "time"

// DefaultRole is assigned to every self-registered account.
const DefaultRole = "User"

// User represents an account owned by the identity service.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	RoleIDs      []string  `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserPatch carries optional account updates. PasswordHash is set by the
// service, never by callers.
type UserPatch struct {
	Email        *string
	PasswordHash *string
}

// SignedInUser is the identity snapshot returned with a fresh token.
type SignedInUser struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// Session is the sign-in response.
type Session struct {
	User      SignedInUser `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}
