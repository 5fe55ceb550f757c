// Package authgate authenticates bearer tokens and authorizes the resulting
// principals against per-route permission requirements.
package authgate

import (
	"context"
	"time"

	"github.com/delifood/delifood/internal/rbac"
)

// Kind distinguishes end users from calling services.
type Kind int

const (
	KindUser Kind = iota + 1
	KindService
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindService:
		return "service"
	default:
		return "unknown"
	}
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	Kind        Kind
	ID          string
	Roles       []string
	Permissions rbac.PermissionSet
	ExpiresAt   time.Time
}

// Requirement describes what a route needs from its caller. Permissions are
// OR-ed unless All is set. An empty permission list only requires
// authentication.
type Requirement struct {
	Permissions []string
	All         bool
	// Services admits service principals, which carry no permissions.
	Services bool
}

// Any builds an OR requirement.
func Any(perms ...string) Requirement {
	return Requirement{Permissions: perms}
}

// All builds an AND requirement.
func All(perms ...string) Requirement {
	return Requirement{Permissions: perms, All: true}
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by the gate, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
