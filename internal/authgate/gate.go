package authgate

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/delifood/delifood/internal/rbac"
	"github.com/delifood/delifood/internal/shared"
	"github.com/delifood/delifood/internal/token"
)

// Outcome is the three-way result of gating a request.
type Outcome int

const (
	Authenticated Outcome = iota + 1
	Unauthenticated
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Unsealer opens sealed user tokens.
type Unsealer interface {
	Unseal(raw string) (token.Payload, error)
}

// ServiceVerifier validates service-to-service tokens.
type ServiceVerifier interface {
	Verify(raw string) (token.ServiceClaims, error)
}

// Option configures a Gate.
type Option func(*Gate)

// WithServiceTokens enables service principals.
func WithServiceTokens(v ServiceVerifier) Option {
	return func(g *Gate) { g.services = v }
}

// WithCache keeps up to size unsealed payloads for ttl. Expiry is still
// checked on every request.
func WithCache(size int, ttl time.Duration) Option {
	return func(g *Gate) {
		if size > 0 && ttl > 0 {
			g.cache = expirable.NewLRU[string, token.Payload](size, nil, ttl)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// Gate authenticates requests and checks permission requirements.
type Gate struct {
	codec    Unsealer
	services ServiceVerifier
	cache    *expirable.LRU[string, token.Payload]
	now      func() time.Time
	logger   *slog.Logger
}

// New constructs a Gate around codec.
func New(codec Unsealer, logger *slog.Logger, opts ...Option) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{codec: codec, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authenticate resolves an Authorization header value into a principal.
// Every failure wraps shared.ErrUnauthenticated.
func (g *Gate) Authenticate(header string) (Principal, error) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(header), "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return Principal{}, fmt.Errorf("missing bearer token: %w", shared.ErrUnauthenticated)
	}
	if token.IsSealed(raw) {
		return g.authenticateUser(raw)
	}
	if g.services != nil {
		claims, err := g.services.Verify(raw)
		if err != nil {
			return Principal{}, fmt.Errorf("service token: %w", shared.ErrUnauthenticated)
		}
		p := Principal{Kind: KindService, ID: claims.Subject}
		if claims.ExpiresAt != nil {
			p.ExpiresAt = claims.ExpiresAt.Time
		}
		return p, nil
	}
	return Principal{}, fmt.Errorf("unrecognised token: %w", shared.ErrUnauthenticated)
}

func (g *Gate) authenticateUser(raw string) (Principal, error) {
	payload, cached := token.Payload{}, false
	if g.cache != nil {
		payload, cached = g.cache.Get(raw)
	}
	if !cached {
		var err error
		payload, err = g.codec.Unseal(raw)
		if err != nil {
			return Principal{}, fmt.Errorf("unseal: %w", shared.ErrUnauthenticated)
		}
	}
	if payload.Expired(g.now()) {
		if g.cache != nil {
			g.cache.Remove(raw)
		}
		return Principal{}, fmt.Errorf("token expired: %w", shared.ErrUnauthenticated)
	}
	if g.cache != nil && !cached {
		g.cache.Add(raw, payload)
	}
	return Principal{
		Kind:        KindUser,
		ID:          payload.User.ID,
		Roles:       payload.User.Roles,
		Permissions: rbac.NewPermissionSet(payload.User.Permissions...),
		ExpiresAt:   payload.ExpiresTime(),
	}, nil
}

// Authorize checks p against req. Failures wrap shared.ErrForbidden.
func (g *Gate) Authorize(p Principal, req Requirement) error {
	if p.Kind == KindService {
		if req.Services {
			return nil
		}
		return fmt.Errorf("service principal %s: %w", p.ID, shared.ErrForbidden)
	}
	if len(req.Permissions) == 0 {
		return nil
	}
	granted := p.Permissions.HasAny(req.Permissions...)
	if req.All {
		granted = p.Permissions.HasAll(req.Permissions...)
	}
	if !granted {
		return fmt.Errorf("missing %s: %w", strings.Join(req.Permissions, "|"), shared.ErrForbidden)
	}
	return nil
}

// Decide runs authentication then authorization for r. A principal already
// attached to the request context is reused.
func (g *Gate) Decide(r *http.Request, req Requirement) (Principal, Outcome, error) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		var err error
		p, err = g.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			return Principal{}, Unauthenticated, err
		}
	}
	if err := g.Authorize(p, req); err != nil {
		return p, Forbidden, err
	}
	return p, Authenticated, nil
}

// IsUnauthenticated reports whether err is an authentication failure.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, shared.ErrUnauthenticated)
}
