package authgate

import (
	"log/slog"
	"net/http"

	"github.com/delifood/delifood/internal/platform/httpx"
)

// Require admits callers holding at least one of perms.
func (g *Gate) Require(perms ...string) func(http.Handler) http.Handler {
	return g.Guard(Any(perms...))
}

// RequireAll admits callers holding every one of perms.
func (g *Gate) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return g.Guard(All(perms...))
}

// RequireOrService admits callers holding one of perms and any service principal.
func (g *Gate) RequireOrService(perms ...string) func(http.Handler) http.Handler {
	return g.Guard(Requirement{Permissions: perms, Services: true})
}

// Guard enforces req on every request passing through.
func (g *Gate) Guard(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, outcome, err := g.Decide(r, req)
			if outcome != Authenticated {
				g.logger.Debug("authgate denied",
					slog.String("outcome", outcome.String()),
					slog.String("path", r.URL.Path),
					slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
