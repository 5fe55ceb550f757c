package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/delifood/delifood/internal/observability"
	"github.com/delifood/delifood/internal/platform/httpx"
)

// Mounter is implemented by every service handler.
type Mounter interface {
	MountRoutes(r chi.Router)
}

// Pinger reports dependency health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger    *slog.Logger
	Config    *Config
	Metrics   *observability.Metrics
	RateLimit int
	Handlers  []Mounter
	Checks    map[string]Pinger
}

// NewRouter constructs the chi.Router with delifood defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:    params.Logger,
		Config:    params.Config,
		Metrics:   params.Metrics,
		RateLimit: params.RateLimit,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthz(params.Logger, params.Checks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	for _, h := range params.Handlers {
		h.MountRoutes(r)
	}
	return r
}

// healthz keeps dependency errors in the log; the body only says which
// check failed.
func healthz(logger *slog.Logger, checks map[string]Pinger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, c := range checks {
			if err := c.Ping(ctx); err != nil {
				logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
				status[name] = "error"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		httpx.JSON(w, code, status)
	}
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
