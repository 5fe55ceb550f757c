package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Loop is a long-running background task stopped by context cancellation.
type Loop func(ctx context.Context) error

// Server runs the HTTP listener alongside background loops.
type Server struct {
	logger *slog.Logger
	http   *http.Server
	grace  time.Duration
	loops  []Loop
}

// NewServer wires handler into an http.Server using the configured timeouts.
func NewServer(cfg *Config, logger *slog.Logger, handler http.Handler, loops ...Loop) *Server {
	grace := cfg.ShutdownTimeout
	if grace <= 0 {
		grace = 10 * time.Second
	}
	return &Server{
		logger: logger,
		http: &http.Server{
			Addr:              cfg.AppAddr,
			Handler:           handler,
			ReadTimeout:       cfg.AppReadTimeout,
			ReadHeaderTimeout: cfg.AppReadTimeout,
			WriteTimeout:      cfg.AppWriteTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
		grace: grace,
		loops: loops,
	}
}

// Run serves until ctx is cancelled or any loop fails, then shuts the
// listener down gracefully and waits for every loop to return.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", s.http.Addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening", slog.String("addr", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
		defer cancel()
		s.logger.Info("shutting down http server")
		return s.http.Shutdown(shutdownCtx)
	})
	for _, loop := range s.loops {
		g.Go(func() error {
			if err := loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
