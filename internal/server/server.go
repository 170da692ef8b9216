package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody_auth/internal/config"
	"github.com/congo-pay/custody_auth/internal/middleware"
	"github.com/congo-pay/custody_auth/internal/routes"
)

// Server wraps the Fiber application and the components that must be
// drained on shutdown.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	runtime *routes.Runtime
	logger  *slog.Logger
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// d.Cfg must be set; d.Logger defaults to slog.Default.
func New(d routes.Deps) (*Server, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	app := fiber.New(fiber.Config{
		AppName:      d.Cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    64 * 1024,
		ErrorHandler: middleware.ErrorHandler(d.Logger),
	})

	rt, err := routes.Setup(app, d)
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: d.Cfg, runtime: rt, logger: d.Logger}, nil
}

// App exposes the underlying Fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting requests, then waits for pending audit writes.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	if err := s.runtime.Recorder.Drain(ctx); err != nil {
		s.logger.Warn("audit writes still pending at shutdown", slog.Any("error", err))
	}
	return nil
}
