// Package web serves the voice control REST and WebSocket API.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/reachy-voice/pkg/events"
	"github.com/teslashibe/reachy-voice/pkg/voice"
)

// Prefix is the route group every endpoint lives under.
const Prefix = "/api/voice-control"

// Controller is the voice pipeline the server exposes.
// *voice.Orchestrator satisfies it.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() voice.Status
	ExecuteManualCommand(ctx context.Context, text string, useClaudeCode bool) voice.DispatchResult
	CancelExecution() error
	Events() *events.Bus
}

var _ Controller = (*voice.Orchestrator)(nil)

// Config configures the server.
type Config struct {
	// AllowOrigins lists the CORS origins. Empty allows any origin.
	AllowOrigins []string

	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
}

// Server is the HTTP front end of the voice pipeline.
type Server struct {
	app    *fiber.App
	voice  Controller
	logger *slog.Logger
}

// NewServer builds the route table.
func NewServer(ctrl Controller, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		voice:  ctrl,
		logger: logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Reachy Voice Control",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	corsCfg := cors.ConfigDefault
	if len(cfg.AllowOrigins) > 0 {
		corsCfg.AllowOrigins = strings.Join(cfg.AllowOrigins, ",")
	}
	app.Use(cors.New(corsCfg))

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group(Prefix)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Get("/status", s.handleStatus)
	api.Post("/execute", s.handleExecute)
	api.Post("/cancel", s.handleCancel)
	api.Get("/claude-code/status", s.handleClaudeCodeStatus)

	api.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, websocket.New(s.handleWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("voice control API listening", "addr", addr)
	return s.app.Listen(addr)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("voice control API listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops accepting connections and waits for open requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
