// Package web serves the scoring dashboard API and live report feed.
package web

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/hub"
	"github.com/teslashibe/go-mimic/pkg/reference"
	"github.com/teslashibe/go-mimic/pkg/report"
	"github.com/teslashibe/go-mimic/pkg/runner"
	"github.com/teslashibe/go-mimic/pkg/store"
)

// Controller is the live session the dashboard drives, usually a
// *runner.Runner.
type Controller interface {
	Report() report.Report
	Stats() runner.Stats
	Reset(ctx context.Context) error
	End(ctx context.Context) error
	Load(ctx context.Context, clip *reference.Clip) error
}

// History is the stored session summaries, usually a *store.DB.
type History interface {
	Get(ctx context.Context, id string) (store.Record, error)
	Recent(ctx context.Context, limit int) ([]store.Record, error)
	ForReference(ctx context.Context, reference string, limit int) ([]store.Record, error)
	BestPerReference(ctx context.Context) ([]store.Record, error)
}

// Config wires the server to the rest of the process. Only Controller is
// required; routes backed by a nil dependency answer 503.
type Config struct {
	Controller Controller
	Library    *reference.Library
	History    History
	Hub        *hub.Hub

	// StaticDir is served at / when set.
	StaticDir string
}

// Server is the dashboard HTTP server.
type Server struct {
	app    *fiber.App
	cfg    Config
	log    *slog.Logger
	stream fiber.Handler
}

// NewServer builds the routes.
func NewServer(cfg Config) *Server {
	s := &Server{cfg: cfg, log: log.Component("web")}
	if cfg.Hub != nil {
		s.stream = websocket.New(cfg.Hub.Serve)
	}

	app := fiber.New(fiber.Config{
		AppName:               "Mimic Dashboard",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/report", s.handleReport)
	api.Get("/status", s.handleStatus)
	api.Post("/session/reset", s.handleReset)
	api.Post("/session/end", s.handleEnd)
	api.Get("/clips", s.handleListClips)
	api.Post("/clips/:name", s.handleLoadClip)
	api.Get("/sessions", s.handleListSessions)
	api.Get("/sessions/best", s.handleBestSessions)
	api.Get("/sessions/:id", s.handleGetSession)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/report", s.handleReportWS)

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.log.Info("dashboard listening", "addr", addr)
	return s.app.Listen(addr)
}

// Run serves on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() { errc <- s.Listen(addr) }()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errc:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
