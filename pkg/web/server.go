// Package web serves the scanner dashboard API.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"taskcam/internal/log"
	"taskcam/pkg/stability"
	"taskcam/pkg/structurer"
)

// Server exposes scanner state and controls over HTTP.
type Server struct {
	app    *fiber.App
	addr   string
	logger *slog.Logger

	monitor *stability.Monitor

	// StatusFunc returns the live scanner state for /api/status.
	StatusFunc func() map[string]interface{}

	// FrameFunc returns the latest camera frame as JPEG.
	FrameFunc func() []byte

	// PageFunc returns the last structured page, nil before the first scan.
	PageFunc func() *structurer.Page

	// OnScan forces a scan of the current frame, bypassing stability.
	OnScan func() error

	// OnPause pauses or resumes the capture loop.
	OnPause func(paused bool)
}

// NewServer creates the dashboard server. Callbacks are wired by the
// caller before Start.
func NewServer(addr string, monitor *stability.Monitor) *Server {
	s := &Server{
		addr:    addr,
		logger:  log.With("component", "web"),
		monitor: monitor,
	}

	app := fiber.New(fiber.Config{
		AppName:               "taskcam",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/frame", s.handleFrame)
	api.Get("/scan", s.handleLastScan)
	api.Get("/config", s.handleGetConfig)
	api.Post("/config", s.handleSetConfig)
	api.Post("/scan", s.handleScan)
	api.Post("/pause", s.handlePause)

	s.app = app
	return s
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("dashboard server stopped", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
