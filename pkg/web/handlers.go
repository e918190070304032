package web

import (
	"github.com/gofiber/fiber/v2"

	"taskcam/pkg/stability"
)

// handleStatus returns the live scanner state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.StatusFunc == nil {
		return c.JSON(fiber.Map{"monitor": s.monitor.Snapshot()})
	}
	return c.JSON(s.StatusFunc())
}

// handleFrame returns the latest camera frame as JPEG.
func (s *Server) handleFrame(c *fiber.Ctx) error {
	if s.FrameFunc == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "frame source not configured",
		})
	}
	jpeg := s.FrameFunc()
	if len(jpeg) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no frame captured yet",
		})
	}
	c.Set("Content-Type", "image/jpeg")
	return c.Send(jpeg)
}

// handleLastScan returns the most recent structured page.
func (s *Server) handleLastScan(c *fiber.Ctx) error {
	if s.PageFunc == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "scan source not configured",
		})
	}
	page := s.PageFunc()
	if page == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no scan recorded yet",
		})
	}
	return c.JSON(page)
}

// handleGetConfig returns the stability monitor configuration.
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(s.monitor.Config())
}

// handleSetConfig replaces the stability monitor configuration. Invalid
// settings are rejected whole; the monitor keeps its current config.
func (s *Server) handleSetConfig(c *fiber.Ctx) error {
	var cfg stability.Config
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid config body: " + err.Error(),
		})
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "validation failed",
			"errors": errs,
		})
	}

	s.monitor.SetConfig(cfg)
	s.logger.Info("monitor config updated",
		"stable_frames", cfg.StableFrames, "tolerance", cfg.PositionTolerance)
	return c.JSON(cfg)
}

// handleScan forces a scan of the current frame.
func (s *Server) handleScan(c *fiber.Ctx) error {
	if s.OnScan == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "scan trigger not configured",
		})
	}
	if err := s.OnScan(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"scan": "submitted"})
}

// pauseRequest is the body for /api/pause.
type pauseRequest struct {
	Paused bool `json:"paused"`
}

// handlePause pauses or resumes the capture loop.
func (s *Server) handlePause(c *fiber.Ctx) error {
	var req pauseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid pause body: " + err.Error(),
		})
	}
	if s.OnPause == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "pause control not configured",
		})
	}
	s.OnPause(req.Paused)
	return c.JSON(fiber.Map{"paused": req.Paused})
}
