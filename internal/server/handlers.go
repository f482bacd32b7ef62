package server

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"piperd/internal/tts"
)

// handleTTS implements POST /tts: JSON in, audio bytes out.
func (s *Server) handleTTS(c *fiber.Ctx) error {
	var req tts.Request
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}

	ctx, cancel := context.WithTimeout(c.Context(), s.synthesisTimeout)
	defer cancel()

	result, err := s.synth.Synthesize(ctx, req)
	if err != nil {
		return err
	}

	disposition := "miss"
	if result.CacheHit {
		disposition = "hit"
	}

	filename := fmt.Sprintf("output_%s.%s", uuid.NewString(), result.Format.Extension())
	c.Set(fiber.HeaderContentType, result.Format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", filename))
	c.Set("X-Cache", disposition)

	return c.Send(result.Audio)
}

// handleVoices implements GET /voices.
func (s *Server) handleVoices(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"voices": s.synth.Voices()})
}

// handleHealth implements GET /healthz. 200 when the default engine is
// usable, 503 otherwise; the body carries the per-dependency breakdown
// either way.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	health := s.synth.Health()
	status := fiber.StatusOK
	if !health.Healthy() {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(health)
}

// handleCacheStats implements GET /cache/stats.
func (s *Server) handleCacheStats(c *fiber.Ctx) error {
	return c.JSON(s.synth.CacheStats())
}
