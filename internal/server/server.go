// Package server exposes the synthesis pipeline over HTTP.
package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"

	"piperd/internal/synth"
	"piperd/internal/tts"
)

// Server is the HTTP front end.
type Server struct {
	app   *fiber.App
	synth *synth.Synthesizer

	// synthesisTimeout bounds one request end to end, including queueing
	// for a worker slot.
	synthesisTimeout time.Duration
}

// Config holds HTTP server configuration.
type Config struct {
	// BodyLimit caps request body size. Defaults to 1MB, plenty for 5000
	// characters of JSON.
	BodyLimit int

	// SynthesisTimeout bounds one /tts request. Defaults to 2 minutes.
	SynthesisTimeout time.Duration
}

// New creates the server and registers all routes.
func New(synthesizer *synth.Synthesizer, config Config) *Server {
	if config.BodyLimit <= 0 {
		config.BodyLimit = 1024 * 1024
	}
	if config.SynthesisTimeout <= 0 {
		config.SynthesisTimeout = 2 * time.Minute
	}

	app := fiber.New(fiber.Config{
		AppName:               "piperd",
		BodyLimit:             config.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		app:              app,
		synth:            synthesizer,
		synthesisTimeout: config.SynthesisTimeout,
	}

	app.Use(requestLogger)

	app.Post("/tts", s.handleTTS)
	app.Get("/voices", s.handleVoices)
	app.Get("/healthz", s.handleHealth)
	app.Get("/cache/stats", s.handleCacheStats)

	return s
}

// Listen blocks serving HTTP on addr.
func (s *Server) Listen(addr string) error {
	log.Info("Listening", "addr", addr)
	if err := s.app.Listen(addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// requestLogger logs one line per request with method, path, status and
// duration. The cache disposition is logged by the synthesis pipeline,
// where it is known.
func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	// The error handler has not run yet when the middleware unwinds, so
	// the response still reads 200 on error paths; map the error instead.
	status := c.Response().StatusCode()
	if err != nil {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		} else {
			status = tts.HTTPStatus(err)
		}
	}

	logger := log.Info
	if status >= 500 {
		logger = log.Error
	} else if status >= 400 {
		logger = log.Warn
	}
	logger("Request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration", time.Since(start))

	return err
}

// errorHandler renders every error as the JSON error body documented in the
// API reference.
func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
	} else {
		status = tts.HTTPStatus(err)
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
