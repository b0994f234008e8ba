// server/http/server.go
package http

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"

	"github.com/vinizap/diary/server/storage"
)

type Server struct {
	store storage.Gateway
	log   zerolog.Logger
}

func NewServer(store storage.Gateway, log zerolog.Logger) *Server {
	return &Server{store: store, log: log}
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "digital-diary",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(requestid.New())
	app.Use(s.logRequests)
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/", s.HandleWelcome)
	app.Get("/health", s.HandleHealth)
	app.Get("/ready", s.HandleReady)

	app.Get("/memories", s.HandleListMemories)
	app.Post("/memories", s.HandleCreateMemory)
	app.Put("/memories", s.HandleUpdateMemory)
	app.Delete("/memories", s.HandleDeleteMemory)

	return app
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests
// for at most shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	app := s.App()

	errCh := make(chan error, 1)
	go func() { errCh <- app.Listen(addr) }()
	s.log.Info().Str("addr", addr).Msg("server listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// handleError turns errors that escape a handler into a JSON body. Fiber
// errors keep their status; anything else is an opaque 500.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	s.log.Error().Err(err).
		Str("request_id", requestID(c)).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Msg("unhandled error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()

	if chainErr := c.Next(); chainErr != nil {
		if err := c.App().ErrorHandler(c, chainErr); err != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()
	event := s.log.Info()
	switch {
	case status >= fiber.StatusInternalServerError:
		event = s.log.Error()
	case status >= fiber.StatusBadRequest:
		event = s.log.Warn()
	}
	event.
		Str("request_id", requestID(c)).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Msg("request")
	return nil
}

func requestID(c *fiber.Ctx) string {
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
