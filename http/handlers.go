// server/http/handlers.go
package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/vinizap/diary/server/domain"
)

func (s *Server) HandleWelcome(c *fiber.Ctx) error {
	return c.SendString("Welcome to the Digital Diary API")
}

func (s *Server) HandleHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).SendString("OK")
}

// HandleReady reports whether the store answers a ping.
func (s *Server) HandleReady(c *fiber.Ctx) error {
	if err := s.store.Ping(c.UserContext()); err != nil {
		s.logFailure(c, "Database unavailable", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Database unavailable"})
	}
	return c.SendString("OK")
}

func (s *Server) HandleListMemories(c *fiber.Ctx) error {
	memories, err := s.store.List(c.UserContext())
	if err != nil {
		return s.serverError(c, "Failed to fetch memories", err)
	}
	return c.JSON(memories)
}

func (s *Server) HandleCreateMemory(c *fiber.Ctx) error {
	var req struct {
		Title   string `json:"title" form:"title"`
		Content string `json:"content" form:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	err := domain.RequireFields(map[string]string{
		"title":   req.Title,
		"content": req.Content,
	}, "title", "content")
	if err != nil {
		return validationFailed(c, "Title and content are required", err)
	}

	id, err := s.store.Insert(c.UserContext(), domain.Memory{Title: req.Title, Content: req.Content})
	if err != nil {
		return s.serverError(c, "Failed to save memory", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Memory saved successfully",
		"id":      id,
	})
}

func (s *Server) HandleUpdateMemory(c *fiber.Ctx) error {
	var req struct {
		ObjectID string `json:"objectID" form:"objectID"`
		Title    string `json:"title" form:"title"`
		Content  string `json:"content" form:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	err := domain.RequireFields(map[string]string{
		"objectID": req.ObjectID,
		"title":    req.Title,
		"content":  req.Content,
	}, "objectID", "title", "content")
	if err != nil {
		return validationFailed(c, "objectID, title and content are required", err)
	}

	res, err := s.store.Update(c.UserContext(), req.ObjectID, req.Title, req.Content)
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		return badRequest(c, "Invalid memory id")
	case err != nil:
		return s.serverError(c, "Failed to update memory", err)
	case !res.Matched():
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Memory not found"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Memory updated successfully",
		"id":      req.ObjectID,
	})
}

func (s *Server) HandleDeleteMemory(c *fiber.Ctx) error {
	var req struct {
		ID string `json:"id" form:"id"`
	}
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.ID == "" {
		return validationFailed(c, "ID is required", &domain.ValidationError{Missing: []string{"id"}})
	}

	res, err := s.store.Delete(c.UserContext(), req.ID)
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		return badRequest(c, "Invalid memory id")
	case err != nil:
		return s.serverError(c, "Failed to delete memory", err)
	case !res.Deleted():
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Memory not found"})
	}

	return c.JSON(fiber.Map{"message": "Memory deleted successfully"})
}

// parseBody decodes a JSON or form-encoded body into out, chosen by the
// Content-Type header. An empty body leaves out untouched so the
// required-field checks report what is missing.
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return c.BodyParser(out)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func validationFailed(c *fiber.Ctx, msg string, err error) error {
	body := fiber.Map{"error": msg}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body["missing"] = verr.Missing
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

// serverError logs the cause and answers with an opaque 500.
func (s *Server) serverError(c *fiber.Ctx, msg string, err error) error {
	s.logFailure(c, msg, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msg})
}

func (s *Server) logFailure(c *fiber.Ctx, msg string, err error) {
	s.log.Error().Err(err).
		Str("request_id", requestID(c)).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Bool("store_unreachable", errors.Is(err, domain.ErrConnection)).
		Msg(msg)
}
