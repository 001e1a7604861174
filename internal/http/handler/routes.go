package handler

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"svckit/internal/health"
	"svckit/internal/service"
)

// payloadURLTTL bounds how long a presigned payload download stays valid.
const payloadURLTTL = 15 * time.Minute

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal; business logic lives in the service layer.
func RegisterRoutes(app *fiber.App, checks *health.Registry, evSvc service.EventService, gatherer prometheus.Gatherer) {
	// Serve the OpenAPI spec and a CDN-backed Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/healthz", Liveness())
	app.Get("/health", Readiness(checks))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	app.Post("/events", ingestEvent(evSvc))
	app.Get("/events", listEvents(evSvc))
	app.Get("/events/:id", getEvent(evSvc))
	app.Get("/events/:id/payload", getEventPayload(evSvc))
	app.Delete("/events/:id", deleteEvent(evSvc))
}

// Liveness is a simple liveness probe: the process is up.
func Liveness() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Readiness runs every registered dependency probe and reports the
// aggregate. Any failing probe turns the answer into a 503 with per-check
// detail.
func Readiness(checks *health.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report := checks.Check(c.UserContext())
		status := fiber.StatusOK
		if report.Status == health.StatusDown {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(report)
	}
}

type ingestRequest struct {
	Type       string          `json:"type"`
	Source     string          `json:"source"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt *time.Time      `json:"occurred_at"`
}

func ingestEvent(evSvc service.EventService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ingestRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON")
		}

		in := service.IngestInput{
			Type:    req.Type,
			Source:  req.Source,
			Payload: req.Payload,
		}
		if req.OccurredAt != nil {
			in.OccurredAt = *req.OccurredAt
		}

		ev, err := evSvc.Ingest(c.UserContext(), in)
		if err != nil {
			if errors.Is(err, service.ErrTypeRequired) {
				return writeError(c, fiber.StatusBadRequest, "TYPE_REQUIRED", "event type is required")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.Status(fiber.StatusCreated).JSON(ev)
	}
}

func listEvents(evSvc service.EventService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := evSvc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

func getEvent(evSvc service.EventService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		ev, err := evSvc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "event not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(ev)
	}
}

// getEventPayload serves the event body: inline payloads come straight from
// the row, offloaded ones redirect to a presigned object-store URL.
func getEventPayload(evSvc service.EventService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		ev, err := evSvc.Get(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "event not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		if ev.Inline() {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(ev.Payload)
		}

		u, err := evSvc.PayloadURL(c.UserContext(), id, payloadURLTTL)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.Redirect(u, fiber.StatusTemporaryRedirect)
	}
}

func deleteEvent(evSvc service.EventService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := evSvc.Delete(c.UserContext(), id); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "event not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
