package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"svckit/internal/log"
)

// Logger logs one structured line per request: request_id, method, path,
// status and latency. The line is emitted after the handler ran so it
// carries the final status.
func Logger() fiber.Handler {
	return LoggerWith(log.WithComponent("http"))
}

// LoggerWith is Logger with an injected logger, for tests.
func LoggerWith(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		rid, _ := c.Locals(RequestIDLocalKey).(string)
		status := c.Response().StatusCode()
		if err != nil {
			if fiberErr, ok := err.(*fiber.Error); ok {
				status = fiberErr.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		evt := logger.Info()
		if status >= fiber.StatusInternalServerError {
			evt = logger.Error()
		}
		evt.
			Str("request_id", rid).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")

		return err
	}
}
