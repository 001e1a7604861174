package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"svckit/internal/log"
)

// Recover catches panics raised anywhere below it in the chain, logs the
// fault centrally with its stack, and converts it into a plain error so the
// global error handler answers with the generic 500 payload. Internals never
// reach the client.
func Recover() fiber.Handler {
	return RecoverWith(log.WithComponent("http"))
}

// RecoverWith is Recover with an injected logger, for tests.
func RecoverWith(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				l := log.WithContext(c.UserContext(), logger)
				l.Error().
					Str("method", c.Method()).
					Str("path", c.Path()).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				err = fiber.ErrInternalServerError
			}
		}()
		return c.Next()
	}
}
