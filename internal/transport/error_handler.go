package transport

import (
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/payout-notifier/internal/observability"
	"go.uber.org/zap"
)

// ErrorHandler renders every handler error as a JSON envelope and logs
// it with the request's correlation id when one was seeded by RequestID.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		observability.WithContextLogger(logger, c.UserContext()).Error("request error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
