package transport

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kursadbilgin/payout-notifier/internal/observability"
)

// RequestID tags every request with a correlation id. An inbound
// X-Request-ID header wins; otherwise a fresh UUID is minted. The id is
// echoed on the response and seeded into the request's user context so
// downstream logs carry it.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals("requestid", id)
		c.Set(fiber.HeaderXRequestID, id)
		c.SetUserContext(observability.WithCorrelationID(c.UserContext(), id))

		return c.Next()
	}
}
