// Package rayid provides request-id middleware. Every request is tagged
// with a unique ray id, stored in locals and echoed in the X-Ray-ID
// response header, so log lines across a request can be correlated.
package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// New returns the ray-id middleware. An incoming X-Ray-ID header is
// honored so upstream proxies can propagate their own id.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get("X-Ray-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals("ray_id", rid)
		c.Set("X-Ray-ID", rid)
		return c.Next()
	}
}
