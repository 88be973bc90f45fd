package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wanderly/tours-api/internal/apperror"
	"github.com/wanderly/tours-api/internal/models"
)

// RestrictTo gates a route to the given roles. Must run after Protect.
func RestrictTo(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := CurrentUser(c)
		if user == nil || !user.Role.OneOf(roles...) {
			return apperror.Forbidden("You do not have permission to perform this action")
		}
		return c.Next()
	}
}
