package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/wanderly/tours-api/internal/apperror"
	"github.com/wanderly/tours-api/internal/auth"
	"github.com/wanderly/tours-api/internal/models"
	"github.com/wanderly/tours-api/internal/repository"
	"github.com/wanderly/tours-api/internal/services"
)

// UserKey is the locals key the authenticated user is stored under.
const UserKey = "user"

// Protect authenticates the request. The Bearer header wins over the session
// cookie. Beyond signature and expiry, the token is rejected when the user
// is gone (or deactivated) or rotated their password after issuance.
func Protect(tokens *auth.TokenManager, users services.UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.FromSources(c.Get("Authorization"), c.Cookies(auth.CookieName))
		if token == "" {
			return apperror.Unauthorized("You are not logged in! Please log in to get access.")
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			return apperror.Unauthorized("Invalid token. Please log in again.")
		}

		user, err := users.ByID(c.Context(), claims.Subject)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Unauthorized("The user belonging to this token does no longer exist.")
		}
		if err != nil {
			return err
		}

		if claims.IssuedAt == nil || user.ChangedPasswordAfter(claims.IssuedAt.Time) {
			return apperror.Unauthorized("User recently changed password! Please log in again.")
		}

		c.Locals(UserKey, user)
		return c.Next()
	}
}

// CurrentUser returns the user stored by Protect; nil before Protect ran.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(UserKey).(*models.User)
	return user
}
