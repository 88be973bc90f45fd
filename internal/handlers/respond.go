package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wanderly/tours-api/internal/auth"
	"github.com/wanderly/tours-api/internal/models"
)

func success(c *fiber.Ctx, status int, data fiber.Map) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

func successList(c *fiber.Ctx, results int, data fiber.Map) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"results": results,
		"data":    data,
	})
}

// sendToken writes the session cookie and returns the token in the body as
// well, so API clients that ignore cookies can use the Bearer header.
func sendToken(c *fiber.Ctx, status int, user *models.User, token string, cookieDays int) error {
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Expires:  time.Now().Add(time.Duration(cookieDays) * 24 * time.Hour),
		HTTPOnly: true,
		Secure:   isSecure(c),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"token":  token,
		"data":   fiber.Map{"user": user},
	})
}

// expireSessionCookie overwrites the cookie with a short-lived placeholder.
// Previously issued tokens stay valid until their own expiry; there is no
// server-side revocation.
func expireSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    "logged-out",
		Expires:  time.Now().Add(10 * time.Second),
		HTTPOnly: true,
		Secure:   isSecure(c),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func isSecure(c *fiber.Ctx) bool {
	return c.Protocol() == "https" || c.Get("X-Forwarded-Proto") == "https"
}
