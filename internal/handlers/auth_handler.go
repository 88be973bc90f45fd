package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wanderly/tours-api/internal/apperror"
	"github.com/wanderly/tours-api/internal/middleware"
	"github.com/wanderly/tours-api/internal/services"
)

type AuthHandler struct {
	auth       *services.AuthService
	cookieDays int
}

func NewAuthHandler(auth *services.AuthService, cookieDays int) *AuthHandler {
	return &AuthHandler{auth: auth, cookieDays: cookieDays}
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var in services.SignupInput
	if err := c.BodyParser(&in); err != nil {
		return apperror.BadRequest("Invalid request body")
	}

	user, token, err := h.auth.Signup(c.Context(), in, c.BaseURL()+"/me")
	if err != nil {
		return err
	}
	return sendToken(c, fiber.StatusCreated, user, token, h.cookieDays)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&in); err != nil {
		return apperror.BadRequest("Invalid request body")
	}

	user, token, err := h.auth.Login(c.Context(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return sendToken(c, fiber.StatusOK, user, token, h.cookieDays)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	expireSessionCookie(c)
	return c.JSON(fiber.Map{"status": "success"})
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var in struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&in); err != nil {
		return apperror.BadRequest("Invalid request body")
	}

	resetURLBase := c.BaseURL() + "/api/v1/users/resetPassword"
	if err := h.auth.ForgotPassword(c.Context(), in.Email, resetURLBase); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "Token sent to email!",
	})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var in struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&in); err != nil {
		return apperror.BadRequest("Invalid request body")
	}

	user, token, err := h.auth.ResetPassword(c.Context(), c.Params("token"), in.Password)
	if err != nil {
		return err
	}
	return sendToken(c, fiber.StatusOK, user, token, h.cookieDays)
}

func (h *AuthHandler) UpdatePassword(c *fiber.Ctx) error {
	var in struct {
		PasswordCurrent string `json:"passwordCurrent"`
		Password        string `json:"password"`
	}
	if err := c.BodyParser(&in); err != nil {
		return apperror.BadRequest("Invalid request body")
	}

	current := middleware.CurrentUser(c)
	user, token, err := h.auth.UpdatePassword(c.Context(), current.ID.Hex(), in.PasswordCurrent, in.Password)
	if err != nil {
		return err
	}
	return sendToken(c, fiber.StatusOK, user, token, h.cookieDays)
}
