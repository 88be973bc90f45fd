package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/wanderly/tours-api/internal/apperror"
	"github.com/wanderly/tours-api/internal/middleware"
	"github.com/wanderly/tours-api/internal/models"
	"github.com/wanderly/tours-api/internal/repository"
	"github.com/wanderly/tours-api/internal/storage"
)

const userPhotoSize = 500

type UserHandler struct {
	users  *repository.Users
	crud   *repository.CRUD[models.User]
	images *storage.ImageStore
}

func NewUserHandler(users *repository.Users, crud *repository.CRUD[models.User], images *storage.ImageStore) *UserHandler {
	return &UserHandler{users: users, crud: crud, images: images}
}

// Me returns the authenticated user's own record.
func (h *UserHandler) Me(c *fiber.Ctx) error {
	return success(c, fiber.StatusOK, fiber.Map{"user": middleware.CurrentUser(c)})
}

// UpdateMe updates name, email and photo. Password changes must go through
// /updateMyPassword so they get the full rotation treatment.
func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	var in struct {
		Name     string `json:"name" form:"name"`
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.BodyParser(&in); err != nil && len(c.Body()) > 0 {
		return apperror.BadRequest("Invalid request body")
	}
	if in.Password != "" {
		return apperror.BadRequest("This route is not for password updates. Please use /updateMyPassword.")
	}

	user := middleware.CurrentUser(c)
	fields := map[string]interface{}{}
	if in.Name != "" {
		fields["name"] = in.Name
	}
	if in.Email != "" {
		fields["email"] = strings.ToLower(strings.TrimSpace(in.Email))
	}

	if file, err := c.FormFile("photo"); err == nil {
		url, err := h.uploadPhoto(c, file.Header.Get("Content-Type"), file)
		if err != nil {
			return err
		}
		fields["photo"] = url
	}

	if len(fields) == 0 {
		return success(c, fiber.StatusOK, fiber.Map{"user": user})
	}

	updated, err := h.users.UpdateProfile(c.Context(), user.ID.Hex(), fields)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return apperror.BadRequest("email already in use")
	}
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"user": updated})
}

// DeleteMe soft-deletes the account.
func (h *UserHandler) DeleteMe(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if err := h.users.Deactivate(c.Context(), user.ID.Hex()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Admin routes below.

func (h *UserHandler) GetAll(c *fiber.Ctx) error {
	users, err := h.crud.List(c.Context(), bson.M{"active": bson.M{"$ne": false}}, c.Queries())
	if err != nil {
		return err
	}
	return successList(c, len(users), fiber.Map{"users": users})
}

func (h *UserHandler) Get(c *fiber.Ctx) error {
	user, err := h.crud.Get(c.Context(), c.Params("id"), bson.M{"active": bson.M{"$ne": false}})
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"user": user})
}

// Create is deliberately unimplemented; accounts come from /signup.
func (h *UserHandler) Create(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"status":  "error",
		"message": "This route is not defined! Please use /signup instead.",
	})
}

// Update lets an admin change profile data and role, never the password.
func (h *UserHandler) Update(c *fiber.Ctx) error {
	var in struct {
		Name  string      `json:"name"`
		Email string      `json:"email"`
		Role  models.Role `json:"role"`
	}
	if err := c.BodyParser(&in); err != nil {
		return apperror.BadRequest("Invalid request body")
	}

	fields := bson.M{}
	if in.Name != "" {
		fields["name"] = in.Name
	}
	if in.Email != "" {
		fields["email"] = strings.ToLower(strings.TrimSpace(in.Email))
	}
	if in.Role != "" {
		if !in.Role.Valid() {
			return apperror.BadRequest("Invalid role")
		}
		fields["role"] = in.Role
	}
	if len(fields) == 0 {
		return apperror.BadRequest("Nothing to update")
	}

	user, err := h.crud.Update(c.Context(), c.Params("id"), fields, nil)
	if errors.Is(err, repository.ErrDuplicate) {
		return apperror.BadRequest("email already in use")
	}
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"user": user})
}

func (h *UserHandler) Delete(c *fiber.Ctx) error {
	if err := h.crud.Delete(c.Context(), c.Params("id"), nil); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *UserHandler) uploadPhoto(c *fiber.Ctx, contentType string, file *multipart.FileHeader) (string, error) {
	if !strings.HasPrefix(contentType, "image") {
		return "", apperror.BadRequest("Not an image. Please upload only images")
	}

	src, err := file.Open()
	if err != nil {
		return "", apperror.BadRequest("Failed to read uploaded file")
	}
	defer src.Close()

	data, err := storage.ResizeJPEG(src, userPhotoSize, userPhotoSize)
	if err != nil {
		return "", apperror.BadRequest("Failed to process image")
	}

	user := middleware.CurrentUser(c)
	name := fmt.Sprintf("user-%s-%s.jpeg", user.ID.Hex(), uuid.NewString())
	return h.images.PutJPEG(c.Context(), name, data)
}
