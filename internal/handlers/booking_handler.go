package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wanderly/tours-api/internal/apperror"
	"github.com/wanderly/tours-api/internal/middleware"
	"github.com/wanderly/tours-api/internal/models"
	"github.com/wanderly/tours-api/internal/repository"
	"github.com/wanderly/tours-api/internal/services"
)

type BookingHandler struct {
	crud  *repository.CRUD[models.Booking]
	tours *repository.CRUD[models.Tour]
}

func NewBookingHandler(crud *repository.CRUD[models.Booking], tours *repository.CRUD[models.Tour]) *BookingHandler {
	return &BookingHandler{crud: crud, tours: tours}
}

func (h *BookingHandler) GetAll(c *fiber.Ctx) error {
	bookings, err := h.crud.List(c.Context(), nil, c.Queries())
	if err != nil {
		return err
	}
	return successList(c, len(bookings), fiber.Map{"bookings": bookings})
}

// MyBookings lists the authenticated user's own bookings.
func (h *BookingHandler) MyBookings(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	bookings, err := h.crud.List(c.Context(), bson.M{"user": user.ID}, c.Queries())
	if err != nil {
		return err
	}
	return successList(c, len(bookings), fiber.Map{"bookings": bookings})
}

// Create books a tour for the authenticated user at the tour's current
// price.
func (h *BookingHandler) Create(c *fiber.Ctx) error {
	var in struct {
		Tour string `json:"tour"`
	}
	if err := c.BodyParser(&in); err != nil {
		return apperror.BadRequest("Invalid request body")
	}

	tour, err := h.tours.Get(c.Context(), in.Tour, services.VisibleTours())
	if err != nil {
		return err
	}

	booking := models.Booking{
		ID:        primitive.NewObjectID(),
		Tour:      tour.ID,
		User:      middleware.CurrentUser(c).ID,
		Price:     tour.Price,
		Paid:      true,
		CreatedAt: time.Now(),
	}
	if err := h.crud.Create(c.Context(), &booking); err != nil {
		return err
	}
	return success(c, fiber.StatusCreated, fiber.Map{"booking": booking})
}

func (h *BookingHandler) Get(c *fiber.Ctx) error {
	booking, err := h.crud.Get(c.Context(), c.Params("id"), nil)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"booking": booking})
}

func (h *BookingHandler) Update(c *fiber.Ctx) error {
	var in struct {
		Paid *bool `json:"paid"`
	}
	if err := c.BodyParser(&in); err != nil {
		return apperror.BadRequest("Invalid request body")
	}
	if in.Paid == nil {
		return apperror.BadRequest("Nothing to update")
	}

	booking, err := h.crud.Update(c.Context(), c.Params("id"), bson.M{"paid": *in.Paid}, nil)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"booking": booking})
}

func (h *BookingHandler) Delete(c *fiber.Ctx) error {
	if err := h.crud.Delete(c.Context(), c.Params("id"), nil); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
