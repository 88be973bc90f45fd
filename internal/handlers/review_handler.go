package handlers

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wanderly/tours-api/internal/apperror"
	"github.com/wanderly/tours-api/internal/middleware"
	"github.com/wanderly/tours-api/internal/models"
	"github.com/wanderly/tours-api/internal/repository"
	"github.com/wanderly/tours-api/internal/services"
)

type ReviewHandler struct {
	crud     *repository.CRUD[models.Review]
	svc      *services.ReviewService
	validate *validator.Validate
}

func NewReviewHandler(crud *repository.CRUD[models.Review], svc *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{crud: crud, svc: svc, validate: validator.New()}
}

// GetAll lists reviews, scoped to a tour when mounted under
// /tours/:tourId/reviews.
func (h *ReviewHandler) GetAll(c *fiber.Ctx) error {
	base := bson.M{}
	if tourID := c.Params("tourId"); tourID != "" {
		objID, err := primitive.ObjectIDFromHex(tourID)
		if err != nil {
			return apperror.BadRequest("Invalid tour ID")
		}
		base["tour"] = objID
	}

	reviews, err := h.crud.List(c.Context(), base, c.Queries())
	if err != nil {
		return err
	}
	return successList(c, len(reviews), fiber.Map{"reviews": reviews})
}

func (h *ReviewHandler) Get(c *fiber.Ctx) error {
	review, err := h.crud.Get(c.Context(), c.Params("id"), nil)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"review": review})
}

// Create stores a review for the authenticated user and refreshes the
// tour's rating summary.
func (h *ReviewHandler) Create(c *fiber.Ctx) error {
	var review models.Review
	if err := c.BodyParser(&review); err != nil {
		return apperror.BadRequest("Invalid request body")
	}

	if tourID := c.Params("tourId"); tourID != "" {
		objID, err := primitive.ObjectIDFromHex(tourID)
		if err != nil {
			return apperror.BadRequest("Invalid tour ID")
		}
		review.Tour = objID
	}
	review.User = middleware.CurrentUser(c).ID
	review.ID = primitive.NewObjectID()
	review.CreatedAt = time.Now()

	if err := h.validate.Struct(review); err != nil {
		return apperror.BadRequest(err.Error())
	}

	if err := h.crud.Create(c.Context(), &review); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperror.BadRequest("You have already reviewed this tour")
		}
		return err
	}
	if err := h.svc.CalcAverageRatings(c.Context(), review.Tour); err != nil {
		return err
	}
	return success(c, fiber.StatusCreated, fiber.Map{"review": review})
}

func (h *ReviewHandler) Update(c *fiber.Ctx) error {
	var in struct {
		Review string  `json:"review"`
		Rating float64 `json:"rating"`
	}
	if err := c.BodyParser(&in); err != nil {
		return apperror.BadRequest("Invalid request body")
	}

	fields := bson.M{}
	if in.Review != "" {
		fields["review"] = in.Review
	}
	if in.Rating != 0 {
		if in.Rating < 1 || in.Rating > 5 {
			return apperror.BadRequest("Rating must be between 1 and 5")
		}
		fields["rating"] = in.Rating
	}
	if len(fields) == 0 {
		return apperror.BadRequest("Nothing to update")
	}

	review, err := h.crud.Update(c.Context(), c.Params("id"), fields, nil)
	if err != nil {
		return err
	}
	if err := h.svc.CalcAverageRatings(c.Context(), review.Tour); err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"review": review})
}

func (h *ReviewHandler) Delete(c *fiber.Ctx) error {
	// Fetch first: the tour id is needed to recompute ratings afterwards.
	review, err := h.crud.Get(c.Context(), c.Params("id"), nil)
	if err != nil {
		return err
	}
	if err := h.crud.Delete(c.Context(), c.Params("id"), nil); err != nil {
		return err
	}
	if err := h.svc.CalcAverageRatings(c.Context(), review.Tour); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
