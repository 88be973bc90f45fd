package handlers

import (
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wanderly/tours-api/internal/apperror"
	"github.com/wanderly/tours-api/internal/models"
	"github.com/wanderly/tours-api/internal/repository"
	"github.com/wanderly/tours-api/internal/services"
	"github.com/wanderly/tours-api/internal/storage"
	"github.com/wanderly/tours-api/internal/utils"
)

// Tour cover and gallery images are normalized to a 3:2 display size.
const (
	tourImageWidth  = 2000
	tourImageHeight = 1333
	maxTourImages   = 3
)

type TourHandler struct {
	crud     *repository.CRUD[models.Tour]
	svc      *services.TourService
	images   *storage.ImageStore
	validate *validator.Validate
}

func NewTourHandler(crud *repository.CRUD[models.Tour], svc *services.TourService, images *storage.ImageStore) *TourHandler {
	return &TourHandler{crud: crud, svc: svc, images: images, validate: validator.New()}
}

// AliasTopTours pre-seeds the query pipeline with the top-5-cheap listing.
func (h *TourHandler) AliasTopTours(c *fiber.Ctx) error {
	args := c.Request().URI().QueryArgs()
	args.Set("limit", "5")
	args.Set("sort", "-ratingsAverage,price")
	args.Set("fields", "name,price,ratingsAverage,summary,difficulty")
	return c.Next()
}

func (h *TourHandler) GetAll(c *fiber.Ctx) error {
	tours, err := h.crud.List(c.Context(), services.VisibleTours(), c.Queries())
	if err != nil {
		return err
	}
	return successList(c, len(tours), fiber.Map{"tours": tours})
}

func (h *TourHandler) Get(c *fiber.Ctx) error {
	tour, err := h.crud.Get(c.Context(), c.Params("id"), services.VisibleTours())
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"tour": tour})
}

func (h *TourHandler) Create(c *fiber.Ctx) error {
	var tour models.Tour
	if err := c.BodyParser(&tour); err != nil {
		return apperror.BadRequest("Invalid request body")
	}
	if err := h.validate.Struct(tour); err != nil {
		return apperror.BadRequest(err.Error())
	}

	tour.ID = primitive.NewObjectID()
	tour.Slug = slugify(tour.Name)
	tour.CreatedAt = time.Now()
	if tour.RatingsAverage == 0 {
		tour.RatingsAverage = 4.5
	}
	tour.RatingsQuantity = 0

	if err := h.crud.Create(c.Context(), &tour); err != nil {
		return err
	}
	return success(c, fiber.StatusCreated, fiber.Map{"tour": tour})
}

// Update accepts partial JSON fields and, for multipart requests, an
// imageCover file plus up to three gallery images.
func (h *TourHandler) Update(c *fiber.Ctx) error {
	fields := bson.M{}

	if strings.HasPrefix(c.Get("Content-Type"), "multipart/form-data") {
		form, err := c.MultipartForm()
		if err != nil {
			return apperror.BadRequest("Invalid multipart form")
		}
		for key, values := range form.Value {
			if len(values) > 0 {
				fields[key] = parseFormValue(values[0])
			}
		}
		if err := h.collectImages(c, form, fields); err != nil {
			return err
		}
	} else if len(c.Body()) > 0 {
		if err := c.BodyParser(&fields); err != nil {
			return apperror.BadRequest("Invalid request body")
		}
	}

	for _, immutable := range []string{"id", "_id", "createdAt", "ratingsAverage", "ratingsQuantity", "slug"} {
		delete(fields, immutable)
	}
	if name, ok := fields["name"].(string); ok {
		fields["slug"] = slugify(name)
	}
	if len(fields) == 0 {
		return apperror.BadRequest("Nothing to update")
	}

	tour, err := h.crud.Update(c.Context(), c.Params("id"), fields, services.VisibleTours())
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"tour": tour})
}

func (h *TourHandler) Delete(c *fiber.Ctx) error {
	if err := h.crud.Delete(c.Context(), c.Params("id"), nil); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *TourHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.svc.Stats(c.Context())
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"stats": stats})
}

func (h *TourHandler) MonthlyPlan(c *fiber.Ctx) error {
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil {
		return apperror.BadRequest("Invalid year")
	}
	plan, err := h.svc.MonthlyPlan(c.Context(), year)
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"plan": plan})
}

// Within handles /tours-within/:distance/center/:latlng/unit/:unit.
func (h *TourHandler) Within(c *fiber.Ctx) error {
	distance, err := strconv.ParseFloat(c.Params("distance"), 64)
	if err != nil {
		return apperror.BadRequest("Invalid distance")
	}
	lat, lng, err := parseLatLng(c.Params("latlng"))
	if err != nil {
		return err
	}

	tours, err := h.svc.Within(c.Context(), distance, lat, lng, c.Params("unit"))
	if err != nil {
		return err
	}
	return successList(c, len(tours), fiber.Map{"tours": tours})
}

// Distances handles /distances/:latlng/unit/:unit.
func (h *TourHandler) Distances(c *fiber.Ctx) error {
	lat, lng, err := parseLatLng(c.Params("latlng"))
	if err != nil {
		return err
	}

	distances, err := h.svc.Distances(c.Context(), lat, lng, c.Params("unit"))
	if err != nil {
		return err
	}
	return success(c, fiber.StatusOK, fiber.Map{"distances": distances})
}

// collectImages resizes and uploads the cover plus gallery images; gallery
// files are processed concurrently since each one is independent.
func (h *TourHandler) collectImages(c *fiber.Ctx, form *multipart.Form, fields bson.M) error {
	tourID := c.Params("id")

	if covers := form.File["imageCover"]; len(covers) > 0 {
		url, err := h.uploadImage(c, covers[0], fmt.Sprintf("tour-%s-%s-cover.jpeg", tourID, uuid.NewString()))
		if err != nil {
			return err
		}
		fields["imageCover"] = url
	}

	gallery := form.File["images"]
	if len(gallery) == 0 {
		return nil
	}
	if len(gallery) > maxTourImages {
		gallery = gallery[:maxTourImages]
	}

	urls, err := utils.ParallelMap(gallery, func(file *multipart.FileHeader) (string, error) {
		return h.uploadImage(c, file, fmt.Sprintf("tour-%s-%s.jpeg", tourID, uuid.NewString()))
	})
	if err != nil {
		return err
	}
	fields["images"] = urls
	return nil
}

func (h *TourHandler) uploadImage(c *fiber.Ctx, file *multipart.FileHeader, name string) (string, error) {
	if !strings.HasPrefix(file.Header.Get("Content-Type"), "image") {
		return "", apperror.BadRequest("Not an image. Please upload only images")
	}
	src, err := file.Open()
	if err != nil {
		return "", apperror.BadRequest("Failed to read uploaded file")
	}
	defer src.Close()

	data, err := storage.ResizeJPEG(src, tourImageWidth, tourImageHeight)
	if err != nil {
		return "", apperror.BadRequest("Failed to process image")
	}
	return h.images.PutJPEG(c.Context(), name, data)
}

func parseLatLng(latlng string) (lat, lng float64, err error) {
	parts := strings.Split(latlng, ",")
	if len(parts) != 2 {
		return 0, 0, apperror.BadRequest("Please provide latitude and longitude in the format lat,lng")
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, apperror.BadRequest("Please provide latitude and longitude in the format lat,lng")
	}
	return lat, lng, nil
}

// parseFormValue gives multipart text fields their natural type so numeric
// tour attributes round-trip correctly.
func parseFormValue(value string) interface{} {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, slug)
	return strings.Trim(strings.Join(strings.FieldsFunc(slug, func(r rune) bool { return r == '-' }), "-"), "-")
}
