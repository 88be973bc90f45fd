package router

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wanderly/tours-api/internal/apperror"
	"github.com/wanderly/tours-api/internal/auth"
	"github.com/wanderly/tours-api/internal/config"
	"github.com/wanderly/tours-api/internal/handlers"
	"github.com/wanderly/tours-api/internal/mail"
	"github.com/wanderly/tours-api/internal/middleware"
	"github.com/wanderly/tours-api/internal/models"
	"github.com/wanderly/tours-api/internal/query"
	"github.com/wanderly/tours-api/internal/repository"
	"github.com/wanderly/tours-api/internal/services"
	"github.com/wanderly/tours-api/internal/storage"
)

// New wires repositories, services and handlers onto a Fiber app.
func New(cfg *config.Config, db *mongo.Database, images *storage.ImageStore, mailer mail.Mailer) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler(cfg.Env),
		BodyLimit:    10 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(cors.New())

	users := repository.NewUsers(db.Collection("users"))
	userCRUD := repository.NewCRUD[models.User](db.Collection("users"))
	tourCRUD := repository.NewCRUD[models.Tour](db.Collection("tours"))
	reviewCRUD := repository.NewCRUD[models.Review](db.Collection("reviews"))
	bookingCRUD := repository.NewCRUD[models.Booking](db.Collection("bookings"))

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiresIn)
	authSvc := services.NewAuthService(users, tokens, mailer)
	tourSvc := services.NewTourService(db.Collection("tours"))
	reviewSvc := services.NewReviewService(db.Collection("reviews"), db.Collection("tours"))

	authHandler := handlers.NewAuthHandler(authSvc, cfg.JWTCookieDays)
	userHandler := handlers.NewUserHandler(users, userCRUD, images)
	tourHandler := handlers.NewTourHandler(tourCRUD, tourSvc, images)
	reviewHandler := handlers.NewReviewHandler(reviewCRUD, reviewSvc)
	bookingHandler := handlers.NewBookingHandler(bookingCRUD, tourCRUD)

	protect := middleware.Protect(tokens, users)

	// One IP gets 100 API requests per hour.
	api := app.Group("/api/v1", limiter.New(limiter.Config{
		Max:        100,
		Expiration: time.Hour,
		LimitReached: func(c *fiber.Ctx) error {
			return apperror.New(fiber.StatusTooManyRequests, "Too many requests from this IP, please try again in an hour!")
		},
	}))

	// Tours
	tours := api.Group("/tours")
	tours.Get("/top-5-cheap", tourHandler.AliasTopTours, tourHandler.GetAll)
	tours.Get("/tour-stats", tourHandler.Stats)
	tours.Get("/monthly-plan/:year",
		protect,
		middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide, models.RoleGuide),
		tourHandler.MonthlyPlan)
	tours.Get("/tours-within/:distance/center/:latlng/unit/:unit", tourHandler.Within)
	tours.Get("/distances/:latlng/unit/:unit", tourHandler.Distances)

	tours.Get("/:tourId/reviews", protect, reviewHandler.GetAll)
	tours.Post("/:tourId/reviews", protect, middleware.RestrictTo(models.RoleUser), reviewHandler.Create)

	tours.Get("/", tourHandler.GetAll)
	tours.Post("/", protect, middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide), tourHandler.Create)
	tours.Get("/:id", tourHandler.Get)
	tours.Patch("/:id", protect, middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide), tourHandler.Update)
	tours.Delete("/:id", protect, middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide), tourHandler.Delete)

	// Users: public auth routes first, everything after Use(protect) needs
	// a session, everything after Use(RestrictTo) needs admin.
	usersGroup := api.Group("/users")
	usersGroup.Post("/signup", authHandler.Signup)
	usersGroup.Post("/login", authHandler.Login)
	usersGroup.Get("/logout", authHandler.Logout)
	usersGroup.Post("/forgotPassword", authHandler.ForgotPassword)
	usersGroup.Patch("/resetPassword/:token", authHandler.ResetPassword)

	usersGroup.Use(protect)
	usersGroup.Patch("/updateMyPassword", authHandler.UpdatePassword)
	usersGroup.Get("/me", userHandler.Me)
	usersGroup.Patch("/updateMe", userHandler.UpdateMe)
	usersGroup.Delete("/deleteMe", userHandler.DeleteMe)

	usersGroup.Use(middleware.RestrictTo(models.RoleAdmin))
	usersGroup.Get("/", userHandler.GetAll)
	usersGroup.Post("/", userHandler.Create)
	usersGroup.Get("/:id", userHandler.Get)
	usersGroup.Patch("/:id", userHandler.Update)
	usersGroup.Delete("/:id", userHandler.Delete)

	// Reviews
	reviews := api.Group("/reviews", protect)
	reviews.Get("/", reviewHandler.GetAll)
	reviews.Post("/", middleware.RestrictTo(models.RoleUser), reviewHandler.Create)
	reviews.Get("/:id", reviewHandler.Get)
	reviews.Patch("/:id", middleware.RestrictTo(models.RoleUser, models.RoleAdmin), reviewHandler.Update)
	reviews.Delete("/:id", middleware.RestrictTo(models.RoleUser, models.RoleAdmin), reviewHandler.Delete)

	// Bookings
	bookings := api.Group("/bookings", protect)
	bookings.Get("/my", bookingHandler.MyBookings)
	bookings.Post("/", bookingHandler.Create)
	bookings.Use(middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide))
	bookings.Get("/", bookingHandler.GetAll)
	bookings.Get("/:id", bookingHandler.Get)
	bookings.Patch("/:id", bookingHandler.Update)
	bookings.Delete("/:id", bookingHandler.Delete)

	return app
}

// errorHandler maps domain errors onto the JSON envelope. 4xx use status
// "fail", 5xx use "error"; internal details only leak in development.
func errorHandler(env string) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := err.Error()

		var appErr *apperror.Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &appErr):
			code = appErr.Code
			message = appErr.Message
		case errors.Is(err, query.ErrMalformed):
			code = fiber.StatusBadRequest
		case errors.Is(err, repository.ErrDuplicateEmail):
			code = fiber.StatusBadRequest
		case errors.Is(err, repository.ErrDuplicate):
			code = fiber.StatusBadRequest
			message = "Duplicate value for a field that must be unique"
		case errors.Is(err, repository.ErrNotFound):
			code = fiber.StatusNotFound
			message = "No document found with that ID!"
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
			message = fiberErr.Message
		}

		status := "error"
		if code < fiber.StatusInternalServerError {
			status = "fail"
		}
		if code >= fiber.StatusInternalServerError && env != "development" {
			log.Printf("internal error: %v", err)
			message = "Something went very wrong!"
		}

		return c.Status(code).JSON(fiber.Map{
			"status":  status,
			"message": message,
		})
	}
}
