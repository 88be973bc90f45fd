package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/wanderly/tours-api/internal/config"
	"github.com/wanderly/tours-api/internal/db"
	"github.com/wanderly/tours-api/internal/mail"
	"github.com/wanderly/tours-api/internal/repository"
	"github.com/wanderly/tours-api/internal/router"
	"github.com/wanderly/tours-api/internal/storage"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// Connect to MongoDB
	mongoDB := db.ConnectMongoDB(cfg.MongoURI, cfg.MongoDB)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repository.EnsureIndexes(ctx, mongoDB); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	// Image bucket
	images, err := storage.NewImageStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
	if err != nil {
		log.Fatalf("Failed to initialize image storage: %v", err)
	}

	mailer := mail.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFrom)

	app := router.New(cfg, mongoDB, images, mailer)

	log.Fatal(app.Listen(":" + cfg.Port))
}
