package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env  string
	Port string

	MongoURI string
	MongoDB  string

	JWTSecret     string
	JWTExpiresIn  time.Duration
	JWTCookieDays int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/tours"),
		MongoDB:  getEnv("MONGO_DB", "tours"),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTCookieDays: getEnvInt("JWT_COOKIE_EXPIRES_IN", 90),

		SMTPHost:     getEnv("EMAIL_HOST", "localhost"),
		SMTPPort:     getEnvInt("EMAIL_PORT", 587),
		SMTPUsername: getEnv("EMAIL_USERNAME", ""),
		SMTPPassword: getEnv("EMAIL_PASSWORD", ""),
		EmailFrom:    getEnv("EMAIL_FROM", "Wanderly <hello@wanderly.dev>"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:    getEnv("MINIO_USE_SSL", "false") == "true",
		MinioBucket:    getEnv("MINIO_BUCKET", "tour-images"),
	}

	expiresIn, err := time.ParseDuration(getEnv("JWT_EXPIRES_IN", "2160h"))
	if err != nil {
		return nil, err
	}
	cfg.JWTExpiresIn = expiresIn

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
