package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// Server
	GO_ENV              string
	PORT                int
	LOG_MODE            string
	ALLOWED_ORIGINS     string
	RATE_LIMIT_REQUESTS int
	// Database
	DB_DRIVER    string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	SQLITE_PATH  string
	// JWT Configuration
	JWT_SECRET               string
	JWT_ISSUER               string
	JWT_EXPIRY_MINUTES       int
	JWT_REFRESH_EXPIRY_HOURS int
	// Redis Configuration
	REDIS_URL         string
	CACHE_TTL_SECONDS int
	// File storage
	STORAGE_DRIVER       string
	UPLOAD_ROOT          string
	MAX_UPLOAD_MB        int
	MAX_VIDEO_UPLOAD_MB  int
	DO_SPACES_BUCKET     string
	DO_SPACES_REGION     string
	DO_SPACES_ENDPOINT   string
	DO_SPACES_ACCESS_KEY string
	DO_SPACES_SECRET_KEY string
	DO_SPACES_CDN_URL    string
	// Video host
	VIDEO_HOST_BASE_URL string
	VIDEO_HOST_TOKEN    string
	// Cron
	CRON_ENABLED bool
}

func Get() (*EnviornmentVariable, error) {
	goEnv := os.Getenv("GO_ENV")

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = goEnv
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "uniportal-api"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:              goEnv,
		PORT:                intOr("PORT", 8080),
		LOG_MODE:            logMode,
		ALLOWED_ORIGINS:     allowedOrigins,
		RATE_LIMIT_REQUESTS: intOr("RATE_LIMIT_REQUESTS", 100),
		// Database
		DB_DRIVER:    strings.ToLower(stringOr("DB_DRIVER", "postgres")),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      stringOr("DB_HOST", "localhost"),
		DB_PORT:      stringOr("DB_PORT", "5432"),
		DB_SSL_MODE:  stringOr("DB_SSL_MODE", "disable"),
		SQLITE_PATH:  stringOr("SQLITE_PATH", "uniportal.db"),
		// JWT
		JWT_SECRET:               os.Getenv("JWT_SECRET"),
		JWT_ISSUER:               jwtIssuer,
		JWT_EXPIRY_MINUTES:       intOr("JWT_EXPIRY_MINUTES", 60),
		JWT_REFRESH_EXPIRY_HOURS: intOr("JWT_REFRESH_EXPIRY_HOURS", 24*7),
		// Redis
		REDIS_URL:         stringOr("REDIS_URL", "redis://localhost:6379/0"),
		CACHE_TTL_SECONDS: intOr("CACHE_TTL_SECONDS", 600),
		// Storage
		STORAGE_DRIVER:       strings.ToLower(stringOr("STORAGE_DRIVER", "local")),
		UPLOAD_ROOT:          stringOr("UPLOAD_ROOT", "./public"),
		MAX_UPLOAD_MB:        intOr("MAX_UPLOAD_MB", 20),
		MAX_VIDEO_UPLOAD_MB:  intOr("MAX_VIDEO_UPLOAD_MB", 2048),
		DO_SPACES_BUCKET:     os.Getenv("DO_SPACES_BUCKET"),
		DO_SPACES_REGION:     stringOr("DO_SPACES_REGION", "blr1"),
		DO_SPACES_ENDPOINT:   os.Getenv("DO_SPACES_ENDPOINT"),
		DO_SPACES_ACCESS_KEY: os.Getenv("DO_SPACES_ACCESS_KEY"),
		DO_SPACES_SECRET_KEY: os.Getenv("DO_SPACES_SECRET_KEY"),
		DO_SPACES_CDN_URL:    os.Getenv("DO_SPACES_CDN_URL"),
		// Video host
		VIDEO_HOST_BASE_URL: os.Getenv("VIDEO_HOST_BASE_URL"),
		VIDEO_HOST_TOKEN:    os.Getenv("VIDEO_HOST_TOKEN"),
		// Cron, default to enabled
		CRON_ENABLED: os.Getenv("CRON_ENABLED") != "false",
	}

	return envVariables, nil
}

func stringOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
