// Package config loads the application configuration from environment
// variables, once, at startup. The resulting Config is treated as
// immutable for the life of the process.
package config

import (
	"fmt"
	"os"
)

// Config holds everything the server needs to boot.
type Config struct {
	// Server
	Port        string
	Environment string

	// Persistence
	DBPath string

	// Sessions
	JWTSecret string

	// Client
	ClientOrigin string

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	// Cloudinary
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	// Uploads
	UploadDir string
}

// Load reads the configuration from the environment.
//
// Every missing required variable is collected and reported in a single
// error so a misconfigured deployment shows the whole fix at once rather
// than one variable per restart.
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string
	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.JWTSecret = required("JWT_SECRET")
	cfg.GoogleClientID = required("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = required("GOOGLE_CLIENT_SECRET")
	cfg.GoogleCallbackURL = required("GOOGLE_CALLBACK_URL")
	cfg.CloudinaryCloudName = required("CLOUDINARY_CLOUD_NAME")
	cfg.CloudinaryAPIKey = required("CLOUDINARY_API_KEY")
	cfg.CloudinaryAPISecret = required("CLOUDINARY_API_SECRET")

	if len(missing) > 0 {
		return nil, fmt.Errorf("config: required environment variables are not set: %v", missing)
	}

	cfg.Port = getEnv("PORT", "8080")
	cfg.Environment = getEnv("ENV", "development")
	cfg.DBPath = getEnv("DB_PATH", "carmarket.db")
	cfg.ClientOrigin = getEnv("CLIENT_ORIGIN", "http://localhost:3000")
	cfg.CloudinaryFolder = getEnv("CLOUDINARY_FOLDER", "carmarket")
	cfg.UploadDir = getEnv("UPLOAD_DIR", os.TempDir())

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
