// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage mode selects where uploaded bytes land.
const (
	StorageModeLocal  = "local"
	StorageModeRemote = "remote"
)

// Error reports configuration problems discovered at startup. It carries
// every missing key so a single failed boot names all of them at once.
type Error struct {
	Missing []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("required settings not found: %s", strings.Join(e.Missing, ", "))
}

// Config holds all runtime configuration for the service.
type Config struct {
	DatabaseURL string
	Port        string
	AppEnv      string

	// Object storage (S3-compatible: MinIO locally, AWS S3 in production)
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageRegion    string
	StorageBucket    string
	StorageUseSSL    bool

	// Upload behaviour
	DefaultACL         string
	PresignedExpirySec int
	MaxUploadSizeBytes int64
	StorageMode        string // "local" or "remote"
	LocalStorageDir    string // root for local-mode object files

	// API surface
	AppDomain string // base URL for same-origin upload/media links
	AllowAuth bool
	JWTSecret string
}

// Load reads configuration from a .env file (if present) and environment
// variables. Call Validate before using the result.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	expiry, _ := strconv.Atoi(getEnv("PRESIGNED_EXPIRY_SECONDS", "3600"))
	maxSize, _ := strconv.ParseInt(getEnv("FILE_MAX_SIZE_BYTES", "10485760"), 10, 64)

	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        getEnv("PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "development"),

		StorageEndpoint:  os.Getenv("STORAGE_ENDPOINT"),
		StorageAccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey: os.Getenv("STORAGE_SECRET_KEY"),
		StorageRegion:    os.Getenv("STORAGE_REGION"),
		StorageBucket:    os.Getenv("STORAGE_BUCKET"),
		StorageUseSSL:    getEnv("STORAGE_USE_SSL", "false") == "true",

		DefaultACL:         getEnv("STORAGE_DEFAULT_ACL", "private"),
		PresignedExpirySec: expiry,
		MaxUploadSizeBytes: maxSize,
		StorageMode:        getEnv("FILE_UPLOAD_STORAGE", StorageModeRemote),
		LocalStorageDir:    getEnv("LOCAL_STORAGE_DIR", "./data"),

		AppDomain: os.Getenv("APP_DOMAIN"),
		AllowAuth: getEnv("ALLOW_AUTHENTICATION", "true") == "true",
		JWTSecret: os.Getenv("JWT_SECRET"),
	}
}

// Validate checks every required key and returns a single *Error enumerating
// all of the missing ones, so operators fix one failed boot, not five.
func (c *Config) Validate() error {
	var missing []string

	require := func(key, value string) {
		if value == "" {
			missing = append(missing, key)
		}
	}

	require("DATABASE_URL", c.DatabaseURL)
	require("APP_DOMAIN", c.AppDomain)

	if c.StorageMode != StorageModeLocal && c.StorageMode != StorageModeRemote {
		missing = append(missing, `FILE_UPLOAD_STORAGE (must be "local" or "remote")`)
	}

	// Remote mode cannot operate without store credentials; local mode only
	// needs a writable directory.
	if c.StorageMode == StorageModeRemote {
		require("STORAGE_ENDPOINT", c.StorageEndpoint)
		require("STORAGE_ACCESS_KEY", c.StorageAccessKey)
		require("STORAGE_SECRET_KEY", c.StorageSecretKey)
		require("STORAGE_REGION", c.StorageRegion)
		require("STORAGE_BUCKET", c.StorageBucket)
	}

	if c.AllowAuth {
		require("JWT_SECRET", c.JWTSecret)
	}

	if c.PresignedExpirySec <= 0 {
		missing = append(missing, "PRESIGNED_EXPIRY_SECONDS (must be a positive integer)")
	}
	if c.MaxUploadSizeBytes <= 0 {
		missing = append(missing, "FILE_MAX_SIZE_BYTES (must be a positive integer)")
	}

	if len(missing) > 0 {
		return &Error{Missing: missing}
	}
	return nil
}

// IsRemote returns true when uploads go directly to the object store.
func (c *Config) IsRemote() bool {
	return c.StorageMode == StorageModeRemote
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
