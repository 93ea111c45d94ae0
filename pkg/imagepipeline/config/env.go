package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type envConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	DatabaseURL string `env:"DATABASE_URL" env-default:""`

	StorageURL string `env:"STORAGE_URL" env-default:"memory://"`

	S3Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:""`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	S3Endpoint        string `env:"AWS_S3_ENDPOINT" env-default:""`
	S3UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	S3CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`

	URLPrefix   string        `env:"IMAGE_URL_PREFIX" env-default:"/uploads"`
	EnableCache bool          `env:"IMAGE_CACHE_ENABLED" env-default:"true"`
	CacheSweep  time.Duration `env:"IMAGE_CACHE_SWEEP" env-default:"1m"`

	WebPQuality int `env:"IMAGE_WEBP_QUALITY" env-default:"85"`
	JPEGQuality int `env:"IMAGE_JPEG_QUALITY" env-default:"90"`

	JWTSecret string `env:"JWT_SECRET" env-default:""`
}

// WithEnv applies environment variable overrides.
//
// DATABASE_URL selects the repository: empty or "memory" keeps the
// in-memory store; a postgres:// or postgresql:// URL selects Postgres.
//
// STORAGE_URL selects the blob store:
//   - "memory://"            in-memory storage (default)
//   - "file:///path/to/data" filesystem storage
//   - "s3://bucket"          S3 storage, credentials from AWS_* vars
func WithEnv() Option {
	return func(c *ServerConfig) error {
		var env envConfig
		if err := cleanenv.ReadEnv(&env); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}

		c.Port = env.Port
		c.Environment = env.Environment
		c.URLPrefix = env.URLPrefix
		c.EnableCache = env.EnableCache
		c.CacheSweep = env.CacheSweep
		c.WebPQuality = env.WebPQuality
		c.JPEGQuality = env.JPEGQuality
		c.JWTSecret = env.JWTSecret

		if err := applyDatabaseURL(c, env.DatabaseURL); err != nil {
			return err
		}
		return applyStorageURL(c, env)
	}
}

func applyDatabaseURL(c *ServerConfig, dbURL string) error {
	switch {
	case dbURL == "" || dbURL == "memory":
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	default:
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
	}
	return nil
}

func applyStorageURL(c *ServerConfig, env envConfig) error {
	storageURL := env.StorageURL
	switch {
	case storageURL == "" || storageURL == "memory" || storageURL == "memory://":
		c.StorageType = "memory"

	case strings.HasPrefix(storageURL, "file://"):
		path := strings.TrimPrefix(storageURL, "file://")
		if path == "" {
			return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		c.StorageType = "fs"
		c.FSBaseDir = path

	case strings.HasPrefix(storageURL, "s3://"):
		bucket := strings.TrimPrefix(storageURL, "s3://")
		if i := strings.IndexByte(bucket, '?'); i >= 0 {
			bucket = bucket[:i]
		}
		if bucket == "" {
			return fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
		}
		c.StorageType = "s3"
		c.S3Bucket = bucket
		c.S3Region = env.S3Region
		c.S3AccessKeyID = env.S3AccessKeyID
		c.S3SecretAccessKey = env.S3SecretAccessKey
		c.S3Endpoint = env.S3Endpoint
		c.S3UsePathStyle = env.S3UsePathStyle
		c.S3CreateBucket = env.S3CreateBucket

	default:
		return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
	}
	return nil
}
