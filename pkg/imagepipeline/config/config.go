package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stayops/imagepipeline/pkg/imagepipeline"
	"github.com/stayops/imagepipeline/pkg/imagepipeline/cache"
	repomemory "github.com/stayops/imagepipeline/pkg/imagepipeline/repo/memory"
	repopg "github.com/stayops/imagepipeline/pkg/imagepipeline/repo/postgres"
	fsstorage "github.com/stayops/imagepipeline/pkg/imagepipeline/storage/fs"
	memorystorage "github.com/stayops/imagepipeline/pkg/imagepipeline/storage/memory"
	s3storage "github.com/stayops/imagepipeline/pkg/imagepipeline/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top
// of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:          "8080",
		Environment:   "development",
		DatabaseType:  "memory",
		StorageType:   "memory",
		URLPrefix:     "/uploads",
		EnableCache:   true,
		CacheSweep:    time.Minute,
		WebPQuality:   85,
		JPEGQuality:   90,
		FSBaseDir:     "./data/images",
		S3Region:      "us-east-1",
		RequestWindow: 30 * time.Second,
	}
}

// ServerConfig represents server configuration for the image pipeline service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Storage configuration
	StorageType string // "memory", "fs", "s3"
	FSBaseDir   string

	S3Region          string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string
	S3UsePathStyle    bool
	S3CreateBucket    bool

	// Delivery configuration
	URLPrefix   string
	EnableCache bool
	CacheSweep  time.Duration

	// Encoding configuration
	WebPQuality int
	JPEGQuality int

	// I/O deadline per storage operation
	RequestWindow time.Duration

	// Auth configuration. Empty secret disables token verification and
	// trusts gateway headers.
	JWTSecret string
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	switch c.StorageType {
	case "memory", "fs", "s3":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}

	if c.StorageType == "s3" && c.S3Bucket == "" {
		return errors.New("s3 bucket is required when using s3 storage")
	}

	if c.WebPQuality < 1 || c.WebPQuality > 100 {
		return fmt.Errorf("webp quality out of range: %d", c.WebPQuality)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality out of range: %d", c.JPEGQuality)
	}

	return nil
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService() (imagepipeline.Service, error) {
	var options []imagepipeline.Option

	repo, err := c.buildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	options = append(options, imagepipeline.WithRepository(repo))

	store, err := c.buildStorageBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to build storage backend: %w", err)
	}
	options = append(options, imagepipeline.WithBlobStore(store))

	options = append(options,
		imagepipeline.WithURLPrefix(c.URLPrefix),
		imagepipeline.WithIOTimeout(c.RequestWindow),
		imagepipeline.WithEncodingQuality(float32(c.WebPQuality), c.JPEGQuality),
	)

	if c.EnableCache {
		options = append(options, imagepipeline.WithCache(cache.New(c.CacheSweep)))
	}

	return imagepipeline.New(options...)
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository() (imagepipeline.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return repomemory.New(), nil
	case "postgres":
		pool, err := pgxpool.New(context.Background(), c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		repo := repopg.NewWithPool(pool)
		if err := repo.Migrate(context.Background()); err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// buildStorageBackend creates a BlobStore based on the configuration
func (c *ServerConfig) buildStorageBackend() (imagepipeline.BlobStore, error) {
	switch c.StorageType {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: c.FSBaseDir,
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3Region,
			Bucket:                 c.S3Bucket,
			AccessKeyID:            c.S3AccessKeyID,
			SecretAccessKey:        c.S3SecretAccessKey,
			Endpoint:               c.S3Endpoint,
			UsePathStyle:           c.S3UsePathStyle,
			CreateBucketIfNotExist: c.S3CreateBucket,
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}
}

// PingPostgres verifies connectivity to Postgres before the server
// starts serving.
func PingPostgres(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("database_url is required")
	}
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool: %w", err)
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
