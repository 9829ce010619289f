// Package config assembles a simpleasset.Service from declarative settings.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/metrics"
	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
	repopg "github.com/tendant/simple-asset/pkg/simpleasset/repo/postgres"
	fsstorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/fs"
	memorystorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
	s3storage "github.com/tendant/simple-asset/pkg/simpleasset/storage/s3"
	"github.com/tendant/simple-asset/pkg/simpleasset/thumbnail"
)

const (
	KeyLayoutFlat    = "flat"
	KeyLayoutSharded = "sharded"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
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
		Port:         "8080",
		Environment:  "development",
		DatabaseType: "memory",
		DBSchema:     "asset",
		Storage: StorageBackendConfig{
			Name:   "memory",
			Type:   "memory",
			Config: map[string]interface{}{},
		},
		MaxFileSize:    simpleasset.DefaultMaxFileSize,
		MaxFiles:       simpleasset.DefaultMaxFiles,
		ThumbnailWidth: thumbnail.DefaultMaxWidth,
		KeyLayout:      KeyLayoutFlat,
	}
}

// ServerConfig represents configuration for the simple-asset service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: asset)
	AutoMigrate  bool   // apply the schema on startup

	// Blob storage; one backend holds both originals and thumbnails
	Storage StorageBackendConfig

	// Upload limits
	MaxFileSize int64
	MaxFiles    int

	ThumbnailWidth    int
	DeriveConcurrency int
	IngestConcurrency int
	KeyLayout         string // "flat" or "sharded"

	// Reconciliation policy
	StrictOrdering              bool
	RetainOrphansWithoutUploads bool

	EnableMetrics     bool
	MetricsRegisterer prometheus.Registerer

	Logger *slog.Logger
}

// StorageBackendConfig represents configuration for a storage backend
type StorageBackendConfig struct {
	Name   string
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
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

	switch c.Storage.Type {
	case "memory", "fs", "s3":
	default:
		return fmt.Errorf("unsupported storage backend type: %q", c.Storage.Type)
	}
	if c.Storage.Name == "" {
		return errors.New("storage backend name is required")
	}

	if c.MaxFileSize < 0 || c.MaxFiles < 0 {
		return errors.New("upload limits cannot be negative")
	}
	if c.ThumbnailWidth < 0 {
		return errors.New("thumbnail width cannot be negative")
	}

	if c.KeyLayout != KeyLayoutFlat && c.KeyLayout != KeyLayoutSharded {
		return fmt.Errorf("key_layout must be %q or %q", KeyLayoutFlat, KeyLayoutSharded)
	}

	return nil
}

// BuildService creates a Service from the configuration. The returned
// cleanup function releases database connections and must be called once
// the service is no longer used.
func (c *ServerConfig) BuildService(ctx context.Context) (simpleasset.Service, func(), error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cleanup := func() {}

	repo, closeRepo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}
	if closeRepo != nil {
		cleanup = closeRepo
	}

	store, err := c.buildStorageBackend()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build storage backend %s: %w", c.Storage.Name, err)
	}

	options := []simpleasset.Option{
		simpleasset.WithRepository(repo),
		simpleasset.WithBlobStore(c.Storage.Name, store),
		simpleasset.WithDeriver(thumbnail.New(thumbnail.Config{
			MaxWidth:    c.ThumbnailWidth,
			Concurrency: c.DeriveConcurrency,
		})),
		simpleasset.WithKeyGenerator(c.keyGenerator()),
		simpleasset.WithLimits(simpleasset.Limits{
			MaxFileSize: c.MaxFileSize,
			MaxFiles:    c.MaxFiles,
		}),
		simpleasset.WithLogger(logger),
	}
	if c.IngestConcurrency > 0 {
		options = append(options, simpleasset.WithIngestConcurrency(c.IngestConcurrency))
	}
	if c.StrictOrdering {
		options = append(options, simpleasset.WithStrictOrdering())
	}
	if c.RetainOrphansWithoutUploads {
		options = append(options, simpleasset.WithRetainOrphansWithoutUploads())
	}

	if c.EnableMetrics {
		sink, err := metrics.NewSink(c.MetricsRegisterer)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		options = append(options, simpleasset.WithEventSink(sink))
	}

	svc, err := simpleasset.New(options...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func (c *ServerConfig) keyGenerator() objectkey.Generator {
	if c.KeyLayout == KeyLayoutSharded {
		return objectkey.NewShardedGenerator()
	}
	return objectkey.NewFlatGenerator()
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context) (simpleasset.Repository, func(), error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		if c.AutoMigrate {
			if err := repopg.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repopg.NewWithPool(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres with the schema's search_path applied.
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	pool, err := newPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend() (simpleasset.BlobStore, error) {
	config := c.Storage.Config
	switch c.Storage.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config, "base_dir", "./data/storage"),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(config, "region", "us-east-1"),
			Bucket:                 getString(config, "bucket", ""),
			Prefix:                 getString(config, "prefix", ""),
			AccessKeyID:            getString(config, "access_key_id", ""),
			SecretAccessKey:        getString(config, "secret_access_key", ""),
			Endpoint:               getString(config, "endpoint", ""),
			UsePathStyle:           getBool(config, "use_path_style", false),
			EnableSSE:              getBool(config, "enable_sse", false),
			SSEAlgorithm:           getString(config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", c.Storage.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
