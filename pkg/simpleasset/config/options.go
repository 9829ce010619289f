package config

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate applies the Postgres schema when the service is built
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithMemoryStorage stores blobs in memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageBackendConfig{Name: "memory", Type: "memory", Config: map[string]interface{}{}}
		return nil
	}
}

// WithFilesystemStorage stores blobs below baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		c.Storage = StorageBackendConfig{
			Name:   "fs",
			Type:   "fs",
			Config: map[string]interface{}{"base_dir": baseDir},
		}
		return nil
	}
}

// WithS3Storage stores blobs in an S3 bucket
func WithS3Storage(bucket, region string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		if region == "" {
			region = "us-east-1"
		}
		c.Storage = StorageBackendConfig{
			Name: "s3",
			Type: "s3",
			Config: map[string]interface{}{
				"bucket": bucket,
				"region": region,
			},
		}
		return nil
	}
}

// WithS3Credentials sets static AWS credentials; requires WithS3Storage first
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		if c.Storage.Type != "s3" {
			return fmt.Errorf("S3 credentials require an s3 storage backend")
		}
		c.Storage.Config["access_key_id"] = accessKeyID
		c.Storage.Config["secret_access_key"] = secretAccessKey
		return nil
	}
}

// WithS3Endpoint sets a custom S3 endpoint (for MinIO, LocalStack, etc.)
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		if c.Storage.Type != "s3" {
			return fmt.Errorf("S3 endpoint requires an s3 storage backend")
		}
		c.Storage.Config["endpoint"] = endpoint
		c.Storage.Config["use_path_style"] = usePathStyle
		return nil
	}
}

// WithUploadLimits bounds file size and files per request; zero keeps the default
func WithUploadLimits(maxFileSize int64, maxFiles int) Option {
	return func(c *ServerConfig) error {
		if maxFileSize < 0 || maxFiles < 0 {
			return fmt.Errorf("upload limits cannot be negative")
		}
		c.MaxFileSize = maxFileSize
		c.MaxFiles = maxFiles
		return nil
	}
}

// WithThumbnailWidth sets the maximum thumbnail width
func WithThumbnailWidth(width int) Option {
	return func(c *ServerConfig) error {
		if width <= 0 {
			return fmt.Errorf("thumbnail width must be positive, got: %d", width)
		}
		c.ThumbnailWidth = width
		return nil
	}
}

// WithConcurrency bounds parallel ingestion and thumbnail decoding; zero keeps the default
func WithConcurrency(ingest, derive int) Option {
	return func(c *ServerConfig) error {
		c.IngestConcurrency = ingest
		c.DeriveConcurrency = derive
		return nil
	}
}

// WithKeyLayout selects flat or sharded object keys
func WithKeyLayout(layout string) Option {
	return func(c *ServerConfig) error {
		if layout != KeyLayoutFlat && layout != KeyLayoutSharded {
			return fmt.Errorf("unknown key layout: %s", layout)
		}
		c.KeyLayout = layout
		return nil
	}
}

// WithStrictOrdering rejects requests whose desired order cannot be fully resolved
func WithStrictOrdering(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.StrictOrdering = enabled
		return nil
	}
}

// WithRetainOrphansWithoutUploads keeps dropped previous assets when no files are uploaded
func WithRetainOrphansWithoutUploads(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.RetainOrphansWithoutUploads = enabled
		return nil
	}
}

// WithMetrics enables the Prometheus event sink; a nil registerer uses the default one
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *ServerConfig) error {
		c.EnableMetrics = true
		c.MetricsRegisterer = reg
		return nil
	}
}

// WithLogger sets the logger handed to the service
func WithLogger(logger *slog.Logger) Option {
	return func(c *ServerConfig) error {
		c.Logger = logger
		return nil
	}
}
