package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/config"
)

// Config holds settings that only the HTTP server needs; storage, database
// and ingestion settings are read by config.WithEnv.
type Config struct {
	JWTSecret       string `env:"JWT_SECRET" env-default:""`
	UploadsPrefix   string `env:"UPLOADS_URL_PREFIX" env-default:"/uploads"`
	MaxUploadMemory int64  `env:"MAX_UPLOAD_MEMORY" env-default:"33554432"`
	EnvPrefix       string `env:"ASSET_ENV_PREFIX" env-default:""`
}

func main() {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	serverConfig, err := config.Load(config.WithEnv(cfg.EnvPrefix))
	if err != nil {
		slog.Error("Failed to load service configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	svc, cleanup, err := serverConfig.BuildService(ctx)
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	if cfg.JWTSecret == "" {
		slog.Warn("JWT_SECRET is not set, mutating endpoints are unauthenticated")
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)
	limits := simpleasset.Limits{MaxFileSize: serverConfig.MaxFileSize, MaxFiles: serverConfig.MaxFiles}
	mountRoutes(server.R, svc, cfg, limits, serverConfig.EnableMetrics)

	slog.Info("Simple Asset server configured",
		"environment", serverConfig.Environment,
		"database", serverConfig.DatabaseType,
		"storage", serverConfig.Storage.Type,
		"key_layout", serverConfig.KeyLayout,
		"strict_ordering", serverConfig.StrictOrdering)

	server.Run()
}
