package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/config"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if err := newRootCmd(buildService).Execute(); err != nil {
		os.Exit(1)
	}
}

func buildService(ctx context.Context) (simpleasset.Service, func(), error) {
	cfg, err := config.Load(config.WithEnv(""))
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg.BuildService(ctx)
}
