// Package presets builds ready-to-use services for development and tests.
package presets

import (
	"fmt"
	"os"
	"testing"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	memoryrepo "github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
	fsstorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/fs"
	memorystorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
	"github.com/tendant/simple-asset/pkg/simpleasset/thumbnail"
)

// NewDevelopment creates a service configured for local development.
//
// Features:
//   - In-memory repository (instant startup, no setup required)
//   - Filesystem storage at ./dev-data/ (persistent across restarts)
//   - Default thumbnail width and upload limits
//
// Returns the service, a cleanup function that removes the storage
// directory, and an error if setup fails.
//
// Example:
//
//	svc, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (simpleasset.Service, func(), error) {
	cfg := &devConfig{
		storageDir: "./dev-data",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fsBackend, err := fsstorage.New(fsstorage.Config{BaseDir: cfg.storageDir})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create filesystem storage: %w", err)
	}

	options := []simpleasset.Option{
		simpleasset.WithRepository(memoryrepo.New()),
		simpleasset.WithBlobStore("fs", fsBackend),
		simpleasset.WithDeriver(thumbnail.New(thumbnail.Config{})),
	}
	svc, err := simpleasset.New(append(options, cfg.serviceOptions...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create service: %w", err)
	}

	cleanup := func() {
		os.RemoveAll(cfg.storageDir)
	}
	return svc, cleanup, nil
}

// NewTesting creates a service backed entirely by memory, isolated per test.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    svc := presets.NewTesting(t)
//	    ...
//	}
func NewTesting(t testing.TB, opts ...simpleasset.Option) simpleasset.Service {
	t.Helper()
	options := []simpleasset.Option{
		simpleasset.WithRepository(memoryrepo.New()),
		simpleasset.WithBlobStore("memory", memorystorage.New()),
		simpleasset.WithDeriver(thumbnail.New(thumbnail.Config{Concurrency: 2})),
	}
	svc, err := simpleasset.New(append(options, opts...)...)
	if err != nil {
		t.Fatalf("failed to create test service: %v", err)
	}
	return svc
}

type devConfig struct {
	storageDir     string
	serviceOptions []simpleasset.Option
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevStorage sets the development storage directory
func WithDevStorage(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.storageDir = dir
	}
}

// WithDevServiceOptions passes extra options to simpleasset.New
func WithDevServiceOptions(opts ...simpleasset.Option) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.serviceOptions = append(cfg.serviceOptions, opts...)
	}
}
