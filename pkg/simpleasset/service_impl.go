package simpleasset

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
)

const defaultIngestConcurrency = 4

// service implements the Service interface
type service struct {
	registry    Registry
	owners      OwnerStore
	blobs       BlobStore
	backendName string
	deriver     Deriver
	keys        objectkey.Generator
	eventSink   EventSink
	logger      *slog.Logger
	validator   *Validator
	locks       *keyedMutex

	limits            Limits
	ingestConcurrency int
	strictOrdering    bool
	retainOrphans     bool
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets both the asset registry and the owner store
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.registry = repo
		s.owners = repo
	}
}

// WithRegistry sets the asset registry
func WithRegistry(registry Registry) Option {
	return func(s *service) {
		s.registry = registry
	}
}

// WithOwnerStore sets the owner store
func WithOwnerStore(owners OwnerStore) Option {
	return func(s *service) {
		s.owners = owners
	}
}

// WithBlobStore sets the blob storage backend; name is used in errors and logs
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.backendName = name
		s.blobs = store
	}
}

// WithDeriver sets the thumbnail deriver
func WithDeriver(deriver Deriver) Option {
	return func(s *service) {
		s.deriver = deriver
	}
}

// WithKeyGenerator overrides how blob keys are generated
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) {
		s.keys = gen
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger; defaults to slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithLimits sets upload limits; zero fields keep their defaults
func WithLimits(limits Limits) Option {
	return func(s *service) {
		s.limits = limits
	}
}

// WithIngestConcurrency bounds how many uploads of one batch are stored at once
func WithIngestConcurrency(n int) Option {
	return func(s *service) {
		s.ingestConcurrency = n
	}
}

// WithStrictOrdering makes unresolved desired-order entries fail the request
// with ErrUnresolvedOrderEntry instead of being dropped
func WithStrictOrdering() Option {
	return func(s *service) {
		s.strictOrdering = true
	}
}

// WithRetainOrphansWithoutUploads keeps previous assets dropped by a desired
// order when the request carried no uploads. They stay stored but are no
// longer referenced by the owner, awaiting a later sweep.
//
// Without this option such assets are deleted as soon as the owner is saved,
// the same as orphans of a request that did carry uploads.
func WithRetainOrphansWithoutUploads() Option {
	return func(s *service) {
		s.retainOrphans = true
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		ingestConcurrency: defaultIngestConcurrency,
		locks:             newKeyedMutex(),
	}

	for _, option := range options {
		option(s)
	}

	if s.registry == nil {
		return nil, fmt.Errorf("asset registry is required")
	}
	if s.owners == nil {
		return nil, fmt.Errorf("owner store is required")
	}
	if s.blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.deriver == nil {
		return nil, fmt.Errorf("deriver is required")
	}
	if s.keys == nil {
		s.keys = objectkey.NewDefaultGenerator()
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.backendName == "" {
		s.backendName = "default"
	}
	if s.ingestConcurrency <= 0 {
		s.ingestConcurrency = defaultIngestConcurrency
	}
	s.validator = NewValidator(s.limits)
	s.limits = s.validator.Limits()

	return s, nil
}

func (s *service) reconcileOptions() ReconcileOptions {
	return ReconcileOptions{Strict: s.strictOrdering}
}

// Asset reads

func (s *service) GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error) {
	asset, err := s.registry.GetAsset(ctx, id)
	if err != nil {
		return nil, &AssetError{AssetID: id, Op: "get", Err: err}
	}
	return asset, nil
}

// GetAssets returns the live assets among ids, in the order given
func (s *service) GetAssets(ctx context.Context, ids []uuid.UUID) ([]*Asset, error) {
	if len(ids) == 0 {
		return []*Asset{}, nil
	}
	found, err := s.registry.GetAssetsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get assets: %w", err)
	}
	byID := make(map[uuid.UUID]*Asset, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	out := make([]*Asset, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// OpenBlob streams a stored original or thumbnail
func (s *service) OpenBlob(ctx context.Context, key string) (io.ReadCloser, *BlobMeta, error) {
	meta, err := s.blobs.Stat(ctx, key)
	if err != nil {
		return nil, nil, &StorageError{Backend: s.backendName, Key: key, Op: "stat", Err: err}
	}
	rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, nil, &StorageError{Backend: s.backendName, Key: key, Op: "get", Err: err}
	}
	return rc, meta, nil
}

func (s *service) emit(op string, err error) {
	if err != nil {
		s.logger.Warn("event sink failed", "event", op, "err", err)
	}
}
