package simpleasset

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service defines the main interface for the simple-asset library
type Service interface {
	// Asset ingestion and reconciliation
	Ingest(ctx context.Context, uploads []Upload) ([]IngestedAsset, error)
	Reconcile(ctx context.Context, req ReconcileRequest) (*Reconciliation, error)

	// Asset reads
	GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error)
	GetAssets(ctx context.Context, ids []uuid.UUID) ([]*Asset, error)
	OpenBlob(ctx context.Context, key string) (io.ReadCloser, *BlobMeta, error)

	// Cascade deletion
	DeleteAssets(ctx context.Context, ids []uuid.UUID) error
	DeleteAsset(ctx context.Context, id uuid.UUID) error
	DeleteOwnerAssets(ctx context.Context, ownerID uuid.UUID) error

	// Owner operations
	CreateOwner(ctx context.Context, req CreateOwnerRequest) (*Owner, error)
	UpdateOwner(ctx context.Context, req UpdateOwnerRequest) (*Owner, error)
	GetOwner(ctx context.Context, id uuid.UUID) (*Owner, error)
	ListOwners(ctx context.Context, kind OwnerKind) ([]*Owner, error)
	GetOwnerAssets(ctx context.Context, ownerID uuid.UUID) ([]*Asset, error)
	DeleteOwner(ctx context.Context, id uuid.UUID) error
	DeleteOwners(ctx context.Context, ids []uuid.UUID) (int, error)
}
