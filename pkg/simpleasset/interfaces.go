package simpleasset

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore stores original and derived image bytes under opaque keys.
type BlobStore interface {
	// Put writes the reader's content under key, replacing any existing blob
	Put(ctx context.Context, key string, reader io.Reader, params PutParams) error

	// Get opens the blob for reading; returns ErrBlobNotFound when missing
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob; deleting a missing key succeeds
	Delete(ctx context.Context, key string) error

	// Stat returns blob metadata; returns ErrBlobNotFound when missing
	Stat(ctx context.Context, key string) (*BlobMeta, error)
}

// Registry persists asset records.
type Registry interface {
	CreateAsset(ctx context.Context, asset *Asset) error
	GetAsset(ctx context.Context, id uuid.UUID) (*Asset, error)

	// GetAssetsByIDs returns the assets that exist, skipping unknown ids
	GetAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]*Asset, error)

	// DeleteAssetsByIDs removes the assets that exist and returns them
	DeleteAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]*Asset, error)
}

// OwnerStore persists owner records and their asset lists.
type OwnerStore interface {
	CreateOwner(ctx context.Context, owner *Owner) error
	GetOwner(ctx context.Context, id uuid.UUID) (*Owner, error)

	// ListOwners returns owners of the given kind; an empty kind lists all
	ListOwners(ctx context.Context, kind OwnerKind) ([]*Owner, error)

	// UpdateOwner persists owner if its stored version equals expectedVersion,
	// then sets owner.Version to the new version. Returns ErrOwnerConflict
	// on a version mismatch.
	UpdateOwner(ctx context.Context, owner *Owner, expectedVersion int64) error

	DeleteOwner(ctx context.Context, id uuid.UUID) error

	// DeleteOwners removes the owners that exist and returns how many were removed
	DeleteOwners(ctx context.Context, ids []uuid.UUID) (int, error)

	// ReferencedAssetIDs returns the subset of assetIDs referenced by any
	// owner outside excludeOwnerIDs
	ReferencedAssetIDs(ctx context.Context, assetIDs []uuid.UUID, excludeOwnerIDs []uuid.UUID) ([]uuid.UUID, error)

	// DetachAsset removes assetID from every owner list that contains it
	DetachAsset(ctx context.Context, assetID uuid.UUID) error
}

// Repository combines asset and owner persistence; the bundled memory and
// Postgres implementations satisfy it.
type Repository interface {
	Registry
	OwnerStore
}

// Deriver produces a bounded-width thumbnail of an image.
type Deriver interface {
	Derive(ctx context.Context, reader io.Reader, fileName string) (*Rendition, error)
}

// EventSink receives lifecycle notifications. Errors returned by a sink are
// logged and never fail the operation that raised them.
type EventSink interface {
	// AssetsIngested is fired after a batch is fully ingested
	AssetsIngested(ctx context.Context, assets []*Asset) error

	// IngestRolledBack is fired after a failed batch has been cleaned up
	IngestRolledBack(ctx context.Context, uploads int, cause error) error

	// AssetsDeleted is fired after assets are removed from the registry
	AssetsDeleted(ctx context.Context, assets []*Asset) error

	// BlobDeleteFailed is fired when a blob could not be removed during cascade
	BlobDeleteFailed(ctx context.Context, key string, cause error) error

	// OwnerReconciled is fired after an owner's asset list was persisted
	OwnerReconciled(ctx context.Context, owner *Owner, result *Reconciliation) error
}
