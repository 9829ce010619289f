package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Repository implements simpleasset.Repository using in-memory storage
type Repository struct {
	mu     sync.RWMutex
	assets map[uuid.UUID]*simpleasset.Asset
	owners map[uuid.UUID]*simpleasset.Owner
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		assets: make(map[uuid.UUID]*simpleasset.Asset),
		owners: make(map[uuid.UUID]*simpleasset.Owner),
	}
}

func copyOwner(o *simpleasset.Owner) *simpleasset.Owner {
	c := *o
	c.AssetIDs = slices.Clone(o.AssetIDs)
	if c.AssetIDs == nil {
		c.AssetIDs = []uuid.UUID{}
	}
	c.Attributes = maps.Clone(o.Attributes)
	return &c
}

// Asset operations

func (r *Repository) CreateAsset(ctx context.Context, asset *simpleasset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assets[asset.ID]; exists {
		return fmt.Errorf("asset %s already exists", asset.ID)
	}
	assetCopy := *asset
	r.assets[asset.ID] = &assetCopy
	return nil
}

func (r *Repository) GetAsset(ctx context.Context, id uuid.UUID) (*simpleasset.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, exists := r.assets[id]
	if !exists {
		return nil, simpleasset.ErrAssetNotFound
	}
	assetCopy := *asset
	return &assetCopy, nil
}

func (r *Repository) GetAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]*simpleasset.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*simpleasset.Asset, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if asset, ok := r.assets[id]; ok {
			assetCopy := *asset
			out = append(out, &assetCopy)
		}
	}
	return out, nil
}

// DeleteAssetsByIDs collects the matching records before removing them so
// the caller can still reach their blob keys
func (r *Repository) DeleteAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]*simpleasset.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]*simpleasset.Asset, 0, len(ids))
	for _, id := range ids {
		if asset, ok := r.assets[id]; ok {
			removed = append(removed, asset)
			delete(r.assets, id)
		}
	}
	return removed, nil
}

// AssetCount returns the number of stored assets
func (r *Repository) AssetCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}

// Owner operations

func (r *Repository) CreateOwner(ctx context.Context, owner *simpleasset.Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.owners[owner.ID]; exists {
		return fmt.Errorf("owner %s already exists", owner.ID)
	}
	r.owners[owner.ID] = copyOwner(owner)
	return nil
}

func (r *Repository) GetOwner(ctx context.Context, id uuid.UUID) (*simpleasset.Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, exists := r.owners[id]
	if !exists {
		return nil, simpleasset.ErrOwnerNotFound
	}
	return copyOwner(owner), nil
}

func (r *Repository) ListOwners(ctx context.Context, kind simpleasset.OwnerKind) ([]*simpleasset.Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*simpleasset.Owner, 0, len(r.owners))
	for _, owner := range r.owners {
		if kind == "" || owner.Kind == kind {
			out = append(out, copyOwner(owner))
		}
	}
	// Newest first, matching the Postgres implementation
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Repository) UpdateOwner(ctx context.Context, owner *simpleasset.Owner, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.owners[owner.ID]
	if !exists {
		return simpleasset.ErrOwnerNotFound
	}
	if stored.Version != expectedVersion {
		return simpleasset.ErrOwnerConflict
	}
	owner.Version = expectedVersion + 1
	r.owners[owner.ID] = copyOwner(owner)
	return nil
}

func (r *Repository) DeleteOwner(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.owners[id]; !exists {
		return simpleasset.ErrOwnerNotFound
	}
	delete(r.owners, id)
	return nil
}

func (r *Repository) DeleteOwners(ctx context.Context, ids []uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, exists := r.owners[id]; exists {
			delete(r.owners, id)
			n++
		}
	}
	return n, nil
}

func (r *Repository) ReferencedAssetIDs(ctx context.Context, assetIDs []uuid.UUID, excludeOwnerIDs []uuid.UUID) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[uuid.UUID]struct{}, len(assetIDs))
	for _, id := range assetIDs {
		wanted[id] = struct{}{}
	}
	excluded := make(map[uuid.UUID]struct{}, len(excludeOwnerIDs))
	for _, id := range excludeOwnerIDs {
		excluded[id] = struct{}{}
	}

	found := make(map[uuid.UUID]struct{})
	for ownerID, owner := range r.owners {
		if _, skip := excluded[ownerID]; skip {
			continue
		}
		for _, id := range owner.AssetIDs {
			if _, ok := wanted[id]; ok {
				found[id] = struct{}{}
			}
		}
	}

	out := make([]uuid.UUID, 0, len(found))
	for _, id := range assetIDs {
		if _, ok := found[id]; ok {
			out = append(out, id)
			delete(found, id)
		}
	}
	return out, nil
}

func (r *Repository) DetachAsset(ctx context.Context, assetID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, owner := range r.owners {
		if !slices.Contains(owner.AssetIDs, assetID) {
			continue
		}
		owner.AssetIDs = slices.DeleteFunc(owner.AssetIDs, func(id uuid.UUID) bool { return id == assetID })
		owner.Version++
		owner.UpdatedAt = time.Now().UTC()
	}
	return nil
}
