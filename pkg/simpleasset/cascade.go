package simpleasset

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DeleteAssets removes the registry records for ids, then their original and
// derived blobs. Records are resolved by the delete itself so their keys are
// known before they disappear. Unknown ids are skipped, which makes repeated
// calls a no-op. Blob failures are logged and reported, never returned.
func (s *service) DeleteAssets(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	removed, err := s.registry.DeleteAssetsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("delete assets: %w", err)
	}
	// The records are gone; their blobs must follow regardless of the caller.
	ctx = context.WithoutCancel(ctx)
	s.deleteBlobs(ctx, removed)
	if len(removed) > 0 {
		s.emit("assets_deleted", s.eventSink.AssetsDeleted(ctx, removed))
	}
	return nil
}

func (s *service) deleteBlobs(ctx context.Context, assets []*Asset) {
	for _, a := range assets {
		for _, key := range []string{a.OriginalKey, a.DerivedKey} {
			if key == "" {
				continue
			}
			if err := s.blobs.Delete(ctx, key); err != nil {
				s.logger.Error("failed to delete blob", "asset_id", a.ID, "key", key, "backend", s.backendName, "err", err)
				s.emit("blob_delete_failed", s.eventSink.BlobDeleteFailed(ctx, key, err))
			}
		}
	}
}

// DeleteAsset removes a single asset and detaches it from every owner that
// lists it
func (s *service) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	if _, err := s.registry.GetAsset(ctx, id); err != nil {
		return &AssetError{AssetID: id, Op: "delete", Err: err}
	}
	if err := s.owners.DetachAsset(ctx, id); err != nil {
		return &AssetError{AssetID: id, Op: "detach", Err: err}
	}
	if err := s.DeleteAssets(ctx, []uuid.UUID{id}); err != nil {
		return &AssetError{AssetID: id, Op: "delete", Err: err}
	}
	return nil
}

// DeleteOwnerAssets removes every asset on the owner that no other owner
// references and clears the owner's list
func (s *service) DeleteOwnerAssets(ctx context.Context, ownerID uuid.UUID) error {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	owner, err := s.owners.GetOwner(ctx, ownerID)
	if err != nil {
		return &OwnerError{OwnerID: ownerID, Op: "delete_assets", Err: err}
	}
	if err := s.deleteExclusiveAssets(ctx, owner.AssetIDs, []uuid.UUID{ownerID}); err != nil {
		return &OwnerError{OwnerID: ownerID, Op: "delete_assets", Err: err}
	}
	expected := owner.Version
	owner.AssetIDs = []uuid.UUID{}
	if err := s.owners.UpdateOwner(context.WithoutCancel(ctx), owner, expected); err != nil {
		return &OwnerError{OwnerID: ownerID, Op: "delete_assets", Err: err}
	}
	return nil
}

// deleteExclusiveAssets deletes ids except those referenced by owners
// outside ownerIDs
func (s *service) deleteExclusiveAssets(ctx context.Context, ids, ownerIDs []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	referenced, err := s.owners.ReferencedAssetIDs(ctx, ids, ownerIDs)
	if err != nil {
		return fmt.Errorf("check asset references: %w", err)
	}
	return s.DeleteAssets(ctx, without(ids, referenced))
}

// reclaim deletes the orphans of a persisted reconciliation. New orphans are
// always deleted. Previous orphans still referenced elsewhere are kept, and
// all previous orphans are kept when the retain policy applies to a request
// without uploads. The owner write has already happened, so cancellation of
// the caller's context does not stop the cleanup.
func (s *service) reclaim(ctx context.Context, ownerID uuid.UUID, rec *Reconciliation, hadUploads bool) error {
	ctx = context.WithoutCancel(ctx)
	targets := append([]uuid.UUID(nil), rec.NewOrphans...)

	previous := rec.PreviousOrphans
	if s.retainOrphans && !hadUploads {
		previous = nil
	}
	if len(previous) > 0 {
		var exclude []uuid.UUID
		if ownerID != uuid.Nil {
			exclude = []uuid.UUID{ownerID}
		}
		referenced, err := s.owners.ReferencedAssetIDs(ctx, previous, exclude)
		if err != nil {
			// Without reference information a shared asset could be lost;
			// leave previous orphans for a later sweep.
			s.logger.Error("skipping previous orphans: reference check failed", "owner_id", ownerID, "count", len(previous), "err", err)
		} else {
			targets = append(targets, without(previous, referenced)...)
		}
	}

	if err := s.DeleteAssets(ctx, targets); err != nil {
		return err
	}
	rec.Reclaimed = targets
	return nil
}

// Reconcile computes the canonical list and reclaims orphans immediately.
// On a strict-ordering failure the request's ingested assets are discarded.
func (s *service) Reconcile(ctx context.Context, req ReconcileRequest) (*Reconciliation, error) {
	rec, err := Reconcile(req.Previous, req.Ingested, req.Order, s.reconcileOptions())
	if err != nil {
		s.discardIngested(ctx, req.Ingested)
		return nil, err
	}
	if err := s.reclaim(ctx, req.OwnerID, rec, len(req.Ingested) > 0); err != nil {
		return nil, err
	}
	return rec, nil
}

func without(ids, remove []uuid.UUID) []uuid.UUID {
	if len(remove) == 0 {
		return ids
	}
	drop := make(map[uuid.UUID]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
