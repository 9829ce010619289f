package simpleasset

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CreateOwner ingests the uploads, reconciles them against the desired order
// and persists the owner. Any failure after ingestion removes what was
// ingested.
func (s *service) CreateOwner(ctx context.Context, req CreateOwnerRequest) (*Owner, error) {
	if !req.Kind.Valid() {
		return nil, &OwnerError{Op: "create", Err: ErrInvalidOwnerKind}
	}

	ingested, err := s.Ingest(ctx, req.Uploads)
	if err != nil {
		return nil, err
	}
	rec, err := Reconcile(nil, ingested, req.Order, s.reconcileOptions())
	if err != nil {
		s.discardIngested(ctx, ingested)
		return nil, err
	}

	now := time.Now().UTC()
	owner := &Owner{
		ID:         uuid.New(),
		Kind:       req.Kind,
		Name:       req.Name,
		Attributes: req.Attributes,
		AssetIDs:   rec.AssetIDs,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.owners.CreateOwner(ctx, owner); err != nil {
		s.discardIngested(ctx, ingested)
		return nil, &OwnerError{OwnerID: owner.ID, Op: "create", Err: err}
	}

	if err := s.reclaim(ctx, owner.ID, rec, len(ingested) > 0); err != nil {
		s.logger.Error("failed to reclaim orphans", "owner_id", owner.ID, "err", err)
	}
	s.emit("owner_reconciled", s.eventSink.OwnerReconciled(ctx, owner, rec))
	s.logger.Info("owner created", "owner_id", owner.ID, "kind", owner.Kind, "assets", len(owner.AssetIDs))
	return owner, nil
}

// UpdateOwner applies uploads and a desired order to an existing owner.
// Updates to one owner are serialized; ExpectedVersion additionally rejects
// writers holding a stale read. Orphans are reclaimed only after the new list
// is persisted, so a failed write never loses referenced assets.
func (s *service) UpdateOwner(ctx context.Context, req UpdateOwnerRequest) (*Owner, error) {
	unlock := s.locks.Lock(req.ID)
	defer unlock()

	owner, err := s.owners.GetOwner(ctx, req.ID)
	if err != nil {
		return nil, &OwnerError{OwnerID: req.ID, Op: "update", Err: err}
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != owner.Version {
		return nil, &OwnerError{OwnerID: req.ID, Op: "update", Err: ErrOwnerConflict}
	}

	ingested, err := s.Ingest(ctx, req.Uploads)
	if err != nil {
		return nil, err
	}
	rec, err := Reconcile(owner.AssetIDs, ingested, req.Order, s.reconcileOptions())
	if err != nil {
		s.discardIngested(ctx, ingested)
		return nil, err
	}

	expected := owner.Version
	owner.AssetIDs = rec.AssetIDs
	if req.Name != nil {
		owner.Name = *req.Name
	}
	if req.Attributes != nil {
		owner.Attributes = req.Attributes
	}
	owner.UpdatedAt = time.Now().UTC()

	if err := s.owners.UpdateOwner(ctx, owner, expected); err != nil {
		s.discardIngested(ctx, ingested)
		return nil, &OwnerError{OwnerID: req.ID, Op: "update", Err: err}
	}

	if err := s.reclaim(ctx, owner.ID, rec, len(ingested) > 0); err != nil {
		s.logger.Error("failed to reclaim orphans", "owner_id", owner.ID, "err", err)
	}
	if len(rec.Unresolved) > 0 {
		s.logger.Debug("dropped unresolved order entries", "owner_id", owner.ID, "entries", len(rec.Unresolved))
	}
	s.emit("owner_reconciled", s.eventSink.OwnerReconciled(ctx, owner, rec))
	return owner, nil
}

func (s *service) GetOwner(ctx context.Context, id uuid.UUID) (*Owner, error) {
	owner, err := s.owners.GetOwner(ctx, id)
	if err != nil {
		return nil, &OwnerError{OwnerID: id, Op: "get", Err: err}
	}
	return owner, nil
}

func (s *service) ListOwners(ctx context.Context, kind OwnerKind) ([]*Owner, error) {
	if kind != "" && !kind.Valid() {
		return nil, ErrInvalidOwnerKind
	}
	return s.owners.ListOwners(ctx, kind)
}

// GetOwnerAssets returns the owner's live assets in display order
func (s *service) GetOwnerAssets(ctx context.Context, ownerID uuid.UUID) ([]*Asset, error) {
	owner, err := s.GetOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.GetAssets(ctx, owner.AssetIDs)
}

// DeleteOwner cascades to the owner's assets, then removes the owner. If the
// cascade fails the owner is kept so its asset list remains available for a
// retry. Once assets are gone the owner removal runs to completion.
func (s *service) DeleteOwner(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	owner, err := s.owners.GetOwner(ctx, id)
	if err != nil {
		return &OwnerError{OwnerID: id, Op: "delete", Err: err}
	}
	if err := s.deleteExclusiveAssets(ctx, owner.AssetIDs, []uuid.UUID{id}); err != nil {
		return &OwnerError{OwnerID: id, Op: "delete", Err: err}
	}
	if err := s.owners.DeleteOwner(context.WithoutCancel(ctx), id); err != nil {
		return &OwnerError{OwnerID: id, Op: "delete", Err: err}
	}
	s.logger.Info("owner deleted", "owner_id", id, "assets", len(owner.AssetIDs))
	return nil
}

// DeleteOwners is the bulk form of DeleteOwner. All affected asset records
// are resolved before any of them are removed. Unknown ids are skipped; the
// number of owners removed is returned.
func (s *service) DeleteOwners(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	unlock := s.locks.LockAll(ids)
	defer unlock()

	var assetIDs []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	present := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		owner, err := s.owners.GetOwner(ctx, id)
		if err != nil {
			if isOwnerNotFound(err) {
				continue
			}
			return 0, &OwnerError{OwnerID: id, Op: "delete", Err: err}
		}
		present = append(present, id)
		for _, assetID := range owner.AssetIDs {
			if _, dup := seen[assetID]; !dup {
				seen[assetID] = struct{}{}
				assetIDs = append(assetIDs, assetID)
			}
		}
	}
	if len(present) == 0 {
		return 0, nil
	}

	if err := s.deleteExclusiveAssets(ctx, assetIDs, present); err != nil {
		return 0, err
	}
	n, err := s.owners.DeleteOwners(context.WithoutCancel(ctx), present)
	if err != nil {
		return 0, err
	}
	s.logger.Info("owners deleted", "count", n, "assets", len(assetIDs))
	return n, nil
}
