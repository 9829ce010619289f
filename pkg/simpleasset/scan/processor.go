package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// OwnerProcessor processes one owner together with its resolvable assets.
// Return an error to mark the owner as failed; the scan continues.
type OwnerProcessor interface {
	Process(ctx context.Context, owner *simpleasset.Owner, assets []*simpleasset.Asset) error
}

// Issue describes one inconsistency found for an owner
type Issue struct {
	OwnerID uuid.UUID `json:"owner_id"`
	AssetID uuid.UUID `json:"asset_id"`
	// Key is set when a blob is missing
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason"`
}

const (
	ReasonDanglingReference = "dangling_reference"
	ReasonMissingOriginal   = "missing_original"
	ReasonMissingDerived    = "missing_derived"
)

// IntegrityChecker reports owners referencing assets that no longer exist
// and assets whose blobs are gone. With Repair set, dangling references are
// dropped from the owner through a versioned update.
type IntegrityChecker struct {
	service simpleasset.Service
	Repair  bool

	mu     sync.Mutex
	issues []Issue
}

func NewIntegrityChecker(service simpleasset.Service, repair bool) *IntegrityChecker {
	return &IntegrityChecker{service: service, Repair: repair}
}

// Issues returns everything found so far
func (c *IntegrityChecker) Issues() []Issue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Issue(nil), c.issues...)
}

func (c *IntegrityChecker) record(issue Issue) {
	c.mu.Lock()
	c.issues = append(c.issues, issue)
	c.mu.Unlock()
}

func (c *IntegrityChecker) Process(ctx context.Context, owner *simpleasset.Owner, assets []*simpleasset.Asset) error {
	live := make(map[uuid.UUID]struct{}, len(assets))
	for _, a := range assets {
		live[a.ID] = struct{}{}
		c.checkBlob(ctx, owner.ID, a.ID, a.OriginalKey, ReasonMissingOriginal)
		c.checkBlob(ctx, owner.ID, a.ID, a.DerivedKey, ReasonMissingDerived)
	}

	var keep []simpleasset.OrderEntry
	dangling := 0
	for _, id := range owner.AssetIDs {
		if _, ok := live[id]; ok {
			keep = append(keep, simpleasset.ExistingEntry(id))
			continue
		}
		dangling++
		c.record(Issue{OwnerID: owner.ID, AssetID: id, Reason: ReasonDanglingReference})
	}

	if dangling == 0 || !c.Repair {
		return nil
	}
	if keep == nil {
		keep = []simpleasset.OrderEntry{}
	}
	version := owner.Version
	_, err := c.service.UpdateOwner(ctx, simpleasset.UpdateOwnerRequest{
		ID:              owner.ID,
		Order:           keep,
		ExpectedVersion: &version,
	})
	if err != nil {
		return fmt.Errorf("repair owner %s: %w", owner.ID, err)
	}
	return nil
}

func (c *IntegrityChecker) checkBlob(ctx context.Context, ownerID, assetID uuid.UUID, key, reason string) {
	rc, _, err := c.service.OpenBlob(ctx, key)
	if err == nil {
		rc.Close()
		return
	}
	if errors.Is(err, simpleasset.ErrBlobNotFound) {
		c.record(Issue{OwnerID: ownerID, AssetID: assetID, Key: key, Reason: reason})
	}
}
