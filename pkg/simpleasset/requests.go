package simpleasset

import "github.com/google/uuid"

// Request DTOs

// ReconcileRequest contains the inputs for a standalone reconciliation.
// Orphans are reclaimed before Reconcile returns, so the caller must persist
// the canonical list afterwards.
type ReconcileRequest struct {
	// OwnerID is excluded from reference checks; zero for a create
	OwnerID  uuid.UUID
	Previous []uuid.UUID
	Ingested []IngestedAsset
	// Order is the desired order; nil appends ingested assets to Previous
	Order []OrderEntry
}

// CreateOwnerRequest contains parameters for creating an owner with its images
type CreateOwnerRequest struct {
	Kind       OwnerKind
	Name       string
	Attributes map[string]interface{}
	Uploads    []Upload
	Order      []OrderEntry
}

// UpdateOwnerRequest contains parameters for updating an owner. Nil Name or
// Attributes leave the stored values unchanged.
type UpdateOwnerRequest struct {
	ID         uuid.UUID
	Name       *string
	Attributes map[string]interface{}
	Uploads    []Upload
	Order      []OrderEntry
	// ExpectedVersion, when set, must equal the stored version or the update
	// fails with ErrOwnerConflict before anything is written
	ExpectedVersion *int64
}
