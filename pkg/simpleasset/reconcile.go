package simpleasset

import (
	"fmt"

	"github.com/google/uuid"
)

// OrderEntry is one element of a client-supplied desired order. Exactly one
// field is set: Existing names an asset the owner already holds, New names
// the filename of an upload in the same request.
type OrderEntry struct {
	Existing string `json:"existing,omitempty"`
	New      string `json:"new,omitempty"`
}

// ExistingEntry refers to an asset already on the owner
func ExistingEntry(id uuid.UUID) OrderEntry {
	return OrderEntry{Existing: id.String()}
}

// NewEntry refers to an upload by its filename
func NewEntry(fileName string) OrderEntry {
	return OrderEntry{New: fileName}
}

func (e OrderEntry) String() string {
	switch {
	case e.Existing != "" && e.New != "":
		return fmt.Sprintf("{existing:%s new:%s}", e.Existing, e.New)
	case e.Existing != "":
		return fmt.Sprintf("{existing:%s}", e.Existing)
	default:
		return fmt.Sprintf("{new:%s}", e.New)
	}
}

// ReconcileOptions selects the policy for entries that resolve to nothing
type ReconcileOptions struct {
	// Strict fails reconciliation when any order entry is unresolved
	Strict bool
}

// Reconciliation is the outcome of merging an owner's previous list, the
// assets ingested in this request and the desired order
type Reconciliation struct {
	// AssetIDs is the canonical list to persist on the owner
	AssetIDs []uuid.UUID
	// NewOrphans are assets ingested in this request that nothing references
	NewOrphans []uuid.UUID
	// PreviousOrphans are ids dropped from the owner's previous list
	PreviousOrphans []uuid.UUID
	// Unresolved are order entries that matched neither a previous id nor an upload
	Unresolved []OrderEntry
	// Reclaimed is filled in by the service with the ids it deleted
	Reclaimed []uuid.UUID
}

// Orphans returns every id that dropped out of the canonical list
func (r *Reconciliation) Orphans() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(r.NewOrphans)+len(r.PreviousOrphans))
	out = append(out, r.NewOrphans...)
	return append(out, r.PreviousOrphans...)
}

// Reconcile computes the canonical asset list for an owner. It performs no
// I/O. With a nil desired order the result is previous followed by ingested
// in upload order. Otherwise each entry is resolved in turn: existing ids
// must belong to previous, new filenames must match an ingested upload, and
// an id appearing twice keeps its first position. Unresolved entries are
// dropped unless opts.Strict is set.
func Reconcile(previous []uuid.UUID, ingested []IngestedAsset, desired []OrderEntry, opts ReconcileOptions) (*Reconciliation, error) {
	byName := make(map[string]uuid.UUID, len(ingested))
	for _, ia := range ingested {
		if _, dup := byName[ia.SourceFileName]; !dup {
			byName[ia.SourceFileName] = ia.Asset.ID
		}
	}
	prevSet := make(map[uuid.UUID]struct{}, len(previous))
	for _, id := range previous {
		prevSet[id] = struct{}{}
	}

	rec := &Reconciliation{AssetIDs: make([]uuid.UUID, 0, len(previous)+len(ingested))}
	placed := make(map[uuid.UUID]struct{}, len(previous)+len(ingested))
	place := func(id uuid.UUID) {
		if _, ok := placed[id]; ok {
			return
		}
		placed[id] = struct{}{}
		rec.AssetIDs = append(rec.AssetIDs, id)
	}

	if desired == nil {
		for _, id := range previous {
			place(id)
		}
		for _, ia := range ingested {
			place(ia.Asset.ID)
		}
	} else {
		for _, entry := range desired {
			id, ok := resolveEntry(entry, prevSet, byName)
			if !ok {
				rec.Unresolved = append(rec.Unresolved, entry)
				continue
			}
			place(id)
		}
	}

	if opts.Strict && len(rec.Unresolved) > 0 {
		return nil, &UnresolvedOrderError{Entries: rec.Unresolved}
	}

	for _, ia := range ingested {
		if _, ok := placed[ia.Asset.ID]; !ok {
			rec.NewOrphans = append(rec.NewOrphans, ia.Asset.ID)
			placed[ia.Asset.ID] = struct{}{}
		}
	}
	for _, id := range previous {
		if _, ok := placed[id]; !ok {
			rec.PreviousOrphans = append(rec.PreviousOrphans, id)
			placed[id] = struct{}{}
		}
	}
	return rec, nil
}

func resolveEntry(entry OrderEntry, previous map[uuid.UUID]struct{}, byName map[string]uuid.UUID) (uuid.UUID, bool) {
	switch {
	case entry.Existing != "" && entry.New != "":
		return uuid.Nil, false
	case entry.Existing != "":
		id, err := uuid.Parse(entry.Existing)
		if err != nil {
			return uuid.Nil, false
		}
		_, ok := previous[id]
		return id, ok
	case entry.New != "":
		id, ok := byName[entry.New]
		return id, ok
	}
	return uuid.Nil, false
}
