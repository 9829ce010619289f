package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
)

func newAsset(name string) *simpleasset.Asset {
	return &simpleasset.Asset{
		ID:          uuid.New(),
		OriginalKey: "k-" + name + ".jpg",
		DerivedKey:  "k-" + name + "-th.jpg",
		FileName:    name + ".jpg",
		MimeType:    "image/jpeg",
		Width:       400,
		Height:      300,
		CreatedAt:   time.Now().UTC(),
	}
}

func newOwner(kind simpleasset.OwnerKind, assets ...uuid.UUID) *simpleasset.Owner {
	now := time.Now().UTC()
	return &simpleasset.Owner{
		ID:        uuid.New(),
		Kind:      kind,
		Name:      "owner",
		AssetIDs:  assets,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryRepository_AssetOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	a, b := newAsset("a"), newAsset("b")
	require.NoError(t, repo.CreateAsset(ctx, a))
	require.NoError(t, repo.CreateAsset(ctx, b))
	assert.Error(t, repo.CreateAsset(ctx, a), "duplicate id")

	t.Run("GetAsset", func(t *testing.T) {
		got, err := repo.GetAsset(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.OriginalKey, got.OriginalKey)

		got.OriginalKey = "mutated"
		again, _ := repo.GetAsset(ctx, a.ID)
		assert.Equal(t, a.OriginalKey, again.OriginalKey)

		_, err = repo.GetAsset(ctx, uuid.New())
		assert.ErrorIs(t, err, simpleasset.ErrAssetNotFound)
	})

	t.Run("GetAssetsByIDs skips unknown", func(t *testing.T) {
		got, err := repo.GetAssetsByIDs(ctx, []uuid.UUID{b.ID, uuid.New(), a.ID, b.ID})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("DeleteAssetsByIDs returns removed records", func(t *testing.T) {
		removed, err := repo.DeleteAssetsByIDs(ctx, []uuid.UUID{a.ID, uuid.New()})
		require.NoError(t, err)
		require.Len(t, removed, 1)
		assert.Equal(t, a.DerivedKey, removed[0].DerivedKey)

		removed, err = repo.DeleteAssetsByIDs(ctx, []uuid.UUID{a.ID})
		require.NoError(t, err)
		assert.Empty(t, removed)
		assert.Equal(t, 1, repo.AssetCount())
	})
}

func TestMemoryRepository_OwnerOperations(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	a1, a2 := uuid.New(), uuid.New()
	owner := newOwner(simpleasset.OwnerKindProduct, a1, a2)
	owner.Attributes = map[string]interface{}{"price": 10.0}
	require.NoError(t, repo.CreateOwner(ctx, owner))

	t.Run("GetOwner returns a copy", func(t *testing.T) {
		got, err := repo.GetOwner(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{a1, a2}, got.AssetIDs)

		got.AssetIDs[0] = uuid.New()
		got.Attributes["price"] = 99.0
		again, _ := repo.GetOwner(ctx, owner.ID)
		assert.Equal(t, a1, again.AssetIDs[0])
		assert.Equal(t, 10.0, again.Attributes["price"])
	})

	t.Run("UpdateOwner checks version", func(t *testing.T) {
		got, _ := repo.GetOwner(ctx, owner.ID)
		got.AssetIDs = []uuid.UUID{a2}
		require.NoError(t, repo.UpdateOwner(ctx, got, 1))
		assert.Equal(t, int64(2), got.Version)

		stale, _ := repo.GetOwner(ctx, owner.ID)
		err := repo.UpdateOwner(ctx, stale, 1)
		assert.ErrorIs(t, err, simpleasset.ErrOwnerConflict)

		missing := newOwner(simpleasset.OwnerKindEvent)
		assert.ErrorIs(t, repo.UpdateOwner(ctx, missing, 1), simpleasset.ErrOwnerNotFound)
	})

	t.Run("ListOwners filters by kind", func(t *testing.T) {
		require.NoError(t, repo.CreateOwner(ctx, newOwner(simpleasset.OwnerKindEvent)))

		products, err := repo.ListOwners(ctx, simpleasset.OwnerKindProduct)
		require.NoError(t, err)
		assert.Len(t, products, 1)

		all, err := repo.ListOwners(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestMemoryRepository_References(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	shared, onlyFirst, unused := uuid.New(), uuid.New(), uuid.New()
	first := newOwner(simpleasset.OwnerKindProduct, shared, onlyFirst)
	second := newOwner(simpleasset.OwnerKindContentBlock, shared)
	require.NoError(t, repo.CreateOwner(ctx, first))
	require.NoError(t, repo.CreateOwner(ctx, second))

	refs, err := repo.ReferencedAssetIDs(ctx, []uuid.UUID{shared, onlyFirst, unused}, []uuid.UUID{first.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{shared}, refs)

	refs, err = repo.ReferencedAssetIDs(ctx, []uuid.UUID{shared, onlyFirst}, []uuid.UUID{first.ID, second.ID})
	require.NoError(t, err)
	assert.Empty(t, refs)

	require.NoError(t, repo.DetachAsset(ctx, shared))
	got, _ := repo.GetOwner(ctx, first.ID)
	assert.Equal(t, []uuid.UUID{onlyFirst}, got.AssetIDs)
	assert.Equal(t, int64(2), got.Version)
	got, _ = repo.GetOwner(ctx, second.ID)
	assert.Empty(t, got.AssetIDs)
}

func TestMemoryRepository_DeleteOwners(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	a, b := newOwner(simpleasset.OwnerKindEvent), newOwner(simpleasset.OwnerKindEvent)
	require.NoError(t, repo.CreateOwner(ctx, a))
	require.NoError(t, repo.CreateOwner(ctx, b))

	n, err := repo.DeleteOwners(ctx, []uuid.UUID{a.ID, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, repo.DeleteOwner(ctx, a.ID), simpleasset.ErrOwnerNotFound)
	assert.NoError(t, repo.DeleteOwner(ctx, b.ID))
}
