package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/presets"
)

func seededService(t *testing.T) (simpleasset.Service, *simpleasset.Owner) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 32))))

	svc := presets.NewTesting(t)
	owner, err := svc.CreateOwner(context.Background(), simpleasset.CreateOwnerRequest{
		Kind: simpleasset.OwnerKindEvent,
		Name: "Launch",
		Uploads: []simpleasset.Upload{
			{FileName: "poster.png", MimeType: "image/png", Data: buf.Bytes()},
		},
	})
	require.NoError(t, err)
	return svc, owner
}

func run(t *testing.T, svc simpleasset.Service, args ...string) (string, error) {
	t.Helper()
	cleaned := false
	root := newRootCmd(func(ctx context.Context) (simpleasset.Service, func(), error) {
		return svc, func() { cleaned = true }, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil && args[0] != "ping" {
		assert.True(t, cleaned, "service cleanup should run after the command")
	}
	return out.String(), err
}

func TestOwnersList(t *testing.T) {
	svc, owner := seededService(t)

	out, err := run(t, svc, "owners", "list", "--kind", "event")
	require.NoError(t, err)
	assert.Contains(t, out, owner.ID.String())
	assert.Contains(t, out, "Launch")

	out, err = run(t, svc, "owners", "list", "--kind", "product")
	require.NoError(t, err)
	assert.Contains(t, out, "No product owners found")

	_, err = run(t, svc, "owners", "list", "--kind", "poster")
	assert.ErrorIs(t, err, simpleasset.ErrInvalidOwnerKind)
}

func TestOwnersShowJSON(t *testing.T) {
	svc, owner := seededService(t)

	out, err := run(t, svc, "owners", "show", owner.ID.String(), "--json")
	require.NoError(t, err)

	var got struct {
		ID     uuid.UUID            `json:"id"`
		Assets []*simpleasset.Asset `json:"assets"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, owner.ID, got.ID)
	require.Len(t, got.Assets, 1)
	assert.Equal(t, "poster.png", got.Assets[0].FileName)
}

func TestOwnersDelete(t *testing.T) {
	svc, owner := seededService(t)

	out, err := run(t, svc, "owners", "delete", owner.ID.String(), uuid.NewString())
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 of 2 owners")

	_, err = svc.GetAsset(context.Background(), owner.AssetIDs[0])
	assert.ErrorIs(t, err, simpleasset.ErrAssetNotFound)

	_, err = run(t, svc, "owners", "delete", "not-a-uuid")
	assert.Error(t, err)
}

func TestAssetsShowAndDelete(t *testing.T) {
	svc, owner := seededService(t)
	assetID := owner.AssetIDs[0].String()

	out, err := run(t, svc, "assets", "show", assetID)
	require.NoError(t, err)
	assert.Contains(t, out, "poster.png")
	assert.Contains(t, out, "64x32")

	out, err = run(t, svc, "images", "delete", assetID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted asset")

	updated, err := svc.GetOwner(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.AssetIDs)
}

func TestPingMemory(t *testing.T) {
	t.Setenv("DATABASE_URL", "memory")
	out, err := run(t, nil, "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "in-memory")
}

func TestScanReportsCleanStore(t *testing.T) {
	svc, _ := seededService(t)

	out, err := run(t, svc, "scan")
	require.NoError(t, err)
	assert.Contains(t, out, "Scanned 1 owners: 1 ok, 0 failed")
	assert.NotContains(t, out, "REASON")
}
