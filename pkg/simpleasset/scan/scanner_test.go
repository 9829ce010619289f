package scan_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	memoryrepo "github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
	"github.com/tendant/simple-asset/pkg/simpleasset/scan"
	memorystorage "github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
	"github.com/tendant/simple-asset/pkg/simpleasset/thumbnail"
)

type env struct {
	svc   simpleasset.Service
	repo  *memoryrepo.Repository
	blobs *memorystorage.Backend
}

func setup(t *testing.T) *env {
	t.Helper()
	e := &env{repo: memoryrepo.New(), blobs: memorystorage.New()}
	svc, err := simpleasset.New(
		simpleasset.WithRepository(e.repo),
		simpleasset.WithBlobStore("memory", e.blobs),
		simpleasset.WithDeriver(thumbnail.New(thumbnail.Config{})),
	)
	require.NoError(t, err)
	e.svc = svc
	return e
}

func uploads(t *testing.T, names ...string) []simpleasset.Upload {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 16))))
	out := make([]simpleasset.Upload, 0, len(names))
	for _, n := range names {
		out = append(out, simpleasset.Upload{FileName: n, MimeType: "image/png", Data: buf.Bytes()})
	}
	return out
}

func (e *env) createOwner(t *testing.T, kind simpleasset.OwnerKind, names ...string) *simpleasset.Owner {
	t.Helper()
	owner, err := e.svc.CreateOwner(context.Background(), simpleasset.CreateOwnerRequest{
		Kind:    kind,
		Uploads: uploads(t, names...),
	})
	require.NoError(t, err)
	return owner
}

func TestScan_ProcessesEveryOwnerOfKind(t *testing.T) {
	e := setup(t)
	e.createOwner(t, simpleasset.OwnerKindProduct, "a.png")
	e.createOwner(t, simpleasset.OwnerKindProduct, "b.png", "c.png")
	e.createOwner(t, simpleasset.OwnerKindEvent, "d.png")

	var seen int
	var progress []int64
	result, err := scan.New(e.svc).Scan(context.Background(), scan.ScanOptions{
		Kind: simpleasset.OwnerKindProduct,
		Processor: scan.ProcessorFunc(func(ctx context.Context, o *simpleasset.Owner, assets []*simpleasset.Asset) error {
			assert.Len(t, assets, len(o.AssetIDs))
			seen++
			return nil
		}),
		OnProgress: func(processed, total int64) { progress = append(progress, processed) },
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.TotalFound)
	assert.EqualValues(t, 2, result.TotalProcessed)
	assert.Equal(t, 2, seen)
	assert.Equal(t, []int64{1, 2}, progress)
}

func TestScan_RecordsFailuresAndContinues(t *testing.T) {
	e := setup(t)
	failing := e.createOwner(t, simpleasset.OwnerKindEvent, "a.png")
	e.createOwner(t, simpleasset.OwnerKindEvent, "b.png")

	result, err := scan.New(e.svc).ForEach(context.Background(), simpleasset.OwnerKindEvent,
		func(ctx context.Context, o *simpleasset.Owner, _ []*simpleasset.Asset) error {
			if o.ID == failing.ID {
				return errors.New("boom")
			}
			return nil
		})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.TotalProcessed)
	assert.EqualValues(t, 1, result.TotalFailed)
	assert.Equal(t, []string{failing.ID.String()}, result.FailedIDs)
}

func TestScan_DryRunAndValidation(t *testing.T) {
	e := setup(t)
	e.createOwner(t, simpleasset.OwnerKindProduct, "a.png")

	_, err := scan.New(e.svc).Scan(context.Background(), scan.ScanOptions{})
	assert.Error(t, err, "processor is required")

	result, err := scan.New(e.svc).Scan(context.Background(), scan.ScanOptions{DryRun: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.TotalProcessed)
}

func TestIntegrityChecker_ReportsAndRepairs(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	owner := e.createOwner(t, simpleasset.OwnerKindProduct, "a.png", "b.png", "c.png")
	a, b, c := owner.AssetIDs[0], owner.AssetIDs[1], owner.AssetIDs[2]

	// b vanishes from the registry without being detached
	_, err := e.repo.DeleteAssetsByIDs(ctx, []uuid.UUID{b})
	require.NoError(t, err)
	// c keeps its record but loses its thumbnail
	cAsset, err := e.svc.GetAsset(ctx, c)
	require.NoError(t, err)
	require.NoError(t, e.blobs.Delete(ctx, cAsset.DerivedKey))

	report := scan.NewIntegrityChecker(e.svc, false)
	_, err = scan.New(e.svc).Scan(ctx, scan.ScanOptions{Processor: report})
	require.NoError(t, err)

	issues := report.Issues()
	require.Len(t, issues, 2)
	reasons := map[string]uuid.UUID{}
	for _, is := range issues {
		reasons[is.Reason] = is.AssetID
	}
	assert.Equal(t, b, reasons[scan.ReasonDanglingReference])
	assert.Equal(t, c, reasons[scan.ReasonMissingDerived])

	stored, err := e.svc.GetOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, stored.AssetIDs, 3, "report-only scan must not modify owners")

	repair := scan.NewIntegrityChecker(e.svc, true)
	result, err := scan.New(e.svc).Scan(ctx, scan.ScanOptions{Processor: repair})
	require.NoError(t, err)
	assert.EqualValues(t, 0, result.TotalFailed)

	stored, err = e.svc.GetOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, c}, stored.AssetIDs)
	assert.EqualValues(t, owner.Version+1, stored.Version)
}
