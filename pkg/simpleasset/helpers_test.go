package simpleasset_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	repomemory "github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
	"github.com/tendant/simple-asset/pkg/simpleasset/storage/memory"
	"github.com/tendant/simple-asset/pkg/simpleasset/thumbnail"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func pngUpload(t *testing.T, name string) simpleasset.Upload {
	return simpleasset.Upload{FileName: name, MimeType: "image/png", Data: pngBytes(t, 800, 400)}
}

// flakyBlobStore wraps the memory backend and fails selected operations
type flakyBlobStore struct {
	*memory.Backend
	failPut    func(key string) bool
	failDelete func(key string) bool
}

func (f *flakyBlobStore) Put(ctx context.Context, key string, r io.Reader, p simpleasset.PutParams) error {
	if f.failPut != nil && f.failPut(key) {
		return errors.New("disk full")
	}
	return f.Backend.Put(ctx, key, r, p)
}

func (f *flakyBlobStore) Delete(ctx context.Context, key string) error {
	if f.failDelete != nil && f.failDelete(key) {
		return errors.New("permission denied")
	}
	return f.Backend.Delete(ctx, key)
}

// brokenDeriver fails for one filename and delegates the rest
type brokenDeriver struct {
	next   simpleasset.Deriver
	broken string
}

func (d *brokenDeriver) Derive(ctx context.Context, r io.Reader, fileName string) (*simpleasset.Rendition, error) {
	if fileName == d.broken {
		return nil, errors.New("unsupported codec")
	}
	return d.next.Derive(ctx, r, fileName)
}

// failingOwnerStore rejects owner writes after they are enabled
type failingOwnerStore struct {
	*repomemory.Repository
	failUpdates bool
	failCreates bool
}

func (f *failingOwnerStore) UpdateOwner(ctx context.Context, o *simpleasset.Owner, v int64) error {
	if f.failUpdates {
		return errors.New("connection reset")
	}
	return f.Repository.UpdateOwner(ctx, o, v)
}

func (f *failingOwnerStore) CreateOwner(ctx context.Context, o *simpleasset.Owner) error {
	if f.failCreates {
		return errors.New("connection reset")
	}
	return f.Repository.CreateOwner(ctx, o)
}

// recordingSink keeps every event for assertions
type recordingSink struct {
	simpleasset.NoopEventSink
	mu           sync.Mutex
	rollbacks    int
	failedBlobs  []string
	deleted      []uuid.UUID
	reconciled   []*simpleasset.Reconciliation
	ingestedSeen int
}

func (r *recordingSink) AssetsIngested(ctx context.Context, assets []*simpleasset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingestedSeen += len(assets)
	return nil
}

func (r *recordingSink) IngestRolledBack(ctx context.Context, uploads int, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollbacks++
	return nil
}

func (r *recordingSink) AssetsDeleted(ctx context.Context, assets []*simpleasset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range assets {
		r.deleted = append(r.deleted, a.ID)
	}
	return nil
}

func (r *recordingSink) BlobDeleteFailed(ctx context.Context, key string, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedBlobs = append(r.failedBlobs, key)
	return nil
}

func (r *recordingSink) OwnerReconciled(ctx context.Context, owner *simpleasset.Owner, rec *simpleasset.Reconciliation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconciled = append(r.reconciled, rec)
	return errors.New("sink errors are ignored")
}

type fixture struct {
	svc   simpleasset.Service
	repo  *repomemory.Repository
	blobs *flakyBlobStore
	sink  *recordingSink
}

func newFixture(t *testing.T, opts ...simpleasset.Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:  repomemory.New(),
		blobs: &flakyBlobStore{Backend: memory.New()},
		sink:  &recordingSink{},
	}
	base := []simpleasset.Option{
		simpleasset.WithRepository(f.repo),
		simpleasset.WithBlobStore("memory", f.blobs),
		simpleasset.WithDeriver(thumbnail.New(thumbnail.Config{})),
		simpleasset.WithEventSink(f.sink),
	}
	svc, err := simpleasset.New(append(base, opts...)...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

// createOwner creates a product whose images are the given filenames
func (f *fixture) createOwner(t *testing.T, names ...string) *simpleasset.Owner {
	t.Helper()
	uploads := make([]simpleasset.Upload, len(names))
	for i, n := range names {
		uploads[i] = pngUpload(t, n)
	}
	owner, err := f.svc.CreateOwner(context.Background(), simpleasset.CreateOwnerRequest{
		Kind:    simpleasset.OwnerKindProduct,
		Name:    "test product",
		Uploads: uploads,
	})
	require.NoError(t, err)
	return owner
}

func (f *fixture) assetKeys(t *testing.T, ids ...uuid.UUID) []string {
	t.Helper()
	var keys []string
	for _, id := range ids {
		a, err := f.repo.GetAsset(context.Background(), id)
		require.NoError(t, err)
		keys = append(keys, a.OriginalKey, a.DerivedKey)
	}
	return keys
}

func hasDerivedSuffix(key string) bool {
	return strings.Contains(key, "-th.")
}

// cancelingRepository fails on a done context the way a database driver
// does, and cancels the caller's context right after a chosen step succeeds.
type cancelingRepository struct {
	*repomemory.Repository
	cancel            context.CancelFunc
	afterOwnerWrite   bool
	afterAssetsDelete bool
}

func (c *cancelingRepository) CreateOwner(ctx context.Context, o *simpleasset.Owner) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.Repository.CreateOwner(ctx, o)
	if err == nil && c.afterOwnerWrite {
		c.cancel()
	}
	return err
}

func (c *cancelingRepository) UpdateOwner(ctx context.Context, o *simpleasset.Owner, v int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.Repository.UpdateOwner(ctx, o, v)
	if err == nil && c.afterOwnerWrite {
		c.cancel()
	}
	return err
}

func (c *cancelingRepository) ReferencedAssetIDs(ctx context.Context, ids, exclude []uuid.UUID) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Repository.ReferencedAssetIDs(ctx, ids, exclude)
}

func (c *cancelingRepository) DeleteAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]*simpleasset.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deleted, err := c.Repository.DeleteAssetsByIDs(ctx, ids)
	if err == nil && c.afterAssetsDelete {
		c.cancel()
	}
	return deleted, err
}

func (c *cancelingRepository) DeleteOwner(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Repository.DeleteOwner(ctx, id)
}

func (c *cancelingRepository) DeleteOwners(ctx context.Context, ids []uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.Repository.DeleteOwners(ctx, ids)
}

func newCancelingService(t *testing.T, repo *cancelingRepository, blobs *memory.Backend) simpleasset.Service {
	t.Helper()
	svc, err := simpleasset.New(
		simpleasset.WithRepository(repo),
		simpleasset.WithBlobStore("memory", blobs),
		simpleasset.WithDeriver(thumbnail.New(thumbnail.Config{})),
	)
	require.NoError(t, err)
	return svc
}
