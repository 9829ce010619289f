package simpleasset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// writeLog records everything an ingestion has written so it can be undone
type writeLog struct {
	mu       sync.Mutex
	keys     []string
	assetIDs []uuid.UUID
}

func (w *writeLog) addKey(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keys = append(w.keys, key)
}

func (w *writeLog) addAsset(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.assetIDs = append(w.assetIDs, id)
}

// Ingest validates the whole batch, then stores every upload concurrently.
// The result preserves upload order. If any item fails, or ctx is canceled,
// every blob and registry row written for the batch is removed before the
// error is returned.
func (s *service) Ingest(ctx context.Context, uploads []Upload) ([]IngestedAsset, error) {
	if len(uploads) == 0 {
		return []IngestedAsset{}, nil
	}
	if err := s.validator.ValidateBatch(uploads); err != nil {
		return nil, err
	}

	written := &writeLog{}
	results := make([]IngestedAsset, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.ingestConcurrency)
	for i, u := range uploads {
		g.Go(func() error {
			asset, err := s.ingestOne(gctx, u, written)
			if err != nil {
				return err
			}
			results[i] = IngestedAsset{Asset: asset, SourceFileName: u.FileName}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.rollback(context.WithoutCancel(ctx), written, len(uploads), err)
		return nil, err
	}

	assets := make([]*Asset, len(results))
	for i, r := range results {
		assets[i] = r.Asset
	}
	s.emit("assets_ingested", s.eventSink.AssetsIngested(ctx, assets))
	s.logger.Debug("ingested assets", "count", len(assets))
	return results, nil
}

// ingestOne writes the original, derives and writes the thumbnail, then
// records the asset. Keys and ids are logged before each write so that a
// partially completed write is still rolled back.
func (s *service) ingestOne(ctx context.Context, u Upload, written *writeLog) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	originalKey := s.keys.OriginalKey(u.FileName)
	written.addKey(originalKey)
	if err := s.blobs.Put(ctx, originalKey, bytes.NewReader(u.Data), PutParams{MimeType: u.MimeType, Size: int64(len(u.Data))}); err != nil {
		return nil, s.writeError(originalKey, "put_original", err)
	}

	rendition, err := s.derive(ctx, originalKey, u.FileName)
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), originalKey); delErr != nil {
			s.logger.Error("failed to delete original after derivation failure", "key", originalKey, "err", delErr)
		}
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		return nil, &DerivationError{FileName: u.FileName, Err: err}
	}

	derivedKey := s.keys.DerivedKey(originalKey, rendition.Ext)
	written.addKey(derivedKey)
	if err := s.blobs.Put(ctx, derivedKey, bytes.NewReader(rendition.Data), PutParams{MimeType: rendition.MimeType, Size: int64(len(rendition.Data))}); err != nil {
		return nil, s.writeError(derivedKey, "put_derived", err)
	}

	asset := &Asset{
		ID:          uuid.New(),
		OriginalKey: originalKey,
		DerivedKey:  derivedKey,
		FileName:    u.FileName,
		MimeType:    u.MimeType,
		SizeBytes:   int64(len(u.Data)),
		Width:       rendition.Width,
		Height:      rendition.Height,
		CreatedAt:   time.Now().UTC(),
	}
	written.addAsset(asset.ID)
	if err := s.registry.CreateAsset(ctx, asset); err != nil {
		return nil, &AssetError{AssetID: asset.ID, Op: "create", Err: fmt.Errorf("%w: %w", ErrStorageWrite, err)}
	}
	return asset, nil
}

func (s *service) derive(ctx context.Context, originalKey, fileName string) (*Rendition, error) {
	rc, err := s.blobs.Get(ctx, originalKey)
	if err != nil {
		return nil, fmt.Errorf("read original: %w", err)
	}
	defer rc.Close()
	return s.deriver.Derive(ctx, rc, fileName)
}

func (s *service) writeError(key, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &StorageError{Backend: s.backendName, Key: key, Op: op, Err: fmt.Errorf("%w: %w", ErrStorageWrite, err)}
}

// rollback removes registry rows first, then blobs. Failures are logged;
// the original error is what the caller sees.
func (s *service) rollback(ctx context.Context, written *writeLog, uploads int, cause error) {
	written.mu.Lock()
	keys := append([]string(nil), written.keys...)
	ids := append([]uuid.UUID(nil), written.assetIDs...)
	written.mu.Unlock()

	if len(ids) > 0 {
		if _, err := s.registry.DeleteAssetsByIDs(ctx, ids); err != nil {
			s.logger.Error("rollback: failed to delete asset records", "count", len(ids), "err", err)
		}
	}
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Error("rollback: failed to delete blob", "key", key, "err", err)
			s.emit("blob_delete_failed", s.eventSink.BlobDeleteFailed(ctx, key, err))
		}
	}

	s.logger.Warn("ingestion rolled back", "uploads", uploads, "blobs", len(keys), "assets", len(ids), "err", cause)
	s.emit("ingest_rolled_back", s.eventSink.IngestRolledBack(ctx, uploads, cause))
}

// discardIngested removes assets from a successful ingestion whose request
// later failed
func (s *service) discardIngested(ctx context.Context, ingested []IngestedAsset) {
	if len(ingested) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(ingested))
	for i, ia := range ingested {
		ids[i] = ia.Asset.ID
	}
	if err := s.DeleteAssets(context.WithoutCancel(ctx), ids); err != nil {
		s.logger.Error("failed to discard ingested assets", "count", len(ids), "err", err)
	}
}
