package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

type blob struct {
	data      []byte
	mimeType  string
	updatedAt time.Time
}

// Backend is an in-memory implementation of the simpleasset.BlobStore interface
type Backend struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		blobs: make(map[string]blob),
	}
}

// Put stores a copy of the reader's content
func (b *Backend) Put(ctx context.Context, key string, reader io.Reader, params simpleasset.PutParams) error {
	if key == "" {
		return simpleasset.ErrInvalidKey
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = blob{data: data, mimeType: params.MimeType, updatedAt: time.Now().UTC()}
	return nil
}

// Get returns a reader over a copy of the stored bytes
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stored, ok := b.blobs[key]
	if !ok {
		return nil, simpleasset.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(stored.data))), nil
}

// Delete removes the blob; missing keys are ignored
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	return nil
}

// Stat retrieves metadata for a stored blob
func (b *Backend) Stat(ctx context.Context, key string) (*simpleasset.BlobMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stored, ok := b.blobs[key]
	if !ok {
		return nil, simpleasset.ErrBlobNotFound
	}
	contentType := stored.mimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &simpleasset.BlobMeta{
		Key:         key,
		Size:        int64(len(stored.data)),
		ContentType: contentType,
		UpdatedAt:   stored.updatedAt,
	}, nil
}

// Keys lists the stored keys in sorted order
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.blobs))
	for k := range b.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
