package simpleasset

import (
	"time"

	"github.com/google/uuid"
)

// OwnerKind identifies the type of record that owns a list of assets.
type OwnerKind string

const (
	OwnerKindProduct      OwnerKind = "product"
	OwnerKindEvent        OwnerKind = "event"
	OwnerKindContentBlock OwnerKind = "content_block"
)

// Valid reports whether k is one of the known owner kinds.
func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerKindProduct, OwnerKindEvent, OwnerKindContentBlock:
		return true
	}
	return false
}

// Asset is one stored image: an original blob plus its derived thumbnail.
type Asset struct {
	ID          uuid.UUID `json:"id"`
	OriginalKey string    `json:"original_key"`
	DerivedKey  string    `json:"derived_key"`
	FileName    string    `json:"file_name"`
	MimeType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CreatedAt   time.Time `json:"created_at"`
}

// Owner is a record holding an ordered list of asset references.
// Version increases by one on every persisted change.
type Owner struct {
	ID         uuid.UUID              `json:"id"`
	Kind       OwnerKind              `json:"kind"`
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	AssetIDs   []uuid.UUID            `json:"asset_ids"`
	Version    int64                  `json:"version"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Upload is a single file received from a client, prior to validation.
type Upload struct {
	FileName string
	MimeType string
	Data     []byte
}

// IngestedAsset pairs a freshly created asset with the filename it was
// uploaded under, so that desired-order entries can refer to it.
type IngestedAsset struct {
	Asset          *Asset
	SourceFileName string
}

// Rendition is the output of a Deriver.
type Rendition struct {
	Data     []byte
	Width    int
	Height   int
	MimeType string
	// Ext is the extension of the encoded output, including the leading dot.
	Ext string
}

// PutParams carries optional metadata for a blob write.
type PutParams struct {
	MimeType string
	Size     int64
}

// BlobMeta describes a stored blob.
type BlobMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
	ETag        string
}
