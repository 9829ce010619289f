package simpleasset

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrValidation indicates an upload was rejected before any write happened
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedType indicates a file's extension or media type is not an allowed image type
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrFileTooLarge indicates a file exceeds the per-file size limit
	ErrFileTooLarge = errors.New("file too large")

	// ErrTooManyFiles indicates a batch exceeds the per-request file count limit
	ErrTooManyFiles = errors.New("too many files")

	// ErrEmptyFile indicates a zero-byte upload
	ErrEmptyFile = errors.New("empty file")

	// ErrDuplicateFileName indicates two uploads in one batch share a filename
	ErrDuplicateFileName = errors.New("duplicate file name in batch")

	// ErrDerivationFailed indicates a thumbnail could not be produced
	ErrDerivationFailed = errors.New("thumbnail derivation failed")

	// ErrStorageWrite indicates a blob or registry write failed during ingestion
	ErrStorageWrite = errors.New("storage write failed")

	// ErrBlobNotFound indicates a blob key does not exist in the store
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidKey indicates a blob key is malformed or escapes the store
	ErrInvalidKey = errors.New("invalid blob key")

	// ErrAssetNotFound indicates an asset was not found
	ErrAssetNotFound = errors.New("asset not found")

	// ErrOwnerNotFound indicates an owner was not found
	ErrOwnerNotFound = errors.New("owner not found")

	// ErrOwnerConflict indicates the owner changed since the caller last read it
	ErrOwnerConflict = errors.New("owner was modified concurrently")

	// ErrInvalidOwnerKind indicates an unknown owner kind
	ErrInvalidOwnerKind = errors.New("invalid owner kind")

	// ErrUnresolvedOrderEntry indicates a desired-order entry matched nothing
	ErrUnresolvedOrderEntry = errors.New("unresolved order entry")
)

// ValidationError reports which upload was rejected and why.
type ValidationError struct {
	FileName string
	Reason   string
	Err      error
}

func (e *ValidationError) Error() string {
	if e.FileName == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %q: %s", e.FileName, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// DerivationError reports a thumbnail failure for one upload.
type DerivationError struct {
	FileName string
	Err      error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("thumbnail derivation failed for %q: %v", e.FileName, e.Err)
}

func (e *DerivationError) Unwrap() []error {
	return []error{ErrDerivationFailed, e.Err}
}

// AssetError represents an error related to asset operations
type AssetError struct {
	AssetID uuid.UUID
	Op      string
	Err     error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset operation %s failed for asset %s: %v", e.Op, e.AssetID, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// OwnerError represents an error related to owner operations
type OwnerError struct {
	OwnerID uuid.UUID
	Op      string
	Err     error
}

func (e *OwnerError) Error() string {
	return fmt.Sprintf("owner operation %s failed for owner %s: %v", e.Op, e.OwnerID, e.Err)
}

func (e *OwnerError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// UnresolvedOrderError lists the desired-order entries that matched nothing.
type UnresolvedOrderError struct {
	Entries []OrderEntry
}

func (e *UnresolvedOrderError) Error() string {
	return fmt.Sprintf("%d order entries did not resolve to an asset: %v", len(e.Entries), e.Entries)
}

func (e *UnresolvedOrderError) Unwrap() error {
	return ErrUnresolvedOrderEntry
}

func isOwnerNotFound(err error) bool {
	return errors.Is(err, ErrOwnerNotFound)
}
