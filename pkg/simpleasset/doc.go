// Package simpleasset manages the lifecycle of uploaded images attached to
// owner records (products, events, content blocks).
//
// A Service ingests a batch of uploads, validating each file, writing the
// original and a width-bounded thumbnail to a BlobStore, and recording an
// Asset in the Registry. When an owner's image list changes, the service
// reconciles the previous list, the newly ingested assets and a
// client-supplied desired order into one canonical list, and reclaims every
// asset that falls out of it. Deleting an owner cascades to its assets and
// their blobs.
//
// Blob stores (memory, filesystem, S3), repositories (memory, Postgres), the
// thumbnail deriver and a Prometheus event sink are provided under
// subpackages.
//
// Lifecycle guarantees
//
// An ingestion either fully succeeds or leaves nothing behind. Every asset
// created by a successful owner mutation is either referenced by the owner
// or removed before the call returns. Blob removal during cascade deletion
// is best-effort: failures are logged and reported to the EventSink but
// never fail the operation.
package simpleasset
