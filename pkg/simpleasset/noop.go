package simpleasset

import "context"

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) AssetsIngested(ctx context.Context, assets []*Asset) error {
	return nil
}

func (n *NoopEventSink) IngestRolledBack(ctx context.Context, uploads int, cause error) error {
	return nil
}

func (n *NoopEventSink) AssetsDeleted(ctx context.Context, assets []*Asset) error {
	return nil
}

func (n *NoopEventSink) BlobDeleteFailed(ctx context.Context, key string, cause error) error {
	return nil
}

func (n *NoopEventSink) OwnerReconciled(ctx context.Context, owner *Owner, result *Reconciliation) error {
	return nil
}
