package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

func TestSink_CountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewSink(reg)
	require.NoError(t, err)
	ctx := context.Background()

	assets := []*simpleasset.Asset{{ID: uuid.New(), SizeBytes: 100}, {ID: uuid.New(), SizeBytes: 50}}
	require.NoError(t, sink.AssetsIngested(ctx, assets))
	require.NoError(t, sink.AssetsDeleted(ctx, assets[:1]))
	require.NoError(t, sink.IngestRolledBack(ctx, 3, errors.New("boom")))
	require.NoError(t, sink.BlobDeleteFailed(ctx, "k.jpg", errors.New("io")))

	owner := &simpleasset.Owner{ID: uuid.New(), Kind: simpleasset.OwnerKindEvent}
	rec := &simpleasset.Reconciliation{
		AssetIDs:   []uuid.UUID{uuid.New(), uuid.New()},
		Reclaimed:  []uuid.UUID{uuid.New()},
		Unresolved: []simpleasset.OrderEntry{simpleasset.NewEntry("x.jpg")},
	}
	require.NoError(t, sink.OwnerReconciled(ctx, owner, rec))

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.ingested))
	assert.Equal(t, 150.0, testutil.ToFloat64(sink.ingestedBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.deleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.rollbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.blobDeleteFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.reconciliations.WithLabelValues("event")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.reconcileResults.WithLabelValues("kept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.reconcileResults.WithLabelValues("reclaimed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.reconcileResults.WithLabelValues("unresolved")))
}

func TestNewSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSink(reg)
	require.NoError(t, err)
	second, err := NewSink(reg)
	require.NoError(t, err)

	require.NoError(t, first.AssetsDeleted(context.Background(), []*simpleasset.Asset{{}}))
	assert.Equal(t, 1.0, testutil.ToFloat64(second.deleted))
}

func TestSink_ImplementsEventSink(t *testing.T) {
	var _ simpleasset.EventSink = (*Sink)(nil)
}
