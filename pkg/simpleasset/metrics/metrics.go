// Package metrics exports asset lifecycle events as Prometheus metrics.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

const (
	namespace = "simple_asset"
	subsystem = "lifecycle"
)

// Sink implements simpleasset.EventSink by counting events
type Sink struct {
	ingested           prometheus.Counter
	ingestedBytes      prometheus.Counter
	deleted            prometheus.Counter
	rollbacks          prometheus.Counter
	blobDeleteFailures prometheus.Counter
	reconciliations    *prometheus.CounterVec
	reconcileResults   *prometheus.CounterVec
}

// NewSink creates the collectors and registers them with reg. Collectors
// already registered by an earlier Sink are reused, so several services can
// share one registry.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &Sink{}
	var err error

	if s.ingested, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "assets_ingested_total",
		Help:      "Total number of assets ingested",
	})); err != nil {
		return nil, err
	}
	if s.ingestedBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "ingested_bytes_total",
		Help:      "Total size of ingested originals in bytes",
	})); err != nil {
		return nil, err
	}
	if s.deleted, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "assets_deleted_total",
		Help:      "Total number of assets removed from the registry",
	})); err != nil {
		return nil, err
	}
	if s.rollbacks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "ingest_rollbacks_total",
		Help:      "Total number of ingestion batches rolled back",
	})); err != nil {
		return nil, err
	}
	if s.blobDeleteFailures, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "blob_delete_failures_total",
		Help:      "Total number of blob deletions that failed and left a dangling blob",
	})); err != nil {
		return nil, err
	}
	if s.reconciliations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "reconciliations_total",
		Help:      "Total number of persisted owner reconciliations",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.reconcileResults, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "reconcile_results_total",
		Help:      "Asset ids by reconciliation outcome",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *Sink) AssetsIngested(ctx context.Context, assets []*simpleasset.Asset) error {
	s.ingested.Add(float64(len(assets)))
	var total int64
	for _, a := range assets {
		total += a.SizeBytes
	}
	s.ingestedBytes.Add(float64(total))
	return nil
}

func (s *Sink) IngestRolledBack(ctx context.Context, uploads int, cause error) error {
	s.rollbacks.Inc()
	return nil
}

func (s *Sink) AssetsDeleted(ctx context.Context, assets []*simpleasset.Asset) error {
	s.deleted.Add(float64(len(assets)))
	return nil
}

func (s *Sink) BlobDeleteFailed(ctx context.Context, key string, cause error) error {
	s.blobDeleteFailures.Inc()
	return nil
}

func (s *Sink) OwnerReconciled(ctx context.Context, owner *simpleasset.Owner, result *simpleasset.Reconciliation) error {
	s.reconciliations.WithLabelValues(string(owner.Kind)).Inc()
	s.reconcileResults.WithLabelValues("kept").Add(float64(len(result.AssetIDs)))
	s.reconcileResults.WithLabelValues("reclaimed").Add(float64(len(result.Reclaimed)))
	s.reconcileResults.WithLabelValues("unresolved").Add(float64(len(result.Unresolved)))
	return nil
}
