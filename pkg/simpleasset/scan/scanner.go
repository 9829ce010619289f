// Package scan walks owners and hands each one, with its assets, to a processor.
package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// Scanner queries owners and processes them with the provided processor.
type Scanner struct {
	service simpleasset.Service
}

// New creates a new Scanner instance.
func New(service simpleasset.Service) *Scanner {
	return &Scanner{service: service}
}

// ScanOptions configures the scan operation.
type ScanOptions struct {
	// Kind limits the scan to one owner kind; empty scans every kind
	Kind simpleasset.OwnerKind

	// Processor defines the processing logic (required unless DryRun is true)
	Processor OwnerProcessor

	// DryRun if true, doesn't process owners, just reports what would be processed
	DryRun bool

	// OnProgress is called after each owner (optional)
	OnProgress func(processed, total int64)
}

// ScanResult contains statistics about the scan operation.
type ScanResult struct {
	TotalFound     int64
	TotalProcessed int64
	TotalFailed    int64

	// FailedIDs contains the IDs of owners that failed processing
	FailedIDs []string
}

// Scan lists owners and processes each one. A failing owner is recorded
// and scanning continues with the next.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{}

	if !opts.DryRun && opts.Processor == nil {
		return result, fmt.Errorf("processor is required when DryRun is false")
	}

	owners, err := s.service.ListOwners(ctx, opts.Kind)
	if err != nil {
		return result, fmt.Errorf("failed to list owners: %w", err)
	}
	result.TotalFound = int64(len(owners))

	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if opts.DryRun {
			slog.Info("Would process owner", "owner_id", owner.ID, "kind", owner.Kind, "assets", len(owner.AssetIDs))
			result.TotalProcessed++
			continue
		}

		assets, err := s.service.GetAssets(ctx, owner.AssetIDs)
		if err == nil {
			err = opts.Processor.Process(ctx, owner, assets)
		}
		if err != nil {
			result.TotalFailed++
			result.FailedIDs = append(result.FailedIDs, owner.ID.String())
			slog.Error("Failed to process owner", "owner_id", owner.ID, "err", err)
		} else {
			result.TotalProcessed++
		}

		if opts.OnProgress != nil {
			opts.OnProgress(result.TotalProcessed+result.TotalFailed, result.TotalFound)
		}
	}

	return result, nil
}

// ForEach processes each owner with a callback function.
//
// Example:
//
//	scanner.ForEach(ctx, simpleasset.OwnerKindProduct, func(ctx context.Context, o *simpleasset.Owner, assets []*simpleasset.Asset) error {
//	    fmt.Printf("%s has %d images\n", o.Name, len(assets))
//	    return nil
//	})
func (s *Scanner) ForEach(ctx context.Context, kind simpleasset.OwnerKind, fn func(context.Context, *simpleasset.Owner, []*simpleasset.Asset) error) (*ScanResult, error) {
	return s.Scan(ctx, ScanOptions{
		Kind:      kind,
		Processor: ProcessorFunc(fn),
	})
}

// ProcessorFunc adapts a function to the OwnerProcessor interface.
type ProcessorFunc func(context.Context, *simpleasset.Owner, []*simpleasset.Asset) error

func (f ProcessorFunc) Process(ctx context.Context, owner *simpleasset.Owner, assets []*simpleasset.Asset) error {
	return f(ctx, owner, assets)
}
