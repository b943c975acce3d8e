// Package storage defines interfaces for record storage operations.
//
// This package provides abstractions for writing normalized record batches to
// various storage backends (S3, GCS, Azure Blob, local filesystem).
package storage

import (
	"context"
	"time"

	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Writer writes record batches to storage.
type Writer interface {
	// Write writes a batch to storage under the specified path.
	// Returns the number of bytes written.
	Write(ctx context.Context, batch record.Batch, path string) (int64, error)

	// Close closes the writer and releases resources.
	Close() error
}

// Lister lists objects previously written under a prefix.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// Router determines storage paths for batches based on partitioning strategy.
type Router interface {
	// Route returns the storage path for a partition at the given event time.
	Route(partitionID record.PartitionID, eventTime time.Time) string
}

// RotationPolicy determines when to rotate (flush) buffered records to storage.
type RotationPolicy interface {
	// ShouldRotate returns true if the buffer should be flushed based on stats.
	ShouldRotate(stats record.FileStats) bool
}
