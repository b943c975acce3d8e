// Package buffer defines interfaces for record buffering operations.
//
// Buffers batch normalized records before writing to storage,
// improving throughput and reducing storage operations.
package buffer

import (
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Buffer manages buffering of records before storage.
// All implementations must be thread-safe.
type Buffer interface {
	// Add adds an entry to the buffer.
	// Returns an error if the buffer is full or capacity would be exceeded.
	Add(entry record.Entry) error

	// Drain removes and returns all entries from the buffer.
	// The buffer is reset after draining.
	Drain() []record.Entry

	// Stats returns current buffer statistics without modifying the buffer.
	Stats() record.FileStats

	// IsEmpty returns true if the buffer contains no entries.
	IsEmpty() bool

	// Reset clears the buffer and resets all statistics.
	Reset()
}

// Manager creates and manages buffers for partitions.
type Manager interface {
	// GetOrCreate returns a buffer for the given partition,
	// creating one if it doesn't exist.
	GetOrCreate(partitionID record.PartitionID) Buffer

	// Partitions returns the partitions that currently own a buffer.
	Partitions() []record.PartitionID
}
