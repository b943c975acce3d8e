// Package buffer implements record buffering for batch processing.
package buffer

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/pkg/buffer"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ buffer.Buffer  = (*PartitionBuffer)(nil)
	_ buffer.Manager = (*Manager)(nil)
)

// PartitionBuffer buffers normalized records for a single Kafka partition.
// It provides thread-safe buffering with size limits and record count limits.
// The buffer tracks first and last write times for file rotation decisions.
type PartitionBuffer struct {
	partitionID    record.PartitionID
	entries        []record.Entry
	maxSizeBytes   int64
	maxRecords     int
	currentSize    int64
	firstWriteTime time.Time
	lastWriteTime  time.Time
	mu             sync.RWMutex
}

// New creates a new partition buffer.
func New(partitionID record.PartitionID, maxSizeBytes int64, maxRecords int) *PartitionBuffer {
	return &PartitionBuffer{
		partitionID:  partitionID,
		entries:      make([]record.Entry, 0, maxRecords),
		maxSizeBytes: maxSizeBytes,
		maxRecords:   maxRecords,
	}
}

// Add adds an entry to the buffer.
func (b *PartitionBuffer) Add(entry record.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entrySize := int64(estimateSize(entry))

	if len(b.entries) >= b.maxRecords {
		return fmt.Errorf("%w: max records (%d) reached", errors.ErrBufferFull, b.maxRecords)
	}

	if b.maxSizeBytes > 0 && b.currentSize+entrySize > b.maxSizeBytes {
		return fmt.Errorf("%w: max size (%d bytes) would be exceeded", errors.ErrBufferFull, b.maxSizeBytes)
	}

	b.entries = append(b.entries, entry)
	b.currentSize += entrySize

	now := time.Now()
	if b.firstWriteTime.IsZero() {
		b.firstWriteTime = now
	}
	b.lastWriteTime = now

	return nil
}

// Drain removes and returns all entries in insertion order.
// The returned slice is owned by the caller.
func (b *PartitionBuffer) Drain() []record.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.entries
	b.reset()
	return entries
}

// Stats returns current buffer statistics.
func (b *PartitionBuffer) Stats() record.FileStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return record.FileStats{
		RecordCount:    len(b.entries),
		SizeBytes:      b.currentSize,
		FirstWriteTime: b.firstWriteTime,
		LastWriteTime:  b.lastWriteTime,
	}
}

// IsEmpty returns true if the buffer is empty.
func (b *PartitionBuffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries) == 0
}

// Reset clears the buffer and resets all statistics.
func (b *PartitionBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

func (b *PartitionBuffer) reset() {
	b.entries = make([]record.Entry, 0, b.maxRecords)
	b.currentSize = 0
	b.firstWriteTime = time.Time{}
	b.lastWriteTime = time.Time{}
}

// estimateSize estimates the in-memory size of an entry in bytes.
func estimateSize(entry record.Entry) int {
	size := 0
	for k, v := range entry.Record {
		size += len(k) + estimateValue(v)
	}

	size += len(entry.Kafka.Topic)
	size += len(entry.Kafka.Key)

	for k, v := range entry.Kafka.Headers {
		size += len(k) + len(v)
	}

	return size
}

func estimateValue(v any) int {
	switch t := v.(type) {
	case nil:
		return 0
	case string:
		return len(t)
	case json.Number:
		return len(t)
	case []byte:
		return len(t)
	case bool:
		return 1
	case int32, float32:
		return 4
	case map[string]any:
		n := 0
		for k, e := range t {
			n += len(k) + estimateValue(e)
		}
		return n
	case record.Record:
		return estimateValue(map[string]any(t))
	case []any:
		n := 0
		for _, e := range t {
			n += estimateValue(e)
		}
		return n
	default:
		return 8
	}
}

// Manager manages buffers for multiple Kafka partitions.
// It provides thread-safe access to partition-specific buffers, creating them on-demand.
// Uses double-checked locking for efficient concurrent access.
type Manager struct {
	buffers      map[record.PartitionID]*PartitionBuffer
	maxSizeBytes int64
	maxRecords   int
	mu           sync.RWMutex
}

// NewManager creates a new buffer manager.
func NewManager(maxSizeBytes int64, maxRecords int) *Manager {
	return &Manager{
		buffers:      make(map[record.PartitionID]*PartitionBuffer),
		maxSizeBytes: maxSizeBytes,
		maxRecords:   maxRecords,
	}
}

// GetOrCreate returns a buffer for the partition, creating if needed.
func (m *Manager) GetOrCreate(partitionID record.PartitionID) buffer.Buffer {
	m.mu.RLock()
	buf, exists := m.buffers[partitionID]
	m.mu.RUnlock()

	if exists {
		return buf
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if buf, exists := m.buffers[partitionID]; exists {
		return buf
	}

	buf = New(partitionID, m.maxSizeBytes, m.maxRecords)
	m.buffers[partitionID] = buf
	return buf
}

// Partitions returns the partitions that own a buffer, sorted by topic then
// partition number.
func (m *Manager) Partitions() []record.PartitionID {
	m.mu.RLock()
	out := make([]record.PartitionID, 0, len(m.buffers))
	for pid := range m.buffers {
		out = append(out, pid)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Partition < out[j].Partition
	})
	return out
}
