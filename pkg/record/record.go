// Package record defines the record types shared by the consumer, the transformer
// and the storage writers.
//
// A Record is a dynamically keyed mapping. It never has a fixed shape: the
// transformation pipeline renames, drops, fills and coerces its entries using a
// declarative schema.
package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is a flat string-keyed mapping with arbitrary values.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Lookup returns the value stored under key and whether it was present.
// A present key may hold a nil value.
func (r Record) Lookup(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// KafkaMetadata contains Kafka-specific metadata for a consumed message.
type KafkaMetadata struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Headers   map[string]string
	Timestamp time.Time
}

// PartitionID uniquely identifies a Kafka partition.
type PartitionID struct {
	Topic     string
	Partition int32
}

// String returns a string representation of the partition ID in the format "topic-partition".
func (p PartitionID) String() string {
	return fmt.Sprintf("%s-%d", p.Topic, p.Partition)
}

// ConsumedRecord is a decoded Kafka message awaiting normalization.
type ConsumedRecord struct {
	// Record is the decoded message payload. It is nil when decoding failed.
	Record Record
	// Err is the decoding failure, if any.
	Err error
	// Raw is the original message value.
	Raw        []byte
	Metadata   KafkaMetadata
	CommitFunc func() error
}

// Entry is a normalized record held in a partition buffer until it is stored.
type Entry struct {
	Record Record
	// Raw is the original message value, kept for dead lettering.
	Raw        []byte
	Kafka      KafkaMetadata
	EventTime  time.Time
	CommitFunc func() error
}

// Batch is a set of normalized records from one partition, written as one file.
type Batch struct {
	Partition PartitionID
	Records   []Record
	// EventTime of the first record, used for partition routing.
	EventTime time.Time
}

// FileStats contains statistics about buffered or written records.
type FileStats struct {
	RecordCount    int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// FileFormat represents the storage file format.
type FileFormat string

const (
	FormatParquet FileFormat = "parquet"
	FormatAvro    FileFormat = "avro"
	FormatJSON    FileFormat = "json"
)

// EventTime resolves the time a record should be partitioned under.
//
// When field is set and the record holds epoch milliseconds (any integer or
// float type), an RFC3339 string or a YYYY-MM-DD date under it, that value
// wins. Otherwise the Kafka timestamp is used.
func EventTime(rec Record, field string, fallback time.Time) time.Time {
	if field == "" {
		return fallback
	}
	v, ok := rec[field]
	if !ok || v == nil {
		return fallback
	}
	switch t := v.(type) {
	case int64:
		return time.UnixMilli(t).UTC()
	case int:
		return time.UnixMilli(int64(t)).UTC()
	case int32:
		return time.UnixMilli(int64(t)).UTC()
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	case json.Number:
		if ms, err := t.Int64(); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed.UTC()
		}
		if parsed, err := time.Parse(time.DateOnly, t); err == nil {
			return parsed
		}
	case time.Time:
		return t.UTC()
	}
	return fallback
}
