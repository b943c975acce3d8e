package storage

import (
	"fmt"
	"os"

	"github.com/jittakal/kafrecordstore/pkg/encoder"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncFilesWritten(topic string, partition int32, format string, status string)
	ObserveFileSize(topic string, partition int32, format string, size float64)
	ObserveStorageWriteDuration(topic string, partition int32, duration float64)
	IncStorageErrors(backend string, operation string)
}

type nopMetrics struct{}

func (nopMetrics) IncFilesWritten(string, int32, string, string)      {}
func (nopMetrics) ObserveFileSize(string, int32, string, float64)     {}
func (nopMetrics) ObserveStorageWriteDuration(string, int32, float64) {}
func (nopMetrics) IncStorageErrors(string, string)                    {}

func orNop(m MetricsCollector) MetricsCollector {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

// encodeTemp encodes a batch into a new temporary file. The caller removes it.
func encodeTemp(enc encoder.Encoder, records []record.Record, backend string) (string, *record.FileStats, error) {
	tmp, err := os.CreateTemp("", backend+"-upload-*"+enc.FileExtension())
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	stats, err := enc.Encode(name, records)
	if err != nil {
		os.Remove(name)
		return "", nil, err
	}
	return name, stats, nil
}

func observeWrite(m MetricsCollector, batch record.Batch, format record.FileFormat, size int64, seconds float64) {
	topic, partition := batch.Partition.Topic, batch.Partition.Partition
	m.IncFilesWritten(topic, partition, string(format), "success")
	m.ObserveFileSize(topic, partition, string(format), float64(size))
	m.ObserveStorageWriteDuration(topic, partition, seconds)
}
