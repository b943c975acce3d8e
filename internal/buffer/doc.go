// Package buffer provides thread-safe buffering for normalized records.
//
// Each Kafka partition gets its own PartitionBuffer holding record.Entry
// values in arrival order, bounded by a record count and an estimated byte
// size:
//
//	buf := buffer.New(partitionID, maxSizeBytes, maxRecords)
//	if err := buf.Add(entry); errors.Is(err, apperrors.ErrBufferFull) {
//	    entries := buf.Drain()
//	    flush(entries)
//	}
//
// Manager creates buffers on demand and reports which partitions own one,
// so the pipeline can flush every partition on shutdown:
//
//	manager := buffer.NewManager(maxSizeBytes, maxRecords)
//	buf := manager.GetOrCreate(partitionID)
//	for _, pid := range manager.Partitions() { ... }
//
// Stats exposes the record count, estimated size and first/last write
// times consumed by storage rotation policies.
package buffer
