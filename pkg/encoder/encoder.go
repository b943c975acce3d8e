// Package encoder defines interfaces for encoding normalized records to file formats.
package encoder

import (
	"io"

	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Encoder encodes records to a specific file format.
type Encoder interface {
	// Encode writes records to a file and returns file statistics.
	Encode(filePath string, records []record.Record) (*record.FileStats, error)

	// Format returns the file format this encoder produces.
	Format() record.FileFormat

	// FileExtension returns the file extension (e.g., ".parquet", ".avro").
	FileExtension() string
}

// RowWriter appends records one at a time to an open output.
//
// Write reports a record that does not match the writer's schema with an
// error matching errors.ErrSchemaMismatch; the writer stays usable after it.
type RowWriter interface {
	Write(rec record.Record) error

	// Close flushes buffered rows. It does not close the underlying io.Writer.
	Close() error
}

// RowWriterFactory opens a RowWriter over w.
type RowWriterFactory interface {
	NewRowWriter(w io.Writer) (RowWriter, error)
}
