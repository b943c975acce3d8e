package encoder

import (
	"fmt"
	"io"

	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/pkg/encoder"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.RowWriterFactory = (*Factory)(nil)

// rowEncoder is an encoder that can also stream rows.
type rowEncoder interface {
	encoder.Encoder
	encoder.RowWriterFactory
}

// Factory creates encoders based on format and configuration.
type Factory struct {
	format      record.FileFormat
	compression string
	schema      *schema.Schema
	parquet     ParquetOptions
}

// NewFactory creates a new encoder factory for records shaped by s.
func NewFactory(format record.FileFormat, compression string, s *schema.Schema, parquet ParquetOptions) *Factory {
	return &Factory{
		format:      format,
		compression: compression,
		schema:      s,
		parquet:     parquet,
	}
}

func (f *Factory) create() (rowEncoder, error) {
	switch f.format {
	case record.FormatParquet:
		return NewParquetEncoder(f.schema, f.compression, f.parquet)
	case record.FormatAvro:
		return NewAvroEncoder(f.schema, f.compression)
	case record.FormatJSON:
		return NewJSONEncoder(f.compression)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", f.format)
	}
}

// CreateEncoder creates an encoder based on the configured format.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	return f.create()
}

// NewRowWriter opens a row writer of the configured format over w.
func (f *Factory) NewRowWriter(w io.Writer) (encoder.RowWriter, error) {
	enc, err := f.create()
	if err != nil {
		return nil, err
	}
	return enc.NewRowWriter(w)
}

// SupportedFormats returns a list of supported file formats.
func SupportedFormats() []record.FileFormat {
	return []record.FileFormat{
		record.FormatParquet,
		record.FormatAvro,
		record.FormatJSON,
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
func SupportedCompressions(format record.FileFormat) []string {
	switch format {
	case record.FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"}
	case record.FormatAvro:
		return []string{"none", "deflate", "gzip", "snappy"}
	case record.FormatJSON:
		return []string{"none", "gzip"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format record.FileFormat) string {
	switch format {
	case record.FormatParquet:
		return "snappy"
	case record.FormatAvro:
		return "deflate"
	default:
		return "none"
	}
}
