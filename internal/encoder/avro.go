package encoder

import (
	"fmt"
	"io"
	"strings"

	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/pkg/encoder"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ encoder.Encoder   = (*AvroEncoder)(nil)
	_ encoder.RowWriter = (*AvroRowWriter)(nil)
)

// Rows buffered before an OCF block is written.
const avroBlockSize = 1000

// avroCompressionName maps a configured compression to an OCF block codec.
func avroCompressionName(compression string) (string, error) {
	switch strings.ToLower(compression) {
	case "", "none", "null", "uncompressed":
		return "null", nil
	case "deflate", "gzip":
		return "deflate", nil
	case "snappy":
		return "snappy", nil
	default:
		return "", fmt.Errorf("unsupported avro compression: %s", compression)
	}
}

// AvroRowWriter appends normalized records to an Avro Object Container File.
// Every field is written as a union of its declared types.
type AvroRowWriter struct {
	ocf     *goavro.OCFWriter
	fields  []schema.Field
	pending []any
	closed  bool
}

// NewAvroRowWriter writes an OCF header for s to w. compression is one of
// none, deflate (or gzip) and snappy.
func NewAvroRowWriter(w io.Writer, s *schema.Schema, compression string) (*AvroRowWriter, error) {
	codec, err := s.Codec()
	if err != nil {
		return nil, err
	}
	return newAvroRowWriter(w, codec, s.Fields, compression)
}

func newAvroRowWriter(w io.Writer, codec *goavro.Codec, fields []schema.Field, compression string) (*AvroRowWriter, error) {
	name, err := avroCompressionName(compression)
	if err != nil {
		return nil, err
	}

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	return &AvroRowWriter{
		ocf:    ocf,
		fields: append([]schema.Field(nil), fields...),
	}, nil
}

// Write converts rec to its Avro form and buffers it. A record that does not
// fit the schema is rejected with *errors.SchemaMismatchError.
func (w *AvroRowWriter) Write(rec record.Record) error {
	if w.closed {
		return errors.ErrWriterClosed
	}

	native, err := avroNative(w.fields, rec)
	if err != nil {
		return err
	}

	w.pending = append(w.pending, native)
	if len(w.pending) >= avroBlockSize {
		return w.flush()
	}
	return nil
}

func (w *AvroRowWriter) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.ocf.Append(w.pending); err != nil {
		return fmt.Errorf("failed to write avro block: %w", err)
	}
	w.pending = w.pending[:0]
	return nil
}

// Close writes any buffered rows.
func (w *AvroRowWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.flush()
}

func avroNative(fields []schema.Field, rec record.Record) (map[string]any, error) {
	native := make(map[string]any, len(fields))
	for _, f := range fields {
		v := rec[f.Name]
		if v == nil {
			if !f.Type.Nullable() {
				return nil, mismatch(f.Name, rec, "null value for non-nullable types %s", f.Type)
			}
			native[f.Name] = nil
			continue
		}

		branch, converted, ok := avroBranch(f.Type, v)
		if !ok {
			return nil, mismatch(f.Name, rec, "value %#v (%T) does not match types %s", v, v, f.Type)
		}
		native[f.Name] = goavro.Union(string(branch), converted)
	}
	return native, nil
}

// avroBranch picks the first declared type that can hold v.
func avroBranch(types schema.TypeList, v any) (schema.TypeTag, any, bool) {
	for _, tag := range types {
		var (
			converted any
			ok        bool
		)
		switch tag {
		case schema.TypeString:
			converted, ok = v.(string)
		case schema.TypeBoolean:
			converted, ok = v.(bool)
		case schema.TypeInt:
			converted, ok = asInt32(v)
		case schema.TypeLong:
			converted, ok = asInt64(v)
		case schema.TypeFloat:
			var f float64
			f, ok = asFloat64(v)
			converted = float32(f)
		case schema.TypeDouble:
			converted, ok = asFloat64(v)
		}
		if ok {
			return tag, converted, true
		}
	}
	return "", nil, false
}

// AvroEncoder implements encoder.Encoder for Avro Object Container Files
// whose schema is the record schema.
type AvroEncoder struct {
	codec       *goavro.Codec
	fields      []schema.Field
	compression string
}

// NewAvroEncoder compiles s and checks the compression name.
func NewAvroEncoder(s *schema.Schema, compression string) (*AvroEncoder, error) {
	codec, err := s.Codec()
	if err != nil {
		return nil, err
	}
	if _, err := avroCompressionName(compression); err != nil {
		return nil, err
	}

	return &AvroEncoder{
		codec:       codec,
		fields:      append([]schema.Field(nil), s.Fields...),
		compression: compression,
	}, nil
}

// NewRowWriter opens a row writer over w.
func (e *AvroEncoder) NewRowWriter(w io.Writer) (encoder.RowWriter, error) {
	return newAvroRowWriter(w, e.codec, e.fields, e.compression)
}

// Encode writes records to an Avro file.
func (e *AvroEncoder) Encode(filePath string, records []record.Record) (*record.FileStats, error) {
	return encodeFile(filePath, records, e.NewRowWriter)
}

// Format returns the file format.
func (e *AvroEncoder) Format() record.FileFormat {
	return record.FormatAvro
}

// FileExtension returns the file extension. Compression is inside the
// container, so it does not change the extension.
func (e *AvroEncoder) FileExtension() string {
	return ".avro"
}
