package encoder

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/multierr"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/pkg/encoder"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ encoder.Encoder   = (*JSONEncoder)(nil)
	_ encoder.RowWriter = (*JSONRowWriter)(nil)
)

// JSONRowWriter writes one JSON object per line.
type JSONRowWriter struct {
	buf    *bufio.Writer
	gz     *gzip.Writer
	enc    *json.Encoder
	closed bool
}

// NewJSONRowWriter writes newline-delimited JSON to w, gzip compressed when
// compress is set.
func NewJSONRowWriter(w io.Writer, compress bool) *JSONRowWriter {
	rw := &JSONRowWriter{}
	if compress {
		rw.gz = gzip.NewWriter(w)
		w = rw.gz
	}
	rw.buf = bufio.NewWriter(w)
	rw.enc = json.NewEncoder(rw.buf)
	rw.enc.SetEscapeHTML(false)
	return rw
}

// Write encodes rec as one line.
func (w *JSONRowWriter) Write(rec record.Record) error {
	if w.closed {
		return errors.ErrWriterClosed
	}
	if err := w.enc.Encode(rec); err != nil {
		return &errors.SchemaMismatchError{Record: rec, Err: err}
	}
	return nil
}

// Close flushes buffered output.
func (w *JSONRowWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.buf.Flush()
	if w.gz != nil {
		err = multierr.Append(err, w.gz.Close())
	}
	return err
}

// JSONEncoder implements encoder.Encoder for newline-delimited JSON.
type JSONEncoder struct {
	compression string
}

// NewJSONEncoder accepts "none" (or empty) and "gzip".
func NewJSONEncoder(compression string) (*JSONEncoder, error) {
	switch strings.ToLower(compression) {
	case "", "none", "uncompressed", "gzip":
	default:
		return nil, fmt.Errorf("unsupported json compression: %s", compression)
	}
	return &JSONEncoder{compression: strings.ToLower(compression)}, nil
}

func (e *JSONEncoder) gzip() bool {
	return e.compression == "gzip"
}

// NewRowWriter opens a row writer over w.
func (e *JSONEncoder) NewRowWriter(w io.Writer) (encoder.RowWriter, error) {
	return NewJSONRowWriter(w, e.gzip()), nil
}

// Encode writes records to a newline-delimited JSON file.
func (e *JSONEncoder) Encode(filePath string, records []record.Record) (*record.FileStats, error) {
	return encodeFile(filePath, records, e.NewRowWriter)
}

// Format returns the file format.
func (e *JSONEncoder) Format() record.FileFormat {
	return record.FormatJSON
}

// FileExtension returns the file extension.
func (e *JSONEncoder) FileExtension() string {
	if e.gzip() {
		return ".ndjson.gz"
	}
	return ".ndjson"
}
