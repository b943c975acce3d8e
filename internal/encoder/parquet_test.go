package encoder

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	apperrors "github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// pageRow mirrors the columns derived from testSchemaJSON, in column order.
type pageRow struct {
	Code  *string `parquet:"code,optional"`
	Count *int64  `parquet:"count,optional"`
	Ready bool    `parquet:"ready"`
	Score float64 `parquet:"score"`
	Small int32   `parquet:"small"`
	URL   string  `parquet:"url"`
}

func TestParquetSchema(t *testing.T) {
	pschema, err := ParquetSchema(testSchema(t))
	if err != nil {
		t.Fatalf("ParquetSchema() error = %v", err)
	}

	if pschema.Name() != "Page" {
		t.Errorf("Name() = %v, want Page", pschema.Name())
	}

	wantOptional := map[string]bool{
		"code": true, "count": true, "ready": false, "score": false, "small": false, "url": false,
	}
	fields := pschema.Fields()
	if len(fields) != len(wantOptional) {
		t.Fatalf("got %d columns, want %d", len(fields), len(wantOptional))
	}
	for _, f := range fields {
		want, ok := wantOptional[f.Name()]
		if !ok {
			t.Errorf("unexpected column %q", f.Name())
			continue
		}
		if f.Optional() != want {
			t.Errorf("column %q optional = %v, want %v", f.Name(), f.Optional(), want)
		}
	}
}

func TestParquetSchema_Errors(t *testing.T) {
	if _, err := ParquetSchema(&schema.Schema{}); !errors.Is(err, apperrors.ErrInvalidSchema) {
		t.Errorf("ParquetSchema() error = %v, want ErrInvalidSchema", err)
	}

	s := &schema.Schema{Fields: []schema.Field{{Name: "b", Type: schema.TypeList{"bytes"}}}}
	if _, err := ParquetSchema(s); err == nil {
		t.Error("ParquetSchema() should reject a field without a supported type")
	}
}

func TestParquetEncoder_Encode(t *testing.T) {
	for _, compression := range []string{"snappy", "gzip", "zstd", "none"} {
		t.Run(compression, func(t *testing.T) {
			enc, err := NewParquetEncoder(testSchema(t), compression, ParquetOptions{DataPageStatistics: true})
			if err != nil {
				t.Fatalf("NewParquetEncoder() error = %v", err)
			}

			path := filepath.Join(t.TempDir(), "pages"+enc.FileExtension())
			stats, err := enc.Encode(path, testRecords())
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if stats.RecordCount != 2 || stats.SizeBytes <= 0 {
				t.Errorf("stats = %+v", stats)
			}

			rows, err := parquet.ReadFile[pageRow](path)
			if err != nil {
				t.Fatalf("failed to read file: %v", err)
			}
			if len(rows) != 2 {
				t.Fatalf("record count = %d, want 2", len(rows))
			}

			first := rows[0]
			if first.URL != "http://a.com" || first.Score != 1.5 || !first.Ready || first.Small != 7 {
				t.Errorf("row 0 = %+v", first)
			}
			if first.Code == nil || *first.Code != "A" {
				t.Errorf("row 0 code = %v, want A", first.Code)
			}
			if first.Count == nil || *first.Count != 10 {
				t.Errorf("row 0 count = %v, want 10", first.Count)
			}

			second := rows[1]
			if second.Code != nil || second.Count != nil {
				t.Errorf("row 1 should hold nulls, got code=%v count=%v", second.Code, second.Count)
			}
			if second.Small != -1 || second.Ready {
				t.Errorf("row 1 = %+v", second)
			}
		})
	}
}

func TestParquetRowWriter_SchemaMismatch(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewParquetRowWriter(&buf, testSchema(t))
	if err != nil {
		t.Fatalf("NewParquetRowWriter() error = %v", err)
	}

	tests := []struct {
		name  string
		rec   record.Record
		field string
	}{
		{"null in required column", record.Record{"url": nil, "score": 1.0, "ready": true, "small": 1}, "url"},
		{"text in double column", record.Record{"url": "u", "score": "high", "ready": true, "small": 1}, "score"},
		{"float in int column", record.Record{"url": "u", "score": 1.0, "ready": true, "small": 1.5}, "small"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Write(tt.rec)
			var mismatchErr *apperrors.SchemaMismatchError
			if !errors.As(err, &mismatchErr) {
				t.Fatalf("Write() error = %v, want SchemaMismatchError", err)
			}
			if mismatchErr.Field != tt.field {
				t.Errorf("mismatch field = %q, want %q", mismatchErr.Field, tt.field)
			}
		})
	}

	if err := w.Write(testRecords()[1]); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Write(testRecords()[1]); !errors.Is(err, apperrors.ErrWriterClosed) {
		t.Errorf("Write() after Close error = %v, want ErrWriterClosed", err)
	}

	rows, err := parquet.Read[pageRow](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("parquet.Read() error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("read %d rows, want 1", len(rows))
	}
}

func TestParquetEncoder_FormatAndExtension(t *testing.T) {
	enc, err := NewParquetEncoder(testSchema(t), "snappy", ParquetOptions{})
	if err != nil {
		t.Fatalf("NewParquetEncoder() error = %v", err)
	}
	if enc.Format() != record.FormatParquet {
		t.Errorf("Format() = %v, want parquet", enc.Format())
	}
	if enc.FileExtension() != ".parquet" {
		t.Errorf("FileExtension() = %v, want .parquet", enc.FileExtension())
	}
	if enc.Schema() == nil {
		t.Error("Schema() should not be nil")
	}
}
