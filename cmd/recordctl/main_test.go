package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jittakal/kafrecordstore/internal/encoder"
	"github.com/jittakal/kafrecordstore/internal/kafka"
	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/internal/transform"
)

const pagesSchema = "../../internal/schema/testdata/pages.avsc"

const pagesInput = `{"url": "http://a.com", "id": "7", "lastupdate": "2024-01-02", "isReady": 1}

not json
{"url": "http://b.com", "reg_date": "2024-02-01", "isReady": 0}
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTransformer(t *testing.T) *transform.Transformer {
	t.Helper()
	s, err := schema.LoadFile(pagesSchema)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	tr, err := transform.New(s)
	if err != nil {
		t.Fatalf("transform.New() error = %v", err)
	}
	return tr
}

func TestNormalize(t *testing.T) {
	var out bytes.Buffer
	rows := encoder.NewJSONRowWriter(&out, false)

	var st stats
	err := normalize(context.Background(), strings.NewReader(pagesInput),
		kafka.Decoder{Envelope: kafka.EnvelopeJSON}, newTransformer(t), rows, false, testLogger(), &st)
	if err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if err := rows.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if st.read != 3 || st.written != 2 || st.rejected != 1 {
		t.Errorf("stats = %+v, want read 3, written 2, rejected 1", st)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d output lines, want 2: %q", len(lines), out.String())
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	want := map[string]any{
		"url":       "http://a.com",
		"code":      "7",
		"date":      "2024-01-02",
		"startDate": "2024-01-02",
		"isReady":   true,
	}
	for k, v := range want {
		if first[k] != v {
			t.Errorf("first[%q] = %#v, want %#v", k, first[k], v)
		}
	}
}

func TestNormalize_Strict(t *testing.T) {
	rows := encoder.NewJSONRowWriter(io.Discard, false)

	var st stats
	err := normalize(context.Background(), strings.NewReader(pagesInput),
		kafka.Decoder{}, newTransformer(t), rows, true, testLogger(), &st)
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("normalize() error = %v, want failure at line 3", err)
	}
	if st.written != 1 {
		t.Errorf("written = %d, want 1", st.written)
	}
}

func TestNormalize_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var st stats
	err := normalize(ctx, strings.NewReader(pagesInput), kafka.Decoder{},
		newTransformer(t), encoder.NewJSONRowWriter(io.Discard, false), false, testLogger(), &st)
	if err != context.Canceled {
		t.Fatalf("normalize() error = %v, want context.Canceled", err)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "pages.ndjson")
	if err := os.WriteFile(in, []byte(pagesInput), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, format := range []string{"json", "avro", "parquet"} {
		t.Run(format, func(t *testing.T) {
			out := filepath.Join(dir, "pages."+format)
			st, err := run(context.Background(), options{
				schemaPath: pagesSchema,
				in:         in,
				out:        out,
				format:     format,
				envelope:   "json",
			}, testLogger())
			if err != nil {
				t.Fatalf("run() error = %v", err)
			}
			if st.written != 2 {
				t.Errorf("written = %d, want 2", st.written)
			}

			info, err := os.Stat(out)
			if err != nil {
				t.Fatalf("output missing: %v", err)
			}
			if info.Size() == 0 {
				t.Error("output is empty")
			}
		})
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts options
	}{
		{"missing schema flag", options{format: "json"}},
		{"missing schema file", options{schemaPath: "missing.avsc", format: "json"}},
		{"unknown envelope", options{schemaPath: pagesSchema, format: "json", envelope: "xml"}},
		{"unknown format", options{schemaPath: pagesSchema, format: "csv", in: pagesSchema, out: filepath.Join(t.TempDir(), "x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(context.Background(), tt.opts, testLogger()); err == nil {
				t.Error("run() should fail")
			}
		})
	}
}
