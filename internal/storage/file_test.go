package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jittakal/kafrecordstore/internal/encoder"
	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// mockMetricsCollector implements MetricsCollector for testing
type mockMetricsCollector struct {
	filesWritten       int
	fileSizes          []float64
	storageDurations   []float64
	storageErrors      int
	lastFileStatus     string
	lastTopic          string
	lastPartition      int32
	lastFormat         string
	lastErrorBackend   string
	lastErrorOperation string
}

func (m *mockMetricsCollector) IncFilesWritten(topic string, partition int32, format string, status string) {
	m.filesWritten++
	m.lastTopic = topic
	m.lastPartition = partition
	m.lastFormat = format
	m.lastFileStatus = status
}

func (m *mockMetricsCollector) ObserveFileSize(topic string, partition int32, format string, size float64) {
	m.fileSizes = append(m.fileSizes, size)
}

func (m *mockMetricsCollector) ObserveStorageWriteDuration(topic string, partition int32, duration float64) {
	m.storageDurations = append(m.storageDurations, duration)
}

func (m *mockMetricsCollector) IncStorageErrors(backend string, operation string) {
	m.storageErrors++
	m.lastErrorBackend = backend
	m.lastErrorOperation = operation
}

const pageSchemaJSON = `{
	"type": "record",
	"name": "Page",
	"fields": [
		{"name": "url", "type": "string"},
		{"name": "visits", "type": ["null", "long"]}
	]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBatch() record.Batch {
	return record.Batch{
		Partition: record.PartitionID{Topic: "pages", Partition: 2},
		Records: []record.Record{
			{"url": "http://a.com", "visits": int64(3)},
			{"url": "http://b.com", "visits": nil},
		},
	}
}

func newTestEncoder(t *testing.T, format record.FileFormat) *encoder.Factory {
	t.Helper()
	s, err := schema.Parse([]byte(pageSchemaJSON))
	if err != nil {
		t.Fatalf("schema.Parse() error = %v", err)
	}
	return encoder.NewFactory(format, encoder.DefaultCompression(format), s, encoder.ParquetOptions{})
}

func newTestFileWriter(t *testing.T, format record.FileFormat, metrics MetricsCollector) (*FileWriter, string) {
	t.Helper()
	enc, err := newTestEncoder(t, format).CreateEncoder()
	if err != nil {
		t.Fatalf("CreateEncoder() error = %v", err)
	}
	basePath := t.TempDir()
	writer, err := NewFileWriter(FileConfig{BasePath: basePath}, enc, testLogger(), metrics)
	if err != nil {
		t.Fatalf("NewFileWriter() failed: %v", err)
	}
	return writer, basePath
}

func TestNewFileWriter(t *testing.T) {
	enc, err := encoder.NewJSONEncoder("none")
	if err != nil {
		t.Fatalf("NewJSONEncoder() error = %v", err)
	}

	tests := []struct {
		name    string
		config  FileConfig
		wantErr bool
	}{
		{
			name:   "valid config",
			config: FileConfig{BasePath: filepath.Join(t.TempDir(), "nested", "out")},
		},
		{
			name:    "empty base path",
			config:  FileConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer, err := NewFileWriter(tt.config, enc, testLogger(), nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFileWriter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if writer.basePath != tt.config.BasePath {
				t.Errorf("basePath = %v, want %v", writer.basePath, tt.config.BasePath)
			}
			if _, err := os.Stat(tt.config.BasePath); err != nil {
				t.Errorf("base path should be created: %v", err)
			}
		})
	}
}

func TestFileWriter_Write(t *testing.T) {
	formats := []record.FileFormat{record.FormatParquet, record.FormatAvro, record.FormatJSON}

	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			metrics := &mockMetricsCollector{}
			writer, basePath := newTestFileWriter(t, format, metrics)

			path := "file://local/pages/dt=2024-01-01/pid=2/"
			size, err := writer.Write(context.Background(), testBatch(), path)
			if err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if size <= 0 {
				t.Errorf("Write() size = %v, want > 0", size)
			}

			entries, err := os.ReadDir(filepath.Join(basePath, "local", "pages", "dt=2024-01-01", "pid=2"))
			if err != nil || len(entries) != 1 {
				t.Fatalf("expected one file in partition directory, got %v (err %v)", entries, err)
			}
			if !strings.HasPrefix(entries[0].Name(), "records_") {
				t.Errorf("file name = %s, want records_ prefix", entries[0].Name())
			}

			if metrics.filesWritten != 1 {
				t.Errorf("filesWritten = %d, want 1", metrics.filesWritten)
			}
			if metrics.lastTopic != "pages" || metrics.lastPartition != 2 {
				t.Errorf("metrics partition = %s/%d, want pages/2", metrics.lastTopic, metrics.lastPartition)
			}
			if metrics.lastFormat != string(format) {
				t.Errorf("lastFormat = %s, want %s", metrics.lastFormat, format)
			}
			if len(metrics.fileSizes) != 1 || metrics.fileSizes[0] != float64(size) {
				t.Errorf("fileSizes = %v, want [%d]", metrics.fileSizes, size)
			}
		})
	}
}

func TestFileWriter_WriteJSONContent(t *testing.T) {
	writer, basePath := newTestFileWriter(t, record.FormatJSON, nil)

	if _, err := writer.Write(context.Background(), testBatch(), "pages/"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	files, err := writer.List(context.Background(), "pages/")
	if err != nil || len(files) != 1 {
		t.Fatalf("List() = %v, %v; want one file", files, err)
	}

	f, err := os.Open(filepath.Join(basePath, filepath.FromSlash(files[0])))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var row map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("invalid json line %q: %v", scanner.Text(), err)
		}
		urls = append(urls, row["url"].(string))
	}
	if strings.Join(urls, ",") != "http://a.com,http://b.com" {
		t.Errorf("urls = %v, want input order", urls)
	}
}

func TestFileWriter_WriteErrors(t *testing.T) {
	metrics := &mockMetricsCollector{}
	writer, _ := newTestFileWriter(t, record.FormatAvro, metrics)

	t.Run("empty batch", func(t *testing.T) {
		batch := testBatch()
		batch.Records = nil
		if _, err := writer.Write(context.Background(), batch, "x/"); err == nil {
			t.Error("Write() expected error for empty batch")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := writer.Write(ctx, testBatch(), "x/"); err == nil {
			t.Error("Write() expected error for cancelled context")
		}
	})

	t.Run("record does not fit schema", func(t *testing.T) {
		batch := testBatch()
		batch.Records = []record.Record{{"url": nil, "visits": int64(1)}}
		if _, err := writer.Write(context.Background(), batch, "bad/"); err == nil {
			t.Fatal("Write() expected error for null url")
		}
		if metrics.lastErrorBackend != "file" || metrics.lastErrorOperation != "encode" {
			t.Errorf("storage error = %s/%s, want file/encode", metrics.lastErrorBackend, metrics.lastErrorOperation)
		}
		files, _ := writer.List(context.Background(), "bad/")
		if len(files) != 0 {
			t.Errorf("failed encode should not leave files, got %v", files)
		}
	})
}

func TestFileWriter_List(t *testing.T) {
	writer, _ := newTestFileWriter(t, record.FormatParquet, nil)
	ctx := context.Background()

	for _, path := range []string{"pages/pid=1/", "pages/pid=1/", "pages/pid=10/"} {
		if _, err := writer.Write(ctx, testBatch(), path); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	all, err := writer.List(ctx, "pages/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(pages/) = %v, want 3 files", all)
	}

	one, err := writer.List(ctx, "pages/pid=1/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(one) != 2 {
		t.Errorf("List(pages/pid=1/) = %v, want 2 files", one)
	}
	for _, name := range one {
		if !strings.HasPrefix(name, "pages/pid=1/records_") {
			t.Errorf("unexpected listed name %q", name)
		}
	}

	missing, err := writer.List(ctx, "nothing/")
	if err != nil || len(missing) != 0 {
		t.Errorf("List(missing) = %v, %v; want empty, nil", missing, err)
	}
}

func TestFileWriter_Close(t *testing.T) {
	writer, _ := newTestFileWriter(t, record.FormatParquet, nil)

	if err := writer.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
