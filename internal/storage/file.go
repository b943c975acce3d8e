package storage

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/pkg/encoder"
	"github.com/jittakal/kafrecordstore/pkg/record"
	"github.com/jittakal/kafrecordstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ storage.Writer = (*FileWriter)(nil)
	_ storage.Lister = (*FileWriter)(nil)
)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// Validate validates the filesystem configuration.
func (c FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}

// FileWriter implements storage.Writer for local filesystem storage.
// Files are organized in the directory structure produced by the router,
// rooted at the configured base path.
type FileWriter struct {
	basePath string
	enc      encoder.Encoder
	logger   *slog.Logger
	metrics  MetricsCollector
	mu       sync.Mutex
	now      func() time.Time
}

// NewFileWriter creates a new filesystem storage writer.
func NewFileWriter(
	config FileConfig,
	enc encoder.Encoder,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*FileWriter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Ensure base path exists
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("filesystem writer created",
		"base_path", config.BasePath,
		"format", enc.Format(),
	)

	return &FileWriter{
		basePath: config.BasePath,
		enc:      enc,
		logger:   logger,
		metrics:  orNop(metrics),
		now:      time.Now,
	}, nil
}

// Write encodes a batch into a new file under path.
func (w *FileWriter) Write(ctx context.Context, batch record.Batch, path string) (int64, error) {
	if len(batch.Records) == 0 {
		return 0, fmt.Errorf("no records to write")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := w.now()

	dir := filepath.Join(w.basePath, filepath.FromSlash(strings.TrimPrefix(path, "file://")))
	fullPath := filepath.Join(dir, ObjectName(startTime, w.enc.FileExtension()))

	if err := os.MkdirAll(dir, 0755); err != nil {
		w.metrics.IncStorageErrors("file", "mkdir")
		return 0, &errors.StorageError{Operation: "create", Path: dir, Err: err}
	}

	stats, err := w.enc.Encode(fullPath, batch.Records)
	if err != nil {
		w.metrics.IncStorageErrors("file", "encode")
		return 0, fmt.Errorf("failed to encode records: %w", err)
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote records to file",
		"path", fullPath,
		"record_count", stats.RecordCount,
		"file_size", stats.SizeBytes,
		"format", w.enc.Format(),
		"total_duration_ms", duration.Milliseconds(),
	)
	observeWrite(w.metrics, batch, w.enc.Format(), stats.SizeBytes, duration.Seconds())

	return stats.SizeBytes, nil
}

// List returns the slash-separated paths, relative to the base path, of
// every file under prefix. Results are sorted.
func (w *FileWriter) List(ctx context.Context, prefix string) ([]string, error) {
	root := filepath.Join(w.basePath, filepath.FromSlash(strings.TrimPrefix(prefix, "file://")))

	var names []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.basePath, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &errors.StorageError{Operation: "list", Path: root, Err: err}
	}

	sort.Strings(names)
	return names, nil
}

// Close closes the writer.
func (w *FileWriter) Close() error {
	w.logger.Info("closing filesystem writer")
	return nil
}
