package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/pkg/encoder"
	"github.com/jittakal/kafrecordstore/pkg/record"
	pkgstorage "github.com/jittakal/kafrecordstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ pkgstorage.Writer = (*GCSWriter)(nil)
	_ pkgstorage.Lister = (*GCSWriter)(nil)
)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// Validate validates the GCS configuration.
func (c GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	if c.CredentialsFile != "" && c.CredentialsJSON != "" {
		return fmt.Errorf("gcs credentials_file and credentials_json are mutually exclusive")
	}
	return nil
}

// clientOptions returns the client options for the configured credentials.
// Default credentials win over explicit ones, then JSON over file.
func (c GCSConfig) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}

	switch {
	case c.UseDefaultCredential:
	case c.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	return opts
}

// GCSWriter implements storage.Writer for Google Cloud Storage.
type GCSWriter struct {
	client  *storage.Client
	bucket  string
	enc     encoder.Encoder
	logger  *slog.Logger
	metrics MetricsCollector
	mu      sync.Mutex
}

// NewGCSWriter creates a new Google Cloud Storage writer.
func NewGCSWriter(
	ctx context.Context,
	cfg GCSConfig,
	enc encoder.Encoder,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*GCSWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx, cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS writer created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
		"format", enc.Format(),
		"default_credentials", cfg.UseDefaultCredential,
	)

	return &GCSWriter{
		client:  client,
		bucket:  cfg.Bucket,
		enc:     enc,
		logger:  logger,
		metrics: orNop(metrics),
	}, nil
}

// Write encodes a batch to a temporary file and uploads it under path.
func (w *GCSWriter) Write(ctx context.Context, batch record.Batch, path string) (int64, error) {
	if len(batch.Records) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()
	objectPath := objectKey(path, "gs", ObjectName(startTime, w.enc.FileExtension()))

	tempFile, stats, err := encodeTemp(w.enc, batch.Records, "gcs")
	if err != nil {
		w.metrics.IncStorageErrors("gcs", "encode")
		return 0, fmt.Errorf("failed to encode records: %w", err)
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		w.metrics.IncStorageErrors("gcs", "file_open")
		return 0, fmt.Errorf("failed to open encoded file: %w", err)
	}
	defer file.Close()

	gcsWriter := w.client.Bucket(w.bucket).Object(objectPath).NewWriter(ctx)
	gcsWriter.ContentType = contentType(w.enc.Format())

	fullPath := "gs://" + w.bucket + "/" + objectPath
	bytesWritten, err := io.Copy(gcsWriter, file)
	if err != nil {
		w.metrics.IncStorageErrors("gcs", "upload")
		gcsWriter.Close()
		return 0, &errors.StorageError{Operation: "upload", Path: fullPath, Err: err}
	}

	// Close finalizes the upload.
	if err := gcsWriter.Close(); err != nil {
		w.metrics.IncStorageErrors("gcs", "close")
		return 0, &errors.StorageError{Operation: "upload", Path: fullPath, Err: err}
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote records to GCS",
		"bucket", w.bucket,
		"object", objectPath,
		"record_count", stats.RecordCount,
		"file_size", stats.SizeBytes,
		"bytes_written", bytesWritten,
		"total_duration_ms", duration.Milliseconds(),
	)
	observeWrite(w.metrics, batch, w.enc.Format(), stats.SizeBytes, duration.Seconds())

	return stats.SizeBytes, nil
}

// List returns the names of all blobs under prefix.
func (w *GCSWriter) List(ctx context.Context, prefix string) ([]string, error) {
	it := w.client.Bucket(w.bucket).Objects(ctx, &storage.Query{Prefix: keyPrefix(prefix, "gs")})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			w.metrics.IncStorageErrors("gcs", "list")
			return nil, &errors.StorageError{Operation: "list", Path: prefix, Err: err}
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// Close closes the GCS writer.
func (w *GCSWriter) Close() error {
	w.logger.Info("closing GCS writer")
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}
