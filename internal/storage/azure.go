package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/pkg/encoder"
	"github.com/jittakal/kafrecordstore/pkg/record"
	"github.com/jittakal/kafrecordstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ storage.Writer = (*AzureWriter)(nil)
	_ storage.Lister = (*AzureWriter)(nil)
)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// Validate validates the Azure configuration.
func (c AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account_name is required")
	}
	if c.AccountKey == "" {
		return fmt.Errorf("azure account_key is required")
	}
	if c.ContainerName == "" {
		return fmt.Errorf("azure container_name is required")
	}
	return nil
}

// ConnectionString builds the storage account connection string.
func (c AzureConfig) ConnectionString() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			c.AccountName, c.AccountKey, c.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		c.AccountName, c.AccountKey)
}

// AzureWriter implements storage.Writer for Azure Blob Storage.
type AzureWriter struct {
	client        *azblob.Client
	containerName string
	enc           encoder.Encoder
	logger        *slog.Logger
	metrics       MetricsCollector
	mu            sync.Mutex
}

// NewAzureWriter creates a new Azure Blob storage writer.
func NewAzureWriter(
	cfg AzureConfig,
	enc encoder.Encoder,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*AzureWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure writer created",
		"container", cfg.ContainerName,
		"account", cfg.AccountName,
		"format", enc.Format(),
	)

	return &AzureWriter{
		client:        client,
		containerName: cfg.ContainerName,
		enc:           enc,
		logger:        logger,
		metrics:       orNop(metrics),
	}, nil
}

// Write encodes a batch to a temporary file and uploads it under path.
func (w *AzureWriter) Write(ctx context.Context, batch record.Batch, path string) (int64, error) {
	if len(batch.Records) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()
	blobPath := objectKey(path, "wasbs", ObjectName(startTime, w.enc.FileExtension()))

	tempFile, stats, err := encodeTemp(w.enc, batch.Records, "azure")
	if err != nil {
		w.metrics.IncStorageErrors("azure", "encode")
		return 0, fmt.Errorf("failed to encode records: %w", err)
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		w.metrics.IncStorageErrors("azure", "file_open")
		return 0, fmt.Errorf("failed to open encoded file: %w", err)
	}
	defer file.Close()

	_, err = w.client.UploadFile(ctx, w.containerName, blobPath, file, nil)
	if err != nil {
		w.metrics.IncStorageErrors("azure", "upload")
		return 0, &errors.StorageError{Operation: "upload", Path: w.containerName + "/" + blobPath, Err: err}
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote records to Azure Blob",
		"container", w.containerName,
		"blob", blobPath,
		"record_count", stats.RecordCount,
		"file_size", stats.SizeBytes,
		"total_duration_ms", duration.Milliseconds(),
	)
	observeWrite(w.metrics, batch, w.enc.Format(), stats.SizeBytes, duration.Seconds())

	return stats.SizeBytes, nil
}

// List returns the names of all blobs under prefix.
func (w *AzureWriter) List(ctx context.Context, prefix string) ([]string, error) {
	blobPrefix := keyPrefix(prefix, "wasbs")
	pager := w.client.NewListBlobsFlatPager(w.containerName, &azblob.ListBlobsFlatOptions{
		Prefix: &blobPrefix,
	})

	var names []string
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			w.metrics.IncStorageErrors("azure", "list")
			return nil, &errors.StorageError{Operation: "list", Path: prefix, Err: err}
		}
		for _, item := range resp.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

// Close closes the Azure writer.
func (w *AzureWriter) Close() error {
	w.logger.Info("Azure writer closed")
	return nil
}
