package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/pkg/encoder"
	"github.com/jittakal/kafrecordstore/pkg/record"
	"github.com/jittakal/kafrecordstore/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ storage.Writer = (*S3Writer)(nil)
	_ storage.Lister = (*S3Writer)(nil)
)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// Validate validates the S3 configuration.
func (c S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	if c.SSEKMSKeyID != "" && !c.SSEEnabled {
		return fmt.Errorf("s3 sse_kms_key_id requires sse_enabled")
	}
	return nil
}

// putInput builds the upload request for key, applying server-side encryption.
func (c S3Config) putInput(key string, format record.FileFormat) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType(format)),
	}
	if c.SSEEnabled {
		if c.SSEKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(c.SSEKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}
	return input
}

// S3Writer implements storage.Writer for AWS S3 storage.
// It uses the multipart upload manager and optional server-side encryption.
type S3Writer struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	enc      encoder.Encoder
	logger   *slog.Logger
	metrics  MetricsCollector
	mu       sync.Mutex
}

// NewS3Writer creates a new S3 storage writer.
func NewS3Writer(
	ctx context.Context,
	cfg S3Config,
	enc encoder.Encoder,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*S3Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB parts
		u.Concurrency = 5
	})

	logger.Info("S3 writer created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"format", enc.Format(),
		"sse_enabled", cfg.SSEEnabled,
	)

	return &S3Writer{
		client:   s3Client,
		uploader: uploader,
		cfg:      cfg,
		enc:      enc,
		logger:   logger,
		metrics:  orNop(metrics),
	}, nil
}

// Write encodes a batch to a temporary file and uploads it under path.
func (w *S3Writer) Write(ctx context.Context, batch record.Batch, path string) (int64, error) {
	if len(batch.Records) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()
	key := objectKey(path, "s3", ObjectName(startTime, w.enc.FileExtension()))

	tempFile, stats, err := encodeTemp(w.enc, batch.Records, "s3")
	if err != nil {
		w.metrics.IncStorageErrors("s3", "encode")
		return 0, fmt.Errorf("failed to encode records: %w", err)
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		w.metrics.IncStorageErrors("s3", "file_open")
		return 0, fmt.Errorf("failed to open encoded file: %w", err)
	}
	defer file.Close()

	input := w.cfg.putInput(key, w.enc.Format())
	input.Body = file

	result, err := w.uploader.Upload(ctx, input)
	if err != nil {
		w.metrics.IncStorageErrors("s3", "upload")
		return 0, &errors.StorageError{Operation: "upload", Path: "s3://" + w.cfg.Bucket + "/" + key, Err: err}
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote records to S3",
		"bucket", w.cfg.Bucket,
		"key", key,
		"record_count", stats.RecordCount,
		"file_size", stats.SizeBytes,
		"location", result.Location,
		"total_duration_ms", duration.Milliseconds(),
	)
	observeWrite(w.metrics, batch, w.enc.Format(), stats.SizeBytes, duration.Seconds())

	return stats.SizeBytes, nil
}

// List returns the keys of all objects under prefix.
func (w *S3Writer) List(ctx context.Context, prefix string) ([]string, error) {
	listPrefix := keyPrefix(prefix, "s3")
	paginator := s3.NewListObjectsV2Paginator(w.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(w.cfg.Bucket),
		Prefix: aws.String(listPrefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			w.metrics.IncStorageErrors("s3", "list")
			return nil, &errors.StorageError{Operation: "list", Path: prefix, Err: err}
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Close closes the S3 writer.
func (w *S3Writer) Close() error {
	w.logger.Info("closing S3 writer")
	return nil
}
