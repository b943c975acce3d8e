// Package config loads the application configuration from a YAML file and
// APP_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/kafrecordstore/internal/config/dto"
	"github.com/jittakal/kafrecordstore/internal/storage"
)

// bucketSchemes maps bucket path schemes to storage backends.
var bucketSchemes = map[string]string{
	"s3":    "s3",
	"s3a":   "s3",
	"gs":    "gcs",
	"gcs":   "gcs",
	"wasbs": "azure",
	"abfss": "azure",
	"file":  "file",
}

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()
	l.bindEnv()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand ${VAR} references in config values
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ApplyBucketPath(&config.Storage); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Application.Environment = config.Application.Env().String()

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// bindEnv registers the environment variables that do not follow the
// APP_ naming scheme.
func (l *Loader) bindEnv() {
	_ = l.v.BindEnv("storage.bucket_path", "APP_STORAGE_BUCKET_PATH", "BUCKET_PATH")
	_ = l.v.BindEnv("application.environment", "APP_APPLICATION_ENVIRONMENT", "EXECUTION_ENVIRONMENT")
	_ = l.v.BindEnv("storage.azure.account_key", "APP_STORAGE_AZURE_ACCOUNT_KEY", "AZURE_STORAGE_ACCOUNT_KEY")
	_ = l.v.BindEnv("storage.gcs.credentials_json", "APP_STORAGE_GCS_CREDENTIALS_JSON", "GCP_CREDENTIALS_JSON")
}

// ApplyBucketPath selects the backend, bucket and base path named by
// storage.bucket_path. It is a no-op when the bucket path is empty.
func ApplyBucketPath(c *dto.StorageConfig) error {
	if c.BucketPath == "" {
		return nil
	}

	bp, err := storage.ParseBucketPath(c.BucketPath)
	if err != nil {
		return fmt.Errorf("storage.bucket_path: %w", err)
	}
	backend, ok := bucketSchemes[bp.Scheme]
	if !ok {
		return fmt.Errorf("storage.bucket_path: unsupported scheme %q", bp.Scheme)
	}

	c.Backend = backend
	switch backend {
	case "s3":
		c.S3.Bucket, c.S3.BasePath = bp.Bucket, bp.Prefix
	case "gcs":
		c.GCS.Bucket, c.GCS.BasePath = bp.Bucket, bp.Prefix
	case "azure":
		c.Azure.Container, c.Azure.BasePath = bp.Bucket, bp.Prefix
	case "file":
		c.File.BasePath = path.Join(bp.Bucket, bp.Prefix)
	}
	return nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "kafrecordstore")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "pre")

	// Kafka defaults
	l.v.SetDefault("kafka.security_protocol", "SASL_SSL")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.consumer.auto_offset_reset", "earliest")
	l.v.SetDefault("kafka.consumer.enable_auto_commit", false)
	l.v.SetDefault("kafka.consumer.max_poll_interval_ms", 300000)
	l.v.SetDefault("kafka.consumer.session_timeout_ms", 30000)
	l.v.SetDefault("kafka.consumer.heartbeat_interval_ms", 10000)
	l.v.SetDefault("kafka.consumer.envelope", "json")
	l.v.SetDefault("kafka.consumer.include_attributes", false)
	l.v.SetDefault("kafka.dlq.enabled", true)
	l.v.SetDefault("kafka.dlq.topic_suffix", "-dlq")

	// Storage defaults
	l.v.SetDefault("storage.backend", "file")
	l.v.SetDefault("storage.format", "parquet")
	l.v.SetDefault("storage.partitioning.layout", "date")
	l.v.SetDefault("storage.partitioning.version", "v1")
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", true)

	// File rotation defaults
	l.v.SetDefault("file_rotation.max_file_size_mb", 128)
	l.v.SetDefault("file_rotation.max_records_per_file", 100000)
	l.v.SetDefault("file_rotation.max_duration_seconds", 300)
	l.v.SetDefault("file_rotation.strategy", "composite")

	// Parquet defaults
	l.v.SetDefault("parquet.page_buffer_size_kb", 1024)
	l.v.SetDefault("parquet.enable_statistics", true)

	// Processing defaults
	l.v.SetDefault("processing.buffer_size_mb", 64)
	l.v.SetDefault("processing.flush_interval_seconds", 10)

	// Observability defaults. Logging level and format are left empty so
	// the environment picks them.
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	return config.Validate()
}
