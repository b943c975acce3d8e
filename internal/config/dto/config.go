// Package dto holds the configuration structures decoded by the loader.
package dto

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Schema        SchemaConfig        `mapstructure:"schema"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Storage       StorageConfig       `mapstructure:"storage"`
	FileRotation  FileRotationConfig  `mapstructure:"file_rotation"`
	Parquet       ParquetConfig       `mapstructure:"parquet"`
	Processing    ProcessingConfig    `mapstructure:"processing"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// Env returns the parsed execution environment.
func (a ApplicationInfo) Env() Environment {
	return ParseEnvironment(a.Environment)
}

// SchemaConfig locates the record schema.
type SchemaConfig struct {
	// Path is a .avsc, .json, .yaml or .yml schema file.
	Path string `mapstructure:"path"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol string         `mapstructure:"security_protocol"`
	SASLMechanism    string         `mapstructure:"sasl_mechanism"`
	SASLUsername     string         `mapstructure:"sasl_username"`
	SASLPassword     string         `mapstructure:"sasl_password"`
	AWSRegion        string         `mapstructure:"aws_region"`
	TLSSkipVerify    bool           `mapstructure:"tls_skip_verify"`
	Consumer         ConsumerConfig `mapstructure:"consumer"`
	DLQ              DLQConfig      `mapstructure:"dlq"`
}

// ConsumerConfig contains Kafka consumer configuration
type ConsumerConfig struct {
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	EnableAutoCommit    bool     `mapstructure:"enable_auto_commit"`
	MaxPollIntervalMS   int      `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
	// Envelope is "json" for bare objects or "cloudevents".
	Envelope          string `mapstructure:"envelope"`
	IncludeAttributes bool   `mapstructure:"include_attributes"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
}

// StorageConfig contains storage backend configuration
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	Format      string `mapstructure:"format"`
	Compression string `mapstructure:"compression"`
	// BucketPath is a scheme://bucket/prefix URL. When set it selects the
	// backend and overrides the backend's bucket and base path.
	BucketPath   string             `mapstructure:"bucket_path"`
	Partitioning PartitioningConfig `mapstructure:"partitioning"`
	S3           S3Config           `mapstructure:"s3"`
	Azure        AzureConfig        `mapstructure:"azure"`
	GCS          GCSConfig          `mapstructure:"gcs"`
	File         FileConfig         `mapstructure:"file"`
}

// PartitioningConfig controls the object path layout.
type PartitioningConfig struct {
	// Layout is "date" (dt=YYYY-MM-DD) or "week" (wk=YYYYWww).
	Layout  string `mapstructure:"layout"`
	Version string `mapstructure:"version"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	BasePath    string `mapstructure:"base_path"`
	Endpoint    string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	Endpoint             string `mapstructure:"endpoint"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// FileRotationConfig contains file rotation settings
type FileRotationConfig struct {
	MaxFileSizeMB      int64  `mapstructure:"max_file_size_mb"`
	MaxRecordsPerFile  int    `mapstructure:"max_records_per_file"`
	MaxDurationSeconds int    `mapstructure:"max_duration_seconds"`
	Strategy           string `mapstructure:"strategy"`
}

// ParquetConfig contains Parquet format settings
type ParquetConfig struct {
	PageBufferSizeKB int  `mapstructure:"page_buffer_size_kb"`
	EnableStatistics bool `mapstructure:"enable_statistics"`
}

// ProcessingConfig contains processing settings
type ProcessingConfig struct {
	BufferSizeMB         int `mapstructure:"buffer_size_mb"`
	FlushIntervalSeconds int `mapstructure:"flush_interval_seconds"`
	// EventTimeField names the normalized field routing uses; empty means
	// the Kafka timestamp.
	EventTimeField string `mapstructure:"event_time_field"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
}

var (
	supportedFormats    = []string{"json", "avro", "parquet"}
	supportedStrategies = []string{"composite", "size", "time", "count"}
	supportedLayouts    = []string{"date", "week"}
	supportedEnvelopes  = []string{"json", "cloudevents"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate checks the whole configuration and reports every problem found.
func (c *ApplicationConfig) Validate() error {
	var errs error
	add := func(err error) {
		errs = multierr.Append(errs, err)
	}

	if c.Application.Name == "" {
		add(errors.New("application.name is required"))
	}
	if c.Schema.Path == "" {
		add(errors.New("schema.path is required"))
	}

	// Kafka validation
	if len(c.Kafka.BootstrapServers) == 0 {
		add(errors.New("kafka.bootstrap_servers is required"))
	}
	if len(c.Kafka.Consumer.Topics) == 0 {
		add(errors.New("kafka.consumer.topics is required"))
	}
	if c.Kafka.Consumer.GroupID == "" {
		add(errors.New("kafka.consumer.group_id is required"))
	}
	if c.Kafka.Consumer.Envelope != "" && !oneOf(c.Kafka.Consumer.Envelope, supportedEnvelopes) {
		add(fmt.Errorf("unsupported kafka.consumer.envelope: %s", c.Kafka.Consumer.Envelope))
	}

	add(c.Storage.Validate())

	if !oneOf(c.FileRotation.Strategy, supportedStrategies) {
		add(fmt.Errorf("unsupported rotation strategy: %s", c.FileRotation.Strategy))
	}

	// Port validation
	if c.Observability.Metrics.Enabled && (c.Observability.Metrics.Port < 1 || c.Observability.Metrics.Port > 65535) {
		add(fmt.Errorf("invalid metrics port: %d", c.Observability.Metrics.Port))
	}
	if c.Observability.Health.Port < 1 || c.Observability.Health.Port > 65535 {
		add(fmt.Errorf("invalid health port: %d", c.Observability.Health.Port))
	}

	return errs
}

// Validate validates the selected backend and the output format.
func (c *StorageConfig) Validate() error {
	var errs error

	switch c.Backend {
	case "s3":
		if c.S3.Bucket == "" {
			errs = multierr.Append(errs, errors.New("storage.s3.bucket is required for S3 backend"))
		}
		if c.S3.Region == "" {
			errs = multierr.Append(errs, errors.New("storage.s3.region is required for S3 backend"))
		}
	case "azure":
		if c.Azure.AccountName == "" {
			errs = multierr.Append(errs, errors.New("storage.azure.account_name is required for Azure backend"))
		}
		if c.Azure.Container == "" {
			errs = multierr.Append(errs, errors.New("storage.azure.container is required for Azure backend"))
		}
	case "gcs":
		if c.GCS.Bucket == "" {
			errs = multierr.Append(errs, errors.New("storage.gcs.bucket is required for GCS backend"))
		}
	case "file":
		if c.File.BasePath == "" {
			errs = multierr.Append(errs, errors.New("storage.file.base_path is required for file backend"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unsupported storage backend: %s", c.Backend))
	}

	if !oneOf(c.Format, supportedFormats) {
		errs = multierr.Append(errs, fmt.Errorf("unsupported storage format: %s", c.Format))
	}
	if c.Partitioning.Layout != "" && !oneOf(c.Partitioning.Layout, supportedLayouts) {
		errs = multierr.Append(errs, fmt.Errorf("unsupported storage.partitioning.layout: %s", c.Partitioning.Layout))
	}
	return errs
}

// Protocol returns the URL scheme paths are routed under for the backend.
func (c *StorageConfig) Protocol() string {
	switch c.Backend {
	case "s3":
		return "s3"
	case "azure":
		return "wasbs"
	case "gcs":
		return "gs"
	default:
		return "file"
	}
}

// Bucket returns the bucket or container of the backend. The file backend
// has none; its writer roots paths at storage.file.base_path.
func (c *StorageConfig) Bucket() string {
	switch c.Backend {
	case "s3":
		return c.S3.Bucket
	case "azure":
		return c.Azure.Container
	case "gcs":
		return c.GCS.Bucket
	default:
		return ""
	}
}

// BasePath returns the key prefix inside the bucket.
func (c *StorageConfig) BasePath() string {
	switch c.Backend {
	case "s3":
		return c.S3.BasePath
	case "azure":
		return c.Azure.BasePath
	case "gcs":
		return c.GCS.BasePath
	default:
		return ""
	}
}
