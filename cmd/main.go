package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/jittakal/kafrecordstore/internal/buffer"
	"github.com/jittakal/kafrecordstore/internal/config"
	"github.com/jittakal/kafrecordstore/internal/config/dto"
	"github.com/jittakal/kafrecordstore/internal/encoder"
	"github.com/jittakal/kafrecordstore/internal/kafka"
	"github.com/jittakal/kafrecordstore/internal/observability"
	"github.com/jittakal/kafrecordstore/internal/pipeline"
	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/internal/server"
	"github.com/jittakal/kafrecordstore/internal/storage"
	"github.com/jittakal/kafrecordstore/internal/transform"
	"github.com/jittakal/kafrecordstore/internal/validator"
	pkgencoder "github.com/jittakal/kafrecordstore/pkg/encoder"
	"github.com/jittakal/kafrecordstore/pkg/record"
	pkgstorage "github.com/jittakal/kafrecordstore/pkg/storage"
)

// defaultMaxBufferedRecords caps a partition buffer when rotation sets no
// record limit.
const defaultMaxBufferedRecords = 100000

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	cfg, err := config.NewLoader().Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:       cfg.Observability.Logging.Level,
		Format:      cfg.Observability.Logging.Format,
		Output:      cfg.Observability.Logging.Output,
		Environment: cfg.Application.Environment,
	})
	slog.SetDefault(logger)
	logger.Info("starting kafka record store",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// Cleanups run in reverse registration order.
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, func() error {
			if err := fn(); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
		logger.Debug("registered cleanup", "component", name)
	}
	defer func() {
		var errs error
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, cleanupFuncs[i]())
		}
		if errs != nil {
			logger.Error("cleanup failed", "error", errs)
		}
	}()

	s, err := loadSchema(cfg.Schema.Path)
	if err != nil {
		return err
	}
	normalizer, err := transform.New(s)
	if err != nil {
		return fmt.Errorf("failed to build transformer: %w", err)
	}
	logger.Info("schema loaded", "path", cfg.Schema.Path, "name", s.Name, "fields", len(s.Fields))

	format := record.FileFormat(cfg.Storage.Format)
	compression := cfg.Storage.Compression
	if compression == "" {
		compression = encoder.DefaultCompression(format)
	}
	enc, err := encoder.NewFactory(format, compression, s, encoder.ParquetOptions{
		PageBufferSize:     cfg.Parquet.PageBufferSizeKB * 1024,
		DataPageStatistics: cfg.Parquet.EnableStatistics,
		CreatedBy:          cfg.Application.Name,
		Version:            cfg.Application.Version,
	}).CreateEncoder()
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer, err := newWriter(ctx, cfg, enc, logger, metrics)
	if err != nil {
		return err
	}
	addCleanup("storage-writer", writer.Close)

	router := storage.NewRouter(
		cfg.Storage.Protocol(),
		cfg.Storage.Bucket(),
		cfg.Storage.BasePath(),
		cfg.Storage.Partitioning.Version,
		storage.Layout(cfg.Storage.Partitioning.Layout),
	)

	policy := storage.NewPolicy(storage.PolicyConfig{
		MaxFileSizeMB:      cfg.FileRotation.MaxFileSizeMB,
		MaxRecordsPerFile:  cfg.FileRotation.MaxRecordsPerFile,
		MaxDurationSeconds: cfg.FileRotation.MaxDurationSeconds,
		Strategy:           cfg.FileRotation.Strategy,
	})

	bufferSizeBytes := int64(cfg.Processing.BufferSizeMB) * 1024 * 1024
	maxRecords := cfg.FileRotation.MaxRecordsPerFile
	if maxRecords <= 0 {
		maxRecords = defaultMaxBufferedRecords
	}
	buffers := buffer.NewManager(bufferSizeBytes, maxRecords)

	envelope, err := kafka.ParseEnvelope(cfg.Kafka.Consumer.Envelope)
	if err != nil {
		return err
	}
	consumerConfig := kafka.ConsumerConfig{
		BootstrapServers:    cfg.Kafka.BootstrapServers,
		GroupID:             cfg.Kafka.Consumer.GroupID,
		SecurityProtocol:    cfg.Kafka.SecurityProtocol,
		SASLMechanism:       cfg.Kafka.SASLMechanism,
		SASLUsername:        cfg.Kafka.SASLUsername,
		SASLPassword:        cfg.Kafka.SASLPassword,
		AWSRegion:           cfg.Kafka.AWSRegion,
		TLSSkipVerify:       cfg.Kafka.TLSSkipVerify,
		AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
		EnableAutoCommit:    cfg.Kafka.Consumer.EnableAutoCommit,
		MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
		Envelope:            envelope,
		IncludeAttributes:   cfg.Kafka.Consumer.IncludeAttributes,
	}
	consumer, err := kafka.NewSaramaConsumer(consumerConfig, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	addCleanup("kafka-consumer", consumer.Close)

	processorID := fmt.Sprintf("%s-%s", cfg.Application.Name, uuid.NewString())
	dlqPublisher, err := kafka.NewDLQPublisher(consumerConfig, kafka.DLQConfig{
		Enabled:     cfg.Kafka.DLQ.Enabled,
		TopicSuffix: cfg.Kafka.DLQ.TopicSuffix,
	}, logger, processorID)
	if err != nil {
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	addCleanup("dlq-publisher", dlqPublisher.Close)

	processor, err := pipeline.New(pipeline.Config{
		EventTimeField: cfg.Processing.EventTimeField,
		FlushInterval:  time.Duration(cfg.Processing.FlushIntervalSeconds) * time.Second,
	}, pipeline.Dependencies{
		Normalizer: normalizer,
		Buffers:    buffers,
		Policy:     policy,
		Router:     router,
		Writer:     writer,
		DLQ:        dlqPublisher,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}

	checker := server.NewChecker(2 * time.Second)
	checker.AddCheck("pipeline", processor.Check)

	metricsPort := cfg.Observability.Metrics.Port
	if !cfg.Observability.Metrics.Enabled {
		metricsPort = cfg.Observability.Health.Port
	}
	httpServer := server.NewServer(server.Config{
		HealthPort:    cfg.Observability.Health.Port,
		MetricsPort:   metricsPort,
		LivenessPath:  cfg.Observability.Health.LivenessPath,
		ReadinessPath: cfg.Observability.Health.ReadinessPath,
		MetricsPath:   cfg.Observability.Metrics.Path,
	}, checker, registry, logger)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	if err := consumer.Subscribe(ctx, cfg.Kafka.Consumer.Topics); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	records, consumerErrs, err := consumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	processErr := make(chan error, 1)
	go func() {
		processErr <- processor.Run(ctx, records, consumerErrs)
	}()

	logger.Info("application started successfully", "topics", cfg.Kafka.Consumer.Topics)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received termination signal", "signal", sig.String())
	case err := <-processErr:
		checker.SetLive(false)
		if err != nil {
			logger.Error("processing stopped", "error", err)
			return err
		}
		return nil
	}

	logger.Info("initiating graceful shutdown")
	checker.SetLive(false)
	cancel()

	// Run flushes its buffers once ctx is cancelled.
	grace := time.Duration(cfg.Shutdown.GracePeriodSeconds) * time.Second
	select {
	case err := <-processErr:
		if err != nil {
			logger.Error("final flush failed", "error", err)
			return err
		}
	case <-time.After(grace):
		logger.Warn("shutdown grace period elapsed before final flush", "grace_period", grace)
	}

	logger.Info("application stopped successfully")
	return nil
}

// loadSchema reads and checks the record schema.
func loadSchema(path string) (*schema.Schema, error) {
	s, err := schema.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	if err := validator.NewSchemaValidator().Validate(s); err != nil {
		return nil, fmt.Errorf("invalid schema %s: %w", path, err)
	}
	return s, nil
}

// newWriter creates the storage writer of the configured backend.
func newWriter(
	ctx context.Context,
	cfg *dto.ApplicationConfig,
	enc pkgencoder.Encoder,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (pkgstorage.Writer, error) {
	switch cfg.Storage.Backend {
	case "file":
		w, err := storage.NewFileWriter(storage.FileConfig{
			BasePath: cfg.Storage.File.BasePath,
		}, enc, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem writer: %w", err)
		}
		return w, nil
	case "s3":
		w, err := storage.NewS3Writer(ctx, storage.S3Config{
			Bucket:       cfg.Storage.S3.Bucket,
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
			SSEEnabled:   cfg.Storage.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.Storage.S3.SSEKMSKeyID,
		}, enc, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 writer: %w", err)
		}
		return w, nil
	case "azure":
		w, err := storage.NewAzureWriter(storage.AzureConfig{
			AccountName:   cfg.Storage.Azure.AccountName,
			AccountKey:    cfg.Storage.Azure.AccountKey,
			ContainerName: cfg.Storage.Azure.Container,
			Endpoint:      cfg.Storage.Azure.Endpoint,
		}, enc, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Blob writer: %w", err)
		}
		return w, nil
	case "gcs":
		w, err := storage.NewGCSWriter(ctx, storage.GCSConfig{
			Bucket:               cfg.Storage.GCS.Bucket,
			ProjectID:            cfg.Storage.GCS.ProjectID,
			CredentialsFile:      cfg.Storage.GCS.CredentialsFile,
			CredentialsJSON:      cfg.Storage.GCS.CredentialsJSON,
			Endpoint:             cfg.Storage.GCS.Endpoint,
			UseDefaultCredential: cfg.Storage.GCS.UseDefaultCredential,
		}, enc, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS writer: %w", err)
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (supported: file, s3, azure, gcs)", cfg.Storage.Backend)
	}
}
