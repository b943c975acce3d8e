// Command recordgen produces sample records for a schema to a Kafka topic,
// in the raw shapes the normalization pipeline accepts, for local testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jittakal/kafrecordstore/internal/generator"
	"github.com/jittakal/kafrecordstore/internal/kafka"
	"github.com/jittakal/kafrecordstore/internal/observability"
	"github.com/jittakal/kafrecordstore/internal/schema"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

var (
	brokers      = flag.String("brokers", getEnv("KAFKA_BROKERS", "localhost:9092"), "comma separated bootstrap servers")
	topic        = flag.String("topic", getEnv("KAFKA_TOPIC", ""), "topic to produce to")
	schemaPath   = flag.String("schema", getEnv("SCHEMA_PATH", ""), "schema file (.avsc, .json, .yaml)")
	count        = flag.Int("count", 0, "records to produce, 0 to run until interrupted")
	interval     = flag.Duration("interval", 100*time.Millisecond, "delay between records")
	envelope     = flag.String("envelope", "json", "record envelope: json or cloudevents")
	source       = flag.String("source", "recordgen", "CloudEvent source")
	eventType    = flag.String("type", "com.kafrecordstore.record", "CloudEvent type")
	invalidRatio = flag.Float64("invalid-ratio", 0, "share of records that cannot be normalized")
	logLevel     = flag.String("log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
)

// recordProducer is the part of kafka.Producer recordgen needs.
type recordProducer interface {
	Produce(ctx context.Context, topic, key string, rec record.Record) (int32, int64, error)
}

type genStats struct {
	produced int
	invalid  int
	failed   int
}

func main() {
	flag.Parse()

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  *logLevel,
		Format: "text",
		Output: "stderr",
	})

	if err := run(logger); err != nil {
		logger.Error("recordgen failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if *topic == "" || *schemaPath == "" {
		return fmt.Errorf("-topic and -schema are required")
	}

	s, err := schema.LoadFile(*schemaPath)
	if err != nil {
		return err
	}

	config := generator.DefaultConfig()
	config.InvalidRatio = *invalidRatio
	gen, err := generator.New(s, config)
	if err != nil {
		return err
	}

	env, err := kafka.ParseEnvelope(*envelope)
	if err != nil {
		return err
	}

	producer, err := kafka.NewProducer(kafka.ConsumerConfig{
		BootstrapServers: strings.Split(*brokers, ","),
		SecurityProtocol: getEnv("KAFKA_SECURITY_PROTOCOL", "PLAINTEXT"),
		SASLMechanism:    getEnv("KAFKA_SASL_MECHANISM", ""),
		SASLUsername:     getEnv("KAFKA_SASL_USERNAME", ""),
		SASLPassword:     getEnv("KAFKA_SASL_PASSWORD", ""),
		AWSRegion:        getEnv("AWS_REGION", ""),
	}, kafka.ProducerConfig{
		Envelope:    env,
		Source:      *source,
		Type:        *eventType,
		Compression: getEnv("KAFKA_COMPRESSION", "snappy"),
	}, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("producing records",
		"topic", *topic,
		"schema", s.Name,
		"envelope", env,
		"count", *count,
	)

	st := produce(ctx, producer, gen, *topic, *count, *interval, logger)
	logger.Info("stopped producing",
		"produced", st.produced,
		"invalid", st.invalid,
		"failed", st.failed,
	)
	return nil
}

// produce sends count records, one per interval, until ctx is done. A count
// of zero means no limit.
func produce(
	ctx context.Context,
	producer recordProducer,
	gen *generator.Generator,
	topic string,
	count int,
	interval time.Duration,
	logger *slog.Logger,
) genStats {
	var st genStats
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for count == 0 || st.produced+st.failed < count {
		select {
		case <-ctx.Done():
			return st
		case <-ticker.C:
		}

		rec, valid := gen.Next()
		partition, offset, err := producer.Produce(ctx, topic, "", rec)
		if err != nil {
			logger.Error("failed to produce record", "error", err, "topic", topic)
			st.failed++
			continue
		}
		st.produced++
		if !valid {
			st.invalid++
		}
		logger.Debug("produced record",
			"partition", partition,
			"offset", offset,
			"valid", valid,
		)
	}
	return st
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
