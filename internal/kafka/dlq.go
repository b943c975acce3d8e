package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/jittakal/kafrecordstore/internal/errors"
	"github.com/jittakal/kafrecordstore/pkg/consumer"
	"github.com/jittakal/kafrecordstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ consumer.DLQPublisher = (*DLQPublisher)(nil)

// Headers set on every dead letter message. The value is the original
// message value, unchanged.
const (
	HeaderFailureReason     = "failure_reason"
	HeaderErrorKind         = "error_kind"
	HeaderErrorMessage      = "error_message"
	HeaderOriginalTopic     = "original_topic"
	HeaderOriginalPartition = "original_partition"
	HeaderOriginalOffset    = "original_offset"
	HeaderFailureTimestamp  = "failure_timestamp"
	HeaderProcessorID       = "processor_id"
)

// DLQConfig contains DLQ configuration.
type DLQConfig struct {
	Enabled     bool
	TopicSuffix string
}

// Topic returns the dead letter topic for a source topic.
func (c DLQConfig) Topic(source string) string {
	return source + c.TopicSuffix
}

// DLQPublisher publishes messages that could not be normalized or stored
// to a dead letter topic next to their source topic.
type DLQPublisher struct {
	producer    sarama.SyncProducer
	config      DLQConfig
	logger      *slog.Logger
	mu          sync.RWMutex
	closed      bool
	processorID string
	now         func() time.Time
}

// NewDLQPublisher creates a new DLQ publisher. A disabled DLQ returns a
// publisher whose Publish is a no-op.
func NewDLQPublisher(
	securityConfig ConsumerConfig,
	dlqConfig DLQConfig,
	logger *slog.Logger,
	processorID string,
) (*DLQPublisher, error) {
	if !dlqConfig.Enabled {
		logger.Info("DLQ is disabled")
		return newDLQPublisher(nil, dlqConfig, logger, processorID), nil
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	// Reuse consumer security
	if err := configureSecurity(saramaConfig, securityConfig); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	producer, err := sarama.NewSyncProducer(securityConfig.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("DLQ publisher created",
		"bootstrap_servers", securityConfig.BootstrapServers,
		"topic_suffix", dlqConfig.TopicSuffix,
	)

	return newDLQPublisher(producer, dlqConfig, logger, processorID), nil
}

func newDLQPublisher(producer sarama.SyncProducer, cfg DLQConfig, logger *slog.Logger, processorID string) *DLQPublisher {
	return &DLQPublisher{
		producer:    producer,
		config:      cfg,
		logger:      logger,
		processorID: processorID,
		now:         time.Now,
	}
}

// Publish sends raw to the dead letter topic with the failure described in
// headers. The original key is preserved.
func (p *DLQPublisher) Publish(
	ctx context.Context,
	raw []byte,
	metadata record.KafkaMetadata,
	reason string,
	cause error,
) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.ErrConsumerClosed
	}

	if !p.config.Enabled || p.producer == nil {
		p.logger.Debug("DLQ disabled, skipping publish")
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := p.message(raw, metadata, reason, cause)

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("failed to publish to DLQ",
			"error", err,
			"dlq_topic", msg.Topic,
			"offset", metadata.Offset,
		)
		return fmt.Errorf("failed to send message to DLQ: %w", err)
	}

	p.logger.Info("published record to DLQ",
		"dlq_topic", msg.Topic,
		"partition", partition,
		"offset", offset,
		"original_offset", metadata.Offset,
		"reason", reason,
		"error_kind", errors.Kind(cause),
	)

	return nil
}

func (p *DLQPublisher) message(raw []byte, metadata record.KafkaMetadata, reason string, cause error) *sarama.ProducerMessage {
	now := p.now().UTC()

	errMessage := ""
	if cause != nil {
		errMessage = cause.Error()
	}

	header := func(k, v string) sarama.RecordHeader {
		return sarama.RecordHeader{Key: []byte(k), Value: []byte(v)}
	}

	msg := &sarama.ProducerMessage{
		Topic: p.config.Topic(metadata.Topic),
		Value: sarama.ByteEncoder(raw),
		Headers: []sarama.RecordHeader{
			header(HeaderFailureReason, reason),
			header(HeaderErrorKind, errors.Kind(cause)),
			header(HeaderErrorMessage, errMessage),
			header(HeaderOriginalTopic, metadata.Topic),
			header(HeaderOriginalPartition, strconv.FormatInt(int64(metadata.Partition), 10)),
			header(HeaderOriginalOffset, strconv.FormatInt(metadata.Offset, 10)),
			header(HeaderFailureTimestamp, now.Format(time.RFC3339Nano)),
			header(HeaderProcessorID, p.processorID),
		},
		Timestamp: now,
	}
	if len(metadata.Key) > 0 {
		msg.Key = sarama.ByteEncoder(metadata.Key)
	}
	return msg
}

// Close closes the DLQ publisher.
func (p *DLQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	p.logger.Info("closing DLQ publisher")

	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Error("error closing producer", "error", err)
			return err
		}
	}

	p.logger.Info("DLQ publisher closed")
	return nil
}
