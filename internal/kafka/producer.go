package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	cloudevent "github.com/cloudevents/sdk-go/v2/event"
	"github.com/google/uuid"

	"github.com/jittakal/kafrecordstore/pkg/record"
)

// ProducerConfig contains record producer configuration. Security settings
// come from the ConsumerConfig passed to NewProducer.
type ProducerConfig struct {
	// Envelope wraps each record; EnvelopeCloudEvents sends structured-mode events.
	Envelope Envelope
	// Source and Type are the CloudEvent source and type attributes.
	Source string
	Type   string
	// Compression is none, gzip, snappy, lz4 or zstd.
	Compression string
}

// Producer sends raw records to Kafka in the envelope the consumer decodes.
type Producer struct {
	producer sarama.SyncProducer
	config   ProducerConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewProducer creates a synchronous record producer.
func NewProducer(securityConfig ConsumerConfig, config ProducerConfig, logger *slog.Logger) (*Producer, error) {
	if _, err := ParseEnvelope(string(config.Envelope)); err != nil {
		return nil, err
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = compressionCodec(config.Compression)
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	if err := configureSecurity(saramaConfig, securityConfig); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	producer, err := sarama.NewSyncProducer(securityConfig.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("kafka producer created",
		"bootstrap_servers", securityConfig.BootstrapServers,
		"security_protocol", securityConfig.SecurityProtocol,
		"envelope", config.Envelope,
	)
	return newProducer(producer, config, logger), nil
}

func newProducer(producer sarama.SyncProducer, config ProducerConfig, logger *slog.Logger) *Producer {
	if config.Envelope == "" {
		config.Envelope = EnvelopeJSON
	}
	return &Producer{
		producer: producer,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Produce sends rec to topic under key. It returns the partition and offset
// the broker assigned.
func (p *Producer) Produce(ctx context.Context, topic, key string, rec record.Record) (int32, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	msg, err := p.message(topic, key, rec)
	if err != nil {
		return 0, 0, err
	}
	return p.send(msg)
}

// ProduceRaw sends value unchanged, for payloads that are not records.
func (p *Producer) ProduceRaw(ctx context.Context, topic, key string, value []byte) (int32, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	return p.send(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
}

func (p *Producer) send(msg *sarama.ProducerMessage) (int32, int64, error) {
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	p.logger.Debug("record produced",
		"topic", msg.Topic,
		"partition", partition,
		"offset", offset,
	)
	return partition, offset, nil
}

func (p *Producer) message(topic, key string, rec record.Record) (*sarama.ProducerMessage, error) {
	msg := &sarama.ProducerMessage{Topic: topic}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	if p.config.Envelope != EnvelopeCloudEvents {
		value, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal record: %w", err)
		}
		msg.Value = sarama.ByteEncoder(value)
		return msg, nil
	}

	e := cloudevent.New()
	e.SetID(uuid.NewString())
	e.SetSource(p.config.Source)
	e.SetType(p.config.Type)
	e.SetTime(p.now())
	if err := e.SetData(cloudevent.ApplicationJSON, rec); err != nil {
		return nil, fmt.Errorf("failed to set event data: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cloud event: %w", err)
	}

	value, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cloud event: %w", err)
	}
	msg.Value = sarama.ByteEncoder(value)
	msg.Headers = []sarama.RecordHeader{
		{Key: []byte("ce_specversion"), Value: []byte(e.SpecVersion())},
		{Key: []byte("ce_type"), Value: []byte(e.Type())},
		{Key: []byte("ce_source"), Value: []byte(e.Source())},
		{Key: []byte("ce_id"), Value: []byte(e.ID())},
	}
	return msg, nil
}

// Close closes the producer.
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// compressionCodec parses a compression name. Unknown names mean none.
func compressionCodec(name string) sarama.CompressionCodec {
	switch name {
	case "gzip":
		return sarama.CompressionGZIP
	case "snappy":
		return sarama.CompressionSnappy
	case "lz4":
		return sarama.CompressionLZ4
	case "zstd":
		return sarama.CompressionZSTD
	default:
		return sarama.CompressionNone
	}
}
